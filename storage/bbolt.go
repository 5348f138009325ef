package storage

import (
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// allBuckets lists every column family a fresh store must pre-create.
var allBuckets = [][]byte{
	bucketBlocks.Name(),
	bucketGHOSTDAG.Name(),
	bucketVersionedBalance.Name(),
	bucketVersionedNonce.Name(),
	bucketAssets.Name(),
	bucketMultiSigs.Name(),
	bucketTips.Name(),
	bucketTopoHeightIndex.Name(),
}

// boltDatabase is the mock/test backend of spec.md §4.6(b): one named
// bucket per column family instead of leveldb's flat prefixed keyspace.
// Grounded on 2tbmz9y2xt-lang-rubin-protocol's store.Open (bolt.Open with a
// connect timeout, CreateBucketIfNotExists for every known bucket up
// front).
type boltDatabase struct {
	db *bolt.DB
}

// OpenBoltDB opens (creating if absent) a bbolt store at path, suitable for
// tests and local fixtures.
func OpenBoltDB(path string) (Database, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening bbolt at %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "storage: creating bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltDatabase{db: db}, nil
}

// boltBucketOf maps a flat key (as produced by Bucket.Key) back to the
// bbolt bucket and in-bucket suffix it belongs to, since bbolt has no
// native notion of a key prefix spanning an entire keyspace.
func boltBucketOf(key []byte) (bucketName, suffix []byte) {
	for i, b := range []byte(key) {
		if b == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, nil
}

func (db *boltDatabase) Put(key, value []byte) error {
	bucketName, suffix := boltBucketOf(key)
	return db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(suffix, value)
	})
}

func (db *boltDatabase) Get(key []byte) ([]byte, bool, error) {
	bucketName, suffix := boltBucketOf(key)
	var value []byte
	err := db.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(suffix)
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	return value, value != nil, err
}

func (db *boltDatabase) Has(key []byte) (bool, error) {
	_, found, err := db.Get(key)
	return found, err
}

func (db *boltDatabase) Delete(key []byte) error {
	bucketName, suffix := boltBucketOf(key)
	return db.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(suffix)
	})
}

func (db *boltDatabase) Cursor(bucket []byte) (Cursor, error) {
	tx, err := db.db.Begin(false)
	if err != nil {
		return nil, err
	}
	return newBoltCursor(tx, bucket, false), nil
}

func (db *boltDatabase) Begin() (Transaction, error) {
	tx, err := db.db.Begin(true)
	if err != nil {
		return nil, err
	}
	return &boltTransaction{tx: tx}, nil
}

func (db *boltDatabase) Close() error {
	return db.db.Close()
}

// boltTransaction wraps a single read-write bbolt transaction. Unlike
// goleveldb's, a bbolt writable transaction can also be read from directly,
// so Get/Has/Cursor all operate against tx's own view.
type boltTransaction struct {
	tx       *bolt.Tx
	isClosed bool
}

func (tx *boltTransaction) Put(key, value []byte) error {
	bucketName, suffix := boltBucketOf(key)
	return tx.tx.Bucket(bucketName).Put(suffix, value)
}

func (tx *boltTransaction) Get(key []byte) ([]byte, bool, error) {
	bucketName, suffix := boltBucketOf(key)
	v := tx.tx.Bucket(bucketName).Get(suffix)
	if v == nil {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (tx *boltTransaction) Has(key []byte) (bool, error) {
	_, found, err := tx.Get(key)
	return found, err
}

func (tx *boltTransaction) Delete(key []byte) error {
	bucketName, suffix := boltBucketOf(key)
	return tx.tx.Bucket(bucketName).Delete(suffix)
}

func (tx *boltTransaction) Cursor(bucket []byte) (Cursor, error) {
	return newBoltCursor(tx.tx, bucket, true), nil
}

func (tx *boltTransaction) Commit() error {
	if tx.isClosed {
		return errors.New("storage: cannot commit an already-closed transaction")
	}
	tx.isClosed = true
	return tx.tx.Commit()
}

func (tx *boltTransaction) Rollback() error {
	if tx.isClosed {
		return errors.New("storage: cannot roll back an already-closed transaction")
	}
	tx.isClosed = true
	return tx.tx.Rollback()
}

func (tx *boltTransaction) RollbackUnlessClosed() error {
	if tx.isClosed {
		return nil
	}
	return tx.Rollback()
}

// boltCursor walks a single bbolt bucket in key order via *bolt.Cursor.
// Closing it only closes the bbolt transaction it opened for itself
// (isOwned); cursors opened from within a boltTransaction share that
// transaction's lifetime instead.
type boltCursor struct {
	tx       *bolt.Tx
	isOwned  bool
	cursor   *bolt.Cursor
	key      []byte
	value    []byte
	isClosed bool
}

func newBoltCursor(tx *bolt.Tx, bucket []byte, ownedByCaller bool) *boltCursor {
	return &boltCursor{tx: tx, isOwned: !ownedByCaller, cursor: tx.Bucket(bucket).Cursor()}
}

func (c *boltCursor) First() (bool, error) {
	if c.isClosed {
		return false, errors.New("storage: cannot use a closed cursor")
	}
	c.key, c.value = c.cursor.First()
	return c.key != nil, nil
}

func (c *boltCursor) Next() bool {
	if c.isClosed {
		return false
	}
	c.key, c.value = c.cursor.Next()
	return c.key != nil
}

func (c *boltCursor) Seek(key []byte) (bool, error) {
	if c.isClosed {
		return false, errors.New("storage: cannot use a closed cursor")
	}
	c.key, c.value = c.cursor.Seek(key)
	return c.key != nil, nil
}

func (c *boltCursor) Key() ([]byte, error) {
	if c.isClosed {
		return nil, errors.New("storage: cannot use a closed cursor")
	}
	return c.key, nil
}

func (c *boltCursor) Value() ([]byte, error) {
	if c.isClosed {
		return nil, errors.New("storage: cannot use a closed cursor")
	}
	return c.value, nil
}

func (c *boltCursor) Error() error {
	return nil
}

func (c *boltCursor) Close() error {
	if c.isClosed {
		return errors.New("storage: cannot close an already-closed cursor")
	}
	c.isClosed = true
	if c.isOwned {
		return c.tx.Rollback()
	}
	return nil
}
