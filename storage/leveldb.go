package storage

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// levelDBDatabase is the persistent backend of spec.md §4.6(b), keying every
// record by bucket-prefix + suffix over a single flat goleveldb keyspace.
// Grounded on the teacher's database2/ffldb driver (LevelDBCursor's
// prefix-scoped iterator) and dbaccess's bucket-key convention, with
// ldb.LevelDBTransaction's role filled directly by goleveldb's own
// *leveldb.Transaction (OpenTransaction), which already provides the
// isolated-read/atomic-commit semantics the teacher's wrapper reimplements.
type levelDBDatabase struct {
	ldb *leveldb.DB
}

// OpenLevelDB opens (creating if absent) a goleveldb store at path.
func OpenLevelDB(path string) (Database, error) {
	ldb, err := leveldb.OpenFile(path, &opt.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "storage: opening goleveldb at %s", path)
	}
	return &levelDBDatabase{ldb: ldb}, nil
}

func (db *levelDBDatabase) Put(key, value []byte) error {
	return db.ldb.Put(key, value, nil)
}

func (db *levelDBDatabase) Get(key []byte) ([]byte, bool, error) {
	value, err := db.ldb.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (db *levelDBDatabase) Has(key []byte) (bool, error) {
	return db.ldb.Has(key, nil)
}

func (db *levelDBDatabase) Delete(key []byte) error {
	return db.ldb.Delete(key, nil)
}

func (db *levelDBDatabase) Cursor(bucketName []byte) (Cursor, error) {
	prefix := MakeBucket(bucketName).Path()
	return newLevelDBCursor(db.ldb.NewIterator(util.BytesPrefix(prefix), nil), prefix), nil
}

func (db *levelDBDatabase) Begin() (Transaction, error) {
	ldbTx, err := db.ldb.OpenTransaction()
	if err != nil {
		return nil, errors.Wrap(err, "storage: opening goleveldb transaction")
	}
	return &levelDBTransaction{ldbTx: ldbTx}, nil
}

func (db *levelDBDatabase) Close() error {
	return db.ldb.Close()
}

// levelDBTransaction wraps a native goleveldb transaction: a consistent
// snapshot for reads, and a write batch applied atomically on Commit.
type levelDBTransaction struct {
	ldbTx    *leveldb.Transaction
	isClosed bool
}

func (tx *levelDBTransaction) Put(key, value []byte) error {
	return tx.ldbTx.Put(key, value, nil)
}

func (tx *levelDBTransaction) Get(key []byte) ([]byte, bool, error) {
	value, err := tx.ldbTx.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (tx *levelDBTransaction) Has(key []byte) (bool, error) {
	return tx.ldbTx.Has(key, nil)
}

func (tx *levelDBTransaction) Delete(key []byte) error {
	return tx.ldbTx.Delete(key, nil)
}

func (tx *levelDBTransaction) Cursor(bucketName []byte) (Cursor, error) {
	prefix := MakeBucket(bucketName).Path()
	return newLevelDBCursor(tx.ldbTx.NewIterator(util.BytesPrefix(prefix), nil), prefix), nil
}

func (tx *levelDBTransaction) Commit() error {
	if tx.isClosed {
		return errors.New("storage: cannot commit an already-closed transaction")
	}
	tx.isClosed = true
	return tx.ldbTx.Commit()
}

func (tx *levelDBTransaction) Rollback() error {
	if tx.isClosed {
		return errors.New("storage: cannot roll back an already-closed transaction")
	}
	tx.isClosed = true
	tx.ldbTx.Discard()
	return nil
}

func (tx *levelDBTransaction) RollbackUnlessClosed() error {
	if tx.isClosed {
		return nil
	}
	return tx.Rollback()
}

// levelDBCursor trims the bucket prefix off keys it returns, so callers deal
// only in bucket-relative suffixes. Grounded on the teacher's LevelDBCursor.
type levelDBCursor struct {
	it       iterator.Iterator
	prefix   []byte
	isClosed bool
}

func newLevelDBCursor(it iterator.Iterator, prefix []byte) *levelDBCursor {
	return &levelDBCursor{it: it, prefix: prefix}
}

func (c *levelDBCursor) First() (bool, error) {
	if c.isClosed {
		return false, errors.New("storage: cannot use a closed cursor")
	}
	return c.it.First(), nil
}

func (c *levelDBCursor) Next() bool {
	if c.isClosed {
		return false
	}
	return c.it.Next()
}

func (c *levelDBCursor) Seek(key []byte) (bool, error) {
	if c.isClosed {
		return false, errors.New("storage: cannot use a closed cursor")
	}
	return c.it.Seek(append(append([]byte(nil), c.prefix...), key...)), nil
}

func (c *levelDBCursor) Key() ([]byte, error) {
	if c.isClosed {
		return nil, errors.New("storage: cannot use a closed cursor")
	}
	key := c.it.Key()
	if key == nil {
		return nil, nil
	}
	return append([]byte(nil), key[len(c.prefix):]...), nil
}

func (c *levelDBCursor) Value() ([]byte, error) {
	if c.isClosed {
		return nil, errors.New("storage: cannot use a closed cursor")
	}
	value := c.it.Value()
	if value == nil {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (c *levelDBCursor) Error() error {
	return c.it.Error()
}

func (c *levelDBCursor) Close() error {
	if c.isClosed {
		return errors.New("storage: cannot close an already-closed cursor")
	}
	c.isClosed = true
	c.it.Release()
	return nil
}
