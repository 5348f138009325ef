// Package storage implements the ChainState/Storage layer of spec.md §4.6: a
// column-family key-value store holding blocks, GHOSTDAG data, versioned
// balances/nonces, assets, multisig configs, tips, and the topoheight index,
// plus the per-block ParallelChainState overlay transactions execute
// against. It is grounded on the teacher's database2 package (Database,
// DataAccessor, Transaction, Cursor) and dbaccess's bucket-key-prefix
// convention, generalized from Bitcoin-style UTXO/block storage to TOS's
// versioned-record column families.
package storage

// DataAccessor is anything that can read and write raw key/value pairs and
// open a cursor over a bucket: the common surface shared by a Database
// handle and a Transaction. Grounded on the teacher's database2.DataAccessor.
type DataAccessor interface {
	Put(key []byte, value []byte) error
	Get(key []byte) ([]byte, bool, error)
	Has(key []byte) (bool, error)
	Delete(key []byte) error
	Cursor(bucket []byte) (Cursor, error)
}

// Transaction is a single atomic batch of reads and writes. Grounded on the
// teacher's database2.Transaction / dbaccess.Context: callers must call
// RollbackUnlessClosed via defer immediately after opening one, so a panic
// or early return never leaves a transaction dangling.
type Transaction interface {
	DataAccessor
	Commit() error
	Rollback() error
	RollbackUnlessClosed() error
}

// Database is a handle to the underlying store: it can satisfy reads
// directly, or begin a Transaction for an atomic batch of writes. Grounded
// on the teacher's database2.Database.
type Database interface {
	DataAccessor
	Begin() (Transaction, error)
	Close() error
}

// Cursor iterates over the key/value pairs of a bucket in key order.
// Grounded on the teacher's database2.Cursor.
type Cursor interface {
	First() (bool, error)
	Next() bool
	Seek(key []byte) (bool, error)
	Key() ([]byte, error)
	Value() ([]byte, error)
	Error() error
	Close() error
}
