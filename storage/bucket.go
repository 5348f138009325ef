package storage

import "bytes"

// Bucket names the conceptual column families of spec.md §4.6(b). The
// leveldb backend turns a Bucket into a key prefix (mirroring the teacher's
// dbaccess bucket-over-a-flat-keyspace convention); the bbolt backend turns
// it into an actual named bucket.
type Bucket struct {
	name []byte
}

// MakeBucket constructs a top-level bucket identified by name.
func MakeBucket(name []byte) Bucket {
	return Bucket{name: name}
}

var (
	bucketBlocks           = MakeBucket([]byte("blocks"))
	bucketGHOSTDAG         = MakeBucket([]byte("ghostdag"))
	bucketVersionedBalance = MakeBucket([]byte("versioned_balances"))
	bucketVersionedNonce   = MakeBucket([]byte("versioned_nonces"))
	bucketAssets           = MakeBucket([]byte("assets"))
	bucketMultiSigs        = MakeBucket([]byte("multisigs"))
	bucketTips             = MakeBucket([]byte("tips"))
	bucketTopoHeightIndex  = MakeBucket([]byte("topoheight_index"))
)

// Path returns the leveldb key prefix for the bucket: name followed by a
// single separator byte, so that no bucket's name can be a prefix of
// another's records (e.g. "blocks/" vs "blocksfoo/...").
func (b Bucket) Path() []byte {
	path := make([]byte, 0, len(b.name)+1)
	path = append(path, b.name...)
	path = append(path, '/')
	return path
}

// Key returns the full leveldb key for a suffix within this bucket.
func (b Bucket) Key(suffix []byte) []byte {
	return append(b.Path(), suffix...)
}

// Name returns the bucket's name, used by the bbolt backend as the actual
// bucket identifier.
func (b Bucket) Name() []byte {
	return b.name
}

// trimPath strips a bucket's Path() prefix off a raw leveldb key, returning
// the suffix a Cursor callback deals in.
func trimPath(b Bucket, key []byte) []byte {
	return bytes.TrimPrefix(key, b.Path())
}
