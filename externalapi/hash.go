package externalapi

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// DomainHashSize is the size in bytes of a Hash: a BLAKE3 output.
const DomainHashSize = 32

// DomainHash is the domain representation of a 32-byte BLAKE3 hash. The zero
// value is the sentinel "absent parent" hash used by genesis blocks.
type DomainHash [DomainHashSize]byte

// ZeroHash is the sentinel hash denoting an absent parent.
var ZeroHash = DomainHash{}

// String returns the hexadecimal string encoding of the hash.
func (hash DomainHash) String() string {
	return hex.EncodeToString(hash[:])
}

// Clone returns a copy of the hash.
func (hash *DomainHash) Clone() *DomainHash {
	clone := *hash
	return &clone
}

// Equal returns whether hash equals other.
func (hash *DomainHash) Equal(other *DomainHash) bool {
	if hash == nil || other == nil {
		return hash == other
	}
	return *hash == *other
}

// IsZero returns whether hash is the all-zero sentinel.
func (hash *DomainHash) IsZero() bool {
	return *hash == ZeroHash
}

// Less reports whether hash is lexicographically smaller than other,
// byte-for-byte. This is the hash tie-break used throughout GHOSTDAG fork
// choice: ties in blue_work are broken by the lexicographically smallest
// hash winning.
func (hash *DomainHash) Less(other *DomainHash) bool {
	return bytes.Compare(hash[:], other[:]) < 0
}

// HashesEqual returns whether the given hash slices are equal in content and order.
func HashesEqual(a, b []*DomainHash) bool {
	if len(a) != len(b) {
		return false
	}
	for i, hash := range a {
		if !hash.Equal(b[i]) {
			return false
		}
	}
	return true
}

// CloneHashes returns a clone of the given hash slice.
func CloneHashes(hashes []*DomainHash) []*DomainHash {
	clone := make([]*DomainHash, len(hashes))
	for i, hash := range hashes {
		clone[i] = hash.Clone()
	}
	return clone
}

// NewDomainHashFromByteSlice builds a DomainHash from a byte slice of exactly
// DomainHashSize bytes.
func NewDomainHashFromByteSlice(data []byte) (*DomainHash, error) {
	if len(data) != DomainHashSize {
		return nil, errInvalidHashLength(len(data))
	}
	var hash DomainHash
	copy(hash[:], data)
	return &hash, nil
}

func errInvalidHashLength(got int) error {
	return fmt.Errorf("invalid hash length: expected %d bytes, got %d", DomainHashSize, got)
}
