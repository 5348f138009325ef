package storage

import (
	"bytes"
	"encoding/binary"
)

// Prune drops versioned balance/nonce records at or before retentionTopoHeight,
// always preserving the most recent version per (account,asset)/account
// series regardless of its age (spec.md §4.6: "the most recent version per
// key must always be preserved"). Grounded on the teacher's pruning-manager
// convention of a standalone maintenance pass over an otherwise
// append-only store, run outside the per-block write path.
func (s *ChainStore) Prune(retentionTopoHeight uint64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrapStorageError(err, "opening prune transaction")
	}
	defer tx.RollbackUnlessClosed()

	if err := pruneBucket(tx, bucketVersionedBalance, externalAddressAssetKeyLen, retentionTopoHeight); err != nil {
		return err
	}
	if err := pruneBucket(tx, bucketVersionedNonce, externalAddressKeyLen, retentionTopoHeight); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStorageError(err, "committing prune transaction")
	}
	return nil
}

const (
	externalAddressKeyLen      = 32
	externalAddressAssetKeyLen = 32 + 32
)

// pruneBucket walks bucket in ascending key order (equivalently, descending
// topoheight within each (account[,asset]) series since keys carry an
// inverted topoheight), keeping the first entry of every series - its
// latest version - and deleting any later, older entry whose topoheight
// falls at or before retentionTopoHeight.
func pruneBucket(tx Transaction, bucket Bucket, groupKeyLen int, retentionTopoHeight uint64) error {
	cursor, err := tx.Cursor(bucket.Name())
	if err != nil {
		return wrapStorageError(err, "opening %s cursor for pruning", bucket.Name())
	}
	defer cursor.Close()

	var toDelete [][]byte
	var currentGroup []byte

	ok, err := cursor.First()
	if err != nil {
		return wrapStorageError(err, "seeking start of %s for pruning", bucket.Name())
	}
	for ok {
		key, err := cursor.Key()
		if err != nil {
			return err
		}
		group := key[:groupKeyLen]
		isFirstInGroup := !bytes.Equal(group, currentGroup)
		if isFirstInGroup {
			currentGroup = append([]byte(nil), group...)
		} else {
			inverted := binary.BigEndian.Uint64(key[groupKeyLen:])
			actual := invertTopoHeight(inverted)
			if actual <= retentionTopoHeight {
				toDelete = append(toDelete, append([]byte(nil), key...))
			}
		}
		ok = cursor.Next()
	}
	if err := cursor.Error(); err != nil {
		return wrapStorageError(err, "iterating %s for pruning", bucket.Name())
	}

	for _, key := range toDelete {
		if err := tx.Delete(bucket.Key(key)); err != nil {
			return wrapStorageError(err, "deleting pruned record from %s", bucket.Name())
		}
	}
	return nil
}
