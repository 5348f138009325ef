package storage

import "github.com/tos-network/tos/externalapi"

// versionedKey builds the (account, asset, topoheight) key of
// versioned_balances / versioned_nonces (spec.md §4.6(b)). The topoheight
// component is stored bit-inverted so that ascending key order corresponds
// to descending topoheight: a single Seek at invertedTopoHeight(at) lands
// on the largest recorded topoheight ≤ at for that account/asset, which is
// exactly the point-in-time read versioned storage needs.
func versionedKey(account externalapi.DomainAddress, asset externalapi.DomainAssetID, at uint64) []byte {
	key := make([]byte, 0, len(account)+len(asset)+8)
	key = append(key, account[:]...)
	key = append(key, asset[:]...)
	key = append(key, encodeUint64(invertTopoHeight(at))...)
	return key
}

// nonceKey builds the (account, topoheight) key of versioned_nonces: an
// account has at most one nonce series, so no asset component is needed.
func nonceKey(account externalapi.DomainAddress, at uint64) []byte {
	key := make([]byte, 0, len(account)+8)
	key = append(key, account[:]...)
	key = append(key, encodeUint64(invertTopoHeight(at))...)
	return key
}

func invertTopoHeight(topoHeight uint64) uint64 {
	return ^topoHeight
}

// versionedPrefix returns the key prefix identifying every version of a
// single account[/asset] series, used to confirm a Seek landed within the
// same series rather than spilling into the next one.
func versionedPrefix(account externalapi.DomainAddress, asset *externalapi.DomainAssetID) []byte {
	prefix := make([]byte, 0, len(account)+32)
	prefix = append(prefix, account[:]...)
	if asset != nil {
		prefix = append(prefix, asset[:]...)
	}
	return prefix
}
