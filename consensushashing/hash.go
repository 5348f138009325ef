// Package consensushashing implements the two-hash design of spec.md §3/§4.1:
// BLAKE3 for transaction and block identity, and the deterministic contract
// address derivation. It is grounded on the teacher's
// domain/consensus/utils/hashserialization package (TransactionHash/
// TransactionID/HeaderHash each stream a serializer into a hash.Hash and
// finalize it), with the double-SHA256 writer swapped for a single BLAKE3
// writer per spec.md's hashing contract.
package consensushashing

import (
	"lukechampine.com/blake3"

	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/wire"
)

// TransactionID computes txid = BLAKE3(serialize_without_multisig_and_signature),
// the stable transaction identity of spec.md §3 (invariant P7: stable under
// signature re-forging).
func TransactionID(tx *externalapi.DomainTransaction) *externalapi.DomainTransactionID {
	h := blake3.New(externalapi.DomainHashSize, nil)
	err := wire.SerializeTransactionForID(h, tx)
	if err != nil {
		// SerializeTransactionForID only fails on a writer error or an
		// unregistered fee asset; blake3.New()'s writer never
		// errors, and TransactionID is never called on a transaction that
		// hasn't already passed stateless validation.
		panic(err)
	}
	var id externalapi.DomainTransactionID
	h.Sum(id[:0])
	return &id
}

// TransactionHash computes BLAKE3 over the transaction's full encoding
// (including multisig and signature), used for wire-level deduplication
// where a distinct signature must be treated as a distinct message.
func TransactionHash(tx *externalapi.DomainTransaction) *externalapi.DomainHash {
	h := blake3.New(externalapi.DomainHashSize, nil)
	err := wire.SerializeTransaction(h, tx)
	if err != nil {
		panic(err)
	}
	var hash externalapi.DomainHash
	h.Sum(hash[:0])
	return &hash
}

// BlockHash computes block_hash = BLAKE3(header_bytes).
func BlockHash(header *externalapi.DomainBlockHeader) *externalapi.DomainHash {
	h := blake3.New(externalapi.DomainHashSize, nil)
	err := wire.SerializeHeader(h, header)
	if err != nil {
		panic(err)
	}
	var hash externalapi.DomainHash
	h.Sum(hash[:0])
	return &hash
}

// contractAddressPrefix distinguishes a deterministic contract address from
// any other 32-byte hash domain (spec.md §4.1: BLAKE3(0xff ‖ deployer_pk ‖
// BLAKE3(bytecode))).
const contractAddressPrefix = 0xff

// ContractAddress computes the deterministic deployment address of a
// contract: BLAKE3(0xff ‖ deployer_pk ‖ BLAKE3(bytecode)).
func ContractAddress(deployer externalapi.DomainAddress, bytecode []byte) *externalapi.DomainHash {
	bytecodeHash := blake3.Sum256(bytecode)

	h := blake3.New(externalapi.DomainHashSize, nil)
	h.Write([]byte{contractAddressPrefix})
	h.Write(deployer[:])
	h.Write(bytecodeHash[:])

	var address externalapi.DomainHash
	h.Sum(address[:0])
	return &address
}
