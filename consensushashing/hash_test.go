package consensushashing

import (
	"testing"

	"github.com/tos-network/tos/externalapi"
)

func addressFromByte(b byte) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	a[31] = b
	return a
}

func sampleTx() *externalapi.DomainTransaction {
	return &externalapi.DomainTransaction{
		Version:  1,
		ChainID:  3,
		Source:   addressFromByte(1),
		Type:     externalapi.TransactionTypeTransfers,
		Payload:  []byte{0x01, 0x02},
		Fee:      10,
		FeeAsset: externalapi.TOSAsset,
		Nonce:    7,
	}
}

func TestTransactionIDIsDeterministic(t *testing.T) {
	tx := sampleTx()
	id1 := TransactionID(tx)
	id2 := TransactionID(tx)
	if *id1 != *id2 {
		t.Errorf("expected TransactionID to be deterministic, got %s and %s", id1, id2)
	}
}

func TestTransactionIDIsStableAcrossSignatureReforging(t *testing.T) {
	tx := sampleTx()
	before := TransactionID(tx)

	tx.Signature = []byte{0xAA, 0xBB, 0xCC}
	after := TransactionID(tx)

	if *before != *after {
		t.Error("expected txid to be unaffected by attaching a signature")
	}
}

func TestTransactionIDChangesWithPayload(t *testing.T) {
	tx := sampleTx()
	before := TransactionID(tx)

	tx.Payload = []byte{0xFF}
	after := TransactionID(tx)

	if *before == *after {
		t.Error("expected txid to change when the payload changes")
	}
}

func TestTransactionHashIncludesSignature(t *testing.T) {
	tx := sampleTx()
	before := TransactionHash(tx)

	tx.Signature = []byte{0xAA, 0xBB, 0xCC}
	after := TransactionHash(tx)

	if before.Equal(after) {
		t.Error("expected TransactionHash to change when the signature is attached, unlike TransactionID")
	}
}

func TestBlockHashIsDeterministicAndSensitiveToHeaderFields(t *testing.T) {
	header := &externalapi.DomainBlockHeader{
		Version:            1,
		TimeInMilliseconds: 1700000000000,
		MinerPublicKey:     addressFromByte(9),
		Difficulty:         1000,
	}

	h1 := BlockHash(header)
	h2 := BlockHash(header)
	if !h1.Equal(h2) {
		t.Errorf("expected BlockHash to be deterministic, got %s and %s", h1, h2)
	}

	header.TimeInMilliseconds++
	h3 := BlockHash(header)
	if h1.Equal(h3) {
		t.Error("expected BlockHash to change when the timestamp changes")
	}
}

func TestContractAddressIsDeterministicAndDependsOnBytecode(t *testing.T) {
	deployer := addressFromByte(5)
	bytecode := []byte{0x60, 0x01, 0x60, 0x02}

	a1 := ContractAddress(deployer, bytecode)
	a2 := ContractAddress(deployer, bytecode)
	if !a1.Equal(a2) {
		t.Errorf("expected ContractAddress to be deterministic, got %s and %s", a1, a2)
	}

	other := ContractAddress(deployer, []byte{0x60, 0x01})
	if a1.Equal(other) {
		t.Error("expected ContractAddress to depend on bytecode")
	}
}

func TestContractAddressDependsOnDeployer(t *testing.T) {
	bytecode := []byte{0x60, 0x01}
	a1 := ContractAddress(addressFromByte(1), bytecode)
	a2 := ContractAddress(addressFromByte(2), bytecode)
	if a1.Equal(a2) {
		t.Error("expected ContractAddress to depend on the deploying account")
	}
}
