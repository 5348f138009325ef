package execution

import (
	"testing"

	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/wire"
)

func addressFromByte(b byte) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	a[31] = b
	return a
}

func assetFromByte(b byte) externalapi.DomainAssetID {
	var a externalapi.DomainAssetID
	a[31] = b
	return a
}

func transfersTx(source externalapi.DomainAddress, nonce uint64, transfers ...externalapi.Transfer) *externalapi.DomainTransaction {
	payload, err := wire.EncodeTransferPayload(&externalapi.TransferPayload{Transfers: transfers})
	if err != nil {
		panic(err)
	}
	return &externalapi.DomainTransaction{
		Version:  1,
		Source:   source,
		Type:     externalapi.TransactionTypeTransfers,
		Payload:  payload,
		Fee:      10,
		FeeAsset: externalapi.TOSAsset,
		Nonce:    nonce,
	}
}

func TestBatchesSeparatesTransactionsTouchingDisjointKeys(t *testing.T) {
	alice, bob, carol := addressFromByte(1), addressFromByte(2), addressFromByte(3)
	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 1}),
		transfersTx(carol, 0, externalapi.Transfer{Receiver: addressFromByte(4), Asset: externalapi.TOSAsset, Amount: 1}),
	}

	got := batches(txs)
	if len(got) != 2 {
		t.Fatalf("expected 2 independent batches, got %d: %v", len(got), got)
	}
}

func TestBatchesUnionsTransactionsSharingASender(t *testing.T) {
	alice, bob := addressFromByte(1), addressFromByte(2)
	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 1}),
		transfersTx(alice, 1, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 1}),
	}

	got := batches(txs)
	if len(got) != 1 {
		t.Fatalf("expected transactions sharing a sender to land in one batch, got %d: %v", len(got), got)
	}
	if len(got[0]) != 2 {
		t.Errorf("expected batch of size 2, got %v", got[0])
	}
}

func TestBatchesUnionsOnSharedReceiverAsset(t *testing.T) {
	alice, bob, carol := addressFromByte(1), addressFromByte(2), addressFromByte(3)
	asset := assetFromByte(9)
	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: carol, Asset: asset, Amount: 1}),
		transfersTx(bob, 0, externalapi.Transfer{Receiver: carol, Asset: asset, Amount: 1}),
	}

	got := batches(txs)
	if len(got) != 1 {
		t.Fatalf("expected transactions crediting the same (receiver, asset) to conflict, got %d batches: %v", len(got), got)
	}
}

func TestBatchesPreservesBlockOrderWithinABatch(t *testing.T) {
	alice := addressFromByte(1)
	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 2, externalapi.Transfer{Receiver: addressFromByte(9), Asset: externalapi.TOSAsset, Amount: 1}),
		transfersTx(alice, 0, externalapi.Transfer{Receiver: addressFromByte(9), Asset: externalapi.TOSAsset, Amount: 1}),
		transfersTx(alice, 1, externalapi.Transfer{Receiver: addressFromByte(9), Asset: externalapi.TOSAsset, Amount: 1}),
	}

	got := batches(txs)
	if len(got) != 1 {
		t.Fatalf("expected one batch, got %d", len(got))
	}
	want := []int{0, 1, 2}
	for i, idx := range want {
		if got[0][i] != idx {
			t.Errorf("batch order: expected index %d at position %d, got %d", idx, i, got[0][i])
		}
	}
}
