package execution

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/storage"
)

func newTestChainState(t *testing.T) (*storage.ChainStore, *storage.ParallelChainState) {
	t.Helper()
	store, err := storage.OpenMock(filepath.Join(t.TempDir(), "chainstate.db"))
	if err != nil {
		t.Fatalf("OpenMock: %s", err)
	}
	t.Cleanup(func() { store.Close() })
	state := storage.NewParallelChainState(store, store.DB(), 0)
	return store, state
}

func TestExecuteBlockAppliesTransfersAndAdvancesNonces(t *testing.T) {
	_, state := newTestChainState(t)
	alice, bob, miner := addressFromByte(1), addressFromByte(2), addressFromByte(99)

	if err := state.AddBalance(alice, externalapi.TOSAsset, 1000); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 100}),
	}

	result, err := ExecuteBlock(context.Background(), &dagconfig.DevNetParams, state, miner, txs)
	if err != nil {
		t.Fatalf("ExecuteBlock: %s", err)
	}
	if result.Parallel {
		t.Errorf("a single-transaction block should take the sequential fallback")
	}
	if len(result.Results) != 1 || result.Results[0].Outcome != OutcomeExecuted {
		t.Fatalf("expected the transfer to execute, got %+v", result.Results)
	}

	aliceBalance, err := state.GetBalance(alice, externalapi.TOSAsset)
	if err != nil {
		t.Fatalf("GetBalance(alice): %s", err)
	}
	if want := uint64(1000 - 100 - 10); aliceBalance != want {
		t.Errorf("alice balance: expected %d, got %d", want, aliceBalance)
	}
	bobBalance, err := state.GetBalance(bob, externalapi.TOSAsset)
	if err != nil {
		t.Fatalf("GetBalance(bob): %s", err)
	}
	if bobBalance != 100 {
		t.Errorf("bob balance: expected 100, got %d", bobBalance)
	}
	minerBalance, err := state.GetBalance(miner, externalapi.TOSAsset)
	if err != nil {
		t.Fatalf("GetBalance(miner): %s", err)
	}
	if minerBalance != 10 {
		t.Errorf("miner fee balance: expected 10, got %d", minerBalance)
	}
	nonce, err := state.GetNonce(alice)
	if err != nil {
		t.Fatalf("GetNonce: %s", err)
	}
	if nonce != 1 {
		t.Errorf("alice nonce: expected 1, got %d", nonce)
	}
}

func TestExecuteBlockOrphansInsufficientBalanceWithoutTouchingNonce(t *testing.T) {
	_, state := newTestChainState(t)
	alice, bob, miner := addressFromByte(1), addressFromByte(2), addressFromByte(99)

	if err := state.AddBalance(alice, externalapi.TOSAsset, 5); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 100}),
	}

	result, err := ExecuteBlock(context.Background(), &dagconfig.DevNetParams, state, miner, txs)
	if err != nil {
		t.Fatalf("ExecuteBlock: %s", err)
	}
	if result.Results[0].Outcome != OutcomeOrphaned {
		t.Fatalf("expected the transaction to orphan on insufficient fee balance, got %+v", result.Results[0])
	}

	nonce, err := state.GetNonce(alice)
	if err != nil {
		t.Fatalf("GetNonce: %s", err)
	}
	if nonce != 0 {
		t.Errorf("a fee-stage orphan must not advance the nonce, got %d", nonce)
	}
	balance, err := state.GetBalance(alice, externalapi.TOSAsset)
	if err != nil {
		t.Fatalf("GetBalance: %s", err)
	}
	if balance != 5 {
		t.Errorf("a fee-stage orphan must not touch the balance, got %d", balance)
	}
}

func TestExecuteBlockOrphansPayloadFailureButKeepsFeeAndNonce(t *testing.T) {
	_, state := newTestChainState(t)
	alice, bob, miner := addressFromByte(1), addressFromByte(2), addressFromByte(99)

	// Enough to pay the fee, not enough to also cover the transfer amount.
	if err := state.AddBalance(alice, externalapi.TOSAsset, 50); err != nil {
		t.Fatalf("seed balance: %s", err)
	}

	txs := []*externalapi.DomainTransaction{
		transfersTx(alice, 0, externalapi.Transfer{Receiver: bob, Asset: externalapi.TOSAsset, Amount: 1000}),
	}

	result, err := ExecuteBlock(context.Background(), &dagconfig.DevNetParams, state, miner, txs)
	if err != nil {
		t.Fatalf("ExecuteBlock: %s", err)
	}
	if result.Results[0].Outcome != OutcomeOrphaned {
		t.Fatalf("expected the transfer to orphan on insufficient payload balance, got %+v", result.Results[0])
	}

	balance, err := state.GetBalance(alice, externalapi.TOSAsset)
	if err != nil {
		t.Fatalf("GetBalance: %s", err)
	}
	if want := uint64(50 - 10); balance != want {
		t.Errorf("the fee must stay deducted even though the payload failed: expected %d, got %d", want, balance)
	}
	nonce, err := state.GetNonce(alice)
	if err != nil {
		t.Fatalf("GetNonce: %s", err)
	}
	if nonce != 1 {
		t.Errorf("the nonce must still advance once on a payload-stage orphan, got %d", nonce)
	}
}

func TestEligibleRejectsBelowThresholdAndSequentialOnlyTypes(t *testing.T) {
	alice := addressFromByte(1)
	small := []*externalapi.DomainTransaction{transfersTx(alice, 0)}
	if eligible, _ := Eligible(&dagconfig.DevNetParams, small); eligible {
		t.Errorf("a block below the tx-count threshold must not be eligible")
	}

	txs := make([]*externalapi.DomainTransaction, dagconfig.DevNetParams.MinTxsForParallelExecution)
	for i := range txs {
		txs[i] = transfersTx(addressFromByte(byte(i+1)), 0)
	}
	if eligible, _ := Eligible(&dagconfig.DevNetParams, txs); !eligible {
		t.Errorf("expected a block meeting the threshold with no sequential-only type to be eligible")
	}

	txs[0].Type = externalapi.TransactionTypeMultiSig
	if eligible, _ := Eligible(&dagconfig.DevNetParams, txs); eligible {
		t.Errorf("a single sequential-only transaction must disqualify the whole block")
	}
}
