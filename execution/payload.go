package execution

import (
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/storage"
	"github.com/tos-network/tos/wire"
)

// decodeTransferPayload wraps wire.DecodeTransferPayload for callers that
// only need the decoded transfers and can tolerate a nil result on a
// malformed payload (conflict analysis treats a transaction it cannot parse
// as touching only its sender, which the orphan path below will reject).
func decodeTransferPayload(data []byte) (*externalapi.TransferPayload, error) {
	return wire.DecodeTransferPayload(data)
}

// executePayload applies step 6 of the per-transaction algorithm (spec.md
// §4.5): the state transition specific to tx's type. It either fully
// applies or fully reverts its own overlay writes before returning, so step
// 8's "revert on payload failure" never has to reason about partial effects
// from inside a single call.
func executePayload(state *storage.ParallelChainState, tx *externalapi.DomainTransaction) error {
	switch tx.Type {
	case externalapi.TransactionTypeTransfers:
		return executeTransfers(state, tx)
	case externalapi.TransactionTypeBurn:
		return executeBurn(state, tx)
	default:
		// MultiSig, InvokeContract, DeployContract, Energy and the
		// shielded transfer families execute sequentially only (or, for
		// the shielded families, declare their wire layout without a
		// core-level execution semantics); nothing in this overlay
		// changes beyond the fee and nonce steps already applied.
		return nil
	}
}

// executeTransfers applies a Transfers payload's (receiver, asset, amount)
// list: the sender is debited and each receiver is credited, crediting an
// existing balance rather than overwriting it. Any failure unwinds every
// debit/credit this call already applied, so the caller sees the
// transaction's overlay footprint as all-or-nothing.
func executeTransfers(state *storage.ParallelChainState, tx *externalapi.DomainTransaction) error {
	payload, err := decodeTransferPayload(tx.Payload)
	if err != nil {
		return err
	}

	applied := make([]externalapi.Transfer, 0, len(payload.Transfers))
	revert := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			t := applied[i]
			_ = state.SubBalance(t.Receiver, t.Asset, t.Amount)
			_ = state.AddBalance(tx.Source, t.Asset, t.Amount)
		}
	}

	for _, transfer := range payload.Transfers {
		if err := state.SubBalance(tx.Source, transfer.Asset, transfer.Amount); err != nil {
			revert()
			return err
		}
		if err := state.AddBalance(transfer.Receiver, transfer.Asset, transfer.Amount); err != nil {
			_ = state.AddBalance(tx.Source, transfer.Asset, transfer.Amount)
			revert()
			return err
		}
		applied = append(applied, transfer)
	}
	return nil
}

// executeBurn destroys amount of the transaction's fee asset from the
// sender's balance; burned units are not credited anywhere.
func executeBurn(state *storage.ParallelChainState, tx *externalapi.DomainTransaction) error {
	amount, err := wire.DecodeBurnPayload(tx.Payload)
	if err != nil {
		return err
	}
	return state.SubBalance(tx.Source, tx.FeeAsset, amount)
}
