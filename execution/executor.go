package execution

import (
	"context"
	"runtime"

	"github.com/tos-network/tos/consensushashing"
	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/storage"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Outcome classifies how a single transaction within an admitted block
// finished: executed (fee deducted, nonce advanced, payload applied) or
// orphaned (rejected before any overlay write when the fee or nonce check
// fails; when the payload fails, the fee is still deducted and the nonce
// still advanced).
type Outcome int

// The two outcomes a per-transaction execution attempt can reach.
const (
	OutcomeExecuted Outcome = iota
	OutcomeOrphaned
)

// TransactionResult records one transaction's execution outcome within a
// block, the raw material for externalapi.DomainReceipt construction by the
// consensus facade.
type TransactionResult struct {
	TransactionID externalapi.DomainTransactionID
	Outcome       Outcome
	Err           error
}

// BlockResult is the outcome of executing an entire block: which dispatch
// path ran, why, and each transaction's individual result in block order.
type BlockResult struct {
	Parallel bool
	Reason   string
	Results  []*TransactionResult
}

// Eligible reports whether txs qualifies for the parallel dispatch path
// under params, per spec.md §4.5's three-part gate, along with the reason
// to surface in the admission log record either way.
func Eligible(params *dagconfig.Params, txs []*externalapi.DomainTransaction) (bool, string) {
	if !params.ParallelExecutionEnabled {
		return false, "parallel execution disabled by configuration"
	}
	if len(txs) < params.MinTxsForParallelExecution {
		return false, "tx_count below the parallel-execution threshold"
	}
	for _, tx := range txs {
		if externalapi.SequentialOnlyTransactionTypes[tx.Type] {
			return false, "block contains a sequential-only transaction type"
		}
	}
	return true, "eligibility gate satisfied"
}

// maxParallelism is spec.md §4.5's `min(tx_count, cpu_cores)` concurrency
// cap: never more workers than there are transactions or CPUs to run them.
func maxParallelism(txCount int) int64 {
	cores := runtime.NumCPU()
	if txCount < cores {
		return int64(txCount)
	}
	return int64(cores)
}

// ExecuteBlock applies txs to state following spec.md §4.5: the parallel
// path when txs passes Eligible, the sequential fallback (max_parallelism
// 1) otherwise. beneficiary receives every transaction's fee. The returned
// BlockResult always has exactly one entry per transaction in block order,
// however the engine actually dispatched it; a non-nil error means a fatal
// storage failure aborted the block, not that any individual transaction
// was orphaned.
func ExecuteBlock(ctx context.Context, params *dagconfig.Params, state *storage.ParallelChainState, beneficiary externalapi.DomainAddress, txs []*externalapi.DomainTransaction) (*BlockResult, error) {
	parallel, reason := Eligible(params, txs)
	log.Infof("%s execution: %s (%d transactions)", dispatchLabel(parallel), reason, len(txs))

	results := make([]*TransactionResult, len(txs))

	if !parallel {
		// max_parallelism = 1: a single goroutine walks the block in
		// order, with no semaphore race that could reorder it.
		for i, tx := range txs {
			result, fatal := executeTransaction(state, beneficiary, tx)
			if fatal != nil {
				return nil, fatal
			}
			results[i] = result
		}
		return &BlockResult{Parallel: false, Reason: reason, Results: results}, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxParallelism(len(txs)))

	for _, batch := range batches(txs) {
		batch := batch
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			for _, i := range batch {
				result, fatal := executeTransaction(state, beneficiary, txs[i])
				if fatal != nil {
					return fatal
				}
				results[i] = result
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return &BlockResult{Parallel: true, Reason: reason, Results: results}, nil
}

func dispatchLabel(parallel bool) string {
	if parallel {
		return "parallel"
	}
	return "sequential"
}

// executeTransaction runs the nine-step algorithm of spec.md §4.5 against a
// single transaction. The first return value is always non-nil on a
// non-fatal return; the second is non-nil only for a storage failure severe
// enough to abort the whole block (consensuserrors.LocalityFatal).
func executeTransaction(state *storage.ParallelChainState, beneficiary externalapi.DomainAddress, tx *externalapi.DomainTransaction) (*TransactionResult, error) {
	txID := consensushashing.TransactionID(tx)

	orphan := func(err error) (*TransactionResult, error) {
		return &TransactionResult{TransactionID: *txID, Outcome: OutcomeOrphaned, Err: err}, nil
	}

	nonce, err := state.GetNonce(tx.Source)
	if err != nil {
		return nil, err
	}
	if tx.Nonce < nonce {
		return orphan(consensuserrors.Newf(consensuserrors.ErrNonceTooLow,
			"transaction %s nonce %d already executed, expected %d", txID, tx.Nonce, nonce))
	}
	if tx.Nonce > nonce {
		return orphan(consensuserrors.Newf(consensuserrors.ErrNonceTooHigh,
			"transaction %s nonce %d arrived out of order, expected %d", txID, tx.Nonce, nonce))
	}

	balance, err := state.GetBalance(tx.Source, tx.FeeAsset)
	if err != nil {
		return nil, err
	}
	if balance < tx.Fee {
		return orphan(consensuserrors.Newf(consensuserrors.ErrInsufficientBalance,
			"transaction %s sender holds %d of fee asset %x, insufficient for fee %d", txID, balance, tx.FeeAsset, tx.Fee))
	}

	// Step 5: the fee is deducted and credited to the beneficiary
	// unconditionally from this point on, even if payload execution
	// below fails.
	if err := state.SubBalance(tx.Source, tx.FeeAsset, tx.Fee); err != nil {
		return orphan(err)
	}
	if err := state.AddGasFee(beneficiary, tx.FeeAsset, tx.Fee); err != nil {
		return nil, err
	}

	payloadErr := executePayload(state, tx)

	if err := state.IncrementNonce(tx.Source); err != nil {
		return nil, err
	}

	if payloadErr != nil {
		return &TransactionResult{TransactionID: *txID, Outcome: OutcomeOrphaned, Err: payloadErr}, nil
	}
	return &TransactionResult{TransactionID: *txID, Outcome: OutcomeExecuted}, nil
}
