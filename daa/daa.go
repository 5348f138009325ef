// Package daa implements the difficulty adjustment algorithm of spec.md
// §4.4: a monotone-median timestamp rule over a block's selected-parent
// chain window, and an integer-only retarget formula bounded to
// [current/4, current*4]. The median rule is grounded on the teacher's
// domain/consensus/processes/pastmediantimemanager package
// (windowMedianTimestamp: sort window timestamps, take the middle index);
// the retarget step scales the parent's difficulty by the ratio of the
// window's expected span (its block count times the target spacing) to its
// actual timestamp span, in big.Int arithmetic.
package daa

import (
	"math/big"
	"sort"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
)

// HeaderStore is the minimal header-lookup surface PastMedianTime needs.
type HeaderStore interface {
	Header(blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error)
}

// GHOSTDAGStore is the minimal GHOSTDAG-data lookup surface NextDifficulty
// needs to read blue_work off the window's endpoints.
type GHOSTDAGStore interface {
	Get(blockHash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, error)
}

// WindowProvider returns the DAA window for a block: up to windowSize
// blocks walking back along its selected-parent chain, nearest first.
// Grounded on the teacher's DAGTraversalManager.BlueWindow, generalized from
// a caller-supplied window size (pastMedianTimeManager requests a smaller
// window than difficultyManager) to the two fixed window sizes spec.md §4.4
// defines (PastMedianTimeWindowSize, DAAWindowSize).
type WindowProvider interface {
	Window(blockHash *externalapi.DomainHash, windowSize int) ([]*externalapi.DomainHash, error)
}

// PastMedianTime returns the monotone median of the timestamps of the
// window of up to PastMedianTimeWindowSize blocks ending at blockHash
// (inclusive) on its selected-parent chain (spec.md §4.4). A block's timestamp must exceed
// this value, enforced by the caller via ErrTimestampIsLessThanParent.
func PastMedianTime(blockHash *externalapi.DomainHash, headers HeaderStore, window WindowProvider) (int64, error) {
	blockHashes, err := window.Window(blockHash, dagconfig.PastMedianTimeWindowSize)
	if err != nil {
		return 0, err
	}
	if len(blockHashes) == 0 {
		return 0, consensuserrors.Newf(consensuserrors.ErrInvariantViolation,
			"daa: cannot compute past median time over an empty window for %s", blockHash)
	}

	timestamps := make([]int64, len(blockHashes))
	for i, hash := range blockHashes {
		header, err := headers.Header(hash)
		if err != nil {
			return 0, err
		}
		timestamps[i] = header.TimeInMilliseconds
	}

	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })
	return timestamps[len(timestamps)/2], nil
}

// CheckTimestamp validates a candidate block timestamp against the
// monotone-median rule and the future-drift bound (spec.md §4.4).
func CheckTimestamp(candidateTimeInMilliseconds, nowInMilliseconds, pastMedianTime int64) error {
	if candidateTimeInMilliseconds <= pastMedianTime {
		return consensuserrors.Newf(consensuserrors.ErrTimestampIsLessThanParent,
			"block timestamp %d does not exceed past median time %d", candidateTimeInMilliseconds, pastMedianTime)
	}
	if candidateTimeInMilliseconds > nowInMilliseconds+dagconfig.MaxFutureTimeDriftMilliseconds {
		return consensuserrors.Newf(consensuserrors.ErrTimestampIsInFuture,
			"block timestamp %d is more than %dms ahead of current time %d",
			candidateTimeInMilliseconds, dagconfig.MaxFutureTimeDriftMilliseconds, nowInMilliseconds)
	}
	return nil
}

// NextDifficulty computes the required difficulty for a block whose
// selected parent is selectedParentHash from the last DAAWindowSize blocks
// of the selected-parent chain: parentDifficulty × expected / max(actual, 1),
// where expected is the window's block count times the target spacing and
// actual is the span between the window's newest and oldest block
// timestamps. The result is clamped to
// [parentDifficulty/DifficultyRetargetFactor,
// parentDifficulty*DifficultyRetargetFactor] and floored at minDifficulty
// (spec.md §4.4). While the window holds fewer than two blocks, or its blue
// work did not grow, the parent's difficulty is kept.
func NextDifficulty(
	selectedParentHash *externalapi.DomainHash,
	parentDifficulty uint64,
	minDifficulty uint64,
	ghostdagStore GHOSTDAGStore,
	headers HeaderStore,
	window WindowProvider,
) (uint64, error) {
	blockHashes, err := window.Window(selectedParentHash, dagconfig.DAAWindowSize)
	if err != nil {
		return 0, err
	}
	if len(blockHashes) < 2 {
		// Not enough chain history yet to retarget; hold at the parent's
		// difficulty, matching the teacher's bootstrap behavior of using
		// the genesis/minimum difficulty until a full window exists.
		return clamp(parentDifficulty, parentDifficulty, minDifficulty), nil
	}

	oldest, err := ghostdagStore.Get(blockHashes[len(blockHashes)-1])
	if err != nil {
		return 0, err
	}
	newest, err := ghostdagStore.Get(blockHashes[0])
	if err != nil {
		return 0, err
	}

	deltaWork := new(big.Int).Sub(newest.BlueWork(), oldest.BlueWork())
	if deltaWork.Sign() <= 0 {
		return clamp(parentDifficulty, parentDifficulty, minDifficulty), nil
	}

	oldestHeader, err := headers.Header(blockHashes[len(blockHashes)-1])
	if err != nil {
		return 0, err
	}
	newestHeader, err := headers.Header(blockHashes[0])
	if err != nil {
		return 0, err
	}

	actualElapsed := newestHeader.TimeInMilliseconds - oldestHeader.TimeInMilliseconds
	if actualElapsed < 1 {
		actualElapsed = 1
	}

	// estimate = parentDifficulty × expectedElapsed / actualElapsed, so
	// slower-than-target arrivals push the next difficulty down and
	// faster-than-target arrivals push it up. Integer arithmetic throughout
	// keeps the retarget fully deterministic across implementations.
	expectedElapsed := int64(len(blockHashes)) * dagconfig.TargetBlockTimeMilliseconds
	estimate := new(big.Int).SetUint64(parentDifficulty)
	estimate.Mul(estimate, big.NewInt(expectedElapsed))
	estimate.Div(estimate, big.NewInt(actualElapsed))

	next := estimate.Uint64()
	retargeted := clamp(next, parentDifficulty, minDifficulty)
	log.Debugf("retarget at %s: window %d blocks, parent difficulty %d, next %d",
		selectedParentHash, len(blockHashes), parentDifficulty, retargeted)
	return retargeted, nil
}

// clamp bounds next to [parentDifficulty/DifficultyRetargetFactor,
// parentDifficulty*DifficultyRetargetFactor], then floors at minDifficulty.
func clamp(next, parentDifficulty, minDifficulty uint64) uint64 {
	lowerBound := parentDifficulty / dagconfig.DifficultyRetargetFactor
	upperBound := parentDifficulty * dagconfig.DifficultyRetargetFactor

	clamped := next
	if clamped < lowerBound {
		clamped = lowerBound
	}
	if clamped > upperBound {
		clamped = upperBound
	}
	if clamped < minDifficulty {
		clamped = minDifficulty
	}
	return clamped
}
