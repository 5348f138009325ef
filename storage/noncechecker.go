package storage

import "github.com/tos-network/tos/consensuserrors"

// NonceChecker tracks one sender's nonce admission state (spec.md §4.6:
// "a per-sender structure {expected: u64, executed: map<u64, TopoHeight>}").
// Two admission policies share it: the mempool is permissive about
// out-of-order nonces arriving within a small lookahead window, while the
// executor enforces strict, gapless ordering.
type NonceChecker struct {
	expected uint64
	executed map[uint64]uint64
}

// NewNonceChecker starts a checker expecting startingNonce next.
func NewNonceChecker(startingNonce uint64) *NonceChecker {
	return &NonceChecker{expected: startingNonce, executed: make(map[uint64]uint64)}
}

// nonceLookahead is the width of the window the mempool variant accepts
// nonces within: [expected, expected+nonceLookahead].
const nonceLookahead = 1

// CheckMempool admits nonce if it falls within [expected, expected+1],
// matching the teacher's mempool practice of accepting one transaction
// ahead of the confirmed nonce so a sender can queue its next transaction
// before the first is mined.
func (c *NonceChecker) CheckMempool(nonce uint64) error {
	if nonce < c.expected || nonce > c.expected+nonceLookahead {
		return consensuserrors.Newf(consensuserrors.ErrNonceTooLow,
			"nonce %d outside the accepted mempool window [%d, %d]", nonce, c.expected, c.expected+nonceLookahead)
	}
	return nil
}

// CheckExecutor admits nonce only if it equals expected exactly: the
// strict, gapless ordering block execution requires (spec.md invariant 4).
func (c *NonceChecker) CheckExecutor(nonce uint64) error {
	if nonce < c.expected {
		return consensuserrors.Newf(consensuserrors.ErrNonceTooLow,
			"nonce %d already executed, expected %d", nonce, c.expected)
	}
	if nonce > c.expected {
		return consensuserrors.Newf(consensuserrors.ErrNonceTooHigh,
			"nonce %d arrived out of order, expected %d", nonce, c.expected)
	}
	return nil
}

// MarkExecuted records that nonce executed at topoHeight and advances
// expected past it.
func (c *NonceChecker) MarkExecuted(nonce, topoHeight uint64) {
	c.executed[nonce] = topoHeight
	if nonce >= c.expected {
		c.expected = nonce + 1
	}
}

// ExecutedAt returns the topoheight nonce executed at, if it has.
func (c *NonceChecker) ExecutedAt(nonce uint64) (uint64, bool) {
	topoHeight, ok := c.executed[nonce]
	return topoHeight, ok
}

// Expected returns the next nonce the executor variant will accept.
func (c *NonceChecker) Expected() uint64 {
	return c.expected
}
