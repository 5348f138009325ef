package externalapi

// SyncState reports whether the consensus has every ancestor it needs to
// keep admitting blocks, or is waiting on a missing parent before a pending
// block can be retried (spec.md §9.1's two-state model, simpler than the
// teacher's header-first IBD states since TOS has no separate header-only
// sync phase).
type SyncState uint8

const (
	// SyncStateNormal means every currently pending block has all of its
	// parents on hand; admission proceeds without retry bookkeeping.
	SyncStateNormal SyncState = iota
	// SyncStateMissingParent means at least one block is held in the orphan
	// pool awaiting a parent that has not yet arrived.
	SyncStateMissingParent
)

func (s SyncState) String() string {
	switch s {
	case SyncStateNormal:
		return "SyncStateNormal"
	case SyncStateMissingParent:
		return "SyncStateMissingParent"
	default:
		return "<unknown sync state>"
	}
}

// SyncInfo reports the consensus's current sync state.
type SyncInfo struct {
	State SyncState
}
