// Package reachability implements is_ancestor(A, B) queries over the block
// DAG via interval labeling, grounded on the teacher's
// domain/consensus/processes/reachabilitymanager package: a reachability
// tree built from each block's GHOSTDAG-selected-parent edge, augmented with
// a per-node "future covering set" that lets a DAG edge through a
// non-selected (merged) parent answer ancestry queries without walking the
// full DAG. The teacher's own reachability.go only exposes the
// IsDAGAncestorOf/UpdateReindexRoot entry points backed by a full interval
// reindexing scheme; that reindexing algorithm is not present in this
// package's source tree, so here each new child takes half of its parent's
// remaining interval and no assigned interval is ever relabeled (see
// ErrReachabilityCapacityExhausted and the design note in DESIGN.md).
package reachability

import (
	"sort"
	"sync"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
)

// initialCapacity is the width of the interval assigned to the first block
// registered with a Tree (the genesis block). 2^62 is large enough that, for
// any plausible chain length, no node's remaining capacity is ever
// exhausted; AddBlock still returns ErrReachabilityCapacityExhausted as a
// defensive bound rather than silently overflowing.
const initialCapacity = uint64(1) << 62

// interval is a half-open range [Start, End). A tree node's interval
// contains the interval of every one of its tree descendants.
type interval struct {
	start uint64
	end   uint64
}

func (iv interval) size() uint64 {
	return iv.end - iv.start
}

func (iv interval) contains(other interval) bool {
	return iv.start <= other.start && other.end <= iv.end
}

type node struct {
	interval       interval
	parent         *externalapi.DomainHash
	children       []*externalapi.DomainHash
	nextChildStart uint64
	futureCovering []*externalapi.DomainHash // sorted by interval.start, ascending
}

// Tree is a reachability index over a single block DAG. It is not safe for
// concurrent use without external synchronization beyond what its own mutex
// provides for read/write exclusion; callers external to this package
// should not assume additional atomicity across multiple Tree calls.
type Tree struct {
	mu    sync.RWMutex
	nodes map[externalapi.DomainHash]*node
}

// New returns an empty reachability tree.
func New() *Tree {
	return &Tree{nodes: make(map[externalapi.DomainHash]*node)}
}

// InsertGenesis registers the DAG's sole parentless block as the reachability
// tree's root.
func (t *Tree) InsertGenesis(genesisHash *externalapi.DomainHash) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes[*genesisHash] = &node{
		interval:       interval{start: 0, end: initialCapacity},
		nextChildStart: 1,
	}
}

// AddBlock registers blockHash as a child of selectedParentHash in the
// reachability tree, and records every other (merged) parent's future
// covering set entry so that is_ancestor queries crossing a non-tree DAG
// edge are still answered correctly.
func (t *Tree) AddBlock(blockHash, selectedParentHash *externalapi.DomainHash, otherParents []*externalapi.DomainHash) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	parent, ok := t.nodes[*selectedParentHash]
	if !ok {
		return consensuserrors.Newf(consensuserrors.ErrMissingParent,
			"reachability: selected parent %s not registered", selectedParentHash)
	}

	remaining := parent.interval.end - parent.nextChildStart
	if remaining < 2 {
		return consensuserrors.Newf(consensuserrors.ErrReachabilityCapacityExhausted,
			"reachability: node %s has exhausted its interval capacity", selectedParentHash)
	}
	// Halving the remaining space on every allocation leaves room for an
	// unbounded number of future children without ever needing to move an
	// already-assigned sibling's interval.
	childSize := remaining / 2
	if childSize == 0 {
		childSize = 1
	}

	childInterval := interval{start: parent.nextChildStart, end: parent.nextChildStart + childSize}
	parent.nextChildStart += childSize
	parent.children = append(parent.children, blockHash)

	t.nodes[*blockHash] = &node{
		interval:       childInterval,
		parent:         selectedParentHash,
		nextChildStart: childInterval.start + 1,
	}

	for _, otherParentHash := range otherParents {
		if otherParentHash.Equal(selectedParentHash) {
			continue
		}
		if err := t.insertFutureCovering(otherParentHash, blockHash); err != nil {
			return err
		}
	}

	return nil
}

// insertFutureCovering records blockHash as being in the DAG-future of
// ancestorHash, keeping ancestorHash's future covering set sorted by
// interval start so IsAncestorOf can binary search it.
func (t *Tree) insertFutureCovering(ancestorHash, blockHash *externalapi.DomainHash) error {
	ancestor, ok := t.nodes[*ancestorHash]
	if !ok {
		return consensuserrors.Newf(consensuserrors.ErrMissingParent,
			"reachability: merged parent %s not registered", ancestorHash)
	}
	block := t.nodes[*blockHash]

	i := sort.Search(len(ancestor.futureCovering), func(i int) bool {
		return t.nodes[*ancestor.futureCovering[i]].interval.start >= block.interval.start
	})
	ancestor.futureCovering = append(ancestor.futureCovering, nil)
	copy(ancestor.futureCovering[i+1:], ancestor.futureCovering[i:])
	ancestor.futureCovering[i] = blockHash
	return nil
}

// IsAncestorOf returns whether blockHashA is a DAG ancestor of blockHashB,
// treating a block as its own ancestor (matching the teacher's
// IsDAGAncestorOf doc comment).
func (t *Tree) IsAncestorOf(blockHashA, blockHashB *externalapi.DomainHash) (bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	nodeA, ok := t.nodes[*blockHashA]
	if !ok {
		return false, consensuserrors.Newf(consensuserrors.ErrMissingParent,
			"reachability: block %s not registered", blockHashA)
	}
	nodeB, ok := t.nodes[*blockHashB]
	if !ok {
		return false, consensuserrors.Newf(consensuserrors.ErrMissingParent,
			"reachability: block %s not registered", blockHashB)
	}

	if nodeA.interval.contains(nodeB.interval) {
		return true, nil
	}

	// Find the rightmost future-covering entry whose interval starts at or
	// before blockHashB's: if any tree ancestor of B is covered, it's this one.
	fcs := nodeA.futureCovering
	i := sort.Search(len(fcs), func(i int) bool {
		return t.nodes[*fcs[i]].interval.start > nodeB.interval.start
	})
	if i == 0 {
		return false, nil
	}
	candidate := t.nodes[*fcs[i-1]]
	return candidate.interval.contains(nodeB.interval), nil
}

// Parent returns the reachability tree parent of blockHash, or nil if
// blockHash is the root.
func (t *Tree) Parent(blockHash *externalapi.DomainHash) (*externalapi.DomainHash, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n, ok := t.nodes[*blockHash]
	if !ok {
		return nil, false
	}
	return n.parent, n.parent != nil
}
