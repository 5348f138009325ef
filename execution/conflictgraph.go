// Package execution implements the parallel execution engine of spec.md
// §4.5: conflict analysis over a block's transaction list, batched
// concurrent dispatch against a shared storage.ParallelChainState overlay,
// and the sequential fallback path. No teacher package implements this
// directly (the teacher's consensusstatemanager applies UTXO diffs
// single-threaded); the conflict graph below is grounded on the teacher's
// own convention, seen throughout blockdag (blockSet and friends), of
// hand-rolling small DAG-local data structures rather than reaching for a
// generic graph library.
package execution

import "github.com/tos-network/tos/externalapi"

// conflictKey identifies a touched (sender|receiver, asset) slot, or a bare
// sender touch (asset is irrelevant: sharing a sender always conflicts,
// per spec.md §4.5, because nonce ordering is sender-global).
type conflictKey struct {
	account externalapi.DomainAddress
	asset   externalapi.DomainAssetID
	isNonce bool
}

// conflictGraph unions transactions (by their index in the block) that
// touch a common key, via a plain union-find over transaction indices.
type conflictGraph struct {
	parent []int
	rank   []int
}

func newConflictGraph(n int) *conflictGraph {
	g := &conflictGraph{parent: make([]int, n), rank: make([]int, n)}
	for i := range g.parent {
		g.parent[i] = i
	}
	return g
}

func (g *conflictGraph) find(i int) int {
	for g.parent[i] != i {
		g.parent[i] = g.parent[g.parent[i]]
		i = g.parent[i]
	}
	return i
}

func (g *conflictGraph) union(a, b int) {
	rootA, rootB := g.find(a), g.find(b)
	if rootA == rootB {
		return
	}
	if g.rank[rootA] < g.rank[rootB] {
		rootA, rootB = rootB, rootA
	}
	g.parent[rootB] = rootA
	if g.rank[rootA] == g.rank[rootB] {
		g.rank[rootA]++
	}
}

// Batches scans txs once, building the conflict graph described by spec.md
// §4.5 ("two transactions conflict iff they touch any of the same
// (sender, asset) or (receiver, asset) or share a sender"), and returns the
// resulting connected components as batches, each holding its
// transactions' original block-order indices in ascending order.
func batches(txs []*externalapi.DomainTransaction) [][]int {
	graph := newConflictGraph(len(txs))
	lastTouch := make(map[conflictKey]int, len(txs)*2)

	touch := func(i int, key conflictKey) {
		if prev, ok := lastTouch[key]; ok {
			graph.union(prev, i)
		}
		lastTouch[key] = i
	}

	for i, tx := range txs {
		touch(i, conflictKey{account: tx.Source, isNonce: true})
		touch(i, conflictKey{account: tx.Source, asset: tx.FeeAsset})
		for _, receiver := range transferReceivers(tx) {
			touch(i, conflictKey{account: tx.Source, asset: receiver.Asset})
			touch(i, conflictKey{account: receiver.Receiver, asset: receiver.Asset})
		}
	}

	groups := make(map[int][]int, len(txs))
	order := make([]int, 0, len(txs))
	for i := range txs {
		root := graph.find(i)
		if _, seen := groups[root]; !seen {
			order = append(order, root)
		}
		groups[root] = append(groups[root], i)
	}

	result := make([][]int, len(order))
	for batchIndex, root := range order {
		result[batchIndex] = groups[root]
	}
	return result
}

// transferReceivers decodes a Transfers transaction's receiver/asset
// touches for conflict analysis; every other transaction family touches
// only its sender, which touch already covers.
func transferReceivers(tx *externalapi.DomainTransaction) []externalapi.Transfer {
	if tx.Type != externalapi.TransactionTypeTransfers {
		return nil
	}
	payload, err := decodeTransferPayload(tx.Payload)
	if err != nil {
		return nil
	}
	return payload.Transfers
}
