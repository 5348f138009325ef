// Package ghostdag implements the GHOSTDAG blue/red classification algorithm
// of spec.md §4.3: selected-parent determination by (blue_work, -hash_lex),
// mergeset computation over the anticone of the selected parent, and the
// k-cluster blue/red classification loop. It is grounded directly on the
// teacher's domain/consensus/processes/ghostdagmanager package
// (compare.go's ChooseSelectedParent/Less, mergeset.go's BFS-and-sort
// mergeSet) and blockdag/ghostdag.go's older, more explicit ghostdag/
// selectedParentAnticone/blueAnticoneSize trio, which spells out the
// k-cluster admission loop this package's Run follows almost line for line.
package ghostdag

import (
	"math/big"
	"sort"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/reachability"
)

// blockWorkUnit is the per-block work weight added to a block's selected
// parent's blue_work to produce its own blue_work (spec.md §4.3). TOS
// weights every block equally at the GHOSTDAG layer; the DAA operates on
// difficulty directly rather than through blue_work, so a flat unit keeps
// the two concerns independent.
var blockWorkUnit = big.NewInt(1)

// DataStore is the minimal read/write surface Run needs over previously
// computed GHOSTDAG data, mirroring the teacher's model.GHOSTDAGDataStore.
type DataStore interface {
	Get(blockHash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, error)
	Stage(blockHash *externalapi.DomainHash, data *externalapi.BlockGHOSTDAGData)
}

// Manager runs the GHOSTDAG algorithm against a reachability tree and a
// GHOSTDAG data store, parameterized by k.
type Manager struct {
	k            uint8
	store        DataStore
	reachability *reachability.Tree
	dagTopology  Topology
}

// Topology is the parent-lookup surface Run needs beyond reachability
// ancestry, mirroring the teacher's model.DAGTopologyManager.
type Topology interface {
	Parents(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error)
}

// New constructs a GHOSTDAG manager.
func New(k uint8, store DataStore, reachabilityTree *reachability.Tree, topology Topology) *Manager {
	return &Manager{k: k, store: store, reachability: reachabilityTree, dagTopology: topology}
}

// ChooseSelectedParent returns the blockHash among blockHashes with maximum
// (blue_work, -hash_lex): ties in blue_work are broken by the
// lexicographically smallest hash winning (spec.md §4.3).
func (m *Manager) ChooseSelectedParent(blockHashes ...*externalapi.DomainHash) (*externalapi.DomainHash, error) {
	selected := blockHashes[0]
	selectedData, err := m.store.Get(selected)
	if err != nil {
		return nil, err
	}

	for _, candidate := range blockHashes[1:] {
		candidateData, err := m.store.Get(candidate)
		if err != nil {
			return nil, err
		}
		if less(selected, selectedData, candidate, candidateData) {
			selected, selectedData = candidate, candidateData
		}
	}
	return selected, nil
}

// less reports whether (hashA, dataA) sorts before (hashB, dataB) in the
// selected-parent ordering: smaller blue_work loses, and on a blue_work tie
// the lexicographically larger hash loses (so the smaller hash is selected).
func less(hashA *externalapi.DomainHash, dataA *externalapi.BlockGHOSTDAGData,
	hashB *externalapi.DomainHash, dataB *externalapi.BlockGHOSTDAGData) bool {
	switch dataA.BlueWork().Cmp(dataB.BlueWork()) {
	case -1:
		return true
	case 1:
		return false
	default:
		return hashB.Less(hashA)
	}
}

// Less reports whether hashA sorts before hashB in the selected-parent
// ordering, fetching each block's GHOSTDAG data from the store.
func (m *Manager) Less(hashA, hashB *externalapi.DomainHash) (bool, error) {
	dataA, err := m.store.Get(hashA)
	if err != nil {
		return false, err
	}
	dataB, err := m.store.Get(hashB)
	if err != nil {
		return false, err
	}
	return less(hashA, dataA, hashB, dataB), nil
}

// mergeSet computes the mergeset of a block: its parents other than the
// selected parent, plus every ancestor of those parents that is not already
// an ancestor of the selected parent, found via BFS outward from the
// non-selected parents and pruned against the selected parent's past using
// reachability queries. The result is sorted by the selected-parent
// ordering, ascending.
func (m *Manager) mergeSet(selectedParent *externalapi.DomainHash, parents []*externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	inMergeSet := make(map[externalapi.DomainHash]struct{}, m.k)
	inSelectedParentPast := make(map[externalapi.DomainHash]struct{})
	mergeSet := make([]*externalapi.DomainHash, 0, m.k)
	var queue []*externalapi.DomainHash

	for _, parent := range parents {
		if parent.Equal(selectedParent) {
			continue
		}
		inMergeSet[*parent] = struct{}{}
		mergeSet = append(mergeSet, parent)
		queue = append(queue, parent)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		currentParents, err := m.dagTopology.Parents(current)
		if err != nil {
			return nil, err
		}
		for _, parent := range currentParents {
			if _, ok := inMergeSet[*parent]; ok {
				continue
			}
			if _, ok := inSelectedParentPast[*parent]; ok {
				continue
			}

			isAncestorOfSelectedParent, err := m.reachability.IsAncestorOf(parent, selectedParent)
			if err != nil {
				return nil, err
			}
			if isAncestorOfSelectedParent {
				inSelectedParentPast[*parent] = struct{}{}
				continue
			}

			inMergeSet[*parent] = struct{}{}
			mergeSet = append(mergeSet, parent)
			queue = append(queue, parent)
		}
	}

	var sortErr error
	sort.Slice(mergeSet, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		isLess, err := m.Less(mergeSet[i], mergeSet[j])
		if err != nil {
			sortErr = err
			return false
		}
		return isLess
	})
	if sortErr != nil {
		return nil, sortErr
	}

	return mergeSet, nil
}

// Run computes and stages the GHOSTDAG data for blockHash given its parents.
// It selects the selected parent, computes the mergeset, and walks the
// mergeset in selected-parent order admitting each candidate as blue unless
// doing so would violate the k-cluster rule against some block on the
// selected-parent chain (spec.md §4.3, invariant that every blue block's
// blue anticone size is ≤ k).
func (m *Manager) Run(blockHash *externalapi.DomainHash, parents []*externalapi.DomainHash) error {
	selectedParent, err := m.ChooseSelectedParent(parents...)
	if err != nil {
		return err
	}

	mergeSet, err := m.mergeSet(selectedParent, parents)
	if err != nil {
		return err
	}

	selectedParentData, err := m.store.Get(selectedParent)
	if err != nil {
		return err
	}

	blues := []*externalapi.DomainHash{selectedParent}
	bluesAnticoneSizes := map[externalapi.DomainHash]uint8{*selectedParent: 0}
	var reds []*externalapi.DomainHash

	for _, candidate := range mergeSet {
		possiblyBlue, candidateAnticoneSize, candidateBluesAnticoneSizes, err := m.checkKCluster(
			blockHash, selectedParent, blues, bluesAnticoneSizes, candidate)
		if err != nil {
			return err
		}

		if !possiblyBlue {
			reds = append(reds, candidate)
			continue
		}

		blues = append(blues, candidate)
		bluesAnticoneSizes[*candidate] = candidateAnticoneSize
		for blue, size := range candidateBluesAnticoneSizes {
			bluesAnticoneSizes[blue] = size + 1
		}

		if uint8(len(blues)) == m.k+1 {
			// Every remaining mergeset candidate would now push the
			// selected parent's own anticone-in-this-block past k; the
			// teacher's blockdag/ghostdag.go stops greedily at this point
			// rather than continuing to evaluate candidates that cannot
			// possibly be admitted.
			for _, remaining := range mergeSet[len(blues)-1:] {
				already := false
				for _, b := range blues {
					if b.Equal(remaining) {
						already = true
						break
					}
				}
				for _, r := range reds {
					if r.Equal(remaining) {
						already = true
						break
					}
				}
				if !already {
					reds = append(reds, remaining)
				}
			}
			break
		}
	}

	blueScore := selectedParentData.BlueScore() + uint64(len(blues))
	blueWork := new(big.Int).Set(selectedParentData.BlueWork())
	blueWork.Add(blueWork, new(big.Int).Mul(blockWorkUnit, big.NewInt(int64(len(blues)))))
	if blueWork.BitLen() > 128 {
		return consensuserrors.Newf(consensuserrors.ErrOverflow, "block %s: blue work %s exceeds 128 bits", blockHash, blueWork)
	}

	data := externalapi.NewBlockGHOSTDAGData(blueScore, blueWork, selectedParent, blues, reds, bluesAnticoneSizes)
	m.store.Stage(blockHash, data)
	log.Debugf("block %s: blueScore %d, %d blues, %d reds, selected parent %s",
		blockHash, blueScore, len(blues), len(reds), selectedParent)
	return nil
}

// checkKCluster decides whether candidate can be admitted as blue in
// blockHash's blue set without violating the k-cluster rule against any
// block on blockHash's selected-parent chain. It walks the chain starting
// at blockHash itself (using the in-progress blues/bluesAnticoneSizes being
// built for it) and then up through each ancestor's own recorded blue set,
// mirroring the chainBlock loop in the teacher's blockdag/ghostdag.go.
func (m *Manager) checkKCluster(
	blockHash, selectedParent *externalapi.DomainHash,
	blues []*externalapi.DomainHash,
	bluesAnticoneSizes map[externalapi.DomainHash]uint8,
	candidate *externalapi.DomainHash,
) (possiblyBlue bool, candidateAnticoneSize uint8, candidateBluesAnticoneSizes map[externalapi.DomainHash]uint8, err error) {
	candidateBluesAnticoneSizes = make(map[externalapi.DomainHash]uint8)
	possiblyBlue = true

	chainBlock := blockHash
	chainBlues := blues
	chainBluesAnticoneSizes := bluesAnticoneSizes

	for first := true; possiblyBlue; first = false {
		if !first {
			// If candidate is already in the past of chainBlock, every
			// remaining ancestor on the chain is also in candidate's past,
			// so the k-cluster rule can never be violated further down.
			isAncestorOfCandidate, err := m.reachability.IsAncestorOf(chainBlock, candidate)
			if err != nil {
				return false, 0, nil, err
			}
			if isAncestorOfCandidate {
				break
			}
		}

		for _, blue := range chainBlues {
			if !first && blue.Equal(chainBlock) {
				continue
			}
			isAncestorOfCandidate, err := m.reachability.IsAncestorOf(blue, candidate)
			if err != nil {
				return false, 0, nil, err
			}
			if isAncestorOfCandidate {
				continue
			}

			size, ok := chainBluesAnticoneSizes[*blue]
			if !ok {
				return false, 0, nil, consensuserrors.Newf(consensuserrors.ErrInvariantViolation,
					"ghostdag: blue anticone size for %s not found while processing %s", blue, blockHash)
			}

			candidateBluesAnticoneSizes[*blue] = size
			candidateAnticoneSize++
			if candidateAnticoneSize > m.k || size == m.k {
				possiblyBlue = false
				break
			}
			if size > m.k {
				return false, 0, nil, consensuserrors.Newf(consensuserrors.ErrKClusterViolation,
					"ghostdag: blue anticone size %d of %s exceeds k=%d", size, blue, m.k)
			}
		}

		if !possiblyBlue {
			break
		}

		// Advance to the next ancestor up the selected-parent chain. The
		// walk only stops when the ancestor check above finds candidate
		// already in chainBlock's past, or here when chainBlock turns out
		// to have no selected parent (the chain's genesis) — never merely
		// because chainBlock reached blockHash's own selected parent, so
		// the walk keeps climbing past it exactly like the teacher's
		// `for chainBlock := newNode; possiblyBlue; chainBlock = chainBlock.selectedParent`.
		var nextBlock *externalapi.DomainHash
		if first {
			// blockHash itself is not staged yet (Run is computing its data
			// right now); its chain-walk continuation is its own selected
			// parent, whose data is already staged.
			nextBlock = selectedParent
		} else {
			chainData, err := m.store.Get(chainBlock)
			if err != nil {
				return false, 0, nil, err
			}
			nextBlock = chainData.SelectedParent()
		}
		if nextBlock == nil {
			break
		}
		chainBlock = nextBlock

		chainData, err := m.store.Get(chainBlock)
		if err != nil {
			return false, 0, nil, err
		}
		chainBlues = chainData.MergeSetBlues()
		chainBluesAnticoneSizes = make(map[externalapi.DomainHash]uint8, len(chainBlues))
		for _, blue := range chainBlues {
			size, ok := chainData.BlueAnticoneSize(blue)
			if ok {
				chainBluesAnticoneSizes[*blue] = size
			}
		}
	}

	return possiblyBlue, candidateAnticoneSize, candidateBluesAnticoneSizes, nil
}
