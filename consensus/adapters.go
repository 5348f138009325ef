package consensus

import (
	"sync"

	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/storage"
)

// ghostdagDataAdapter satisfies both ghostdag.DataStore and daa.GHOSTDAGStore
// (their Get signatures are identical) over a storage.ChainStore, with a
// small in-memory staging map holding a block's GHOSTDAG data between
// ghostdag.Manager.Run computing it and storage.ChainStore.CommitBlock
// persisting it — mirroring the teacher's ghostdagdatastore's stage/commit
// split.
type ghostdagDataAdapter struct {
	store *storage.ChainStore

	mu     sync.Mutex
	staged map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData
}

func newGHOSTDAGDataAdapter(store *storage.ChainStore) *ghostdagDataAdapter {
	return &ghostdagDataAdapter{store: store, staged: make(map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData)}
}

// Get returns blockHash's GHOSTDAG data, checking the staging map (the
// block currently being admitted) before falling through to committed
// storage.
func (a *ghostdagDataAdapter) Get(blockHash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, error) {
	a.mu.Lock()
	if data, ok := a.staged[*blockHash]; ok {
		a.mu.Unlock()
		return data, nil
	}
	a.mu.Unlock()

	data, found, err := a.store.GHOSTDAGData(a.store.DB(), blockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errMissingGHOSTDAGData(blockHash)
	}
	return data, nil
}

// Stage records blockHash's newly computed GHOSTDAG data in the staging
// map, where it stays visible to Get until commit clears it.
func (a *ghostdagDataAdapter) Stage(blockHash *externalapi.DomainHash, data *externalapi.BlockGHOSTDAGData) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.staged[*blockHash] = data
}

// take returns and clears blockHash's staged data, for the facade to fold
// into the BlockCommit it hands to storage.ChainStore.CommitBlock.
func (a *ghostdagDataAdapter) take(blockHash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	data, ok := a.staged[*blockHash]
	delete(a.staged, *blockHash)
	return data, ok
}

// topologyAdapter satisfies ghostdag.Topology by reading a block's declared
// parent list straight off its stored header.
type topologyAdapter struct {
	store *storage.ChainStore
}

func (a *topologyAdapter) Parents(blockHash *externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	block, found, err := a.store.Block(a.store.DB(), blockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errMissingBlock(blockHash)
	}
	parents := make([]*externalapi.DomainHash, len(block.Header.Parents))
	for i := range block.Header.Parents {
		parents[i] = block.Header.Parents[i].Clone()
	}
	return parents, nil
}

// headerAdapter satisfies daa.HeaderStore over a storage.ChainStore.
type headerAdapter struct {
	store *storage.ChainStore
}

func (a *headerAdapter) Header(blockHash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error) {
	block, found, err := a.store.Block(a.store.DB(), blockHash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errMissingBlock(blockHash)
	}
	return block.Header, nil
}

// windowAdapter satisfies daa.WindowProvider by walking a block's
// selected-parent chain, nearest first, starting at (and including) the
// given hash itself.
type windowAdapter struct {
	ghostdagData *ghostdagDataAdapter
}

func (a *windowAdapter) Window(blockHash *externalapi.DomainHash, windowSize int) ([]*externalapi.DomainHash, error) {
	result := make([]*externalapi.DomainHash, 0, windowSize)
	current := blockHash
	for len(result) < windowSize {
		result = append(result, current)
		data, err := a.ghostdagData.Get(current)
		if err != nil {
			return nil, err
		}
		selectedParent := data.SelectedParent()
		if selectedParent == nil {
			break
		}
		current = selectedParent
	}
	return result, nil
}

// multiSigStoreAdapter satisfies txvalidator.MultiSigConfigStore over a
// storage.ChainStore, always reading against the committed (non-staged)
// view: a multisig policy registration takes effect for the block after
// the one that commits it, same as every other versioned record.
type multiSigStoreAdapter struct {
	store *storage.ChainStore
}

func (a *multiSigStoreAdapter) MultiSigConfig(account externalapi.DomainAddress) (*externalapi.DomainMultiSigConfig, bool, error) {
	return a.store.MultiSigConfig(a.store.DB(), account)
}
