// Package consensus implements the external façade of spec.md §6: a single
// Consensus interface orchestrating the GHOSTDAG engine, the DAA, the
// parallel execution engine, and the ChainState/storage layer into one
// block-admission pipeline, plus the Factory constructor pair. Grounded on
// the teacher's domain/consensus package (consensus.go's thin façade over
// blockProcessor/consensusStateManager, factory.go's dependency-wiring
// NewConsensus, test_consensus.go's NewTestConsensus).
package consensus

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tos-network/tos/consensushashing"
	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/daa"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/execution"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/ghostdag"
	"github.com/tos-network/tos/reachability"
	"github.com/tos-network/tos/storage"
	"github.com/tos-network/tos/validation/txvalidator"
)

// Consensus is the core's single entry point: block admission, point-in-time
// state reads, and the event stream consumers subscribe to (spec.md §6).
type Consensus interface {
	AddBlock(block *externalapi.DomainBlock) (externalapi.BlockStatus, error)
	GetBlock(hash *externalapi.DomainHash) (*externalapi.DomainBlock, error)
	GetBlockByTopoHeight(topoHeight uint64) (*externalapi.DomainBlock, error)
	GetBalance(account externalapi.DomainAddress, asset externalapi.DomainAssetID, at uint64) (uint64, error)
	GetNonce(account externalapi.DomainAddress, at uint64) (uint64, error)
	GetTips() ([]*externalapi.DomainHash, error)
	GetTopBlock() (*externalapi.DomainBlock, error)
	GetSyncInfo() externalapi.SyncInfo
	Events() <-chan Event
	Close() error
}

// consensusImpl wires together one ChainStore and the processes that read
// and write it for a single network.
type consensusImpl struct {
	params *dagconfig.Params
	store  *storage.ChainStore

	reachabilityTree *reachability.Tree
	ghostdagData     *ghostdagDataAdapter
	ghostdagManager  *ghostdag.Manager
	headers          *headerAdapter
	window           *windowAdapter
	multiSigStore    *multiSigStoreAdapter

	events *eventBus

	// mu serializes AddBlock end to end: ghostdag/reachability staging,
	// DAA checks, and execution all read and mutate facade-local state
	// (topoHeights, nextTopoHeight) that storage.ChainStore's own write
	// lock does not cover.
	mu sync.Mutex

	genesisHash    *externalapi.DomainHash
	topoHeights    map[externalapi.DomainHash]uint64
	nextTopoHeight uint64

	// syncState and the orphan pool implement spec.md §9.1's two-state sync
	// model: a block that arrives before a parent it names is held rather
	// than permanently rejected, and retried once that parent is admitted.
	syncState       externalapi.SyncState
	orphansByParent map[externalapi.DomainHash][]*externalapi.DomainBlock
	orphanedHashes  map[externalapi.DomainHash]bool
}

func newConsensusImpl(params *dagconfig.Params, store *storage.ChainStore) *consensusImpl {
	ghostdagData := newGHOSTDAGDataAdapter(store)
	topology := &topologyAdapter{store: store}
	reachabilityTree := reachability.New()

	c := &consensusImpl{
		params:           params,
		store:            store,
		reachabilityTree: reachabilityTree,
		ghostdagData:     ghostdagData,
		headers:          &headerAdapter{store: store},
		window:           &windowAdapter{ghostdagData: ghostdagData},
		multiSigStore:    &multiSigStoreAdapter{store: store},
		events:           newEventBus(),
		topoHeights:      make(map[externalapi.DomainHash]uint64),
		orphansByParent:  make(map[externalapi.DomainHash][]*externalapi.DomainBlock),
		orphanedHashes:   make(map[externalapi.DomainHash]bool),
	}
	c.ghostdagManager = ghostdag.New(dagconfig.K, ghostdagData, reachabilityTree, topology)
	return c
}

// AddBlock validates and admits block, following spec.md §4.5/§4.6's
// pipeline: duplicate/parent checks, GHOSTDAG classification, DAA
// timestamp/difficulty checks, parallel (or sequential) execution, and an
// atomic ChainState commit. A rejected or orphaned block leaves no trace in
// storage.
func (c *consensusImpl) AddBlock(block *externalapi.DomainBlock) (externalapi.BlockStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.addBlockLocked(block)
}

// addBlockLocked is AddBlock's body, factored out so retryOrphans can
// re-invoke it for a pending block without re-entering c.mu (sync.Mutex is
// not reentrant).
func (c *consensusImpl) addBlockLocked(block *externalapi.DomainBlock) (externalapi.BlockStatus, error) {
	hash := consensushashing.BlockHash(block.Header)

	if _, found, err := c.store.Block(c.store.DB(), hash); err != nil {
		return externalapi.BlockStatusRejected, err
	} else if found {
		return externalapi.BlockStatusRejected, consensuserrors.Newf(consensuserrors.ErrDuplicateBlock,
			"block %s already known", hash)
	}

	if len(block.Transactions) > 0 {
		if err := txvalidator.CheckBatch(c.params, c.multiSigStore, block.Transactions); err != nil {
			return c.reject(hash, err)
		}
	}

	isGenesis := len(block.Header.Parents) == 0
	if isGenesis && c.genesisHash != nil {
		return c.reject(hash, consensuserrors.Newf(consensuserrors.ErrDuplicateBlock,
			"block %s declares no parents but a genesis is already registered", hash))
	}

	var parents []*externalapi.DomainHash
	if !isGenesis {
		if len(block.Header.Parents) < externalapi.MinParents {
			return c.reject(hash, consensuserrors.Newf(consensuserrors.ErrTooFewParents,
				"block %s declares %d parents, fewer than the minimum %d", hash, len(block.Header.Parents), externalapi.MinParents))
		}
		if len(block.Header.Parents) > externalapi.MaxParents {
			return c.reject(hash, consensuserrors.Newf(consensuserrors.ErrTooManyParents,
				"block %s declares %d parents, more than the maximum %d", hash, len(block.Header.Parents), externalapi.MaxParents))
		}
		parents = make([]*externalapi.DomainHash, len(block.Header.Parents))
		for i := range block.Header.Parents {
			parents[i] = block.Header.Parents[i].Clone()
			if _, found, err := c.store.Block(c.store.DB(), parents[i]); err != nil {
				return externalapi.BlockStatusRejected, err
			} else if !found {
				return c.orphan(hash, parents[i], block, consensuserrors.Newf(consensuserrors.ErrMissingParent,
					"block %s references unknown parent %s", hash, parents[i]))
			}
		}
	}

	var selectedParent *externalapi.DomainHash
	var stableTopoHeight uint64

	if isGenesis {
		c.reachabilityTree.InsertGenesis(hash)
		c.ghostdagData.Stage(hash, externalapi.NewBlockGHOSTDAGData(0, big.NewInt(0), nil, nil, nil, nil))
	} else {
		chosen, err := c.ghostdagManager.ChooseSelectedParent(parents...)
		if err != nil {
			return c.reject(hash, err)
		}
		selectedParent = chosen

		others := make([]*externalapi.DomainHash, 0, len(parents)-1)
		for _, parent := range parents {
			if !parent.Equal(selectedParent) {
				others = append(others, parent)
			}
		}
		if err := c.reachabilityTree.AddBlock(hash, selectedParent, others); err != nil {
			return c.reject(hash, err)
		}
		if err := c.ghostdagManager.Run(hash, parents); err != nil {
			return c.reject(hash, err)
		}

		if err := c.checkDAA(block, selectedParent); err != nil {
			c.ghostdagData.take(hash)
			return c.reject(hash, err)
		}

		stableTopoHeight = c.topoHeights[*selectedParent]
	}

	state := storage.NewParallelChainState(c.store, c.store.DB(), stableTopoHeight)
	result, err := execution.ExecuteBlock(context.Background(), c.params, state, block.Header.MinerPublicKey, block.Transactions)
	if err != nil {
		c.ghostdagData.take(hash)
		return c.reject(hash, err)
	}

	ghostdagData, _ := c.ghostdagData.take(hash)
	newTips, err := c.nextTips(hash, block.Header.Parents)
	if err != nil {
		return externalapi.BlockStatusRejected, err
	}
	topoHeight := c.nextTopoHeight

	commit := &storage.BlockCommit{
		Hash:             hash,
		Block:            block,
		GHOSTDAGData:     ghostdagData,
		TopoHeight:       topoHeight,
		ModifiedBalances: state.GetModifiedBalances(),
		ModifiedNonces:   state.GetModifiedNonces(),
		ModifiedAssets:   state.GetModifiedAssets(),
		ModifiedMultiSig: state.GetModifiedMultiSigs(),
		NewTips:          newTips,
	}
	if err := c.store.CommitBlock(commit); err != nil {
		return externalapi.BlockStatusRejected, err
	}

	if isGenesis {
		c.genesisHash = hash
	}
	c.topoHeights[*hash] = topoHeight
	c.nextTopoHeight++

	c.events.emit(BlockAdded{Hash: *hash, TopoHeight: topoHeight})
	c.events.emit(TipChanged{Tips: derefHashes(newTips)})
	c.emitReceipts(hash, block, result)

	c.retryOrphans(hash)

	return externalapi.BlockStatusAccepted, nil
}

// checkDAA enforces spec.md §4.4's timestamp and difficulty rules against
// block's declared header, using selectedParent's chain as the DAA window.
func (c *consensusImpl) checkDAA(block *externalapi.DomainBlock, selectedParent *externalapi.DomainHash) error {
	pastMedianTime, err := daa.PastMedianTime(selectedParent, c.headers, c.window)
	if err != nil {
		return err
	}
	if err := daa.CheckTimestamp(block.Header.TimeInMilliseconds, time.Now().UnixMilli(), pastMedianTime); err != nil {
		return err
	}

	parentHeader, err := c.headers.Header(selectedParent)
	if err != nil {
		return err
	}
	expectedDifficulty, err := daa.NextDifficulty(selectedParent, parentHeader.Difficulty, c.params.MinDifficulty, c.ghostdagData, c.headers, c.window)
	if err != nil {
		return err
	}
	if block.Header.Difficulty != expectedDifficulty {
		return consensuserrors.Newf(consensuserrors.ErrInvalidDifficulty,
			"block declares difficulty %d, expected %d", block.Header.Difficulty, expectedDifficulty)
	}
	return nil
}

// nextTips computes the tip set after admitting hash: every current tip
// that isn't one of hash's parents (now covered), plus hash itself.
func (c *consensusImpl) nextTips(hash *externalapi.DomainHash, parents []externalapi.DomainHash) ([]*externalapi.DomainHash, error) {
	currentTips, err := c.store.Tips(c.store.DB())
	if err != nil {
		return nil, err
	}
	parentSet := make(map[externalapi.DomainHash]bool, len(parents))
	for _, parent := range parents {
		parentSet[parent] = true
	}
	newTips := make([]*externalapi.DomainHash, 0, len(currentTips)+1)
	for _, tip := range currentTips {
		if !parentSet[*tip] {
			newTips = append(newTips, tip)
		}
	}
	newTips = append(newTips, hash)
	return newTips, nil
}

// expectedDifficulty computes the difficulty a block whose selected parent
// is parentHash must declare, per the same daa.NextDifficulty call checkDAA
// validates against. Exposed via the package-level ExpectedDifficulty
// function for test harnesses (testconsensus.Builder) that need to
// construct a block header without tripping ErrInvalidDifficulty.
func (c *consensusImpl) expectedDifficulty(parentHash *externalapi.DomainHash) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	parentHeader, err := c.headers.Header(parentHash)
	if err != nil {
		return 0, err
	}
	return daa.NextDifficulty(parentHash, parentHeader.Difficulty, c.params.MinDifficulty, c.ghostdagData, c.headers, c.window)
}

// ExpectedDifficulty is a test-support seam exposing consensusImpl's DAA
// computation to packages (testconsensus) that build block headers without
// going through a mining loop.
func ExpectedDifficulty(c Consensus, parentHash *externalapi.DomainHash) (uint64, error) {
	impl, ok := c.(*consensusImpl)
	if !ok {
		return 0, consensuserrors.Newf(consensuserrors.ErrInvariantViolation,
			"ExpectedDifficulty: %T is not a *consensusImpl", c)
	}
	return impl.expectedDifficulty(parentHash)
}

func (c *consensusImpl) emitReceipts(blockHash *externalapi.DomainHash, block *externalapi.DomainBlock, result *execution.BlockResult) {
	log.Infof("block %s admitted at %d transactions, dispatch=%s (%s)",
		blockHash, len(block.Transactions), dispatchModeString(result.Parallel), result.Reason)
	for i, txResult := range result.Results {
		if txResult == nil {
			continue
		}
		tx := block.Transactions[i]
		c.events.emit(TransactionExecuted{
			BlockHash: *blockHash,
			Receipt: externalapi.DomainReceipt{
				TransactionID: txResult.TransactionID,
				Success:       txResult.Outcome == execution.OutcomeExecuted,
				FeePaid:       tx.Fee,
				FeeAsset:      tx.FeeAsset,
				Error:         txResult.Err,
			},
		})
	}
}

func dispatchModeString(parallel bool) string {
	if parallel {
		return "parallel"
	}
	return "sequential"
}

// reject marks hash's admission attempt as a (non-orphan) rejection,
// emitting BlockOrphaned for observability before returning the caller's
// error untouched.
func (c *consensusImpl) reject(hash *externalapi.DomainHash, err error) (externalapi.BlockStatus, error) {
	c.events.emit(BlockOrphaned{Hash: *hash, Reason: err})
	return externalapi.BlockStatusRejected, err
}

// orphan marks hash's admission attempt as pending missingParent: block is
// held in the orphan pool, keyed by the parent it is waiting on, and will be
// retried automatically once that parent is admitted (retryOrphans). A block
// missing more than one parent is indexed under whichever one addBlockLocked
// discovered missing first; it is retried again, and re-orphaned under the
// next missing parent, if that was not its only gap.
func (c *consensusImpl) orphan(hash, missingParent *externalapi.DomainHash, block *externalapi.DomainBlock, err error) (externalapi.BlockStatus, error) {
	if !c.orphanedHashes[*hash] {
		c.orphanedHashes[*hash] = true
		c.orphansByParent[*missingParent] = append(c.orphansByParent[*missingParent], block)
	}
	c.syncState = externalapi.SyncStateMissingParent
	c.events.emit(BlockOrphaned{Hash: *hash, Reason: err})
	return externalapi.BlockStatusOrphaned, err
}

// retryOrphans re-attempts admission of every block held in the orphan pool
// awaiting parentHash, now that parentHash itself has been committed.
// Acceptance may uncover a chain of further-dependent orphans (one block
// unblocks another), each retried in turn by addBlockLocked's own call to
// retryOrphans; genuinely invalid orphans are dropped and logged rather than
// retried again.
func (c *consensusImpl) retryOrphans(parentHash *externalapi.DomainHash) {
	pending, ok := c.orphansByParent[*parentHash]
	if !ok {
		return
	}
	delete(c.orphansByParent, *parentHash)

	for _, block := range pending {
		orphanHash := consensushashing.BlockHash(block.Header)
		delete(c.orphanedHashes, *orphanHash)
		if _, err := c.addBlockLocked(block); err != nil {
			log.Debugf("orphan %s did not re-admit after parent %s arrived: %s", orphanHash, parentHash, err)
		}
	}

	if len(c.orphanedHashes) == 0 {
		c.syncState = externalapi.SyncStateNormal
	}
}

// GetSyncInfo reports whether the consensus currently has orphan blocks
// pending a missing parent.
func (c *consensusImpl) GetSyncInfo() externalapi.SyncInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return externalapi.SyncInfo{State: c.syncState}
}

// GetBlock returns the stored block identified by hash.
func (c *consensusImpl) GetBlock(hash *externalapi.DomainHash) (*externalapi.DomainBlock, error) {
	block, found, err := c.store.Block(c.store.DB(), hash)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errMissingBlock(hash)
	}
	return block, nil
}

// GetBlockByTopoHeight returns the block committed at topoHeight.
func (c *consensusImpl) GetBlockByTopoHeight(topoHeight uint64) (*externalapi.DomainBlock, error) {
	hash, found, err := c.store.BlockHashByTopoHeight(c.store.DB(), topoHeight)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, consensuserrors.Newf(consensuserrors.ErrMissingParent, "no block at topoheight %d", topoHeight)
	}
	return c.GetBlock(hash)
}

// GetBalance returns account's balance in asset as of topoheight at.
func (c *consensusImpl) GetBalance(account externalapi.DomainAddress, asset externalapi.DomainAssetID, at uint64) (uint64, error) {
	return c.store.BalanceAt(c.store.DB(), account, asset, at)
}

// GetNonce returns account's nonce as of topoheight at.
func (c *consensusImpl) GetNonce(account externalapi.DomainAddress, at uint64) (uint64, error) {
	return c.store.NonceAt(c.store.DB(), account, at)
}

// GetTips returns the current tip set.
func (c *consensusImpl) GetTips() ([]*externalapi.DomainHash, error) {
	return c.store.Tips(c.store.DB())
}

// GetTopBlock returns the tip with the greatest (blue_work, -hash_lex), the
// same ordering GHOSTDAG uses to choose a selected parent.
func (c *consensusImpl) GetTopBlock() (*externalapi.DomainBlock, error) {
	tips, err := c.store.Tips(c.store.DB())
	if err != nil {
		return nil, err
	}
	if len(tips) == 0 {
		return nil, consensuserrors.Newf(consensuserrors.ErrMissingParent, "no tips: chain has no blocks yet")
	}
	best, err := c.ghostdagManager.ChooseSelectedParent(tips...)
	if err != nil {
		return nil, err
	}
	return c.GetBlock(best)
}

// Events returns the channel BlockAdded/BlockOrphaned/TransactionExecuted/
// TipChanged notifications are delivered on.
func (c *consensusImpl) Events() <-chan Event {
	return c.events.subscribe()
}

// Close releases the underlying storage handle.
func (c *consensusImpl) Close() error {
	return c.store.Close()
}

func derefHashes(hashes []*externalapi.DomainHash) []externalapi.DomainHash {
	out := make([]externalapi.DomainHash, len(hashes))
	for i, hash := range hashes {
		out[i] = *hash
	}
	return out
}

// Factory instantiates a Consensus over a concrete storage backend.
// Grounded on the teacher's domain/consensus.Factory.
type Factory interface {
	NewConsensus(params *dagconfig.Params, dataDir string) (Consensus, error)
	NewTestConsensus(params *dagconfig.Params, testName string) (Consensus, error)
}

type factory struct{}

// NewFactory returns the default Factory implementation.
func NewFactory() Factory {
	return &factory{}
}

// NewConsensus opens a goleveldb-backed Consensus rooted at dataDir.
func (f *factory) NewConsensus(params *dagconfig.Params, dataDir string) (Consensus, error) {
	store, err := storage.OpenPersistent(dataDir)
	if err != nil {
		return nil, err
	}
	return newConsensusImpl(params, store), nil
}

// NewTestConsensus opens a throwaway bbolt-backed Consensus under the
// system temp directory, named after testName so parallel test packages
// don't collide (spec.md §9: test fixtures never share a real production
// database).
func (f *factory) NewTestConsensus(params *dagconfig.Params, testName string) (Consensus, error) {
	dir := filepath.Join(os.TempDir(), "tos-test-consensus")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	store, err := storage.OpenMock(filepath.Join(dir, testName+".db"))
	if err != nil {
		return nil, err
	}
	return newConsensusImpl(params, store), nil
}
