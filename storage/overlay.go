package storage

import (
	"math/bits"
	"sync"

	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
)

// overlayShardCount is the number of sharded locks ParallelChainState
// spreads account/asset touches over (spec.md §5: "sharded locks keyed by
// (account, asset) to minimize contention"). A power of two so the shard
// index is a cheap mask.
const overlayShardCount = 64

// BalanceReader is the read-only storage surface ParallelChainState falls
// through to on an overlay miss: a snapshot at the block's stable
// topoheight.
type BalanceReader interface {
	BalanceAt(dbContext DBReader, account externalapi.DomainAddress, asset externalapi.DomainAssetID, at uint64) (uint64, error)
	NonceAt(dbContext DBReader, account externalapi.DomainAddress, at uint64) (uint64, error)
	Asset(dbContext DBReader, asset externalapi.DomainAssetID) (*externalapi.DomainAssetData, bool, error)
	MultiSigConfig(dbContext DBReader, account externalapi.DomainAddress) (*externalapi.DomainMultiSigConfig, bool, error)
}

// ParallelChainState is the mutable per-block overlay of spec.md §4.6(a): a
// copy-on-write view over a read-only storage snapshot at stableTopoHeight,
// mutated concurrently by a block's executor tasks. Grounded on the
// teacher's consensusstatemanager pending-UTXO-diff overlay, generalized
// from UTXO set deltas to versioned (account,asset)/account-keyed balance
// and nonce deltas.
type ParallelChainState struct {
	store            BalanceReader
	dbContext        DBReader
	stableTopoHeight uint64

	shards [overlayShardCount]sync.Mutex

	balances  map[AccountAsset]uint64
	nonces    map[externalapi.DomainAddress]uint64
	assets    map[externalapi.DomainAssetID]*externalapi.DomainAssetData
	multiSigs map[externalapi.DomainAddress]*externalapi.DomainMultiSigConfig
}

// NewParallelChainState constructs an overlay reading through to store at
// stableTopoHeight on a miss.
func NewParallelChainState(store BalanceReader, dbContext DBReader, stableTopoHeight uint64) *ParallelChainState {
	return &ParallelChainState{
		store:            store,
		dbContext:        dbContext,
		stableTopoHeight: stableTopoHeight,
		balances:         make(map[AccountAsset]uint64),
		nonces:           make(map[externalapi.DomainAddress]uint64),
		assets:           make(map[externalapi.DomainAssetID]*externalapi.DomainAssetData),
		multiSigs:        make(map[externalapi.DomainAddress]*externalapi.DomainMultiSigConfig),
	}
}

func shardIndex(account externalapi.DomainAddress, asset externalapi.DomainAssetID) int {
	var h uint64
	for _, b := range account {
		h = bits.RotateLeft64(h, 8) ^ uint64(b)
	}
	for _, b := range asset {
		h = bits.RotateLeft64(h, 8) ^ uint64(b)
	}
	return int(h % overlayShardCount)
}

func (s *ParallelChainState) lock(account externalapi.DomainAddress, asset externalapi.DomainAssetID) func() {
	shard := &s.shards[shardIndex(account, asset)]
	shard.Lock()
	return shard.Unlock
}

// GetBalance returns account's balance in asset, falling through to
// storage on an overlay miss.
func (s *ParallelChainState) GetBalance(account externalapi.DomainAddress, asset externalapi.DomainAssetID) (uint64, error) {
	unlock := s.lock(account, asset)
	defer unlock()
	return s.getBalanceLocked(account, asset)
}

func (s *ParallelChainState) getBalanceLocked(account externalapi.DomainAddress, asset externalapi.DomainAssetID) (uint64, error) {
	key := AccountAsset{Account: account, Asset: asset}
	if balance, ok := s.balances[key]; ok {
		return balance, nil
	}
	return s.store.BalanceAt(s.dbContext, account, asset, s.stableTopoHeight)
}

// GetNonce returns account's nonce, falling through to storage on an
// overlay miss.
func (s *ParallelChainState) GetNonce(account externalapi.DomainAddress) (uint64, error) {
	unlock := s.lock(account, externalapi.TOSAsset)
	defer unlock()
	return s.getNonceLocked(account)
}

func (s *ParallelChainState) getNonceLocked(account externalapi.DomainAddress) (uint64, error) {
	if nonce, ok := s.nonces[account]; ok {
		return nonce, nil
	}
	return s.store.NonceAt(s.dbContext, account, s.stableTopoHeight)
}

// SubBalance debits amount from account's balance in asset, failing with
// ErrInsufficientBalance rather than underflowing.
func (s *ParallelChainState) SubBalance(account externalapi.DomainAddress, asset externalapi.DomainAssetID, amount uint64) error {
	unlock := s.lock(account, asset)
	defer unlock()

	balance, err := s.getBalanceLocked(account, asset)
	if err != nil {
		return err
	}
	if balance < amount {
		return consensuserrors.Newf(consensuserrors.ErrInsufficientBalance,
			"account %x holds %d of asset %x, insufficient for a debit of %d", account, balance, asset, amount)
	}
	s.balances[AccountAsset{Account: account, Asset: asset}] = balance - amount
	return nil
}

// AddBalance credits amount to account's balance in asset, failing with
// ErrBalanceOverflow rather than wrapping past math.MaxUint64.
func (s *ParallelChainState) AddBalance(account externalapi.DomainAddress, asset externalapi.DomainAssetID, amount uint64) error {
	unlock := s.lock(account, asset)
	defer unlock()

	balance, err := s.getBalanceLocked(account, asset)
	if err != nil {
		return err
	}
	next := balance + amount
	if next < balance {
		return consensuserrors.Newf(consensuserrors.ErrBalanceOverflow,
			"crediting %d of asset %x to account %x overflows its balance of %d", amount, asset, account, balance)
	}
	s.balances[AccountAsset{Account: account, Asset: asset}] = next
	return nil
}

// AddGasFee credits a transaction's fee to beneficiary (the block's miner),
// sharing AddBalance's overflow-checked accounting.
func (s *ParallelChainState) AddGasFee(beneficiary externalapi.DomainAddress, asset externalapi.DomainAssetID, amount uint64) error {
	return s.AddBalance(beneficiary, asset, amount)
}

// IncrementNonce advances account's nonce by one, the bookkeeping step of
// every successfully executed transaction (spec.md invariant 4).
func (s *ParallelChainState) IncrementNonce(account externalapi.DomainAddress) error {
	unlock := s.lock(account, externalapi.TOSAsset)
	defer unlock()

	nonce, err := s.getNonceLocked(account)
	if err != nil {
		return err
	}
	s.nonces[account] = nonce + 1
	return nil
}

// GetAsset returns an asset's registration data, falling through to
// storage on an overlay miss.
func (s *ParallelChainState) GetAsset(asset externalapi.DomainAssetID) (*externalapi.DomainAssetData, bool, error) {
	if data, ok := s.assets[asset]; ok {
		return data, true, nil
	}
	return s.store.Asset(s.dbContext, asset)
}

// SetAsset registers or updates an asset (DeployContract/asset-creation
// transactions).
func (s *ParallelChainState) SetAsset(asset externalapi.DomainAssetID, data *externalapi.DomainAssetData) {
	s.assets[asset] = data
}

// GetMultiSigConfig returns an account's multisig policy, falling through
// to storage on an overlay miss.
func (s *ParallelChainState) GetMultiSigConfig(account externalapi.DomainAddress) (*externalapi.DomainMultiSigConfig, bool, error) {
	if cfg, ok := s.multiSigs[account]; ok {
		return cfg, true, nil
	}
	return s.store.MultiSigConfig(s.dbContext, account)
}

// SetMultiSigConfig installs or updates account's multisig policy.
func (s *ParallelChainState) SetMultiSigConfig(account externalapi.DomainAddress, cfg *externalapi.DomainMultiSigConfig) {
	s.multiSigs[account] = cfg
}

// GetModifiedBalances returns every (account, asset) balance the overlay
// wrote, for CommitBlock to append as new versioned records.
func (s *ParallelChainState) GetModifiedBalances() map[AccountAsset]uint64 {
	return s.balances
}

// GetModifiedNonces returns every account nonce the overlay wrote.
func (s *ParallelChainState) GetModifiedNonces() map[externalapi.DomainAddress]uint64 {
	return s.nonces
}

// GetModifiedAssets returns every asset record the overlay wrote.
func (s *ParallelChainState) GetModifiedAssets() map[externalapi.DomainAssetID]*externalapi.DomainAssetData {
	return s.assets
}

// GetModifiedMultiSigs returns every multisig config the overlay wrote.
func (s *ParallelChainState) GetModifiedMultiSigs() map[externalapi.DomainAddress]*externalapi.DomainMultiSigConfig {
	return s.multiSigs
}
