package storage

import (
	"bytes"
	"sync"

	"github.com/pkg/errors"
	"github.com/tos-network/tos/consensuserrors"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/wire"
)

// DBReader is the read-only surface every ChainStore accessor needs: either
// a Database handle for a direct read, or an open Transaction for a
// snapshot read mid-commit. Grounded on the teacher's model.DBReader
// convention (dbContext as a method's first argument).
type DBReader = DataAccessor

// ChainStore is the persistent half of spec.md §4.6: blocks, GHOSTDAG data,
// versioned balances/nonces, assets, multisig configs, tips, and the
// topoheight index, plus the single-writer CommitBlock protocol of
// §4.6(c). Grounded on the teacher's database.DomainDBContext /
// blockprocessor.commitAllChanges single-writer discipline.
type ChainStore struct {
	db Database

	// writeMu enforces §5's "per-chain write lock": block admission is
	// serialized, one CommitBlock in flight at a time, while readers (RPC,
	// mempool, parallel executor snapshot reads) proceed unblocked.
	writeMu sync.Mutex
}

// NewChainStore wraps an already-open Database.
func NewChainStore(db Database) *ChainStore {
	return &ChainStore{db: db}
}

// Close releases the underlying database handle.
func (s *ChainStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying Database handle, for callers (the execution
// engine, the consensus facade) that need a DBReader to build a
// ParallelChainState snapshot read outside of any ChainStore accessor.
func (s *ChainStore) DB() Database {
	return s.db
}

// Block returns the stored block, or (nil, false, nil) if absent.
func (s *ChainStore) Block(dbContext DBReader, hash *externalapi.DomainHash) (*externalapi.DomainBlock, bool, error) {
	raw, found, err := dbContext.Get(bucketBlocks.Key(hash[:]))
	if err != nil {
		return nil, false, wrapStorageError(err, "reading block %s", hash)
	}
	if !found {
		return nil, false, nil
	}
	block, err := wire.DeserializeBlock(bytes.NewReader(raw))
	if err != nil {
		return nil, false, errors.Wrapf(err, "storage: deserializing stored block %s", hash)
	}
	return block, true, nil
}

func (s *ChainStore) stageBlock(tx Transaction, hash *externalapi.DomainHash, block *externalapi.DomainBlock) error {
	var buf bytes.Buffer
	if err := wire.SerializeBlock(&buf, block); err != nil {
		return errors.Wrapf(err, "storage: serializing block %s", hash)
	}
	if err := tx.Put(bucketBlocks.Key(hash[:]), buf.Bytes()); err != nil {
		return wrapStorageError(err, "staging block %s", hash)
	}
	return nil
}

// GHOSTDAGData returns a block's GHOSTDAG record, or (nil, false, nil) if
// absent.
func (s *ChainStore) GHOSTDAGData(dbContext DBReader, hash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, bool, error) {
	raw, found, err := dbContext.Get(bucketGHOSTDAG.Key(hash[:]))
	if err != nil {
		return nil, false, wrapStorageError(err, "reading ghostdag data %s", hash)
	}
	if !found {
		return nil, false, nil
	}
	data, err := decodeGHOSTDAGData(raw)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *ChainStore) stageGHOSTDAGData(tx Transaction, hash *externalapi.DomainHash, data *externalapi.BlockGHOSTDAGData) error {
	if err := tx.Put(bucketGHOSTDAG.Key(hash[:]), encodeGHOSTDAGData(data)); err != nil {
		return wrapStorageError(err, "staging ghostdag data %s", hash)
	}
	return nil
}

// BalanceAt reads an account's balance in a given asset as of topoheight
// at: the value recorded at the largest topoheight ≤ at, or 0 if the
// account never received a record (spec.md §4.6(b)).
func (s *ChainStore) BalanceAt(dbContext DBReader, account externalapi.DomainAddress, asset externalapi.DomainAssetID, at uint64) (uint64, error) {
	value, found, err := readLatestVersion(dbContext, bucketVersionedBalance, versionedPrefix(account, &asset), versionedKey(account, asset, at))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return decodeUint64(value)
}

// NonceAt reads an account's nonce as of topoheight at, or 0 if the account
// has never sent a transaction.
func (s *ChainStore) NonceAt(dbContext DBReader, account externalapi.DomainAddress, at uint64) (uint64, error) {
	value, found, err := readLatestVersion(dbContext, bucketVersionedNonce, versionedPrefix(account, nil), nonceKey(account, at))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}
	return decodeUint64(value)
}

// readLatestVersion seeks the smallest stored key ≥ seekKey within bucket,
// then confirms it still falls under prefix (otherwise the series has no
// recorded version at or before the requested topoheight).
func readLatestVersion(dbContext DBReader, bucket Bucket, prefix, seekKey []byte) ([]byte, bool, error) {
	cursor, err := dbContext.Cursor(bucket.Name())
	if err != nil {
		return nil, false, wrapStorageError(err, "opening %s cursor", bucket.Name())
	}
	defer cursor.Close()

	found, err := cursor.Seek(seekKey)
	if err != nil {
		return nil, false, wrapStorageError(err, "seeking %s", bucket.Name())
	}
	if !found {
		return nil, false, nil
	}
	key, err := cursor.Key()
	if err != nil {
		return nil, false, err
	}
	if !bytes.HasPrefix(key, prefix) {
		return nil, false, nil
	}
	value, err := cursor.Value()
	if err != nil {
		return nil, false, err
	}
	return append([]byte(nil), value...), true, nil
}

func (s *ChainStore) stageBalance(tx Transaction, account externalapi.DomainAddress, asset externalapi.DomainAssetID, topoHeight, balance uint64) error {
	key := bucketVersionedBalance.Key(versionedKey(account, asset, topoHeight))
	if err := tx.Put(key, encodeUint64(balance)); err != nil {
		return wrapStorageError(err, "staging balance version for %x", account)
	}
	return nil
}

func (s *ChainStore) stageNonce(tx Transaction, account externalapi.DomainAddress, topoHeight, nonce uint64) error {
	key := bucketVersionedNonce.Key(nonceKey(account, topoHeight))
	if err := tx.Put(key, encodeUint64(nonce)); err != nil {
		return wrapStorageError(err, "staging nonce version for %x", account)
	}
	return nil
}

// Asset returns a registered asset's metadata, or (nil, false, nil) if
// unregistered.
func (s *ChainStore) Asset(dbContext DBReader, asset externalapi.DomainAssetID) (*externalapi.DomainAssetData, bool, error) {
	raw, found, err := dbContext.Get(bucketAssets.Key(asset[:]))
	if err != nil {
		return nil, false, wrapStorageError(err, "reading asset %x", asset)
	}
	if !found {
		return nil, false, nil
	}
	data, err := decodeAssetData(raw)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *ChainStore) stageAsset(tx Transaction, asset externalapi.DomainAssetID, data *externalapi.DomainAssetData) error {
	if err := tx.Put(bucketAssets.Key(asset[:]), encodeAssetData(data)); err != nil {
		return wrapStorageError(err, "staging asset %x", asset)
	}
	return nil
}

// MultiSigConfig returns an account's multisig policy, or (nil, false, nil)
// if the account is not configured for multisig.
func (s *ChainStore) MultiSigConfig(dbContext DBReader, account externalapi.DomainAddress) (*externalapi.DomainMultiSigConfig, bool, error) {
	raw, found, err := dbContext.Get(bucketMultiSigs.Key(account[:]))
	if err != nil {
		return nil, false, wrapStorageError(err, "reading multisig config %x", account)
	}
	if !found {
		return nil, false, nil
	}
	cfg, err := decodeMultiSigConfig(raw)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

func (s *ChainStore) stageMultiSigConfig(tx Transaction, account externalapi.DomainAddress, cfg *externalapi.DomainMultiSigConfig) error {
	if err := tx.Put(bucketMultiSigs.Key(account[:]), encodeMultiSigConfig(cfg)); err != nil {
		return wrapStorageError(err, "staging multisig config %x", account)
	}
	return nil
}

// Tips returns the current tip set.
func (s *ChainStore) Tips(dbContext DBReader) ([]*externalapi.DomainHash, error) {
	raw, found, err := dbContext.Get(bucketTips.Key([]byte("current")))
	if err != nil {
		return nil, wrapStorageError(err, "reading tips")
	}
	if !found {
		return nil, nil
	}
	tips, err := readHashList(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "storage: decoding tips")
	}
	return tips, nil
}

func (s *ChainStore) stageTips(tx Transaction, tips []*externalapi.DomainHash) error {
	var buf bytes.Buffer
	writeHashList(&buf, tips)
	if err := tx.Put(bucketTips.Key([]byte("current")), buf.Bytes()); err != nil {
		return wrapStorageError(err, "staging tips")
	}
	return nil
}

// BlockHashByTopoHeight resolves the block selected at topoHeight on the
// current best chain, or (nil, false, nil) if no block has been committed
// at that height.
func (s *ChainStore) BlockHashByTopoHeight(dbContext DBReader, topoHeight uint64) (*externalapi.DomainHash, bool, error) {
	raw, found, err := dbContext.Get(bucketTopoHeightIndex.Key(encodeUint64(topoHeight)))
	if err != nil {
		return nil, false, wrapStorageError(err, "reading topoheight index %d", topoHeight)
	}
	if !found {
		return nil, false, nil
	}
	hash, err := externalapi.NewDomainHashFromByteSlice(raw)
	if err != nil {
		return nil, false, errors.Wrap(err, "storage: decoding topoheight index entry")
	}
	return hash, true, nil
}

func (s *ChainStore) stageTopoHeightIndex(tx Transaction, topoHeight uint64, hash *externalapi.DomainHash) error {
	if err := tx.Put(bucketTopoHeightIndex.Key(encodeUint64(topoHeight)), hash[:]); err != nil {
		return wrapStorageError(err, "staging topoheight index %d", topoHeight)
	}
	return nil
}

// BlockCommit bundles everything CommitBlock needs to apply atomically:
// the block itself, its GHOSTDAG data, the balances/nonces the
// ParallelChainState overlay modified, any asset/multisig records touched,
// the topoheight it lands at, and the resulting tip set.
type BlockCommit struct {
	Hash             *externalapi.DomainHash
	Block            *externalapi.DomainBlock
	GHOSTDAGData     *externalapi.BlockGHOSTDAGData
	TopoHeight       uint64
	ModifiedBalances map[AccountAsset]uint64
	ModifiedNonces   map[externalapi.DomainAddress]uint64
	ModifiedAssets   map[externalapi.DomainAssetID]*externalapi.DomainAssetData
	ModifiedMultiSig map[externalapi.DomainAddress]*externalapi.DomainMultiSigConfig
	NewTips          []*externalapi.DomainHash
}

// AccountAsset is the composite key a ParallelChainState overlay indexes
// balances by.
type AccountAsset struct {
	Account externalapi.DomainAddress
	Asset   externalapi.DomainAssetID
}

// CommitBlock implements spec.md §4.6(c)'s commit protocol: acquire the
// write lock, open a batch, append every modified version record plus the
// block/GHOSTDAG data/topoheight index/tips, and commit atomically. On any
// failure the batch is rolled back and ErrStorageError surfaces; the block
// is considered unapplied.
func (s *ChainStore) CommitBlock(commit *BlockCommit) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return wrapStorageError(err, "opening commit transaction for block %s", commit.Hash)
	}
	defer tx.RollbackUnlessClosed()

	for key, balance := range commit.ModifiedBalances {
		if err := s.stageBalance(tx, key.Account, key.Asset, commit.TopoHeight, balance); err != nil {
			return err
		}
	}
	for account, nonce := range commit.ModifiedNonces {
		if err := s.stageNonce(tx, account, commit.TopoHeight, nonce); err != nil {
			return err
		}
	}
	for asset, data := range commit.ModifiedAssets {
		if err := s.stageAsset(tx, asset, data); err != nil {
			return err
		}
	}
	for account, cfg := range commit.ModifiedMultiSig {
		if err := s.stageMultiSigConfig(tx, account, cfg); err != nil {
			return err
		}
	}
	if err := s.stageBlock(tx, commit.Hash, commit.Block); err != nil {
		return err
	}
	if err := s.stageGHOSTDAGData(tx, commit.Hash, commit.GHOSTDAGData); err != nil {
		return err
	}
	if err := s.stageTopoHeightIndex(tx, commit.TopoHeight, commit.Hash); err != nil {
		return err
	}
	if err := s.stageTips(tx, commit.NewTips); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return wrapStorageError(err, "committing block %s", commit.Hash)
	}
	log.Infof("committed block %s at topoheight %d (%d balances, %d nonces, %d tips)",
		commit.Hash, commit.TopoHeight, len(commit.ModifiedBalances), len(commit.ModifiedNonces), len(commit.NewTips))
	return nil
}

func wrapStorageError(err error, format string, args ...interface{}) error {
	return consensuserrors.Newf(consensuserrors.ErrStorageError, "storage: "+format+": %s", append(args, err)...)
}
