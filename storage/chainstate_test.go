package storage

import (
	"math/big"
	"path/filepath"
	"testing"

	"github.com/tos-network/tos/externalapi"
)

func newTestStore(t *testing.T) *ChainStore {
	t.Helper()
	store, err := OpenMock(filepath.Join(t.TempDir(), "chainstate.db"))
	if err != nil {
		t.Fatalf("OpenMock: %s", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func addressFromByte(b byte) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	a[31] = b
	return a
}

func hashFromByte(b byte) *externalapi.DomainHash {
	var h externalapi.DomainHash
	h[31] = b
	return &h
}

func TestBalanceAtReadsLargestVersionAtOrBeforeTopoHeight(t *testing.T) {
	store := newTestStore(t)
	account := addressFromByte(1)
	asset := externalapi.TOSAsset

	tx := mustBegin(t, store)
	mustStageBalance(t, store, tx, account, asset, 10, 100)
	mustStageBalance(t, store, tx, account, asset, 20, 200)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}

	cases := []struct {
		at       uint64
		expected uint64
	}{
		{at: 5, expected: 0},
		{at: 10, expected: 100},
		{at: 15, expected: 100},
		{at: 20, expected: 200},
		{at: 1000, expected: 200},
	}
	for _, c := range cases {
		got, err := store.BalanceAt(store.db, account, asset, c.at)
		if err != nil {
			t.Fatalf("BalanceAt(%d): %s", c.at, err)
		}
		if got != c.expected {
			t.Errorf("BalanceAt(%d): expected %d, got %d", c.at, c.expected, got)
		}
	}
}

func TestBalanceAtIsolatesDistinctAssetsAndAccounts(t *testing.T) {
	store := newTestStore(t)
	accountA, accountB := addressFromByte(1), addressFromByte(2)
	assetX, assetY := externalapi.DomainAssetID{1}, externalapi.DomainAssetID{2}

	tx := mustBegin(t, store)
	mustStageBalance(t, store, tx, accountA, assetX, 1, 10)
	mustStageBalance(t, store, tx, accountA, assetY, 1, 20)
	mustStageBalance(t, store, tx, accountB, assetX, 1, 30)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}

	for _, c := range []struct {
		account  externalapi.DomainAddress
		asset    externalapi.DomainAssetID
		expected uint64
	}{
		{accountA, assetX, 10},
		{accountA, assetY, 20},
		{accountB, assetX, 30},
		{accountB, assetY, 0},
	} {
		got, err := store.BalanceAt(store.db, c.account, c.asset, 1)
		if err != nil {
			t.Fatalf("BalanceAt: %s", err)
		}
		if got != c.expected {
			t.Errorf("BalanceAt(%x, %x): expected %d, got %d", c.account, c.asset, c.expected, got)
		}
	}
}

func TestCommitBlockPersistsBlockGHOSTDAGDataAndTips(t *testing.T) {
	store := newTestStore(t)

	hash := hashFromByte(1)
	account := addressFromByte(7)
	block := &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{Version: 1, TimeInMilliseconds: 1000},
	}
	ghostdagData := externalapi.NewBlockGHOSTDAGData(1, big.NewInt(5), nil, nil, nil, nil)

	err := store.CommitBlock(&BlockCommit{
		Hash:         hash,
		Block:        block,
		GHOSTDAGData: ghostdagData,
		TopoHeight:   1,
		ModifiedBalances: map[AccountAsset]uint64{
			{Account: account, Asset: externalapi.TOSAsset}: 500,
		},
		ModifiedNonces: map[externalapi.DomainAddress]uint64{account: 1},
		NewTips:        []*externalapi.DomainHash{hash},
	})
	if err != nil {
		t.Fatalf("CommitBlock: %s", err)
	}

	gotBlock, found, err := store.Block(store.db, hash)
	if err != nil || !found {
		t.Fatalf("Block: found=%v err=%s", found, err)
	}
	if gotBlock.Header.TimeInMilliseconds != 1000 {
		t.Errorf("expected timestamp 1000, got %d", gotBlock.Header.TimeInMilliseconds)
	}

	gotData, found, err := store.GHOSTDAGData(store.db, hash)
	if err != nil || !found {
		t.Fatalf("GHOSTDAGData: found=%v err=%s", found, err)
	}
	if gotData.BlueScore() != 1 || gotData.BlueWork().Cmp(big.NewInt(5)) != 0 {
		t.Errorf("unexpected ghostdag data: blueScore=%d blueWork=%s", gotData.BlueScore(), gotData.BlueWork())
	}

	balance, err := store.BalanceAt(store.db, account, externalapi.TOSAsset, 1)
	if err != nil || balance != 500 {
		t.Fatalf("BalanceAt after commit: balance=%d err=%s", balance, err)
	}
	nonce, err := store.NonceAt(store.db, account, 1)
	if err != nil || nonce != 1 {
		t.Fatalf("NonceAt after commit: nonce=%d err=%s", nonce, err)
	}

	tips, err := store.Tips(store.db)
	if err != nil {
		t.Fatalf("Tips: %s", err)
	}
	if len(tips) != 1 || !tips[0].Equal(hash) {
		t.Errorf("expected tips [%s], got %v", hash, tips)
	}

	byHeight, found, err := store.BlockHashByTopoHeight(store.db, 1)
	if err != nil || !found || !byHeight.Equal(hash) {
		t.Fatalf("BlockHashByTopoHeight: found=%v err=%s hash=%v", found, err, byHeight)
	}
}

func TestPruneKeepsLatestVersionPerSeries(t *testing.T) {
	store := newTestStore(t)
	account := addressFromByte(3)
	asset := externalapi.TOSAsset

	tx := mustBegin(t, store)
	mustStageBalance(t, store, tx, account, asset, 5, 50)
	mustStageBalance(t, store, tx, account, asset, 10, 100)
	mustStageBalance(t, store, tx, account, asset, 15, 150)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %s", err)
	}

	if err := store.Prune(12); err != nil {
		t.Fatalf("Prune: %s", err)
	}

	// The latest version (at 15) must survive pruning even though its
	// topoheight is itself within the retention cutoff's neighborhood.
	got, err := store.BalanceAt(store.db, account, asset, 1000)
	if err != nil || got != 150 {
		t.Fatalf("BalanceAt after prune: got %d, err %s", got, err)
	}

	// A read pinned before the pruned versions now falls through to the
	// default (no-record) balance, since both backing versions were old
	// enough to be dropped.
	got, err = store.BalanceAt(store.db, account, asset, 7)
	if err != nil {
		t.Fatalf("BalanceAt after prune: %s", err)
	}
	if got != 0 {
		t.Errorf("expected pruned-away read to fall back to 0, got %d", got)
	}
}

func mustBegin(t *testing.T, store *ChainStore) Transaction {
	t.Helper()
	tx, err := store.db.Begin()
	if err != nil {
		t.Fatalf("Begin: %s", err)
	}
	return tx
}

func mustStageBalance(t *testing.T, store *ChainStore, tx Transaction, account externalapi.DomainAddress, asset externalapi.DomainAssetID, topoHeight, balance uint64) {
	t.Helper()
	if err := store.stageBalance(tx, account, asset, topoHeight, balance); err != nil {
		t.Fatalf("stageBalance: %s", err)
	}
}
