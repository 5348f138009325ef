package consensus

import (
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/tos-network/tos/consensushashing"
	"github.com/tos-network/tos/crypto/schnorr"
	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
	"github.com/tos-network/tos/wire"
)

func addressFromByte(b byte) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	a[31] = b
	return a
}

// signedTransfersTx builds a transfers transaction from source's keypair and
// signs it for devnet, so it passes the CheckBatch gate AddBlock runs on
// every block's transactions before admission.
func signedTransfersTx(t *testing.T, source *schnorr.PrivateKey, nonce uint64, transfers ...externalapi.Transfer) *externalapi.DomainTransaction {
	t.Helper()
	tx := transfersTx(sourceAddress(source), nonce, transfers...)
	tx.ChainID = dagconfig.DevNetParams.ChainID
	sign(t, source, tx)
	return tx
}

func sourceAddress(priv *schnorr.PrivateKey) externalapi.DomainAddress {
	var a externalapi.DomainAddress
	copy(a[:], priv.PublicKey().Encode())
	return a
}

func sign(t *testing.T, priv *schnorr.PrivateKey, tx *externalapi.DomainTransaction) {
	t.Helper()
	var buf signBuffer
	if err := wire.SerializeTransactionForID(&buf, tx); err != nil {
		t.Fatalf("SerializeTransactionForID: %s", err)
	}
	sig, err := schnorr.Sign(priv, buf.data)
	if err != nil {
		t.Fatalf("Sign: %s", err)
	}
	tx.Signature = sig.Encode()
}

type signBuffer struct{ data []byte }

func (b *signBuffer) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func newTestConsensus(t *testing.T) Consensus {
	t.Helper()
	c, err := NewFactory().NewTestConsensus(&dagconfig.DevNetParams, t.Name())
	if err != nil {
		t.Fatalf("NewTestConsensus: %s", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func transfersTx(source externalapi.DomainAddress, nonce uint64, transfers ...externalapi.Transfer) *externalapi.DomainTransaction {
	payload, err := wire.EncodeTransferPayload(&externalapi.TransferPayload{Transfers: transfers})
	if err != nil {
		panic(err)
	}
	return &externalapi.DomainTransaction{
		Version:  1,
		Source:   source,
		Type:     externalapi.TransactionTypeTransfers,
		Payload:  payload,
		Fee:      10,
		FeeAsset: externalapi.TOSAsset,
		Nonce:    nonce,
	}
}

func genesisBlock(miner externalapi.DomainAddress) *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            1,
			TimeInMilliseconds: time.Now().UnixMilli(),
			MinerPublicKey:     miner,
			Difficulty:         dagconfig.DevNetParams.MinDifficulty,
		},
	}
}

func childBlock(miner externalapi.DomainAddress, parent *externalapi.DomainHash, txs ...*externalapi.DomainTransaction) *externalapi.DomainBlock {
	return &externalapi.DomainBlock{
		Header: &externalapi.DomainBlockHeader{
			Version:            1,
			Parents:            []externalapi.DomainHash{*parent},
			TimeInMilliseconds: time.Now().UnixMilli(),
			MinerPublicKey:     miner,
			Difficulty:         dagconfig.DevNetParams.MinDifficulty,
		},
		Transactions: txs,
	}
}

func TestAddBlockBootstrapsGenesis(t *testing.T) {
	c := newTestConsensus(t)
	miner := addressFromByte(1)

	status, err := c.AddBlock(genesisBlock(miner))
	if err != nil {
		t.Fatalf("AddBlock(genesis): %s", err)
	}
	if status != externalapi.BlockStatusAccepted {
		t.Fatalf("expected genesis to be accepted, got %s", status)
	}

	tips, err := c.GetTips()
	if err != nil {
		t.Fatalf("GetTips: %s", err)
	}
	if len(tips) != 1 {
		t.Fatalf("expected exactly one tip after genesis, got %d", len(tips))
	}

	top, err := c.GetTopBlock()
	if err != nil {
		t.Fatalf("GetTopBlock: %s", err)
	}
	if len(top.Header.Parents) != 0 {
		t.Errorf("expected the top block to be genesis (no parents), got %d parents", len(top.Header.Parents))
	}
}

func TestAddBlockRejectsASecondGenesis(t *testing.T) {
	c := newTestConsensus(t)
	miner := addressFromByte(1)

	if _, err := c.AddBlock(genesisBlock(miner)); err != nil {
		t.Fatalf("AddBlock(genesis): %s", err)
	}

	second := genesisBlock(miner)
	second.Header.ExtraNonce[0] = 1
	if _, err := c.AddBlock(second); err == nil {
		t.Fatal("expected a second zero-parent block to be rejected")
	}
}

func TestAddBlockExtendsChainWithAnOrphanedTransfer(t *testing.T) {
	c := newTestConsensus(t)
	miner, bob := addressFromByte(1), addressFromByte(3)
	alicePriv, err := schnorr.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %s", err)
	}
	alice := sourceAddress(alicePriv)

	if _, err := c.AddBlock(genesisBlock(miner)); err != nil {
		t.Fatalf("AddBlock(genesis): %s", err)
	}
	tips, err := c.GetTips()
	if err != nil {
		t.Fatalf("GetTips: %s", err)
	}
	genesisHash := tips[0]

	// Seeding alice's balance happens out of band in a real network via a
	// mint transaction; that is not available through the Consensus
	// interface, so the first block simply demonstrates that an orphaned
	// transfer does not advance the nonce and the block still extends the
	// chain.
	block1 := childBlock(miner, genesisHash, signedTransfersTx(t, alicePriv, 0, externalapi.Transfer{
		Receiver: bob, Asset: externalapi.TOSAsset, Amount: 100,
	}))
	status, err := c.AddBlock(block1)
	if err != nil {
		t.Fatalf("AddBlock(block1): %s", err)
	}
	if status != externalapi.BlockStatusAccepted {
		t.Fatalf("expected block1 to be accepted even though its transfer orphans, got %s", status)
	}

	nonce, err := c.GetNonce(alice, 1)
	if err != nil {
		t.Fatalf("GetNonce: %s", err)
	}
	if nonce != 0 {
		t.Errorf("alice has no fee balance, so the orphaned transfer must not advance her nonce: got %d", nonce)
	}

	tips, err = c.GetTips()
	if err != nil {
		t.Fatalf("GetTips: %s", err)
	}
	if len(tips) != 1 || !tips[0].Equal(consensushashing.BlockHash(block1.Header)) {
		t.Errorf("expected block1 to be the sole tip after extending genesis, got:\n%s", spew.Sdump(tips))
	}
}

func TestAddBlockRejectsUnknownParent(t *testing.T) {
	c := newTestConsensus(t)
	miner := addressFromByte(1)

	var unknown externalapi.DomainHash
	unknown[0] = 0xFF
	block := childBlock(miner, &unknown)

	status, err := c.AddBlock(block)
	if err == nil {
		t.Fatal("expected a block with an unknown parent to fail admission")
	}
	if status != externalapi.BlockStatusOrphaned {
		t.Errorf("expected an unknown-parent failure to report BlockStatusOrphaned, got %s", status)
	}
}

// TestAddBlockRetriesOrphanOnceMissingParentArrives exercises spec.md
// §9.1's two-state sync model end to end: a block that names genesis as its
// parent before genesis has been admitted is held as an orphan rather than
// permanently rejected, and is admitted automatically the moment genesis is
// committed.
func TestAddBlockRetriesOrphanOnceMissingParentArrives(t *testing.T) {
	c := newTestConsensus(t)
	miner := addressFromByte(1)

	genesis := genesisBlock(miner)
	genesisHash := consensushashing.BlockHash(genesis.Header)

	child := childBlock(miner, genesisHash)
	child.Header.TimeInMilliseconds = genesis.Header.TimeInMilliseconds + 1
	childHash := consensushashing.BlockHash(child.Header)

	status, err := c.AddBlock(child)
	if err == nil {
		t.Fatal("expected the child to be orphaned before genesis is known")
	}
	if status != externalapi.BlockStatusOrphaned {
		t.Fatalf("expected BlockStatusOrphaned, got %s", status)
	}
	if info := c.GetSyncInfo(); info.State != externalapi.SyncStateMissingParent {
		t.Fatalf("expected SyncStateMissingParent while the orphan is pending, got %s", info.State)
	}

	if _, err := c.AddBlock(genesis); err != nil {
		t.Fatalf("AddBlock(genesis): %s", err)
	}

	if _, err := c.GetBlock(childHash); err != nil {
		t.Fatalf("expected the orphan to have been retried and admitted once genesis arrived: %s", err)
	}
	if info := c.GetSyncInfo(); info.State != externalapi.SyncStateNormal {
		t.Errorf("expected SyncStateNormal once the orphan pool has drained, got %s", info.State)
	}

	tips, err := c.GetTips()
	if err != nil {
		t.Fatalf("GetTips: %s", err)
	}
	if len(tips) != 1 || !tips[0].Equal(childHash) {
		t.Errorf("expected the retried child to be the sole tip, got:\n%s", spew.Sdump(tips))
	}
}

func TestGetBlockByTopoHeightMatchesAdmissionOrder(t *testing.T) {
	c := newTestConsensus(t)
	miner := addressFromByte(1)

	if _, err := c.AddBlock(genesisBlock(miner)); err != nil {
		t.Fatalf("AddBlock(genesis): %s", err)
	}
	genesisAtZero, err := c.GetBlockByTopoHeight(0)
	if err != nil {
		t.Fatalf("GetBlockByTopoHeight(0): %s", err)
	}
	if len(genesisAtZero.Header.Parents) != 0 {
		t.Errorf("expected topoheight 0 to be genesis")
	}

	tips, err := c.GetTips()
	if err != nil {
		t.Fatalf("GetTips: %s", err)
	}
	block1 := childBlock(miner, tips[0])
	if _, err := c.AddBlock(block1); err != nil {
		t.Fatalf("AddBlock(block1): %s", err)
	}
	if _, err := c.GetBlockByTopoHeight(1); err != nil {
		t.Fatalf("GetBlockByTopoHeight(1): %s", err)
	}
}
