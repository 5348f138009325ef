package dagconfig

import (
	"github.com/tos-network/tos/consensushashing"
	"github.com/tos-network/tos/externalapi"
)

// newGenesisBlock builds the sole parentless block for a network: zero
// parents, zero merkle roots (there is no prior balances state and no
// transactions to commit to), and a network-distinguishing extra nonce so
// that mainnet, testnet, and devnet genesis blocks never collide on hash
// despite otherwise-identical headers. Mirrors the teacher's genesisBlock
// var in genesis.go, generalized from a single shared genesis (the teacher
// reuses one genesisHash/genesisBlock across regtest/testnet3/simnet) to one
// genesis per network, since TOS's ChainID is carried in transactions rather
// than in a separate wire magic.
func newGenesisBlock(chainID uint8, timeInMilliseconds int64) *externalapi.DomainBlock {
	var extraNonce [32]byte
	extraNonce[0] = chainID

	header := &externalapi.DomainBlockHeader{
		Version:            1,
		Parents:            nil,
		TimeInMilliseconds: timeInMilliseconds,
		ExtraNonce:         extraNonce,
		MinerPublicKey:     externalapi.DomainAddress{},
		TipsMerkleRoot:     externalapi.ZeroHash,
		BalancesMerkleRoot: externalapi.ZeroHash,
		Difficulty:         0,
		VRFProof:           nil,
	}
	return &externalapi.DomainBlock{Header: header, Transactions: nil}
}

// genesisTimeInMilliseconds is a fixed point in time (2026-01-01T00:00:00Z)
// shared by every network's genesis block; only the ChainID-derived extra
// nonce distinguishes them.
const genesisTimeInMilliseconds = 1767225600000

func init() {
	MainNetParams.GenesisBlock = newGenesisBlock(MainNetParams.ChainID, genesisTimeInMilliseconds)
	MainNetParams.GenesisHash = *consensushashing.BlockHash(MainNetParams.GenesisBlock.Header)

	TestNetParams.GenesisBlock = newGenesisBlock(TestNetParams.ChainID, genesisTimeInMilliseconds)
	TestNetParams.GenesisHash = *consensushashing.BlockHash(TestNetParams.GenesisBlock.Header)

	DevNetParams.GenesisBlock = newGenesisBlock(DevNetParams.ChainID, genesisTimeInMilliseconds)
	DevNetParams.GenesisHash = *consensushashing.BlockHash(DevNetParams.GenesisBlock.Header)
}
