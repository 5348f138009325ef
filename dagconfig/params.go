// Package dagconfig defines the per-network constant sets the consensus core
// is parameterized over. It is grounded on the teacher's dagconfig/params.go:
// a single Params struct instantiated once per network and looked up by name,
// generalized from Bitcoin's proof-of-work/HD-wallet parameter set to TOS's
// GHOSTDAG/DAA/fee parameter set.
package dagconfig

import "github.com/tos-network/tos/externalapi"

// K is the GHOSTDAG k-cluster protocol constant (spec.md §4.3). Unlike the
// teacher, where phantomK is folded into the per-network Params (each of the
// teacher's test networks could in principle run a different k), TOS treats
// k as a global protocol constant shared by every network.
const K = 18

// DAAWindowSize is the sliding window size, in selected-parent-chain blocks,
// the difficulty adjustment algorithm retargets over (spec.md §4.4). It
// plays the role of the teacher's DifficultyAdjustmentWindowSize.
const DAAWindowSize = 2016

// PastMedianTimeWindowSize is the number of ancestor timestamps the
// monotone-median timestamp rule is computed over (spec.md §4.4: "median of
// the previous 11 ancestors").
const PastMedianTimeWindowSize = 11

// MaxFutureTimeDriftMilliseconds is how far into the future a block's
// timestamp may be relative to the time source before it is rejected with
// TimestampIsInFuture (spec.md §4.4). It plays the role of the teacher's
// TimestampDeviationTolerance, widened from seconds to milliseconds and from
// ~2 minutes to the 2 hours spec.md calls for.
const MaxFutureTimeDriftMilliseconds = 2 * 60 * 60 * 1000

// TargetBlockTimeMilliseconds is the expected inter-block time the DAA
// retargets toward, the TOS analog of the teacher's TargetTimePerBlock.
const TargetBlockTimeMilliseconds = 1000

// DifficultyRetargetFactor bounds a single retarget step to
// [current/DifficultyRetargetFactor, current*DifficultyRetargetFactor]
// (spec.md §4.4).
const DifficultyRetargetFactor = 4

// Params defines a TOS network by its consensus parameters, mirroring the
// teacher's dagconfig.Params struct shape and its init-time Register
// convention.
type Params struct {
	// Name is the human-readable network name, used in logging and in
	// selecting a network by flag.
	Name string

	// ChainID is the single-byte network discriminant every transaction must
	// carry (spec.md §3/§6), playing the role of the
	// teacher's wire.BitcoinNet magic.
	ChainID uint8

	// AddressHRP is the bech32 human-readable part addresses on this
	// network are encoded with, the TOS analog of the teacher's
	// util.Bech32Prefix.
	AddressHRP string

	// MinDifficulty is the network's minimum accepted difficulty, expressed
	// as a hashrate-equivalent target. Zero means the network imposes no
	// floor (devnet).
	MinDifficulty uint64

	// GenesisBlock is the network's sole parentless block.
	GenesisBlock *externalapi.DomainBlock

	// GenesisHash is the hash of GenesisBlock, cached at registration time.
	GenesisHash externalapi.DomainHash

	// MinTxsForParallelExecution is the tx_count threshold a block must meet
	// to be eligible for the parallel execution path (spec.md §4.5).
	MinTxsForParallelExecution int

	// ParallelExecutionEnabled is the feature flag gating the parallel path
	// independent of the tx-count threshold (spec.md §4.5).
	ParallelExecutionEnabled bool
}

// MinFeeForType returns the minimum fee a transaction of the given type must
// declare (spec.md §4.2). Shielded transaction families carry a higher floor
// to cover the extra verification cost of their range proofs; contract
// families carry an intermediate floor for execution cost without range
// proof verification.
func (p *Params) MinFeeForType(txType externalapi.TransactionType) uint64 {
	switch txType {
	case externalapi.TransactionTypeUnoTransfers,
		externalapi.TransactionTypeShieldTransfers,
		externalapi.TransactionTypeUnshieldTransfers:
		return 1000
	case externalapi.TransactionTypeDeployContract,
		externalapi.TransactionTypeInvokeContract:
		return 500
	default:
		return 10
	}
}

// MainNetParams are the mainnet consensus parameters.
var MainNetParams = Params{
	Name:                       "mainnet",
	ChainID:                    0x00,
	AddressHRP:                 "tos",
	MinDifficulty:              20_000, // 20 KH/s
	MinTxsForParallelExecution: 20,
	ParallelExecutionEnabled:   true,
}

// TestNetParams are the testnet consensus parameters.
var TestNetParams = Params{
	Name:                       "testnet",
	ChainID:                    0x01,
	AddressHRP:                 "tst",
	MinDifficulty:              100, // 100 H/s
	MinTxsForParallelExecution: 10,
	ParallelExecutionEnabled:   true,
}

// DevNetParams are the devnet consensus parameters. MinDifficulty is left at
// zero, so devnet imposes no difficulty floor.
var DevNetParams = Params{
	Name:                       "devnet",
	ChainID:                    0x03,
	AddressHRP:                 "stg",
	MinDifficulty:              0,
	MinTxsForParallelExecution: 4,
	ParallelExecutionEnabled:   true,
}

// registeredNets tracks every Params this package knows about, keyed by
// ChainID, mirroring the teacher's Register/registeredNets pattern (there
// keyed by wire.BitcoinNet magic).
var registeredNets = make(map[uint8]*Params)

// Register records params under its ChainID, failing if that ChainID is
// already taken.
func Register(params *Params) error {
	if _, ok := registeredNets[params.ChainID]; ok {
		return errDuplicateChainID(params.ChainID)
	}
	registeredNets[params.ChainID] = params
	return nil
}

// mustRegister performs Register but panics on error; only safe to call
// from init().
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic(err)
	}
}

// ByChainID looks up a registered network by its ChainID byte.
func ByChainID(chainID uint8) (*Params, bool) {
	p, ok := registeredNets[chainID]
	return p, ok
}

// ByName looks up a registered network by its Name field.
func ByName(name string) (*Params, bool) {
	for _, p := range registeredNets {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

func init() {
	mustRegister(&MainNetParams)
	mustRegister(&TestNetParams)
	mustRegister(&DevNetParams)
}
