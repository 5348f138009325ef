package externalapi

import "math/big"

// MaxParents is the maximum number of parent tips a non-genesis block may
// declare.
const MaxParents = 10

// MinParents is the minimum number of parents a non-genesis block must
// declare. Genesis is the sole exception, with zero parents.
const MinParents = 1

// DomainBlockHeader is the canonically-hashed portion of a block.
type DomainBlockHeader struct {
	Version            uint16
	Parents            []DomainHash
	TimeInMilliseconds int64
	ExtraNonce         [32]byte
	MinerPublicKey     DomainAddress
	TipsMerkleRoot     DomainHash
	BalancesMerkleRoot DomainHash
	Difficulty         uint64
	VRFProof           []byte
}

// DomainBlock bundles a header with its transaction list.
type DomainBlock struct {
	Header       *DomainBlockHeader
	Transactions []*DomainTransaction
}

// BlockGHOSTDAGData is the one-per-block record GHOSTDAG produces: the blue
// set, blue score, blue work, selected parent, and anticone-size bookkeeping
// needed to continue the k-cluster admission process for descendant blocks.
type BlockGHOSTDAGData struct {
	blueScore           uint64
	blueWork            *big.Int
	selectedParent      *DomainHash
	mergeSetBlues       []*DomainHash
	mergeSetReds        []*DomainHash
	bluesAnticoneSizes  map[DomainHash]uint8
}

// NewBlockGHOSTDAGData constructs a populated GHOSTDAG data record.
func NewBlockGHOSTDAGData(
	blueScore uint64,
	blueWork *big.Int,
	selectedParent *DomainHash,
	mergeSetBlues, mergeSetReds []*DomainHash,
	bluesAnticoneSizes map[DomainHash]uint8,
) *BlockGHOSTDAGData {
	return &BlockGHOSTDAGData{
		blueScore:          blueScore,
		blueWork:           blueWork,
		selectedParent:     selectedParent,
		mergeSetBlues:      mergeSetBlues,
		mergeSetReds:       mergeSetReds,
		bluesAnticoneSizes: bluesAnticoneSizes,
	}
}

// BlueScore is the count of blue blocks in the block's past, not counting
// the block itself (genesis has BlueScore 0).
func (d *BlockGHOSTDAGData) BlueScore() uint64 { return d.blueScore }

// BlueWork is the cumulative weighted work of blue ancestors. Stored as a
// big.Int, matching the teacher's own GHOSTDAGData representation: a
// monotonically non-decreasing counter never needs fixed-width overflow
// handling when math/big is used; the u128 width is enforced instead by
// ghostdag's Manager.Run, which rejects blue work wider than 128 bits with
// ErrOverflow.
func (d *BlockGHOSTDAGData) BlueWork() *big.Int { return d.blueWork }

// SelectedParent is the parent with maximum (blue_work, -hash_lex).
func (d *BlockGHOSTDAGData) SelectedParent() *DomainHash { return d.selectedParent }

// MergeSetBlues is the mergeset's blue-classified members, in mergeset order.
func (d *BlockGHOSTDAGData) MergeSetBlues() []*DomainHash { return d.mergeSetBlues }

// MergeSetReds is the mergeset's red-classified members, in mergeset order.
func (d *BlockGHOSTDAGData) MergeSetReds() []*DomainHash { return d.mergeSetReds }

// BlueAnticoneSize returns the recorded anticone size of blue block within
// this block's blue set, and whether it was found.
func (d *BlockGHOSTDAGData) BlueAnticoneSize(blue *DomainHash) (uint8, bool) {
	size, ok := d.bluesAnticoneSizes[*blue]
	return size, ok
}

// Clone returns a deep copy.
func (d *BlockGHOSTDAGData) Clone() *BlockGHOSTDAGData {
	anticoneSizes := make(map[DomainHash]uint8, len(d.bluesAnticoneSizes))
	for k, v := range d.bluesAnticoneSizes {
		anticoneSizes[k] = v
	}
	return &BlockGHOSTDAGData{
		blueScore:          d.blueScore,
		blueWork:           new(big.Int).Set(d.blueWork),
		selectedParent:     d.selectedParent.Clone(),
		mergeSetBlues:      CloneHashes(d.mergeSetBlues),
		mergeSetReds:       CloneHashes(d.mergeSetReds),
		bluesAnticoneSizes: anticoneSizes,
	}
}

// BlockStatus tags the admission outcome of a block, returned from AddBlock.
type BlockStatus uint8

// Block admission outcomes.
const (
	BlockStatusAccepted BlockStatus = iota
	BlockStatusOrphaned
	BlockStatusRejected
)

// String renders the status for logging.
func (s BlockStatus) String() string {
	switch s {
	case BlockStatusAccepted:
		return "Accepted"
	case BlockStatusOrphaned:
		return "Orphaned"
	case BlockStatusRejected:
		return "Rejected"
	default:
		return "Unknown"
	}
}
