package daa

import (
	"math/big"
	"testing"

	"github.com/tos-network/tos/dagconfig"
	"github.com/tos-network/tos/externalapi"
)

type fakeHeaders struct {
	byHash map[externalapi.DomainHash]*externalapi.DomainBlockHeader
}

func (f *fakeHeaders) Header(hash *externalapi.DomainHash) (*externalapi.DomainBlockHeader, error) {
	return f.byHash[*hash], nil
}

type fakeWindow struct {
	window []*externalapi.DomainHash
}

func (f *fakeWindow) Window(*externalapi.DomainHash, int) ([]*externalapi.DomainHash, error) {
	return f.window, nil
}

type fakeGHOSTDAG struct {
	byHash map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData
}

func (f *fakeGHOSTDAG) Get(hash *externalapi.DomainHash) (*externalapi.BlockGHOSTDAGData, error) {
	return f.byHash[*hash], nil
}

func hashFromByte(b byte) *externalapi.DomainHash {
	var h externalapi.DomainHash
	h[31] = b
	return &h
}

func TestPastMedianTimeTakesMiddleOfOddWindow(t *testing.T) {
	a, b, c := hashFromByte(1), hashFromByte(2), hashFromByte(3)
	headers := &fakeHeaders{byHash: map[externalapi.DomainHash]*externalapi.DomainBlockHeader{
		*a: {TimeInMilliseconds: 300},
		*b: {TimeInMilliseconds: 100},
		*c: {TimeInMilliseconds: 200},
	}}
	window := &fakeWindow{window: []*externalapi.DomainHash{a, b, c}}

	median, err := PastMedianTime(a, headers, window)
	if err != nil {
		t.Fatalf("PastMedianTime: %s", err)
	}
	if median != 200 {
		t.Errorf("expected median 200, got %d", median)
	}
}

func TestCheckTimestampRejectsNonIncreasing(t *testing.T) {
	if err := CheckTimestamp(100, 1000, 100); err == nil {
		t.Error("expected an error for a timestamp equal to the past median time")
	}
	if err := CheckTimestamp(50, 1000, 100); err == nil {
		t.Error("expected an error for a timestamp before the past median time")
	}
}

func TestCheckTimestampRejectsFutureDrift(t *testing.T) {
	now := int64(1_000_000)
	tooFarAhead := now + dagconfig.MaxFutureTimeDriftMilliseconds + 1
	if err := CheckTimestamp(tooFarAhead, now, 0); err == nil {
		t.Error("expected an error for a timestamp beyond the future drift bound")
	}
	withinBound := now + dagconfig.MaxFutureTimeDriftMilliseconds - 1
	if err := CheckTimestamp(withinBound, now, 0); err != nil {
		t.Errorf("did not expect an error for a timestamp within the future drift bound: %s", err)
	}
}

func TestNextDifficultyClampsToRetargetFactor(t *testing.T) {
	hashes := make([]*externalapi.DomainHash, 10)
	ghostdagData := make(map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData)
	headerData := make(map[externalapi.DomainHash]*externalapi.DomainBlockHeader)
	for i := range hashes {
		hashes[i] = hashFromByte(byte(i + 1))
		// Blue work grows toward the newest block while blocks arrive 1ms
		// apart, far faster than the target spacing, to drive the estimate
		// far outside [parent/4, parent*4].
		n := int64(len(hashes) - 1 - i)
		blueWork := big.NewInt(n * 1_000_000)
		ghostdagData[*hashes[i]] = externalapi.NewBlockGHOSTDAGData(uint64(n), blueWork, nil, nil, nil, nil)
		headerData[*hashes[i]] = &externalapi.DomainBlockHeader{TimeInMilliseconds: n}
	}
	// Window() returns newest-first; hashes[0] is newest, hashes[len-1] oldest.
	window := &fakeWindow{window: hashes}
	store := &fakeGHOSTDAG{byHash: ghostdagData}
	headers := &fakeHeaders{byHash: headerData}

	const parentDifficulty = 1000
	next, err := NextDifficulty(hashes[0], parentDifficulty, 0, store, headers, window)
	if err != nil {
		t.Fatalf("NextDifficulty: %s", err)
	}
	if next > parentDifficulty*dagconfig.DifficultyRetargetFactor {
		t.Errorf("expected next difficulty clamped to %dx parent, got %d", dagconfig.DifficultyRetargetFactor, next)
	}
}

func TestNextDifficultyFloorsAtMinDifficulty(t *testing.T) {
	hashes := []*externalapi.DomainHash{hashFromByte(1), hashFromByte(2)}
	ghostdagData := map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData{
		*hashes[0]: externalapi.NewBlockGHOSTDAGData(1, big.NewInt(1), nil, nil, nil, nil),
		*hashes[1]: externalapi.NewBlockGHOSTDAGData(0, big.NewInt(0), nil, nil, nil, nil),
	}
	headerData := map[externalapi.DomainHash]*externalapi.DomainBlockHeader{
		*hashes[0]: {TimeInMilliseconds: dagconfig.TargetBlockTimeMilliseconds},
		*hashes[1]: {TimeInMilliseconds: 0},
	}
	window := &fakeWindow{window: hashes}
	store := &fakeGHOSTDAG{byHash: ghostdagData}
	headers := &fakeHeaders{byHash: headerData}

	next, err := NextDifficulty(hashes[0], 1, 500, store, headers, window)
	if err != nil {
		t.Fatalf("NextDifficulty: %s", err)
	}
	if next < 500 {
		t.Errorf("expected difficulty floored at network minimum 500, got %d", next)
	}
}

// TestNextDifficultyHalvesWhenBlocksArriveTwiceAsSlow pins the retarget
// formula itself, not just its clamp bounds: with the same window and
// parent difficulty but the actual elapsed time doubled against the target
// spacing, the next difficulty must come out to half of what the
// target-spacing baseline produces (spec.md §4.4 scenario: "2x slower block
// times => difficulty halves").
func TestNextDifficultyHalvesWhenBlocksArriveTwiceAsSlow(t *testing.T) {
	newest, oldest := hashFromByte(1), hashFromByte(2)
	hashes := []*externalapi.DomainHash{newest, oldest}

	const parentDifficulty = 1_000_000
	deltaWork := int64(parentDifficulty)

	atTargetSpacing := map[externalapi.DomainHash]*externalapi.DomainBlockHeader{
		*newest: {TimeInMilliseconds: dagconfig.TargetBlockTimeMilliseconds},
		*oldest: {TimeInMilliseconds: 0},
	}
	twiceAsSlow := map[externalapi.DomainHash]*externalapi.DomainBlockHeader{
		*newest: {TimeInMilliseconds: 2 * dagconfig.TargetBlockTimeMilliseconds},
		*oldest: {TimeInMilliseconds: 0},
	}
	ghostdagData := map[externalapi.DomainHash]*externalapi.BlockGHOSTDAGData{
		*newest: externalapi.NewBlockGHOSTDAGData(1, big.NewInt(deltaWork), nil, nil, nil, nil),
		*oldest: externalapi.NewBlockGHOSTDAGData(0, big.NewInt(0), nil, nil, nil, nil),
	}
	window := &fakeWindow{window: hashes}
	store := &fakeGHOSTDAG{byHash: ghostdagData}

	baseline, err := NextDifficulty(newest, parentDifficulty, 0, store, &fakeHeaders{byHash: atTargetSpacing}, window)
	if err != nil {
		t.Fatalf("NextDifficulty (at-target spacing): %s", err)
	}
	slow, err := NextDifficulty(newest, parentDifficulty, 0, store, &fakeHeaders{byHash: twiceAsSlow}, window)
	if err != nil {
		t.Fatalf("NextDifficulty (2x slow spacing): %s", err)
	}
	if slow != baseline/2 {
		t.Errorf("expected 2x slower arrival to halve the retarget (baseline %d), got %d", baseline, slow)
	}
}
