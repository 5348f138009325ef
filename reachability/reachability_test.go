package reachability

import (
	"testing"

	"github.com/tos-network/tos/externalapi"
)

func hashFromByte(b byte) *externalapi.DomainHash {
	var h externalapi.DomainHash
	h[31] = b
	return &h
}

func TestIsAncestorOfAlongTheSelectedParentChain(t *testing.T) {
	tree := New()
	genesis := hashFromByte(1)
	a := hashFromByte(2)
	b := hashFromByte(3)

	tree.InsertGenesis(genesis)
	if err := tree.AddBlock(a, genesis, nil); err != nil {
		t.Fatalf("AddBlock(a): %s", err)
	}
	if err := tree.AddBlock(b, a, nil); err != nil {
		t.Fatalf("AddBlock(b): %s", err)
	}

	for _, pair := range []struct {
		ancestor, descendant *externalapi.DomainHash
		want                 bool
	}{
		{genesis, b, true},
		{genesis, a, true},
		{a, b, true},
		{b, a, false},
		{a, genesis, false},
		{genesis, genesis, true},
	} {
		got, err := tree.IsAncestorOf(pair.ancestor, pair.descendant)
		if err != nil {
			t.Fatalf("IsAncestorOf(%s, %s): %s", pair.ancestor, pair.descendant, err)
		}
		if got != pair.want {
			t.Errorf("IsAncestorOf(%s, %s) = %v, want %v", pair.ancestor, pair.descendant, got, pair.want)
		}
	}
}

func TestSiblingsAreNotAncestors(t *testing.T) {
	tree := New()
	genesis := hashFromByte(1)
	a := hashFromByte(2)
	b := hashFromByte(3)

	tree.InsertGenesis(genesis)
	if err := tree.AddBlock(a, genesis, nil); err != nil {
		t.Fatalf("AddBlock(a): %s", err)
	}
	if err := tree.AddBlock(b, genesis, nil); err != nil {
		t.Fatalf("AddBlock(b): %s", err)
	}

	for _, pair := range [][2]*externalapi.DomainHash{{a, b}, {b, a}} {
		got, err := tree.IsAncestorOf(pair[0], pair[1])
		if err != nil {
			t.Fatalf("IsAncestorOf: %s", err)
		}
		if got {
			t.Errorf("expected sibling %s not to be an ancestor of %s", pair[0], pair[1])
		}
	}
}

// TestMergedParentIsAncestorThroughFutureCovering exercises the case the
// future covering set exists for: a merge block whose non-selected parent
// is on a different branch than its selected parent's chain, and a query
// asking whether that non-selected parent is an ancestor of something
// further down the merge block's descendants.
func TestMergedParentIsAncestorThroughFutureCovering(t *testing.T) {
	tree := New()
	genesis := hashFromByte(1)
	a := hashFromByte(2)
	b := hashFromByte(3)
	merge := hashFromByte(4)
	child := hashFromByte(5)

	tree.InsertGenesis(genesis)
	if err := tree.AddBlock(a, genesis, nil); err != nil {
		t.Fatalf("AddBlock(a): %s", err)
	}
	if err := tree.AddBlock(b, genesis, nil); err != nil {
		t.Fatalf("AddBlock(b): %s", err)
	}
	// merge's selected parent is a, but it also merges in b.
	if err := tree.AddBlock(merge, a, []*externalapi.DomainHash{b}); err != nil {
		t.Fatalf("AddBlock(merge): %s", err)
	}
	if err := tree.AddBlock(child, merge, nil); err != nil {
		t.Fatalf("AddBlock(child): %s", err)
	}

	got, err := tree.IsAncestorOf(b, child)
	if err != nil {
		t.Fatalf("IsAncestorOf(b, child): %s", err)
	}
	if !got {
		t.Error("expected the merged (non-selected) parent to be an ancestor of the merge block's descendant")
	}

	got, err = tree.IsAncestorOf(b, a)
	if err != nil {
		t.Fatalf("IsAncestorOf(b, a): %s", err)
	}
	if got {
		t.Error("merging b into merge must not make b an ancestor of a, a's sibling on a different branch")
	}
}

func TestIsAncestorOfRejectsUnregisteredBlocks(t *testing.T) {
	tree := New()
	genesis := hashFromByte(1)
	tree.InsertGenesis(genesis)

	unknown := hashFromByte(0xFF)
	if _, err := tree.IsAncestorOf(unknown, genesis); err == nil {
		t.Error("expected a query with an unregistered ancestor hash to fail")
	}
	if _, err := tree.IsAncestorOf(genesis, unknown); err == nil {
		t.Error("expected a query with an unregistered descendant hash to fail")
	}
}

func TestAddBlockRejectsAnUnregisteredSelectedParent(t *testing.T) {
	tree := New()
	unknown := hashFromByte(1)
	child := hashFromByte(2)

	if err := tree.AddBlock(child, unknown, nil); err == nil {
		t.Error("expected AddBlock to fail when its selected parent was never registered")
	}
}

func TestParentReturnsTheSelectedParentEdge(t *testing.T) {
	tree := New()
	genesis := hashFromByte(1)
	a := hashFromByte(2)

	tree.InsertGenesis(genesis)
	if err := tree.AddBlock(a, genesis, nil); err != nil {
		t.Fatalf("AddBlock(a): %s", err)
	}

	if parent, ok := tree.Parent(genesis); ok || parent != nil {
		t.Errorf("expected genesis to have no reachability-tree parent, got %s", parent)
	}
	parent, ok := tree.Parent(a)
	if !ok {
		t.Fatal("expected a to have a registered parent")
	}
	if !parent.Equal(genesis) {
		t.Errorf("expected a's parent to be genesis, got %s", parent)
	}
}
