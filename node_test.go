package beetree

import (
	"context"
	"testing"
)

func literalKeyRef(v []byte) KeyRef { return KeyRef{value: v} }

func TestNodeSearch(t *testing.T) {
	n := newLeaf()
	for _, k := range []string{"b", "d", "f"} {
		n.keys = append(n.keys, literalKeyRef([]byte(k)))
	}
	tr := &Tree{}
	ctx := context.Background()

	idx, found, err := n.search(tr, ctx, []byte("d"))
	if err != nil || !found || idx != 1 {
		t.Fatalf("got idx=%d found=%v err=%v", idx, found, err)
	}
	idx, found, err = n.search(tr, ctx, []byte("a"))
	if err != nil || found || idx != 0 {
		t.Fatalf("got idx=%d found=%v err=%v", idx, found, err)
	}
	idx, found, err = n.search(tr, ctx, []byte("c"))
	if err != nil || found || idx != 1 {
		t.Fatalf("got idx=%d found=%v err=%v", idx, found, err)
	}
	idx, found, err = n.search(tr, ctx, []byte("z"))
	if err != nil || found || idx != 3 {
		t.Fatalf("got idx=%d found=%v err=%v", idx, found, err)
	}
}

func TestInsertKeyAtLeafAndOverflow(t *testing.T) {
	n := newLeaf()
	for i := 0; i < 9; i++ {
		stillValid := n.insertKeyAt(len(n.keys), literalKeyRef([]byte{byte(i)}), nil)
		if !stillValid {
			t.Fatalf("unexpected overflow at i=%d", i)
		}
	}
	if n.KeyCount() != 9 {
		t.Fatalf("want 9 keys, got %d", n.KeyCount())
	}
	stillValid := n.insertKeyAt(len(n.keys), literalKeyRef([]byte{9}), nil)
	if stillValid {
		t.Fatalf("expected overflow signal at 10th key")
	}
	if n.KeyCount() != 10 {
		t.Fatalf("want 10 keys transiently, got %d", n.KeyCount())
	}
}

func TestSplitLeaf(t *testing.T) {
	n := newLeaf()
	for i := 0; i < 10; i++ {
		n.insertKeyAt(len(n.keys), literalKeyRef([]byte{byte(i)}), nil)
	}
	tr := &Tree{}
	right, median, err := n.split(tr, context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n.KeyCount() != 4 {
		t.Fatalf("want left=4 keys, got %d", n.KeyCount())
	}
	if right.KeyCount() != 5 {
		t.Fatalf("want right=5 keys, got %d", right.KeyCount())
	}
	if median.value[0] != 4 {
		t.Fatalf("want median=4, got %v", median.value)
	}
	if n.keys[3].value[0] != 3 || right.keys[0].value[0] != 5 {
		t.Fatalf("split partition wrong: left-last=%v right-first=%v", n.keys[3].value, right.keys[0].value)
	}
}

func TestSplitInterior(t *testing.T) {
	n := newInterior()
	n.children = append(n.children, ChildRef{node: newLeaf()})
	for i := 0; i < 10; i++ {
		n.insertKeyAt(len(n.keys), literalKeyRef([]byte{byte(i)}), newLeaf())
	}
	if n.ChildCountForTest() != 11 {
		t.Fatalf("want 11 children before split, got %d", n.ChildCountForTest())
	}
	tr := &Tree{}
	right, _, err := n.split(tr, context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n.ChildCountForTest() != 5 || right.ChildCountForTest() != 6 {
		t.Fatalf("want children 5/6, got %d/%d", n.ChildCountForTest(), right.ChildCountForTest())
	}
}

// ChildCountForTest exposes the unexported children slice length to tests
// in this package; kept tiny and test-only.
func (n *TreeNode) ChildCountForTest() int { return len(n.children) }

func TestMergeRoundTrip(t *testing.T) {
	left := newLeaf()
	for i := 0; i < 4; i++ {
		left.insertKeyAt(len(left.keys), literalKeyRef([]byte{byte(i)}), nil)
	}
	right := newLeaf()
	for i := 5; i < 10; i++ {
		right.insertKeyAt(len(right.keys), literalKeyRef([]byte{byte(i)}), nil)
	}
	median := literalKeyRef([]byte{4})
	left.merge(right, median)
	if left.KeyCount() != 10 {
		t.Fatalf("want merged 10 keys, got %d", left.KeyCount())
	}
	for i := 0; i < 10; i++ {
		if left.keys[i].value[0] != byte(i) {
			t.Fatalf("merged order wrong at %d: got %v", i, left.keys[i].value)
		}
	}
}

func TestIndexChangesSkipsUnchanged(t *testing.T) {
	root := newInterior()
	root.changed = true
	unchangedChild := ChildRef{Seq: 7, Offset: 3}
	root.children = append(root.children, unchangedChild)
	root.keys = append(root.keys, literalKeyRef([]byte("m")))

	var levels []Level
	seq := uint64(42)
	offset := root.indexChanges(&levels, seq)
	if offset != 0 {
		t.Fatalf("want root offset 0, got %d", offset)
	}
	if len(levels) != 1 {
		t.Fatalf("want exactly one level (unchanged child must not recurse), got %d", len(levels))
	}
	if levels[0].Children[0] != 7 || levels[0].Children[1] != 3 {
		t.Fatalf("unchanged child ref must be preserved untouched, got %v", levels[0].Children)
	}
}

func TestIndexChangesRecursesIntoChanged(t *testing.T) {
	root := newInterior()
	child := newLeaf()
	child.keys = append(child.keys, literalKeyRef([]byte("x")))
	root.children = append(root.children, ChildRef{node: child})
	root.keys = append(root.keys, literalKeyRef([]byte("m")))

	var levels []Level
	seq := uint64(9)
	root.indexChanges(&levels, seq)
	if len(levels) != 2 {
		t.Fatalf("want root+child levels, got %d", len(levels))
	}
	if levels[0].Children[0] != seq || levels[0].Children[1] != 1 {
		t.Fatalf("changed child must be assigned (seq, offset=1), got %v", levels[0].Children)
	}
	if child.changed {
		t.Fatalf("indexChanges must clear the changed flag")
	}
}
