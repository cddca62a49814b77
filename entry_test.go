package beetree

import (
	"bytes"
	"testing"
)

func TestBlockEntryDecodesLeaf(t *testing.T) {
	levels := []Level{{Keys: []uint64{3}, Children: nil}}
	raw := EncodeNode(Node{
		Index:    EncodeYoloIndex(levels),
		Key:      []byte("k"),
		Value:    []byte("v"),
		HasValue: true,
	})
	e, err := newBlockEntry(5, raw)
	if err != nil {
		t.Fatal(err)
	}
	if e.blockSeq() != 5 {
		t.Fatalf("want seq 5, got %d", e.blockSeq())
	}
	if !bytes.Equal(e.literalKey(), []byte("k")) {
		t.Fatalf("key mismatch: %q", e.literalKey())
	}
	v, ok := e.literalValue()
	if !ok || !bytes.Equal(v, []byte("v")) {
		t.Fatalf("value mismatch: %q ok=%v", v, ok)
	}

	root, err := e.root()
	if err != nil {
		t.Fatal(err)
	}
	if root.KeyCount() != 1 || root.keys[0].Seq != 3 {
		t.Fatalf("want 1 key seq=3, got %+v", root.keys)
	}

	// getTreeNode must cache: repeated calls return the identical pointer.
	again, err := e.getTreeNode(0)
	if err != nil {
		t.Fatal(err)
	}
	if again != root {
		t.Fatal("expected cached TreeNode pointer on repeat getTreeNode")
	}
}

func TestBlockEntryTombstone(t *testing.T) {
	raw := EncodeNode(Node{Index: EncodeYoloIndex(nil), Key: []byte("k"), HasValue: false})
	e, err := newBlockEntry(1, raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := e.literalValue(); ok {
		t.Fatal("tombstone must report hasValue=false")
	}
}

func TestBlockEntryRejectsBadIndexOffset(t *testing.T) {
	raw := EncodeNode(Node{Index: EncodeYoloIndex(nil), Key: []byte("k"), HasValue: false})
	e, err := newBlockEntry(1, raw)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.getTreeNode(0); err != ErrBadWire {
		t.Fatalf("want ErrBadWire for out-of-range offset, got %v", err)
	}
}

func TestBatchEntryEncodeRoundTrip(t *testing.T) {
	be := &BatchEntry{seq: 9, key: []byte("a"), value: []byte("b"), hasValue: true}
	be.index = []Level{{Keys: []uint64{9}}}
	raw := be.encode()
	n, err := DecodeNode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(n.Key, []byte("a")) || !bytes.Equal(n.Value, []byte("b")) || !n.HasValue {
		t.Fatalf("mismatch: %+v", n)
	}
}
