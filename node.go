package beetree

import (
	"bytes"
	"context"
)

// T is the B-tree order: every non-root node holds T-1..2T-1 keys and at
// most 2T children.
const T = 5

const (
	maxKeys      = 2*T - 1 // 9
	minKeysOther = T - 1   // 4
	overflowAt   = 2 * T   // 10: insertKeyAt may transiently reach this before split
)

// KeyRef is a lazy reference to a literal key's bytes: Seq names the block
// whose own Key field holds the literal bytes. value is a write-once cache.
type KeyRef struct {
	Seq   uint64
	value []byte
}

// ChildRef is a lazy reference to a child TreeNode. Seq identifies the
// block hosting the child, Offset is the child's position within that
// block's YoloIndex levels. Seq == 0 is the transient in-memory sentinel
// for "freed" during delete splicing; it is never serialized.
type ChildRef struct {
	Seq    uint64
	Offset uint32
	node   *TreeNode
}

// blockSource is anything a (seq, offset) reference can be dereferenced
// against: a hydrated log BlockEntry, or a batch's in-memory BatchEntry.
type blockSource interface {
	blockSeq() uint64
	getTreeNode(offset uint32) (*TreeNode, error)
	literalKey() []byte
	literalValue() ([]byte, bool)
}

// TreeNode is the in-memory view of one B-tree node resolved from a block
// (or freshly created during a mutation, not yet homed in any block).
//
// cowOwned marks a node as a private copy this batch is free to mutate in
// place. A node inflated from a BlockEntry's cache starts out not owned:
// that pointer is shared with every other reader of the same cache entry
// (other batches, checkouts, concurrent Gets), and the block it came from
// is immutable per spec's Lifecycle invariant, so it must be cloned before
// its first mutating touch (see forWrite).
type TreeNode struct {
	owner    blockSource
	keys     []KeyRef
	children []ChildRef
	changed  bool
	cowOwned bool
}

func newLeaf() *TreeNode     { return &TreeNode{changed: true, cowOwned: true} }
func newInterior() *TreeNode { return &TreeNode{changed: true, cowOwned: true} }

// clone returns a private, mutable copy of n, detached from the BlockEntry
// (or other shared source) n was resolved from.
func (n *TreeNode) clone() *TreeNode {
	return &TreeNode{
		keys:     append([]KeyRef(nil), n.keys...),
		children: append([]ChildRef(nil), n.children...),
		changed:  true,
		cowOwned: true,
	}
}

// forWrite returns a node equivalent to n that is safe to mutate in place:
// n itself if this batch already privately owns it, otherwise a fresh
// clone. Every mutating entry point (insert/delete descent, split, merge,
// rebalance) must route through this before touching n.keys/n.children,
// so a node backed by an already-published, immutable block is never
// mutated through the pointer other readers still share.
func (n *TreeNode) forWrite() *TreeNode {
	if n.cowOwned {
		return n
	}
	return n.clone()
}

// IsLeaf reports whether this node has no children.
func (n *TreeNode) IsLeaf() bool { return len(n.children) == 0 }

// KeyCount returns the number of keys in this node.
func (n *TreeNode) KeyCount() int { return len(n.keys) }

func (tr *Tree) resolveKey(ctx context.Context, kref *KeyRef) ([]byte, error) {
	if kref.value != nil {
		return kref.value, nil
	}
	src, err := tr.blockSourceAt(ctx, kref.Seq)
	if err != nil {
		return nil, err
	}
	kref.value = src.literalKey()
	return kref.value, nil
}

func (tr *Tree) resolveChild(ctx context.Context, cref *ChildRef) (*TreeNode, error) {
	if cref.node != nil {
		return cref.node, nil
	}
	src, err := tr.blockSourceAt(ctx, cref.Seq)
	if err != nil {
		return nil, err
	}
	node, err := src.getTreeNode(cref.Offset)
	if err != nil {
		return nil, err
	}
	cref.node = node
	return node, nil
}

// GetKey dereferences the key bytes at position i, fetching a foreign block
// if necessary.
func (n *TreeNode) GetKey(tr *Tree, ctx context.Context, i int) ([]byte, error) {
	if i < 0 || i >= len(n.keys) {
		return nil, ErrInvariant
	}
	return tr.resolveKey(ctx, &n.keys[i])
}

// GetChildNode dereferences the child at position i, fetching a foreign
// block if necessary.
func (n *TreeNode) GetChildNode(tr *Tree, ctx context.Context, i int) (*TreeNode, error) {
	if i < 0 || i >= len(n.children) {
		return nil, ErrInvariant
	}
	if n.children[i].Seq == 0 && n.children[i].node == nil {
		return nil, ErrInvariant
	}
	return tr.resolveChild(ctx, &n.children[i])
}

// search performs the binary search of §4.2: the comparator loads key
// bytes lazily via GetKey, which may suspend on a remote fetch. Returns the
// matching index and found=true on an exact hit, or the insertion index.
func (n *TreeNode) search(tr *Tree, ctx context.Context, key []byte) (idx int, found bool, err error) {
	lo, hi := 0, len(n.keys)
	for lo < hi {
		mid := (lo + hi) / 2
		kb, err := n.GetKey(tr, ctx, mid)
		if err != nil {
			return 0, false, err
		}
		switch bytes.Compare(kb, key) {
		case 0:
			return mid, true, nil
		case -1:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false, nil
}

// replaceKeyAt implements the exact-match branch of insert_key: replace the
// key reference in place, no structural change.
func (n *TreeNode) replaceKeyAt(i int, kref KeyRef) {
	n.keys[i] = kref
	n.changed = true
}

// insertKeyAt splices kref at position i; if child is non-nil, also splices
// a fresh ChildRef at i+1. Returns whether the node is still within bounds
// (keys.len() < 2T); the caller negates this to trigger a split.
func (n *TreeNode) insertKeyAt(i int, kref KeyRef, child *TreeNode) bool {
	n.keys = append(n.keys, KeyRef{})
	copy(n.keys[i+1:], n.keys[i:])
	n.keys[i] = kref

	if child != nil {
		n.children = append(n.children, ChildRef{})
		copy(n.children[i+2:], n.children[i+1:])
		n.children[i+1] = ChildRef{node: child}
	}
	n.changed = true
	return len(n.keys) < overflowAt
}

// removeKeyAt erases keys[i] (and, if this node has children, the adjacent
// right child reference children[i+1]). Only called on leaves from the
// delete path.
func (n *TreeNode) removeKeyAt(i int) {
	n.keys = append(n.keys[:i], n.keys[i+1:]...)
	if !n.IsLeaf() {
		n.children = append(n.children[:i+1], n.children[i+2:]...)
	}
	n.changed = true
}

// split splits an overflowing node (keys.len()==2T) into {left=n, median,
// right}. The median's bytes are resolved before it is popped, since its
// home block may not become the new parent's home.
func (n *TreeNode) split(tr *Tree, ctx context.Context) (right *TreeNode, median KeyRef, err error) {
	length := len(n.keys) >> 1
	medianIdx := len(n.keys) - length - 1
	if _, err := tr.resolveKey(ctx, &n.keys[medianIdx]); err != nil {
		return nil, KeyRef{}, err
	}

	right = &TreeNode{changed: true, cowOwned: true}
	if !n.IsLeaf() {
		right.children = append([]ChildRef(nil), n.children[medianIdx+1:]...)
		n.children = n.children[:medianIdx+1]
	}
	right.keys = append([]KeyRef(nil), n.keys[medianIdx+1:]...)

	median = n.keys[medianIdx]
	n.keys = n.keys[:medianIdx]
	n.changed = true
	return right, median, nil
}

// merge appends median then all of sibling's keys (and, for internal
// nodes, children) into n.
func (n *TreeNode) merge(sibling *TreeNode, median KeyRef) {
	wasLeaf := n.IsLeaf()
	n.keys = append(n.keys, median)
	n.keys = append(n.keys, sibling.keys...)
	if !wasLeaf {
		n.children = append(n.children, sibling.children...)
	}
	n.changed = true
}

// isUnderflow reports whether a non-root node has fewer than T-1 keys.
func (n *TreeNode) isUnderflow() bool { return len(n.keys) < minKeysOther }

// indexChanges serializes this subtree's changed spine into levels,
// assigning seq to every newly-indexed child. Unchanged children keep
// their original (seq, offset). Returns the offset this node was assigned.
func (n *TreeNode) indexChanges(levels *[]Level, seq uint64) uint32 {
	offset := uint32(len(*levels))
	*levels = append(*levels, Level{})
	n.changed = false

	lvl := Level{Keys: make([]uint64, 0, len(n.keys))}
	for i := range n.keys {
		lvl.Keys = append(lvl.Keys, n.keys[i].Seq)
	}

	lvl.Children = make([]uint64, 0, 2*len(n.children))
	for i := range n.children {
		cref := &n.children[i]
		if cref.node != nil && cref.node.changed {
			cref.Seq = seq
			cref.Offset = cref.node.indexChanges(levels, seq)
		}
		lvl.Children = append(lvl.Children, cref.Seq, uint64(cref.Offset))
	}

	(*levels)[offset] = lvl
	return offset
}
