package beetree

import "context"

// Batch stages one or more mutations against a consistent snapshot of the
// tree before committing them as a single atomic multi-block log append.
// A Batch created by Tree.Put/Tree.Del auto-flushes after its one
// operation; a Batch created by Tree.Batch accumulates operations across
// multiple calls until Flush is called explicitly.
type Batch struct {
	tr         *Tree
	root       *TreeNode
	baseLength uint64
	entries    []*BatchEntry
	autoFlush  bool
	flushed    bool
}

func (tr *Tree) newBatch(ctx context.Context, autoFlush bool) (*Batch, error) {
	root, length, err := tr.currentRootForWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &Batch{tr: tr, root: root, baseLength: length, autoFlush: autoFlush}, nil
}

// Batch opens a multi-operation batch against the tree's current state.
// Nothing is committed until Flush is called.
func (tr *Tree) Batch(ctx context.Context) (*Batch, error) {
	return tr.newBatch(ctx, false)
}

func (b *Batch) nextSeq() uint64 { return b.baseLength + uint64(len(b.entries)) }

// Put stages an insert-or-replace of key -> value.
func (b *Batch) Put(ctx context.Context, rawKey, rawValue []byte) error {
	if b.flushed {
		return ErrInvariant
	}
	if len(rawKey) == 0 {
		return ErrInvalidKey
	}
	if len(rawValue) == 0 {
		return ErrInvalidValue
	}
	encKey := b.tr.keyCodec.Encode(rawKey)
	encVal := b.tr.valCodec.Encode(rawValue)
	seq := b.nextSeq()
	kref := KeyRef{Seq: seq, value: encKey}

	if b.root == nil {
		b.root = newLeaf()
		b.root.insertKeyAt(0, kref, nil)
	} else {
		newRoot, right, median, didSplit, err := b.insertRecursive(ctx, b.root, kref)
		if err != nil {
			return err
		}
		b.root = newRoot
		if didSplit {
			newParent := newInterior()
			newParent.keys = append(newParent.keys, median)
			newParent.children = append(newParent.children, ChildRef{node: b.root}, ChildRef{node: right})
			b.root = newParent
		}
	}

	b.entries = append(b.entries, &BatchEntry{seq: seq, key: encKey, value: encVal, hasValue: true, tree: b.root})
	if b.autoFlush {
		return b.Flush(ctx)
	}
	return nil
}

// insertRecursive implements §4.5's descend-and-split algorithm. An exact
// key match at any level replaces in place and short-circuits without
// touching structure. Returns the (possibly cloned) node n itself, along
// with the promoted (right, median) pair when n itself had to split.
//
// Every node this mutates is first routed through forWrite: n may be the
// cached TreeNode of an already-published, immutable block shared with
// other readers of the same cache (a checkout, a concurrent Get, another
// batch), and that shared copy must never be touched in place.
func (b *Batch) insertRecursive(ctx context.Context, n *TreeNode, kref KeyRef) (newN, right *TreeNode, median KeyRef, didSplit bool, err error) {
	idx, found, err := n.search(b.tr, ctx, kref.value)
	if err != nil {
		return n, nil, KeyRef{}, false, err
	}
	if found {
		n = n.forWrite()
		n.replaceKeyAt(idx, kref)
		return n, nil, KeyRef{}, false, nil
	}
	if n.IsLeaf() {
		n = n.forWrite()
		if n.insertKeyAt(idx, kref, nil) {
			return n, nil, KeyRef{}, false, nil
		}
		right, median, err = n.split(b.tr, ctx)
		return n, right, median, true, err
	}

	child, err := n.GetChildNode(b.tr, ctx, idx)
	if err != nil {
		return n, nil, KeyRef{}, false, err
	}
	// §4.5 / SPEC_FULL's open question: every internal node on the insert
	// path re-emits, even when the eventual change is just a deeper
	// key-replace, so it is always cloned-for-write here.
	n = n.forWrite()
	newChild, childRight, childMedian, childSplit, err := b.insertRecursive(ctx, child, kref)
	if err != nil {
		return n, nil, KeyRef{}, false, err
	}
	n.children[idx] = ChildRef{node: newChild}
	if !childSplit {
		return n, nil, KeyRef{}, false, nil
	}
	if n.insertKeyAt(idx, childMedian, childRight) {
		return n, nil, KeyRef{}, false, nil
	}
	right, median, err = n.split(b.tr, ctx)
	return n, right, median, true, err
}

// Del stages a structural delete-with-rebalance of key, recording a
// tombstone block so the log's history carries the event. A delete of a
// key that is not present is a silent no-op: no block is staged.
func (b *Batch) Del(ctx context.Context, rawKey []byte) error {
	if b.flushed {
		return ErrInvariant
	}
	if len(rawKey) == 0 {
		return ErrInvalidKey
	}
	if b.root == nil {
		return nil
	}
	encKey := b.tr.keyCodec.Encode(rawKey)

	newRoot, removed, err := b.deleteRecursive(ctx, b.root, encKey)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}
	b.root = newRoot

	for !b.root.IsLeaf() && b.root.KeyCount() == 0 {
		only, err := b.root.GetChildNode(b.tr, ctx, 0)
		if err != nil {
			return err
		}
		b.root = only
	}
	if b.root.IsLeaf() && b.root.KeyCount() == 0 {
		b.root = nil
	}

	seq := b.nextSeq()
	b.entries = append(b.entries, &BatchEntry{seq: seq, key: encKey, hasValue: false, tree: b.root})
	if b.autoFlush {
		return b.Flush(ctx)
	}
	return nil
}

// deleteRecursive removes key from the subtree rooted at n, applying
// preemptive borrow-or-merge fixups (ensureMinKeys) so every node it
// descends into already holds at least T keys before the recursive call.
// Returns the node to stand in for n (n itself, or a private clone if a
// mutation touched it), plus whether key was actually removed.
//
// On a miss, n itself is returned. A node that comes from a published
// block is only ever rotated through a disposable forWrite clone that this
// function discards rather than returns, so a delete of an absent key never
// marks a published node changed (§7). A node this batch already owns is
// not cloned by forWrite: any rotation or merge ensureMinKeys applies to it
// on the way down stays in place on a miss (the set of keys is unchanged).
func (b *Batch) deleteRecursive(ctx context.Context, n *TreeNode, key []byte) (*TreeNode, bool, error) {
	idx, found, err := n.search(b.tr, ctx, key)
	if err != nil {
		return n, false, err
	}

	if found {
		n = n.forWrite()
		if n.IsLeaf() {
			n.removeKeyAt(idx)
			return n, true, nil
		}

		// §4.6: the separator comes from whichever of the two adjacent
		// subtrees has the larger boundary leaf, ties going right. Both
		// sizes must be resolved before comparing — neither side's fetch
		// may be skipped by short-circuiting on the other.
		left, err := n.GetChildNode(b.tr, ctx, idx)
		if err != nil {
			return n, false, err
		}
		right, err := n.GetChildNode(b.tr, ctx, idx+1)
		if err != nil {
			return n, false, err
		}
		leftBoundary, err := b.rightmostLeaf(ctx, left)
		if err != nil {
			return n, false, err
		}
		rightBoundary, err := b.leftmostLeaf(ctx, right)
		if err != nil {
			return n, false, err
		}
		useSuccessor := rightBoundary.KeyCount() >= leftBoundary.KeyCount()

		if useSuccessor {
			if err := b.ensureMinKeys(ctx, n, idx+1); err != nil {
				return n, false, err
			}
			idx, found, err = n.search(b.tr, ctx, key)
			if err != nil {
				return n, false, err
			}
			if !found {
				child, err := n.GetChildNode(b.tr, ctx, idx)
				if err != nil {
					return n, false, err
				}
				newChild, removed, err := b.deleteRecursive(ctx, child, key)
				if err != nil {
					return n, false, err
				}
				n.children[idx] = ChildRef{node: newChild}
				return n, removed, nil
			}
			right, err := n.GetChildNode(b.tr, ctx, idx+1)
			if err != nil {
				return n, false, err
			}
			succRef, err := b.minKeyRef(ctx, right)
			if err != nil {
				return n, false, err
			}
			newRight, _, err := b.deleteRecursive(ctx, right, succRef.value)
			if err != nil {
				return n, false, err
			}
			n.children[idx+1] = ChildRef{node: newRight}
			idx, found, err = n.search(b.tr, ctx, key)
			if err != nil {
				return n, false, err
			}
			if found {
				n.keys[idx] = succRef
			}
			return n, true, nil
		}

		if err := b.ensureMinKeys(ctx, n, idx); err != nil {
			return n, false, err
		}
		idx, found, err = n.search(b.tr, ctx, key)
		if err != nil {
			return n, false, err
		}
		if !found {
			child, err := n.GetChildNode(b.tr, ctx, idx)
			if err != nil {
				return n, false, err
			}
			newChild, removed, err := b.deleteRecursive(ctx, child, key)
			if err != nil {
				return n, false, err
			}
			n.children[idx] = ChildRef{node: newChild}
			return n, removed, nil
		}
		left, err = n.GetChildNode(b.tr, ctx, idx)
		if err != nil {
			return n, false, err
		}
		predRef, err := b.maxKeyRef(ctx, left)
		if err != nil {
			return n, false, err
		}
		newLeft, _, err := b.deleteRecursive(ctx, left, predRef.value)
		if err != nil {
			return n, false, err
		}
		n.children[idx] = ChildRef{node: newLeft}
		idx, found, err = n.search(b.tr, ctx, key)
		if err != nil {
			return n, false, err
		}
		if found {
			n.keys[idx] = predRef
		}
		return n, true, nil
	}

	if n.IsLeaf() {
		return n, false, nil
	}

	// ensureMinKeys' rotation runs against owned, which is a disposable clone
	// when n comes from a published block (and n itself when this batch
	// already owns n); owned is only returned if the recursive call actually
	// removes something below.
	owned := n.forWrite()
	if err := b.ensureMinKeys(ctx, owned, idx); err != nil {
		return n, false, err
	}
	idx, _, err = owned.search(b.tr, ctx, key)
	if err != nil {
		return n, false, err
	}
	child, err := owned.GetChildNode(b.tr, ctx, idx)
	if err != nil {
		return n, false, err
	}
	newChild, removed, err := b.deleteRecursive(ctx, child, key)
	if err != nil {
		return n, false, err
	}
	if !removed {
		return n, false, nil
	}
	owned.children[idx] = ChildRef{node: newChild}
	owned.changed = true
	return owned, true, nil
}

// maxKeyRef returns the rightmost (in-order maximum) key reference in the
// subtree rooted at n, resolving its literal bytes along the way.
func (b *Batch) maxKeyRef(ctx context.Context, n *TreeNode) (KeyRef, error) {
	for {
		if n.IsLeaf() {
			if n.KeyCount() == 0 {
				return KeyRef{}, ErrInvariant
			}
			last := len(n.keys) - 1
			if _, err := b.tr.resolveKey(ctx, &n.keys[last]); err != nil {
				return KeyRef{}, err
			}
			return n.keys[last], nil
		}
		child, err := n.GetChildNode(b.tr, ctx, len(n.children)-1)
		if err != nil {
			return KeyRef{}, err
		}
		n = child
	}
}

// minKeyRef returns the leftmost (in-order minimum) key reference in the
// subtree rooted at n, resolving its literal bytes along the way.
func (b *Batch) minKeyRef(ctx context.Context, n *TreeNode) (KeyRef, error) {
	for {
		if n.IsLeaf() {
			if n.KeyCount() == 0 {
				return KeyRef{}, ErrInvariant
			}
			if _, err := b.tr.resolveKey(ctx, &n.keys[0]); err != nil {
				return KeyRef{}, err
			}
			return n.keys[0], nil
		}
		child, err := n.GetChildNode(b.tr, ctx, 0)
		if err != nil {
			return KeyRef{}, err
		}
		n = child
	}
}

// rightmostLeaf descends n's rightmost spine to its boundary leaf, without
// mutating anything; used to compare subtree sizes ahead of ensureMinKeys.
func (b *Batch) rightmostLeaf(ctx context.Context, n *TreeNode) (*TreeNode, error) {
	for !n.IsLeaf() {
		child, err := n.GetChildNode(b.tr, ctx, len(n.children)-1)
		if err != nil {
			return nil, err
		}
		n = child
	}
	return n, nil
}

// leftmostLeaf descends n's leftmost spine to its boundary leaf, without
// mutating anything; used to compare subtree sizes ahead of ensureMinKeys.
func (b *Batch) leftmostLeaf(ctx context.Context, n *TreeNode) (*TreeNode, error) {
	for !n.IsLeaf() {
		child, err := n.GetChildNode(b.tr, ctx, 0)
		if err != nil {
			return nil, err
		}
		n = child
	}
	return n, nil
}

// ensureMinKeys guarantees n.children[idx] holds at least T keys before the
// caller descends into it, borrowing from an adjacent sibling with keys to
// spare, or merging with one otherwise. n must already be owned by this
// batch (forWrite'd by the caller): this mutates n.children directly, and
// every sibling/child it touches is itself routed through forWrite before
// being written back into n.children, since any of them may still be a
// shared, cached node from an already-published block.
func (b *Batch) ensureMinKeys(ctx context.Context, n *TreeNode, idx int) error {
	child, err := n.GetChildNode(b.tr, ctx, idx)
	if err != nil {
		return err
	}
	if child.KeyCount() >= T {
		return nil
	}
	child = child.forWrite()
	n.children[idx] = ChildRef{node: child}

	var leftSib, rightSib *TreeNode
	if idx > 0 {
		if leftSib, err = n.GetChildNode(b.tr, ctx, idx-1); err != nil {
			return err
		}
	}
	if idx < len(n.children)-1 {
		if rightSib, err = n.GetChildNode(b.tr, ctx, idx+1); err != nil {
			return err
		}
	}

	switch {
	case leftSib != nil && leftSib.KeyCount() > minKeysOther:
		leftSib = leftSib.forWrite()
		n.children[idx-1] = ChildRef{node: leftSib}

		borrowed := leftSib.keys[len(leftSib.keys)-1]
		leftSib.keys = leftSib.keys[:len(leftSib.keys)-1]
		leftSib.changed = true

		parentKey := n.keys[idx-1]
		n.keys[idx-1] = borrowed
		n.changed = true

		child.keys = append([]KeyRef{parentKey}, child.keys...)
		if !leftSib.IsLeaf() {
			borrowedChild := leftSib.children[len(leftSib.children)-1]
			leftSib.children = leftSib.children[:len(leftSib.children)-1]
			child.children = append([]ChildRef{borrowedChild}, child.children...)
		}
		child.changed = true
		return nil

	case rightSib != nil && rightSib.KeyCount() > minKeysOther:
		rightSib = rightSib.forWrite()
		n.children[idx+1] = ChildRef{node: rightSib}

		borrowed := rightSib.keys[0]
		rightSib.keys = rightSib.keys[1:]
		rightSib.changed = true

		parentKey := n.keys[idx]
		n.keys[idx] = borrowed
		n.changed = true

		child.keys = append(child.keys, parentKey)
		if !rightSib.IsLeaf() {
			borrowedChild := rightSib.children[0]
			rightSib.children = rightSib.children[1:]
			child.children = append(child.children, borrowedChild)
		}
		child.changed = true
		return nil

	case leftSib != nil:
		leftSib = leftSib.forWrite()
		n.children[idx-1] = ChildRef{node: leftSib}

		median := n.keys[idx-1]
		leftSib.merge(child, median)
		n.keys = append(n.keys[:idx-1], n.keys[idx:]...)
		n.children = append(n.children[:idx], n.children[idx+1:]...)
		n.changed = true
		return nil

	default:
		rightSib = rightSib.forWrite()
		n.children[idx+1] = ChildRef{node: rightSib}

		median := n.keys[idx]
		child.merge(rightSib, median)
		n.keys = append(n.keys[:idx], n.keys[idx+1:]...)
		n.children = append(n.children[:idx+1], n.children[idx+2:]...)
		n.changed = true
		return nil
	}
}

// Flush serializes every staged entry's changed spine and appends the
// resulting blocks to the log atomically. Every non-final entry has its
// stale root slot (offset 0) compacted away: since a mutation always
// re-touches the root, an intermediate batch entry's root is never
// externally reachable once flush completes, so indexing it is pure
// waste.
func (b *Batch) Flush(ctx context.Context) error {
	if b.flushed {
		return ErrInvariant
	}
	b.flushed = true
	if len(b.entries) == 0 {
		return nil
	}

	blocks := make([][]byte, len(b.entries))
	// Every entry's tree is part of the one in-memory node graph the batch
	// mutated, which now holds the final state. The last entry is indexed
	// first, so every changed node is homed in the block that publishes the
	// batch's final root.
	for i := len(b.entries) - 1; i >= 0; i-- {
		e := b.entries[i]
		var levels []Level
		if e.tree != nil {
			e.tree.indexChanges(&levels, e.seq)
		}
		if i < len(b.entries)-1 {
			levels = compactIntermediateLevels(levels, e.seq)
		}
		e.index = levels
		blocks[i] = e.encode()
	}
	return b.tr.log.Append(ctx, blocks...)
}

// compactIntermediateLevels drops an intermediate batch entry's dead root
// slot (offset 0) and renumbers same-block child offsets down by one.
func compactIntermediateLevels(levels []Level, seq uint64) []Level {
	if len(levels) == 0 {
		return levels
	}
	out := append([]Level(nil), levels[1:]...)
	for i := range out {
		children := out[i].Children
		for c := 0; c+1 < len(children); c += 2 {
			if children[c] == seq && children[c+1] > 0 {
				children[c+1]--
			}
		}
	}
	return out
}
