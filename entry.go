package beetree

// BlockEntry is a hydrated view of a tree block already committed to the
// log: its Node payload and YoloIndex are decoded once at construction,
// and the TreeNodes it describes are inflated lazily, one offset at a
// time, and cached for the entry's lifetime.
type BlockEntry struct {
	seq   uint64
	node  Node
	index []Level
	nodes map[uint32]*TreeNode
}

// newBlockEntry decodes a raw log block (as returned by Log.Get) into a
// BlockEntry. seq must be the block's position in the log.
func newBlockEntry(seq uint64, raw []byte) (*BlockEntry, error) {
	n, err := DecodeNode(raw)
	if err != nil {
		return nil, err
	}
	levels, err := DecodeYoloIndex(n.Index)
	if err != nil {
		return nil, err
	}
	return &BlockEntry{
		seq:   seq,
		node:  n,
		index: levels,
		nodes: make(map[uint32]*TreeNode),
	}, nil
}

func (e *BlockEntry) blockSeq() uint64            { return e.seq }
func (e *BlockEntry) literalKey() []byte          { return e.node.Key }
func (e *BlockEntry) literalValue() ([]byte, bool) { return e.node.Value, e.node.HasValue }

// getTreeNode inflates (or returns the cached inflation of) the TreeNode
// recorded at the given offset of this block's YoloIndex.
func (e *BlockEntry) getTreeNode(offset uint32) (*TreeNode, error) {
	if tn, ok := e.nodes[offset]; ok {
		return tn, nil
	}
	if int(offset) >= len(e.index) {
		return nil, ErrBadWire
	}
	lvl := e.index[offset]
	if len(lvl.Children)%2 != 0 {
		return nil, ErrBadWire
	}

	tn := &TreeNode{owner: e}
	tn.keys = make([]KeyRef, len(lvl.Keys))
	for i, seq := range lvl.Keys {
		tn.keys[i] = KeyRef{Seq: seq}
	}
	if len(lvl.Children) > 0 {
		tn.children = make([]ChildRef, len(lvl.Children)/2)
		for i := range tn.children {
			tn.children[i] = ChildRef{
				Seq:    lvl.Children[2*i],
				Offset: uint32(lvl.Children[2*i+1]),
			}
		}
	}
	e.nodes[offset] = tn
	return tn, nil
}

// root returns this block's root TreeNode (always offset 0).
func (e *BlockEntry) root() (*TreeNode, error) { return e.getTreeNode(0) }

// BatchEntry is a pending, not-yet-appended block produced mid-batch: its
// seq is provisionally assigned (log length + position within the
// batch), and its structural content is the live, in-memory TreeNode
// graph produced by the mutation rather than a decoded YoloIndex. index
// is populated only once the batch flushes and calls indexChanges.
type BatchEntry struct {
	seq      uint64
	key      []byte
	value    []byte
	hasValue bool
	tree     *TreeNode
	index    []Level
}

func (e *BatchEntry) blockSeq() uint64            { return e.seq }
func (e *BatchEntry) literalKey() []byte          { return e.key }
func (e *BatchEntry) literalValue() ([]byte, bool) { return e.value, e.hasValue }

// getTreeNode returns the entry's live root tree for offset 0 and
// ErrInvariant for any other offset; it never reads index. Every live
// reference to this entry's structure already holds a cached *TreeNode
// pointer and never needs to resolve through (seq, offset).
func (e *BatchEntry) getTreeNode(offset uint32) (*TreeNode, error) {
	if offset == 0 {
		return e.tree, nil
	}
	return nil, ErrInvariant
}

// encode produces this entry's wire-ready Node payload. Callers must have
// already populated e.index (via flush's indexChanges pass).
func (e *BatchEntry) encode() []byte {
	return EncodeNode(Node{
		Index:    EncodeYoloIndex(e.index),
		Key:      e.key,
		Value:    e.value,
		HasValue: e.hasValue,
	})
}
