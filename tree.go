package beetree

import (
	"context"
	"io"
	"sync"

	"beetree/codec"
	"beetree/ext"
	"beetree/internal/blockcache"
)

// Options configures a Tree at construction.
type Options struct {
	// KeyCodec and ValueCodec transform caller-supplied bytes before they
	// are stored. Both default to codec.Raw (identity passthrough).
	KeyCodec, ValueCodec codec.Codec
	// CacheSize bounds how many hydrated BlockEntry values are kept
	// in memory. Defaults to blockcache.DefaultSize.
	CacheSize int
	// Metadata is written into the header block the first time the tree
	// opens a writable, empty log.
	Metadata *Metadata
}

// Tree is a handle onto one hyperbee-style index layered over a Log. A
// Tree is safe for concurrent reads; writes (Put/Del/Batch) assume the
// single-writer discipline the underlying Log itself requires.
type Tree struct {
	log      Log
	keyCodec codec.Codec
	valCodec codec.Codec
	metadata *Metadata

	cache *blockcache.Cache[*BlockEntry]
	ext   ext.Extension

	mu              sync.Mutex
	readyErr        error
	ready           bool
	closed          bool
	header          Header
	checkoutVersion uint64 // 0 means live (tracks log tip); else pinned
}

// New constructs a Tree over log. Call Ready before any other operation.
func New(log Log, opts Options) *Tree {
	kc, vc := opts.KeyCodec, opts.ValueCodec
	if kc == nil {
		kc = codec.Raw
	}
	if vc == nil {
		vc = codec.Raw
	}
	size := opts.CacheSize
	if size <= 0 {
		size = blockcache.DefaultSize
	}
	cache, _ := blockcache.New[*BlockEntry](size)
	return &Tree{
		log:      log,
		keyCodec: kc,
		valCodec: vc,
		metadata: opts.Metadata,
		cache:    cache,
	}
}

// RegisterExtension attaches a peer extension satisfying ext.Extension.
func (tr *Tree) RegisterExtension(e ext.Extension) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.ext = e
}

// Ready waits for the underlying log to be ready, then either writes a
// fresh header block (empty, writable log) or reads and validates the
// existing one. Idempotent: subsequent calls are no-ops.
func (tr *Tree) Ready(ctx context.Context) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.readyLocked(ctx)
}

func (tr *Tree) readyLocked(ctx context.Context) error {
	if tr.ready {
		return tr.readyErr
	}
	tr.readyErr = tr.openHeader(ctx)
	tr.ready = true
	return tr.readyErr
}

func (tr *Tree) openHeader(ctx context.Context) error {
	if err := tr.log.Ready(ctx); err != nil {
		return err
	}
	if tr.log.Length() == 0 {
		if !tr.log.Writable() {
			return nil // nothing to read yet on a read-only empty log
		}
		tr.header = Header{Protocol: protocolName, Metadata: tr.metadata}
		return tr.log.Append(ctx, EncodeHeader(tr.header))
	}
	raw, err := tr.log.Get(ctx, 0)
	if err != nil {
		return err
	}
	h, err := DecodeHeader(raw)
	if err != nil {
		return err
	}
	if h.Protocol != protocolName {
		return ErrBadWire
	}
	tr.header = h
	return nil
}

func (tr *Tree) ensureReady(ctx context.Context) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.readyLocked(ctx)
}

// Version is the number of blocks published so far, counting the header;
// an empty tree reports version 1 (the floor, per spec's max(1, length)).
func (tr *Tree) Version(ctx context.Context) (uint64, error) {
	if err := tr.ensureReady(ctx); err != nil {
		return 0, err
	}
	length, err := tr.effectiveLength(ctx)
	if err != nil {
		return 0, err
	}
	if length < 1 {
		return 1, nil
	}
	return length, nil
}

func (tr *Tree) effectiveLength(ctx context.Context) (uint64, error) {
	tr.mu.Lock()
	pinned := tr.checkoutVersion
	tr.mu.Unlock()
	if pinned != 0 {
		return pinned, nil
	}
	return tr.log.Length(), nil
}

// Checkout returns a read-only Tree pinned to the given version (as
// returned by Version). The returned Tree shares this one's log and
// cache but rejects Put/Del/Batch with ErrCheckedOut.
func (tr *Tree) Checkout(version uint64) *Tree {
	return &Tree{
		log:             tr.log,
		keyCodec:        tr.keyCodec,
		valCodec:        tr.valCodec,
		metadata:        tr.metadata,
		cache:           tr.cache,
		ext:             tr.ext,
		ready:           true,
		header:          tr.header,
		checkoutVersion: version,
	}
}

// Snapshot is an alias for Checkout at the tree's current version: a
// stable view immune to subsequent writes through tr.
func (tr *Tree) Snapshot(ctx context.Context) (*Tree, error) {
	v, err := tr.Version(ctx)
	if err != nil {
		return nil, err
	}
	return tr.Checkout(v), nil
}

// extHookKey scopes an in-flight Get's opportunistic extension hint to
// that call's context, so blockSourceAt can fire it without widening the
// Tree/Batch surface that shares this same fetch path.
type extHookKey struct{}

// extHookState tracks whether Get's one opportunistic extension call has
// already fired for this operation.
type extHookState struct {
	rootSeq uint64
	key     []byte
	fired   bool
}

// extAnswered is returned by blockSourceAt, in place of a normal fetch,
// when a registered extension's Get hint resolved the lookup first.
type extAnswered struct{ value []byte }

func (e *extAnswered) Error() string { return "beetree: resolved via registered extension" }

// extAnswer unwraps an extAnswered error into its decoded value, reporting
// whether err was in fact one.
func extAnswer(vc codec.Codec, err error) (value []byte, matched bool) {
	ans, ok := err.(*extAnswered)
	if !ok {
		return nil, false
	}
	return vc.Decode(ans.value), true
}

// blockSourceAt dereferences seq against the log (through the block
// cache), decoding it into a BlockEntry on first access. If ctx carries an
// *extHookState (set by Get) and this would be the first genuine fetch of
// the operation, the registered extension gets one opportunistic chance to
// answer instead (see §4.4).
func (tr *Tree) blockSourceAt(ctx context.Context, seq uint64) (blockSource, error) {
	if _, hit := tr.cache.Peek(seq); !hit {
		if st, _ := ctx.Value(extHookKey{}).(*extHookState); st != nil && !st.fired && tr.ext != nil {
			st.fired = true
			if v, ok := tr.ext.Get(ctx, st.rootSeq, st.key); ok {
				return nil, &extAnswered{value: v}
			}
		}
	}
	be, err := tr.cache.GetOrLoad(seq, func() (*BlockEntry, error) {
		raw, err := tr.log.Get(ctx, seq)
		if err != nil {
			return nil, err
		}
		return newBlockEntry(seq, raw)
	})
	if err != nil {
		return nil, err
	}
	return be, nil
}

// currentRootForWrite resolves the root TreeNode and log length a new
// Batch should start from, enforcing the single-writer / not-checked-out
// preconditions.
func (tr *Tree) currentRootForWrite(ctx context.Context) (*TreeNode, uint64, error) {
	tr.mu.Lock()
	pinned := tr.checkoutVersion
	tr.mu.Unlock()
	if pinned != 0 {
		return nil, 0, ErrCheckedOut
	}
	if !tr.log.Writable() {
		return nil, 0, ErrNotWritable
	}
	if err := tr.ensureReady(ctx); err != nil {
		return nil, 0, err
	}
	return tr.rootAt(ctx, tr.log.Length())
}

func (tr *Tree) rootAt(ctx context.Context, length uint64) (*TreeNode, uint64, error) {
	if length <= 1 {
		return nil, length, nil
	}
	src, err := tr.blockSourceAt(ctx, length-1)
	if err != nil {
		return nil, 0, err
	}
	if be, ok := src.(*BlockEntry); ok && len(be.index) == 0 {
		return nil, length, nil // the last mutation deleted the tree's last key
	}
	root, err := src.getTreeNode(0)
	if err != nil {
		return nil, 0, err
	}
	return root, length, nil
}

// Update performs a best-effort, non-blocking refresh of the tree's view of
// the underlying log (handle.update() per spec) and reports whether the
// view actually changed.
func (tr *Tree) Update(ctx context.Context) (bool, error) {
	if err := tr.ensureReady(ctx); err != nil {
		return false, err
	}
	return tr.log.Update(ctx, UpdateOptions{})
}

// GetRootOptions configures GetRoot.
type GetRootOptions struct {
	// SkipUpdate, if true, opts out of GetRoot's default auto-refresh
	// (opts.update=false per spec).
	SkipUpdate bool
}

// GetRoot resolves the current root node (nil for an empty tree) along
// with the log length it was resolved against. Unless the handle is
// checked out, writable, or the caller passes SkipUpdate, GetRoot first
// triggers Update so a read-only replica picks up newly available blocks.
func (tr *Tree) GetRoot(ctx context.Context, opts ...GetRootOptions) (*TreeNode, uint64, error) {
	if err := tr.ensureReady(ctx); err != nil {
		return nil, 0, err
	}
	var o GetRootOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	tr.mu.Lock()
	pinned := tr.checkoutVersion
	tr.mu.Unlock()
	if pinned == 0 && !tr.log.Writable() && !o.SkipUpdate {
		if _, err := tr.Update(ctx); err != nil {
			return nil, 0, err
		}
	}
	length, err := tr.effectiveLength(ctx)
	if err != nil {
		return nil, 0, err
	}
	return tr.rootAt(ctx, length)
}

// Get performs a point lookup. ok is false both when the key was never
// written and when its most recent write was a Del (a tombstone).
//
// Per §4.4, the first time this traversal would suspend on a block not
// already cached, a registered extension gets one opportunistic chance to
// answer directly (RegisterExtension); a hit short-circuits the rest of
// the descent.
func (tr *Tree) Get(ctx context.Context, rawKey []byte) (value []byte, ok bool, err error) {
	if len(rawKey) == 0 {
		return nil, false, ErrInvalidKey
	}
	encKey := tr.keyCodec.Encode(rawKey)

	getCtx := ctx
	if tr.ext != nil {
		length, err := tr.effectiveLength(ctx)
		if err != nil {
			return nil, false, err
		}
		var rootSeq uint64
		if length >= 1 {
			rootSeq = length - 1
		}
		getCtx = context.WithValue(ctx, extHookKey{}, &extHookState{rootSeq: rootSeq, key: encKey})
	}

	node, _, err := tr.GetRoot(getCtx)
	if err != nil {
		if v, matched := extAnswer(tr.valCodec, err); matched {
			return v, true, nil
		}
		return nil, false, err
	}
	for node != nil {
		idx, found, err := node.search(tr, getCtx, encKey)
		if err != nil {
			if v, matched := extAnswer(tr.valCodec, err); matched {
				return v, true, nil
			}
			return nil, false, err
		}
		if found {
			src, err := tr.blockSourceAt(getCtx, node.keys[idx].Seq)
			if err != nil {
				if v, matched := extAnswer(tr.valCodec, err); matched {
					return v, true, nil
				}
				return nil, false, err
			}
			val, hasVal := src.literalValue()
			if !hasVal {
				return nil, false, nil
			}
			return tr.valCodec.Decode(val), true, nil
		}
		if node.IsLeaf() {
			return nil, false, nil
		}
		node, err = node.GetChildNode(tr, getCtx, idx)
		if err != nil {
			if v, matched := extAnswer(tr.valCodec, err); matched {
				return v, true, nil
			}
			return nil, false, err
		}
	}
	return nil, false, nil
}

// Put inserts or replaces key -> value as a single-operation, auto-flushed
// batch.
func (tr *Tree) Put(ctx context.Context, key, value []byte) error {
	b, err := tr.newBatch(ctx, true)
	if err != nil {
		return err
	}
	return b.Put(ctx, key, value)
}

// Del removes key, if present, as a single-operation, auto-flushed batch.
func (tr *Tree) Del(ctx context.Context, key []byte) error {
	b, err := tr.newBatch(ctx, true)
	if err != nil {
		return err
	}
	return b.Del(ctx, key)
}
