package beetree

import "context"

// UpdateOptions controls a best-effort, non-blocking refresh of a Log's view
// of its own length (mirrors a hypercore-style feed's update() call).
type UpdateOptions struct {
	// IfAvailable asks the log to only update if new blocks are already
	// known locally (no network round trip).
	IfAvailable bool
	// Hash asks the log to verify block hashes while updating.
	Hash bool
}

// Log is the external, append-only, sequence-numbered block store the tree
// is layered over. Implementations are single-writer: the tree never
// interleaves concurrent mutating calls against one Log, and assumes Ready,
// Length, Get, Append, and Update are safe to call from one goroutine at a
// time without additional synchronization on the caller's part.
//
// beetree treats the log as an external collaborator: this package defines
// only the contract. See internal/filelog and internal/testutil for the two
// concrete implementations used by this repo's CLI and tests respectively.
type Log interface {
	// Ready blocks until the log is open and its Length is known.
	Ready(ctx context.Context) error

	// Length returns the current number of blocks in the log.
	Length() uint64

	// Writable reports whether Append is permitted on this log handle.
	Writable() bool

	// Get returns the raw bytes of the block at seq. seq must be < Length().
	Get(ctx context.Context, seq uint64) ([]byte, error)

	// Append appends one or more raw blocks atomically, in order, starting
	// at the current Length(). On success Length() has grown by len(blocks).
	Append(ctx context.Context, blocks ...[]byte) error

	// Update performs a best-effort, non-blocking refresh of Length. It
	// returns whether the view actually changed.
	Update(ctx context.Context, opts UpdateOptions) (bool, error)
}
