package beetree

import "errors"

var (
	// ErrNotFound is returned by a Log implementation's Get when asked for a
	// seq outside [0, Length()) (see internal/filelog, internal/testutil).
	// Tree.Get itself never returns it: a missing or deleted key reports
	// ok=false with a nil error, per spec.
	ErrNotFound = errors.New("beetree: key not found")

	// ErrClosed names a closed tree. Tree has no Close method, and no
	// operation in this package returns it.
	ErrClosed = errors.New("beetree: tree closed")

	// ErrInvalidKey is returned when a nil or empty key is supplied to a mutation.
	ErrInvalidKey = errors.New("beetree: invalid key")

	// ErrInvalidValue is returned when a nil or empty value is supplied to
	// Put; the wire format signals a tombstone by the absence of a value,
	// so Put cannot also store an empty one. Use Del to remove a key.
	ErrInvalidValue = errors.New("beetree: invalid value")

	// ErrCheckedOut is returned by mutating operations on a handle pinned by Checkout.
	ErrCheckedOut = errors.New("beetree: handle is a read-only checkout")

	// ErrNotWritable is returned by Put/Del/Batch when the underlying log is not writable.
	ErrNotWritable = errors.New("beetree: log is not writable")

	// ErrInvariant marks a violation of a structural tree invariant. Not recoverable.
	ErrInvariant = errors.New("beetree: invariant violation")

	// ErrBadWire is returned by the block codec on malformed input.
	ErrBadWire = errors.New("beetree: malformed block")
)
