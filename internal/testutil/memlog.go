// Package testutil provides an in-memory beetree.Log fake used by the
// core package's own tests, grounded on the teacher's style of small,
// dependency-free fakes for infrastructure interfaces under test.
package testutil

import (
	"context"
	"sync"

	"beetree"
)

// MemLog is a minimal, non-persistent beetree.Log: every block lives in a
// slice, Append is atomic within the process, and Update always reports
// no change (there is nothing else writing to a MemLog).
type MemLog struct {
	mu       sync.Mutex
	blocks   [][]byte
	writable bool
}

// NewMemLog returns a ready, writable, empty MemLog.
func NewMemLog() *MemLog { return &MemLog{writable: true} }

// NewReadOnlyMemLog returns a MemLog pre-populated with blocks, open for
// reads only (Writable reports false), for exercising checkout-style
// read paths without risking an accidental write.
func NewReadOnlyMemLog(blocks [][]byte) *MemLog {
	return &MemLog{blocks: blocks, writable: false}
}

func (l *MemLog) Ready(ctx context.Context) error { return ctx.Err() }

func (l *MemLog) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.blocks))
}

func (l *MemLog) Writable() bool { return l.writable }

func (l *MemLog) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq >= uint64(len(l.blocks)) {
		return nil, beetree.ErrNotFound
	}
	return l.blocks[seq], nil
}

func (l *MemLog) Append(ctx context.Context, blocks ...[]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.writable {
		return beetree.ErrNotWritable
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocks = append(l.blocks, blocks...)
	return nil
}

func (l *MemLog) Update(ctx context.Context, opts beetree.UpdateOptions) (bool, error) {
	return false, ctx.Err()
}
