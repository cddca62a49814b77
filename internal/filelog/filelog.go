package filelog

import (
	"context"
	"sync"

	"beetree"
	"beetree/internal/encoding"
)

// initialMapSize is the first mapping size for a fresh log file; grow
// doubles it as needed.
const initialMapSize = 1 << 20 // 1 MiB

// recordHeaderMax is the maximum bytes a length prefix can occupy, sized
// for the varint encoding in beetree/internal/encoding.
const recordHeaderMax = 9

// Log is a concrete, disk-backed beetree.Log. Blocks are appended as
// [varint(len+1)][bytes] records into a single memory-mapped file; the
// +1 lets an all-zero (unwritten, post-truncate) region decode as a
// sentinel "no more records" length rather than a valid zero-length
// block.
type Log struct {
	mu       sync.Mutex
	mm       *mmapFile
	end      int64 // logical end-of-data offset; the rest of mm is zero-filled headroom
	offsets  []int64
	lengths  []int64
	writable bool
}

// Open opens (creating if necessary) a disk-backed log at path and scans
// its existing records.
func Open(path string) (*Log, error) {
	mm, err := openMmap(path, initialMapSize)
	if err != nil {
		return nil, err
	}
	l := &Log{mm: mm, writable: true}
	l.scan()
	return l, nil
}

func (l *Log) scan() {
	var off int64
	for off+1 <= l.mm.Size() {
		avail := min64(recordHeaderMax, l.mm.Size()-off)
		lenPlusOne, n := encoding.GetVarint(l.mm.slice(off, avail))
		if lenPlusOne == 0 {
			break // zero-filled headroom: end of written data
		}
		recLen := int64(lenPlusOne - 1)
		recStart := off + int64(n)
		if recStart+recLen > l.mm.Size() {
			break // truncated tail record; treat as not-yet-durable
		}
		l.offsets = append(l.offsets, recStart)
		l.lengths = append(l.lengths, recLen)
		off = recStart + recLen
	}
	l.end = off
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func (l *Log) Ready(ctx context.Context) error { return ctx.Err() }

func (l *Log) Length() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return uint64(len(l.offsets))
}

func (l *Log) Writable() bool { return l.writable }

func (l *Log) Get(ctx context.Context, seq uint64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq >= uint64(len(l.offsets)) {
		return nil, beetree.ErrNotFound
	}
	out := make([]byte, l.lengths[seq])
	copy(out, l.mm.slice(l.offsets[seq], l.lengths[seq]))
	return out, nil
}

func (l *Log) Append(ctx context.Context, blocks ...[]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !l.writable {
		return beetree.ErrNotWritable
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range blocks {
		need := int64(recordHeaderMax + len(b))
		for l.end+need > l.mm.Size() {
			if err := l.mm.grow(l.mm.Size() * 2); err != nil {
				return err
			}
		}
		var hdr [recordHeaderMax]byte
		n := encoding.PutVarint(hdr[:], uint64(len(b))+1)
		copy(l.mm.slice(l.end, int64(n)), hdr[:n])
		dataOff := l.end + int64(n)
		copy(l.mm.slice(dataOff, int64(len(b))), b)

		l.offsets = append(l.offsets, dataOff)
		l.lengths = append(l.lengths, int64(len(b)))
		l.end = dataOff + int64(len(b))
	}
	return l.mm.sync()
}

func (l *Log) Update(ctx context.Context, opts beetree.UpdateOptions) (bool, error) {
	return false, ctx.Err()
}

// Close unmaps and closes the backing file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mm.close()
}
