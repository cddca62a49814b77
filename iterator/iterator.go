// Package iterator defines the streaming contract consumed by external
// range/history streamers layered over the core's cursor. beetree's tree
// handle returns concrete implementations of Iterator (see the root
// package's CreateReadStream / CreateHistoryStream); this package only
// pins the interface so adapters (io.Reader-style wrappers, channel
// adapters, etc.) can be written against it without importing the core.
package iterator

import "context"

// Iterator is a pull-based cursor over (key, value) pairs. Next advances and
// reports the next entry; ok is false once the stream is exhausted, with err
// set only on failure (a clean end-of-stream is ok=false, err=nil).
type Iterator interface {
	Next(ctx context.Context) (key, value []byte, ok bool, err error)
	Close() error
}

// RangeOptions bounds a key-ordered scan. Bounds are raw, post-codec bytes.
type RangeOptions struct {
	GT, GTE, LT, LTE []byte
	Limit            int
	Reverse          bool
}

// HistoryOptions bounds a scan over the log's append history.
type HistoryOptions struct {
	Live    bool
	Since   *uint64
	Reverse bool
}

// Collect drains an Iterator into a slice of key/value pairs. Convenience
// for tests and small scans; callers with large ranges should use Next
// directly.
func Collect(ctx context.Context, it Iterator) ([][2][]byte, error) {
	defer it.Close()
	var out [][2][]byte
	for {
		k, v, ok, err := it.Next(ctx)
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, [2][]byte{k, v})
	}
}
