// Package blockcache is a generic, size-bounded cache for hydrated log
// blocks, with concurrent loads for the same key coalesced into one.
// It is deliberately generic (Cache[V any]) so the root package can
// instantiate it over *BlockEntry without blockcache importing the root
// package back.
package blockcache

import (
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/singleflight"
)

// DefaultSize is used when a caller passes size <= 0.
const DefaultSize = 1024

// Cache holds up to a fixed number of (seq -> V) entries, evicting least
// recently used, and ensures that concurrent misses on the same seq only
// trigger one call to load.
type Cache[V any] struct {
	lru *lru.Cache
	g   singleflight.Group
}

// New builds a Cache holding at most size entries.
func New[V any](size int) (*Cache[V], error) {
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Cache[V]{lru: l}, nil
}

// GetOrLoad returns the cached value for seq, or calls load exactly once
// across any number of concurrent callers racing on the same seq, caching
// and returning its result.
func (c *Cache[V]) GetOrLoad(seq uint64, load func() (V, error)) (V, error) {
	if v, ok := c.lru.Get(seq); ok {
		return v.(V), nil
	}
	v, err, _ := c.g.Do(seqKey(seq), func() (interface{}, error) {
		if v, ok := c.lru.Get(seq); ok {
			return v, nil
		}
		val, err := load()
		if err != nil {
			return nil, err
		}
		c.lru.Add(seq, val)
		return val, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Peek returns the cached value for seq without affecting its recency, or
// ok=false if absent.
func (c *Cache[V]) Peek(seq uint64) (V, bool) {
	if v, ok := c.lru.Peek(seq); ok {
		return v.(V), true
	}
	var zero V
	return zero, false
}

// Put inserts or overwrites the cached value for seq.
func (c *Cache[V]) Put(seq uint64, v V) { c.lru.Add(seq, v) }

// Purge empties the cache.
func (c *Cache[V]) Purge() { c.lru.Purge() }

func seqKey(seq uint64) string {
	var buf [20]byte
	n := len(buf)
	if seq == 0 {
		return "0"
	}
	for seq > 0 {
		n--
		buf[n] = byte('0' + seq%10)
		seq /= 10
	}
	return string(buf[n:])
}
