package beetree

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	cases := []Header{
		{Protocol: "hyperbee"},
		{Protocol: "hyperbee", Metadata: &Metadata{}},
		{Protocol: "hyperbee", Metadata: &Metadata{ContentFeed: []byte("feed-key")}},
	}
	for i, h := range cases {
		got, err := DecodeHeader(EncodeHeader(h))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if got.Protocol != h.Protocol {
			t.Fatalf("case %d: protocol mismatch", i)
		}
		if (got.Metadata == nil) != (h.Metadata == nil) {
			t.Fatalf("case %d: metadata presence mismatch", i)
		}
		if h.Metadata != nil && !bytes.Equal(got.Metadata.ContentFeed, h.Metadata.ContentFeed) {
			t.Fatalf("case %d: content feed mismatch", i)
		}
	}
}

func TestNodeRoundTrip(t *testing.T) {
	cases := []Node{
		{Index: []byte{}, Key: []byte("a")},
		{Index: []byte{1, 2, 3}, Key: []byte("a"), Value: []byte("1"), HasValue: true},
		{Index: []byte{1, 2, 3}, Key: []byte("a"), Value: []byte{}, HasValue: true},
	}
	for i, n := range cases {
		got, err := DecodeNode(EncodeNode(n))
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if !bytes.Equal(got.Index, n.Index) || !bytes.Equal(got.Key, n.Key) {
			t.Fatalf("case %d: mismatch %+v vs %+v", i, got, n)
		}
		if got.HasValue != n.HasValue || (n.HasValue && !bytes.Equal(got.Value, n.Value)) {
			t.Fatalf("case %d: value mismatch", i)
		}
	}
}

func TestYoloIndexRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		n := r.Intn(5)
		levels := make([]Level, n)
		for j := range levels {
			nk := r.Intn(9)
			keys := make([]uint64, nk)
			for k := range keys {
				keys[k] = r.Uint64() % (1 << 40)
			}
			nc := r.Intn(5) * 2
			children := make([]uint64, nc)
			for k := range children {
				children[k] = r.Uint64() % (1 << 40)
			}
			levels[j] = Level{Keys: keys, Children: children}
		}
		got, err := DecodeYoloIndex(EncodeYoloIndex(levels))
		if err != nil {
			t.Fatalf("iter %d: %v", i, err)
		}
		if len(got) != len(levels) {
			t.Fatalf("iter %d: level count mismatch", i)
		}
		for j := range levels {
			if !equalU64(got[j].Keys, levels[j].Keys) || !equalU64(got[j].Children, levels[j].Children) {
				t.Fatalf("iter %d level %d: mismatch", i, j)
			}
		}
	}
}

func equalU64(a, b []uint64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
