package beetree_test

import (
	"context"
	"fmt"
	"testing"

	"beetree"
	"beetree/iterator"
)

func TestCreateReadStreamOrderedAndBounded(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("k%02d", i))
		if err := tr.Put(ctx, key, key); err != nil {
			t.Fatal(err)
		}
	}

	it, err := tr.CreateReadStream(ctx, iterator.RangeOptions{GTE: []byte("k05"), LT: []byte("k10")})
	if err != nil {
		t.Fatal(err)
	}
	pairs, err := iterator.Collect(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 5 {
		t.Fatalf("want 5 pairs, got %d", len(pairs))
	}
	for i, p := range pairs {
		want := fmt.Sprintf("k%02d", 5+i)
		if string(p[0]) != want {
			t.Fatalf("pair %d: want key %q got %q", i, want, p[0])
		}
	}
}

func TestCreateReadStreamReverse(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		key := []byte(fmt.Sprintf("k%d", i))
		if err := tr.Put(ctx, key, key); err != nil {
			t.Fatal(err)
		}
	}
	it, err := tr.CreateReadStream(ctx, iterator.RangeOptions{Reverse: true})
	if err != nil {
		t.Fatal(err)
	}
	pairs, err := iterator.Collect(ctx, it)
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 5 || string(pairs[0][0]) != "k4" || string(pairs[4][0]) != "k0" {
		t.Fatalf("unexpected reverse order: %v", pairs)
	}
}

func TestCreateHistoryStreamIncludesTombstones(t *testing.T) {
	tr := newTestTree(t)
	ctx := context.Background()
	if err := tr.Put(ctx, []byte("a"), []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := tr.Del(ctx, []byte("a")); err != nil {
		t.Fatal(err)
	}

	it, err := tr.CreateHistoryStream(ctx, iterator.HistoryOptions{})
	if err != nil {
		t.Fatal(err)
	}
	defer it.Close()

	k, v, ok, err := it.Next(ctx)
	if err != nil || !ok || string(k) != "a" || string(v) != "1" {
		t.Fatalf("first history entry: k=%q v=%q ok=%v err=%v", k, v, ok, err)
	}
	k, v, ok, err = it.Next(ctx)
	if err != nil || !ok || string(k) != "a" || v != nil {
		t.Fatalf("tombstone entry: k=%q v=%v ok=%v err=%v", k, v, ok, err)
	}
	_, _, ok, err = it.Next(ctx)
	if err != nil || ok {
		t.Fatalf("expected end of history, got ok=%v err=%v", ok, err)
	}
}
