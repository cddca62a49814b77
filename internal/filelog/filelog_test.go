package filelog

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestAppendGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	ctx := context.Background()
	blocks := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, b := range blocks {
		if err := l.Append(ctx, b); err != nil {
			t.Fatal(err)
		}
	}
	if l.Length() != 3 {
		t.Fatalf("want length 3, got %d", l.Length())
	}
	for i, want := range blocks {
		got, err := l.Get(ctx, uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("block %d: want %q got %q", i, want, got)
		}
	}
}

func TestReopenScansExistingRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	ctx := context.Background()

	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Append(ctx, []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	l2, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l2.Close()
	if l2.Length() != 1 {
		t.Fatalf("want length 1 after reopen, got %d", l2.Length())
	}
	got, err := l2.Get(ctx, 0)
	if err != nil || !bytes.Equal(got, []byte("persisted")) {
		t.Fatalf("got %q err=%v", got, err)
	}
}

func TestAppendGrowsPastInitialMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	ctx := context.Background()

	big := bytes.Repeat([]byte("x"), initialMapSize)
	if err := l.Append(ctx, big); err != nil {
		t.Fatal(err)
	}
	got, err := l.Get(ctx, 0)
	if err != nil || len(got) != len(big) {
		t.Fatalf("len(got)=%d err=%v", len(got), err)
	}
}
