package blockcache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrLoadCaches(t *testing.T) {
	c, err := New[int](4)
	if err != nil {
		t.Fatal(err)
	}
	var loads int32
	load := func() (int, error) {
		atomic.AddInt32(&loads, 1)
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrLoad(7, load)
		if err != nil || v != 42 {
			t.Fatalf("v=%d err=%v", v, err)
		}
	}
	if loads != 1 {
		t.Fatalf("want 1 load, got %d", loads)
	}
}

func TestGetOrLoadCoalescesConcurrentMisses(t *testing.T) {
	c, err := New[int](4)
	if err != nil {
		t.Fatal(err)
	}
	var loads int32
	release := make(chan struct{})
	load := func() (int, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return 99, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrLoad(1, load)
			if err != nil || v != 99 {
				t.Errorf("v=%d err=%v", v, err)
			}
		}()
	}
	close(release)
	wg.Wait()

	if loads != 1 {
		t.Fatalf("want exactly 1 coalesced load, got %d", loads)
	}
}

func TestGetOrLoadPropagatesError(t *testing.T) {
	c, err := New[int](4)
	if err != nil {
		t.Fatal(err)
	}
	wantErr := errors.New("boom")
	_, err = c.GetOrLoad(1, func() (int, error) { return 0, wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("want %v, got %v", wantErr, err)
	}
	// A failed load must not be cached: a later successful load should win.
	v, err := c.GetOrLoad(1, func() (int, error) { return 5, nil })
	if err != nil || v != 5 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

func TestPeekAndPurge(t *testing.T) {
	c, err := New[string](4)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Peek(1); ok {
		t.Fatal("expected miss before Put")
	}
	c.Put(1, "x")
	v, ok := c.Peek(1)
	if !ok || v != "x" {
		t.Fatalf("v=%q ok=%v", v, ok)
	}
	c.Purge()
	if _, ok := c.Peek(1); ok {
		t.Fatal("expected miss after Purge")
	}
}
