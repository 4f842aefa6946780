package artifactcache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSourceHashDeterministic(t *testing.T) {
	files := map[string][]byte{"main.go": []byte("package main\n"), "util.go": []byte("package main\n\nfunc f() {}\n")}
	h1 := NewSourceHash(files)
	h2 := NewSourceHash(files)
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %q != %q", h1, h2)
	}
}

func TestSourceHashSensitiveToContent(t *testing.T) {
	a := NewSourceHash(map[string][]byte{"main.go": []byte("package main\n")})
	b := NewSourceHash(map[string][]byte{"main.go": []byte("package main // changed\n")})
	if a == b {
		t.Fatal("hash should differ when content differs")
	}
}

func TestCacheHitEquivalence(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemStore())
	hash := SourceHash("abc")

	var calls int32
	produce := func(context.Context) (*ArtifactRecord, error) {
		atomic.AddInt32(&calls, 1)
		return &ArtifactRecord{SourceHash: hash, Bytes: []byte{0x00, 0x61, 0x73, 0x6D}}, nil
	}

	first, err, _ := c.Produce(ctx, hash, produce)
	if err != nil {
		t.Fatal(err)
	}
	second, err, _ := c.Produce(ctx, hash, produce)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("records differ between calls (-first +second):\n%s", diff)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("produce called %d times, want 1", got)
	}
}

func TestConcurrentProduceCoalesces(t *testing.T) {
	ctx := context.Background()
	c := New(NewMemStore())
	hash := SourceHash("concurrent")

	var calls int32
	start := make(chan struct{})
	produce := func(context.Context) (*ArtifactRecord, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return &ArtifactRecord{SourceHash: hash, Bytes: []byte("result")}, nil
	}

	const n = 8
	var wg sync.WaitGroup
	results := make([]*ArtifactRecord, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec, err, _ := c.Produce(ctx, hash, produce)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = rec
		}(i)
	}
	time.Sleep(10 * time.Millisecond)
	close(start)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("produce called %d times, want 1", got)
	}
	for i, r := range results {
		if r == nil || string(r.Bytes) != "result" {
			t.Fatalf("result[%d] = %+v", i, r)
		}
	}
}
