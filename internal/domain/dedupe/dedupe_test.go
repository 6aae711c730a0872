package dedupe

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestSeenAndRecord(t *testing.T) {
	d := NewInMemoryDeduper(WithMaxSize(10))
	ctx := context.Background()

	if d.SeenAndRecord(ctx, "job-1") {
		t.Error("first record should report unseen")
	}
	if !d.SeenAndRecord(ctx, "job-1") {
		t.Error("second record should report seen")
	}
	if got := d.Size(); got != 1 {
		t.Errorf("size = %d, want 1", got)
	}
}

func TestUnrecord(t *testing.T) {
	d := NewInMemoryDeduper(WithMaxSize(10))
	ctx := context.Background()

	d.SeenAndRecord(ctx, "job-1")
	d.Unrecord(ctx, "job-1")
	if got := d.Size(); got != 0 {
		t.Errorf("size = %d, want 0", got)
	}
	if d.SeenAndRecord(ctx, "job-1") {
		t.Error("unrecorded id should be recordable again")
	}

	// Unrecording an unknown id is a no-op.
	d.Unrecord(ctx, "never-seen")
}

func TestBoundedEviction(t *testing.T) {
	const size = 4
	d := NewInMemoryDeduper(WithMaxSize(size))
	ctx := context.Background()

	for i := 0; i < size*2; i++ {
		d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i))
	}
	if got := d.Size(); got != size {
		t.Errorf("size = %d, want %d", got, size)
	}
	// Oldest ids were evicted, newest survive.
	if d.SeenAndRecord(ctx, "job-0") {
		t.Error("job-0 should have been evicted")
	}
	if !d.SeenAndRecord(ctx, "job-7") {
		t.Error("job-7 should still be tracked")
	}
}

func TestConcurrentRecord(t *testing.T) {
	d := NewInMemoryDeduper(WithMaxSize(1000))
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	firstSeen := 0
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if !d.SeenAndRecord(ctx, fmt.Sprintf("job-%d", i)) {
					mu.Lock()
					firstSeen++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	// Each distinct id must be reported unseen exactly once across all
	// goroutines.
	if firstSeen != 100 {
		t.Errorf("unseen reports = %d, want 100", firstSeen)
	}
	if got := d.Size(); got != 100 {
		t.Errorf("size = %d, want 100", got)
	}
}
