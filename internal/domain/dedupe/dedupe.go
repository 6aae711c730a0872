// Package dedupe provides idempotency tracking for job submissions.
package dedupe

import (
	"context"
	"sync"
)

// Deduper records seen job IDs so resubmissions acknowledge instead of
// re-running work.
type Deduper interface {
	// SeenAndRecord atomically checks whether id was seen and records it if
	// not. Returns true if id was already seen.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an ID, allowing a retry. Used when a submission was
	// recorded but could not be enqueued.
	Unrecord(ctx context.Context, id string)

	// Size returns the number of tracked IDs.
	Size() int
}

const defaultMaxSize = 50_000

// inMemoryDeduper keeps a bounded set of IDs with FIFO eviction: once the
// cache is full the oldest recorded ID is forgotten first.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	order   []string // insertion ring
	head    int      // next eviction slot
	maxSize int
}

// NewInMemoryDeduper creates a bounded in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]struct{}, d.maxSize)
	d.order = make([]string, 0, d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return true
	}

	if len(d.order) < d.maxSize {
		d.order = append(d.order, id)
	} else {
		// Ring is full: evict the oldest occupant of this slot.
		old := d.order[d.head]
		if old != "" {
			delete(d.seen, old)
		}
		d.order[d.head] = id
		d.head = (d.head + 1) % d.maxSize
	}
	d.seen[id] = struct{}{}
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; !ok {
		return
	}
	delete(d.seen, id)
	for i, v := range d.order {
		if v == id {
			d.order[i] = ""
			break
		}
	}
}

func (d *inMemoryDeduper) Size() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
