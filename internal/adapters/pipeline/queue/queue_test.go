package queue

import (
	"context"
	"testing"
	"time"

	"github.com/rdarie/spikepipe/internal/domain/model"
)

func TestEnqueueDequeue(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	defer q.Close()
	ctx := context.Background()

	c := model.Chunk{Index: 3, StartFrame: 90, Frames: 30, ByteOffset: 180}
	if !q.Enqueue(ctx, c) {
		t.Fatal("enqueue on empty queue should succeed")
	}
	if got := q.Len(ctx); got != 1 {
		t.Errorf("len = %d, want 1", got)
	}

	select {
	case got := <-q.Dequeue(ctx):
		if got != c {
			t.Errorf("dequeued %+v, want %+v", got, c)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue timed out")
	}
}

func TestEnqueueFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	defer q.Close()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if !q.Enqueue(ctx, model.Chunk{Index: i}) {
			t.Fatalf("enqueue %d should succeed", i)
		}
	}
	if q.Enqueue(ctx, model.Chunk{Index: 2}) {
		t.Error("enqueue on full queue should report false")
	}
}

func TestCloseDrains(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(4))
	ctx := context.Background()

	q.Enqueue(ctx, model.Chunk{Index: 0})
	q.Enqueue(ctx, model.Chunk{Index: 1})
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if !q.IsClosed() {
		t.Error("queue should report closed")
	}
	if q.Enqueue(ctx, model.Chunk{Index: 2}) {
		t.Error("enqueue after close should report false")
	}

	// Buffered chunks still drain, then the channel closes.
	out := q.Dequeue(ctx)
	var got []int
	for c := range out {
		got = append(got, c.Index)
	}
	if len(got) != 2 || got[0] != 0 || got[1] != 1 {
		t.Errorf("drained %v, want [0 1]", got)
	}
}

func TestDoubleCloseIsNoop(t *testing.T) {
	q := NewInMemoryQueue()
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}
}
