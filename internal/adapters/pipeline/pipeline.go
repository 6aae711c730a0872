// Package pipeline drives one recording conversion: a bounded chunk queue
// feeding a pool of read-write workers.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rdarie/spikepipe/internal/adapters/pipeline/queue"
	"github.com/rdarie/spikepipe/internal/adapters/pipeline/worker"
	"github.com/rdarie/spikepipe/internal/domain/model"
)

// enqueueRetryDelay paces the producer when the chunk queue is full.
const enqueueRetryDelay = 5 * time.Millisecond

// Options configure one conversion run.
type Options struct {
	// QueueSize bounds the chunk queue. Zero uses the queue default.
	QueueSize int

	// Workers is the pool size. Zero uses one worker per CPU.
	Workers int

	// OnChunk receives progress after each converted chunk. Must be safe
	// for concurrent use.
	OnChunk func(c model.Chunk, bytes int)
}

// Run converts every chunk of one recording and blocks until the last chunk
// is written or the first failure stops the pool. The queue applies
// backpressure to the producer, so arbitrarily long recordings convert in
// bounded memory.
func Run(ctx context.Context, src worker.Source, sink worker.Sink, chunks []model.Chunk, opts Options) error {
	var queueOpts []queue.Option
	if opts.QueueSize > 0 {
		queueOpts = append(queueOpts, queue.WithCapacity(opts.QueueSize))
	}
	q := queue.NewInMemoryQueue(queueOpts...)

	var workerOpts []worker.Option
	if opts.OnChunk != nil {
		workerOpts = append(workerOpts, worker.WithOnChunk(opts.OnChunk))
	}
	pool := worker.NewPool(opts.Workers, q, src, sink, workerOpts...)
	pool.Start(ctx)

	if err := feed(ctx, q, pool, chunks); err != nil {
		q.Close()
		pool.Wait()
		return err
	}

	q.Close()
	return pool.Wait()
}

// feed enqueues chunks in order, waiting out a full queue and stopping as
// soon as the pool has failed.
func feed(ctx context.Context, q queue.Queue, pool *worker.Pool, chunks []model.Chunk) error {
	for _, c := range chunks {
		for !q.Enqueue(ctx, c) {
			if err := pool.Err(); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("conversion canceled at chunk %d: %w", c.Index, ctx.Err())
			case <-time.After(enqueueRetryDelay):
			}
		}
	}
	return nil
}
