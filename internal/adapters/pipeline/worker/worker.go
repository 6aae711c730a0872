// Package worker runs the chunk conversion loop: read frames from the
// source recording, write them into the output binary at the chunk's offset.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/rdarie/spikepipe/internal/domain/model"
	"github.com/rdarie/spikepipe/pkg/logger"
	"github.com/rdarie/spikepipe/pkg/metrics"
)

// Default worker configuration constants.
const (
	poolShutdownTimeout = 30 * time.Second
)

// Chunk abstracts what workers read off the queue.
type Chunk = model.Chunk

// Source reads interleaved int16 frames from the input recording.
// Implementations must be safe for concurrent use.
type Source interface {
	Traces(ctx context.Context, start, frames int64) ([]int16, error)
}

// Sink writes converted samples at a byte offset. Chunks own disjoint
// ranges, so concurrent writes never overlap.
type Sink interface {
	WriteChunkAt(samples []int16, byteOffset int64) (int, error)
}

// Queue defines how workers receive chunks.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Chunk
}

// Worker converts chunks read from the queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue
	// drains.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker for converting chunks.
type InMemoryWorker struct {
	queue  Queue
	source Source
	sink   Sink
	name   string

	// onChunk is invoked after every successful chunk, with the frames
	// and bytes it contributed.
	onChunk func(c Chunk, bytes int)

	// onError reports the first failure to the pool.
	onError func(error)

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, source Source, sink Sink, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		source:   source,
		sink:     sink,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	chunkChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case c, ok := <-chunkChan:
			if !ok {
				return
			}
			if err := w.processChunk(ctx, c); err != nil {
				w.logger.Error(ctx, "chunk conversion failed",
					logger.Int("chunk", c.Index),
					logger.Error(err),
				)
				if w.onError != nil {
					w.onError(err)
				}
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// processChunk reads one chunk from the source and writes it to the sink.
func (w *InMemoryWorker) processChunk(ctx context.Context, c Chunk) error {
	start := time.Now()
	defer func() {
		metrics.RecordChunkLatency(float64(time.Since(start).Milliseconds()))
		metrics.RecordWorkerLatency(float64(time.Since(start).Milliseconds()))
	}()

	readStart := time.Now()
	samples, err := w.source.Traces(ctx, c.StartFrame, c.Frames)
	metrics.RecordReadLatency(float64(time.Since(readStart).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "read_error")
		return fmt.Errorf("read chunk %d at frame %d: %w", c.Index, c.StartFrame, err)
	}

	writeStart := time.Now()
	n, err := w.sink.WriteChunkAt(samples, c.ByteOffset)
	metrics.RecordWriteLatency(float64(time.Since(writeStart).Milliseconds()))
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "write_error")
		return fmt.Errorf("write chunk %d: %w", c.Index, err)
	}

	metrics.RecordChunkProcessed()
	metrics.RecordFramesConverted(c.Frames)
	if w.onChunk != nil {
		w.onChunk(c, n)
	}
	return nil
}

// Pool manages multiple workers converting one recording.
type Pool struct {
	workers []*InMemoryWorker

	wg sync.WaitGroup

	errMu    sync.Mutex
	firstErr error
	cancel   context.CancelFunc

	logger logger.Logger
}

// NewPool creates a worker pool. A non-positive count defaults to the
// number of CPUs.
func NewPool(workerCount int, queue Queue, source Source, sink Sink, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(
			queue,
			source,
			sink,
			append([]Option{
				WithName("worker-" + strconv.Itoa(i)),
				WithOnError(pool.recordError),
			}, opts...)...,
		)
	}

	metrics.UpdateWorkerActiveCount(workerCount)
	return pool
}

// Start launches all workers. The first chunk failure cancels the derived
// context, which stops the remaining workers.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Wait blocks until every worker has stopped, either because the queue
// drained or a failure canceled the run. It returns the first error.
func (p *Pool) Wait() error {
	p.wg.Wait()
	if p.cancel != nil {
		p.cancel()
	}
	return p.Err()
}

// Err returns the first worker error observed so far.
func (p *Pool) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.firstErr
}

func (p *Pool) recordError(err error) {
	p.errMu.Lock()
	first := p.firstErr == nil
	if first {
		p.firstErr = err
	}
	p.errMu.Unlock()

	if first && p.cancel != nil {
		p.cancel()
	}
}

// Shutdown stops all workers without waiting for the queue to drain.
func (p *Pool) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.done:
			continue
		default:
		}
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}
