package worker

import (
	"github.com/rdarie/spikepipe/pkg/logger"
)

// Option applies a configuration option to the InMemoryWorker.
type Option func(*InMemoryWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *InMemoryWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *InMemoryWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithOnChunk registers a progress callback invoked after each converted
// chunk. It must be safe for concurrent use.
func WithOnChunk(fn func(c Chunk, bytes int)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onChunk = fn
		}
	}
}

// WithOnError registers a failure callback. It must be safe for concurrent
// use.
func WithOnError(fn func(error)) Option {
	return func(w *InMemoryWorker) {
		if fn != nil {
			w.onError = fn
		}
	}
}
