package sorter

import (
	"time"

	"github.com/rdarie/spikepipe/pkg/logger"
)

// Option applies a configuration option to the Runner.
type Option func(*Runner)

// WithTimeout bounds one sorter run. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.timeout = d
		}
	}
}

// WithLogger sets a custom logger for the runner.
func WithLogger(logger logger.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}
