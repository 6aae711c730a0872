package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize bounds the number of tracked IDs.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) {
		if n > 0 {
			d.maxSize = n
		}
	}
}
