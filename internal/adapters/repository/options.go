package repository

// Option applies a configuration option to the MemStore.
type Option func(*MemStore)

// WithListLimit caps how many records List returns at once.
func WithListLimit(limit int) Option {
	return func(s *MemStore) {
		if limit > 0 {
			s.listLimit = limit
		}
	}
}
