package metrics

import "github.com/prometheus/client_golang/prometheus"

// Option applies a configuration option to a Manager.
type Option func(*Manager)

// WithRegistry sets the Prometheus registry the manager registers into.
func WithRegistry(r *prometheus.Registry) Option {
	return func(m *Manager) {
		if r != nil {
			m.registry = r
		}
	}
}
