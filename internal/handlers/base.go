package handlers

import "petwatch/internal/metrics"

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	alerts        AlertService
	db            Repository
	privacy       PrivacyCascade
	metricsReader MetricsReader
	metrics       MetricsRecorder
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithCollector records handler metrics on a metrics.Collector. A nil
// collector leaves the no-op recorder in place.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Handlers) {
		if c != nil {
			h.metrics = c
		}
	}
}

// WithMetricsReader sets the reader backing the service metrics endpoint.
func WithMetricsReader(r MetricsReader) Option {
	return func(h *Handlers) {
		h.metricsReader = r
	}
}

// NewHandlers creates a new handlers instance. Metrics default to no-op.
func NewHandlers(alerts AlertService, db Repository, privacy PrivacyCascade, opts ...Option) *Handlers {
	h := &Handlers{
		alerts:  alerts,
		db:      db,
		privacy: privacy,
		metrics: NoOpMetrics{}, // Default to no-op, never nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
