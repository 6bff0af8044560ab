// Package router provides HTTP routing configuration for the petwatch API.
// It sets up routes and applies middleware like CORS and metrics tracking.
package router

import (
	"net/http"

	"petwatch/internal/handlers"
	"petwatch/internal/metrics"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux       *http.ServeMux
	handlers  *handlers.Handlers
	collector *metrics.Collector
}

// NewRouter creates a new router with all routes configured. The collector is
// optional; when nil, request metrics are not tracked.
func NewRouter(h *handlers.Handlers, collector *metrics.Collector) *Router {
	r := &Router{
		mux:       http.NewServeMux(),
		handlers:  h,
		collector: collector,
	}
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(metricsMiddleware(r.collector)(r.mux))
}
