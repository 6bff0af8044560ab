package router

import (
	"net/http"
	"time"

	"petwatch/internal/handlers"
	"petwatch/internal/metrics"
)

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, collector *metrics.Collector) *http.Server {
	r := NewRouter(h, collector)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      r.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
