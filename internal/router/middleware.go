package router

import (
	"net/http"
	"time"

	"petwatch/internal/metrics"
)

// observabilityExempt holds the paths whose requests stay out of the
// pipeline counters: the metrics endpoint reads the counters it would
// otherwise inflate, and orchestrator health probes would drown out real
// dashboard traffic.
var observabilityExempt = map[string]bool{
	"/api/v1/services/metrics": true,
	"/health":                  true,
}

// corsMiddleware lets the dashboard call the API from another origin.
// Preflight requests are answered here and never reach the mux.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler so the
// middleware can classify the request after the fact.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware counts dashboard requests through the same collector
// the ingest pipeline reports to, keyed by HTTP method. Responses at or
// above 400 count as errors; everything else records its latency.
func metricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if collector == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if observabilityExempt[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			collector.RecordReceived()
			collector.IncrementCustom("http_" + r.Method)
			start := time.Now()

			recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(recorder, r)

			if recorder.status >= http.StatusBadRequest {
				collector.RecordError()
				return
			}
			collector.RecordProcessed(time.Since(start))
		})
	}
}
