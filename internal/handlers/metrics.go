package handlers

import (
	"log/slog"
	"net/http"

	"petwatch/internal/metrics"
)

// ServiceMetricsResponse wraps service metrics with known service list.
type ServiceMetricsResponse struct {
	Services      map[string]*metrics.ServiceMetrics `json:"services"`
	KnownServices []string                           `json:"known_services"`
}

// GetServiceMetrics returns metrics for all services from Redis.
// GET /api/v1/services/metrics
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if h.metricsReader == nil {
		respondError(w, http.StatusServiceUnavailable, "Service metrics not configured")
		return
	}

	ctx := r.Context()

	// Get specific service if requested
	serviceName := r.URL.Query().Get("service")
	if serviceName != "" {
		serviceMetrics, err := h.metricsReader.GetServiceMetrics(ctx, serviceName)
		if err != nil {
			slog.Warn("Failed to get service metrics", "service", serviceName, "error", err)
			// Return empty metrics with offline status instead of error
			serviceMetrics = &metrics.ServiceMetrics{
				ServiceName: serviceName,
				Status:      "offline",
			}
		}
		respondJSON(w, http.StatusOK, serviceMetrics)
		return
	}

	allMetrics, err := h.metricsReader.GetAllServiceMetrics(ctx)
	if err != nil {
		slog.Error("Failed to get all service metrics", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to retrieve service metrics")
		return
	}

	// Include known services that might be offline
	for _, name := range metrics.ServiceNames {
		if _, exists := allMetrics[name]; !exists {
			allMetrics[name] = &metrics.ServiceMetrics{
				ServiceName: name,
				Status:      "offline",
			}
		}
	}

	respondJSON(w, http.StatusOK, ServiceMetricsResponse{
		Services:      allMetrics,
		KnownServices: metrics.ServiceNames,
	})
}
