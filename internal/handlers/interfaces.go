// Package handlers provides HTTP handlers for the petwatch API.
package handlers

import (
	"context"
	"time"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
	"petwatch/internal/metrics"
	"petwatch/internal/privacy"
)

// AlertService defines the alert lifecycle operations used by the API.
// This interface allows handlers to be tested without a real database.
type AlertService interface {
	Transition(ctx context.Context, alertID, target string) (*alerts.Alert, error)
	List(ctx context.Context, filter alerts.Filter) ([]*alerts.Alert, error)
}

// Repository defines the read and review operations backed by Postgres.
type Repository interface {
	ListEvents(ctx context.Context, limit int) ([]*database.TelemetryEvent, error)
	GetCase(ctx context.Context, caseID string) (*database.Case, error)
	ListPhotos(ctx context.Context, caseID string) ([]*database.Photo, error)
	InsertReview(ctx context.Context, review *database.Review) error
	ListReviews(ctx context.Context, caseID string) ([]*database.Review, error)
}

// PrivacyCascade runs consent-aware exports and atomic erasures.
type PrivacyCascade interface {
	Export(ctx context.Context, caseID string) (*privacy.Export, error)
	Erase(ctx context.Context, caseID string) (bool, error)
}

// MetricsReader reads per-service metrics for the dashboard endpoint.
type MetricsReader interface {
	GetServiceMetrics(ctx context.Context, serviceName string) (*metrics.ServiceMetrics, error)
	GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error)
}

// MetricsRecorder defines the interface for recording metrics.
// This uses the null object pattern - a no-op implementation avoids nil checks.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
	IncrementCustom(name string)
}

// NoOpMetrics is a no-op implementation of MetricsRecorder.
// Use this when metrics collection is not needed, avoiding nil checks.
type NoOpMetrics struct{}

// Ensure NoOpMetrics implements MetricsRecorder.
var _ MetricsRecorder = (*NoOpMetrics)(nil)

func (NoOpMetrics) RecordReceived()                 {}
func (NoOpMetrics) RecordProcessed(_ time.Duration) {}
func (NoOpMetrics) RecordError()                    {}
func (NoOpMetrics) IncrementCustom(_ string)        {}
