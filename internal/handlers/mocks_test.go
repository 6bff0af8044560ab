package handlers

import (
	"context"
	"fmt"
	"time"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
	"petwatch/internal/metrics"
	"petwatch/internal/privacy"
)

// mockAlertService is a test double for AlertService.
type mockAlertService struct {
	transitionResult *alerts.Alert
	transitionErr    error
	lastTransition   [2]string // alertID, target
	listResult       []*alerts.Alert
	listErr          error
	lastFilter       alerts.Filter
}

func (m *mockAlertService) Transition(ctx context.Context, alertID, target string) (*alerts.Alert, error) {
	m.lastTransition = [2]string{alertID, target}
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	return m.transitionResult, nil
}

func (m *mockAlertService) List(ctx context.Context, filter alerts.Filter) ([]*alerts.Alert, error) {
	m.lastFilter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

// mockRepository is a test double for Repository.
type mockRepository struct {
	events     []*database.TelemetryEvent
	eventsErr  error
	cases      map[string]*database.Case
	reviews    []*database.Review
	reviewsErr error
	insertErr  error
	inserted   []*database.Review
}

func newMockRepository() *mockRepository {
	return &mockRepository{cases: make(map[string]*database.Case)}
}

func (m *mockRepository) ListEvents(ctx context.Context, limit int) ([]*database.TelemetryEvent, error) {
	if m.eventsErr != nil {
		return nil, m.eventsErr
	}
	return m.events, nil
}

func (m *mockRepository) GetCase(ctx context.Context, caseID string) (*database.Case, error) {
	c, ok := m.cases[caseID]
	if !ok {
		return nil, database.ErrCaseNotFound
	}
	return c, nil
}

func (m *mockRepository) ListPhotos(ctx context.Context, caseID string) ([]*database.Photo, error) {
	return nil, nil
}

func (m *mockRepository) InsertReview(ctx context.Context, review *database.Review) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, review)
	return nil
}

func (m *mockRepository) ListReviews(ctx context.Context, caseID string) ([]*database.Review, error) {
	if m.reviewsErr != nil {
		return nil, m.reviewsErr
	}
	return m.reviews, nil
}

// mockPrivacy is a test double for PrivacyCascade.
type mockPrivacy struct {
	exportResult *privacy.Export
	exportErr    error
	eraseDeleted bool
	eraseErr     error
	erasedCases  []string
}

func (m *mockPrivacy) Export(ctx context.Context, caseID string) (*privacy.Export, error) {
	if m.exportErr != nil {
		return nil, m.exportErr
	}
	return m.exportResult, nil
}

func (m *mockPrivacy) Erase(ctx context.Context, caseID string) (bool, error) {
	if m.eraseErr != nil {
		return false, m.eraseErr
	}
	m.erasedCases = append(m.erasedCases, caseID)
	return m.eraseDeleted, nil
}

// mockMetricsReader is a test double for MetricsReader.
type mockMetricsReader struct {
	services map[string]*metrics.ServiceMetrics
	err      error
}

func (m *mockMetricsReader) GetServiceMetrics(ctx context.Context, name string) (*metrics.ServiceMetrics, error) {
	if m.err != nil {
		return nil, m.err
	}
	svc, ok := m.services[name]
	if !ok {
		return nil, fmt.Errorf("no metrics found for service: %s", name)
	}
	return svc, nil
}

func (m *mockMetricsReader) GetAllServiceMetrics(ctx context.Context) (map[string]*metrics.ServiceMetrics, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.services, nil
}

// mockRecorder tracks metric calls.
type mockRecorder struct {
	custom map[string]int
}

func newMockRecorder() *mockRecorder { return &mockRecorder{custom: make(map[string]int)} }

func (m *mockRecorder) RecordReceived()                 {}
func (m *mockRecorder) RecordProcessed(_ time.Duration) {}
func (m *mockRecorder) RecordError()                    {}
func (m *mockRecorder) IncrementCustom(name string)     { m.custom[name]++ }
