// Package alerts owns the alert state machine and its persistence boundary.
// Alerts are created open from rule-engine intents and only ever move
// forward: open -> acknowledged -> resolved.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"petwatch/internal/rules"
)

// Alert states.
const (
	StateOpen         = "open"
	StateAcknowledged = "acknowledged"
	StateResolved     = "resolved"
)

var (
	// ErrInvalidTransition is returned for an illegal state change; stored
	// state is left untouched.
	ErrInvalidTransition = errors.New("invalid alert state transition")
	// ErrNotFound is returned when the alert does not exist.
	ErrNotFound = errors.New("alert not found")
)

// ValidState reports whether s is a known alert state.
func ValidState(s string) bool {
	return s == StateOpen || s == StateAcknowledged || s == StateResolved
}

// Alert is a persisted alert record. Immutable once written except for State.
type Alert struct {
	ID          string    `json:"id"`
	PetID       string    `json:"pet_id"`
	RoomID      string    `json:"room_id,omitempty"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	State       string    `json:"state"`
	EvidenceURL string    `json:"evidence_url,omitempty"`
	TS          time.Time `json:"ts"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows a List call. Zero values mean "any".
type Filter struct {
	PetID string
	State string
	Limit int
}

// Storage is the persistence collaborator for alerts. Implementations must
// make UpdateAlertState atomic: the state changes only if the current state
// is in allowedFrom, and the updated row is returned.
type Storage interface {
	InsertAlert(ctx context.Context, alert *Alert) error
	GetAlert(ctx context.Context, alertID string) (*Alert, error)
	UpdateAlertState(ctx context.Context, alertID, target string, allowedFrom []string) (*Alert, error)
	ListAlerts(ctx context.Context, filter Filter) ([]*Alert, error)
}

// Notifier is invoked after every successful create or transition, so a
// streaming transport can be attached without touching the manager.
type Notifier interface {
	AlertChanged(alert *Alert)
}

type noopNotifier struct{}

func (noopNotifier) AlertChanged(*Alert) {}

// Manager drives the alert lifecycle against a Storage collaborator.
type Manager struct {
	storage  Storage
	notifier Notifier
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithNotifier installs a change-notification hook.
func WithNotifier(n Notifier) Option {
	return func(m *Manager) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates an alert lifecycle manager.
func NewManager(storage Storage, opts ...Option) *Manager {
	m := &Manager{
		storage:  storage,
		notifier: noopNotifier{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create persists a new alert in the open state from a rule-engine intent.
func (m *Manager) Create(ctx context.Context, intent rules.AlertIntent) (*Alert, error) {
	alert := &Alert{
		ID:          uuid.NewString(),
		PetID:       intent.PetID,
		RoomID:      intent.RoomID,
		Kind:        intent.Kind,
		Severity:    intent.Severity,
		State:       StateOpen,
		EvidenceURL: intent.EvidenceURL,
		TS:          intent.TS,
		CreatedAt:   m.now().UTC(),
	}
	if err := m.storage.InsertAlert(ctx, alert); err != nil {
		return nil, fmt.Errorf("failed to persist alert: %w", err)
	}

	slog.Info("Alert created",
		"alert_id", alert.ID,
		"pet_id", alert.PetID,
		"kind", alert.Kind,
		"severity", alert.Severity,
	)
	m.notifier.AlertChanged(alert)
	return alert, nil
}

// allowedFrom returns the states a transition to target may start from.
func allowedFrom(target string) ([]string, error) {
	switch target {
	case StateAcknowledged:
		return []string{StateOpen}, nil
	case StateResolved:
		return []string{StateOpen, StateAcknowledged}, nil
	default:
		return nil, fmt.Errorf("%w: unknown target state %q", ErrInvalidTransition, target)
	}
}

// Transition moves an alert to the target state. Illegal transitions return
// ErrInvalidTransition and are a no-op on stored state; resolved is terminal.
func (m *Manager) Transition(ctx context.Context, alertID, target string) (*Alert, error) {
	from, err := allowedFrom(target)
	if err != nil {
		return nil, err
	}

	alert, err := m.storage.UpdateAlertState(ctx, alertID, target, from)
	if err == nil {
		slog.Info("Alert state changed",
			"alert_id", alert.ID,
			"state", alert.State,
		)
		m.notifier.AlertChanged(alert)
		return alert, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to update alert state: %w", err)
	}

	// No matching row: distinguish a missing alert from an illegal
	// transition on an existing one.
	if _, getErr := m.storage.GetAlert(ctx, alertID); getErr != nil {
		if errors.Is(getErr, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to look up alert: %w", getErr)
	}
	return nil, fmt.Errorf("%w: alert %s cannot move to %s", ErrInvalidTransition, alertID, target)
}

// List returns alerts matching the filter, most recent event first. The
// descending timestamp ordering is part of the contract with the dashboard.
func (m *Manager) List(ctx context.Context, filter Filter) ([]*Alert, error) {
	alerts, err := m.storage.ListAlerts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}
