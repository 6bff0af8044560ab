// Package privacy implements the export/erase cascade for a case: every
// dependent entity is gathered or deleted under one consistency boundary,
// with consent-driven redaction on export.
package privacy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
)

// RedactedPlaceholder replaces URL, hash, and embedding-bearing fields when
// consent withholds them. Entries are redacted, never omitted, so the export
// stays a complete record.
const RedactedPlaceholder = "[redacted]"

// ErrCaseNotFound is returned by Export when the case does not exist.
var ErrCaseNotFound = errors.New("case not found")

// Export is the serialized privacy export for a case.
type Export struct {
	Case    *database.Case              `json:"case"`
	Photos  []*database.Photo           `json:"photos"`
	Alerts  []*alerts.Alert             `json:"alerts"`
	Events  []*database.TelemetryEvent  `json:"events"`
	Reviews []*database.Review          `json:"reviews"`
}

// Storage is the persistence collaborator for the cascade.
type Storage interface {
	GetCase(ctx context.Context, caseID string) (*database.Case, error)
	ListPhotos(ctx context.Context, caseID string) ([]*database.Photo, error)
	ListReviews(ctx context.Context, caseID string) ([]*database.Review, error)
	ListAlertsByPets(ctx context.Context, petIDs []string) ([]*alerts.Alert, error)
	ListEventsByPets(ctx context.Context, petIDs []string) ([]*database.TelemetryEvent, error)
	EraseCase(ctx context.Context, caseID string, petIDs []string) (bool, error)
}

// PetResolver supplies the case-to-pets mapping. The source schema has no
// case foreign key on alerts/events, so the mapping comes from the
// case-management collaborator.
type PetResolver interface {
	PetsForCase(ctx context.Context, caseID string) ([]string, error)
}

// Locker provides the case-level exclusive section. Ingestion for a pet
// whose case is mid-erase blocks on the same locks until the section
// releases.
type Locker interface {
	LockAll(subjects []string) func()
}

// StateReset drops in-memory pipeline state for an erased subject so stale
// dedup ids and rule windows cannot outlive the cascade.
type StateReset interface {
	Forget(subjectID string)
}

// Coordinator runs the privacy cascade.
type Coordinator struct {
	storage Storage
	pets    PetResolver
	locker  Locker
	resets  []StateReset
	now     func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithStateReset registers in-memory state to clear after a successful erase.
func WithStateReset(resets ...StateReset) Option {
	return func(c *Coordinator) { c.resets = append(c.resets, resets...) }
}

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a privacy cascade coordinator.
func NewCoordinator(storage Storage, pets PetResolver, locker Locker, opts ...Option) *Coordinator {
	c := &Coordinator{
		storage: storage,
		pets:    pets,
		locker:  locker,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Export gathers the case and every entity transitively reachable from its
// pets. Consent flags redact fields in place; nothing is omitted. An
// expired case still exports, reported with status "expired".
func (c *Coordinator) Export(ctx context.Context, caseID string) (*Export, error) {
	petIDs, err := c.pets.PetsForCase(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve pets for case: %w", err)
	}

	// All reads run under the case's pet locks. Erase holds the same locks
	// across its transaction, so an export observes the cascade either
	// wholly before or wholly after an erase, never mid-delete.
	release := c.locker.LockAll(petIDs)
	defer release()

	caseRecord, err := c.storage.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, database.ErrCaseNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, fmt.Errorf("failed to load case: %w", err)
	}

	photos, err := c.storage.ListPhotos(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load photos: %w", err)
	}
	caseAlerts, err := c.storage.ListAlertsByPets(ctx, petIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts: %w", err)
	}
	events, err := c.storage.ListEventsByPets(ctx, petIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	reviews, err := c.storage.ListReviews(ctx, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load reviews: %w", err)
	}

	export := &Export{
		Case:    caseRecord,
		Photos:  photos,
		Alerts:  caseAlerts,
		Events:  events,
		Reviews: reviews,
	}
	c.redact(export)

	if caseRecord.ExpiresAt != nil && caseRecord.ExpiresAt.Before(c.now()) {
		caseRecord.Status = "expired"
	}

	slog.Info("Case exported",
		"case_id", caseID,
		"pets", len(petIDs),
		"photos", len(photos),
		"alerts", len(caseAlerts),
		"events", len(events),
		"reviews", len(reviews),
	)
	return export, nil
}

// redact applies the case's consent flags to the export in place.
func (c *Coordinator) redact(export *Export) {
	consent := export.Case.Consent
	if !consent.SharePhotos {
		for _, photo := range export.Photos {
			if photo.URLEncrypted != "" {
				photo.URLEncrypted = RedactedPlaceholder
			}
			if photo.Hash != "" {
				photo.Hash = RedactedPlaceholder
			}
		}
	}
	if !consent.ShareVectors {
		for _, ev := range export.Events {
			for key := range ev.Payload {
				if isVectorField(key) {
					ev.Payload[key] = RedactedPlaceholder
				}
			}
		}
	}
}

func isVectorField(key string) bool {
	lower := strings.ToLower(key)
	return strings.Contains(lower, "embedding") || strings.Contains(lower, "vector")
}

// Erase deletes the case and all entities tied to its pets atomically with
// respect to readers. It holds the case-level exclusive section for the
// whole operation so an in-flight ingestion write cannot resurrect a row.
// Repeat calls are an idempotent no-op reporting deleted=false.
func (c *Coordinator) Erase(ctx context.Context, caseID string) (bool, error) {
	_, err := c.storage.GetCase(ctx, caseID)
	if err != nil {
		if errors.Is(err, database.ErrCaseNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load case: %w", err)
	}

	petIDs, err := c.pets.PetsForCase(ctx, caseID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve pets for case: %w", err)
	}

	release := c.locker.LockAll(petIDs)
	defer release()

	deleted, err := c.storage.EraseCase(ctx, caseID, petIDs)
	if err != nil {
		return false, fmt.Errorf("failed to erase case: %w", err)
	}
	if deleted {
		for _, petID := range petIDs {
			for _, reset := range c.resets {
				reset.Forget(petID)
			}
		}
	}

	slog.Info("Case erased",
		"case_id", caseID,
		"pets", len(petIDs),
		"deleted", deleted,
	)
	return deleted, nil
}
