package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"petwatch/internal/alerts"
)

// Compile-time check that DB satisfies the alert lifecycle storage contract.
var _ alerts.Storage = (*DB)(nil)

const alertColumns = `id, pet_id, room_id, kind, severity, state, evidence_url, ts, created_at`

func scanAlert(row interface{ Scan(...any) error }) (*alerts.Alert, error) {
	var a alerts.Alert
	var roomID, evidenceURL sql.NullString
	if err := row.Scan(
		&a.ID,
		&a.PetID,
		&roomID,
		&a.Kind,
		&a.Severity,
		&a.State,
		&evidenceURL,
		&a.TS,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.RoomID = roomID.String
	a.EvidenceURL = evidenceURL.String
	return &a, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// InsertAlert persists a newly created alert.
func (db *DB) InsertAlert(ctx context.Context, alert *alerts.Alert) error {
	query := `
		INSERT INTO alerts (id, pet_id, room_id, kind, severity, state, evidence_url, ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.conn.ExecContext(ctx, query,
		alert.ID,
		alert.PetID,
		nullIfEmpty(alert.RoomID),
		alert.Kind,
		alert.Severity,
		alert.State,
		nullIfEmpty(alert.EvidenceURL),
		alert.TS,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by id.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE id = $1
	`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID))
	if err == sql.ErrNoRows {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// UpdateAlertState atomically moves an alert to the target state, but only
// if its current state is in allowedFrom. Returns alerts.ErrNotFound when no
// row matched, leaving the manager to distinguish a missing alert from an
// illegal transition.
func (db *DB) UpdateAlertState(ctx context.Context, alertID, target string, allowedFrom []string) (*alerts.Alert, error) {
	query := `
		UPDATE alerts
		SET state = $2
		WHERE id = $1 AND state = ANY($3)
		RETURNING ` + alertColumns + `
	`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, alertID, target, pq.Array(allowedFrom)))
	if err == sql.ErrNoRows {
		return nil, alerts.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert state: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts matching the filter ordered by event timestamp
// descending, the ordering the dashboard relies on.
func (db *DB) ListAlerts(ctx context.Context, filter alerts.Filter) ([]*alerts.Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE ($1 = '' OR pet_id = $1)
		  AND ($2 = '' OR state = $2)
		ORDER BY ts DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	return db.queryAlerts(ctx, query, filter.PetID, filter.State, limit)
}

// ListAlertsByPets returns every alert belonging to the given subjects,
// newest first. Used by the privacy cascade export.
func (db *DB) ListAlertsByPets(ctx context.Context, petIDs []string) ([]*alerts.Alert, error) {
	if len(petIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE pet_id = ANY($1)
		ORDER BY ts DESC
	`
	return db.queryAlerts(ctx, query, pq.Array(petIDs))
}

func (db *DB) queryAlerts(ctx context.Context, query string, args ...any) ([]*alerts.Alert, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var out []*alerts.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
