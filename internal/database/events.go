package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// InsertEventIdempotent inserts a telemetry event with idempotency
// protection on (source, id) using INSERT ... ON CONFLICT DO NOTHING.
// Returns true if a new row was inserted, false if it already existed.
func (db *DB) InsertEventIdempotent(ctx context.Context, ev *TelemetryEvent) (bool, error) {
	payloadJSON, err := marshalPayloadToJSONB(ev.Payload)
	if err != nil {
		return false, err
	}

	query := `
		INSERT INTO events (id, source, pet_id, type, ts, duration_s, conf, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (source, id) DO NOTHING
		RETURNING id
	`

	var insertedID string
	err = db.conn.QueryRowContext(ctx, query,
		ev.ID,
		ev.Source,
		ev.PetID,
		ev.Type,
		ev.TS,
		ev.DurationS,
		ev.Conf,
		payloadJSON,
	).Scan(&insertedID)

	if err != nil {
		if err == sql.ErrNoRows {
			// Conflict occurred: the event was already ingested.
			slog.Debug("Event already exists, skipping",
				"source", ev.Source,
				"event_id", ev.ID,
			)
			return false, nil
		}
		return false, fmt.Errorf("failed to insert event: %w", err)
	}
	return true, nil
}

const eventColumns = `id, source, pet_id, type, ts, duration_s, conf, payload, created_at`

func scanEvent(row interface{ Scan(...any) error }) (*TelemetryEvent, error) {
	var ev TelemetryEvent
	var payloadJSON sql.NullString
	var durationS, conf sql.NullFloat64
	if err := row.Scan(
		&ev.ID,
		&ev.Source,
		&ev.PetID,
		&ev.Type,
		&ev.TS,
		&durationS,
		&conf,
		&payloadJSON,
		&ev.CreatedAt,
	); err != nil {
		return nil, err
	}
	if durationS.Valid {
		ev.DurationS = &durationS.Float64
	}
	if conf.Valid {
		ev.Conf = &conf.Float64
	}
	ev.Payload = unmarshalPayload(payloadJSON, "event_id", ev.ID)
	return &ev, nil
}

func (db *DB) queryEvents(ctx context.Context, query string, args ...any) ([]*TelemetryEvent, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []*TelemetryEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// ListEvents returns the most recent telemetry events across all subjects.
func (db *DB) ListEvents(ctx context.Context, limit int) ([]*TelemetryEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		ORDER BY ts DESC
		LIMIT $1
	`
	return db.queryEvents(ctx, query, limit)
}

// ListEventsByPets returns every event belonging to the given subjects,
// newest first. Used by the privacy cascade export.
func (db *DB) ListEventsByPets(ctx context.Context, petIDs []string) ([]*TelemetryEvent, error) {
	if len(petIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE pet_id = ANY($1)
		ORDER BY ts DESC
	`
	return db.queryEvents(ctx, query, pq.Array(petIDs))
}
