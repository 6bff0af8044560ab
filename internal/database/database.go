// Package database provides Postgres persistence for telemetry events,
// alerts, cases, photos, and reviews.
package database

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

// ErrCaseNotFound is returned when a case lookup matches no row.
var ErrCaseNotFound = errors.New("case not found")

// Consent holds the privacy flags attached to a case.
type Consent struct {
	ShareVectors bool `json:"shareVectors"`
	SharePhotos  bool `json:"sharePhotos"`
}

// Case is the root of the privacy cascade.
type Case struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Type      string     `json:"type"`
	Species   string     `json:"species"`
	Geohash6  string     `json:"geohash6"`
	Consent   Consent    `json:"consent"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Photo is stored photo metadata owned by a case.
type Photo struct {
	ID           string    `json:"id"`
	CaseID       string    `json:"case_id"`
	URLEncrypted string    `json:"url_encrypted,omitempty"`
	View         string    `json:"view,omitempty"`
	Hash         string    `json:"hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Review is a reviewer decision against a search candidate.
type Review struct {
	ID             string    `json:"id"`
	CaseID         string    `json:"case_id"`
	CandidatePetID string    `json:"candidate_pet_id"`
	Decision       string    `json:"decision"`
	Band           string    `json:"band"`
	Score          float64   `json:"score"`
	CreatedAt      time.Time `json:"created_at"`
}

// TelemetryEvent is an immutable ingested edge event. Deleted only by
// cascade erase.
type TelemetryEvent struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	PetID     string         `json:"pet_id"`
	Type      string         `json:"type"`
	TS        time.Time      `json:"ts"`
	DurationS *float64       `json:"duration_s,omitempty"`
	Conf      *float64       `json:"conf,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// DB wraps a database connection.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// NewDBFromConn wraps an existing connection. Used by tests.
func NewDBFromConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// EnsureSchema creates the tables this service owns if they do not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// marshalPayloadToJSONB serializes an event payload to a sql.NullString for
// JSONB storage. Nil or empty payloads become NULL.
func marshalPayloadToJSONB(payload map[string]any) (sql.NullString, error) {
	if len(payload) == 0 {
		return sql.NullString{}, nil
	}
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	return sql.NullString{String: string(jsonBytes), Valid: true}, nil
}

func unmarshalPayload(payloadJSON sql.NullString, warnAttrs ...any) map[string]any {
	if !payloadJSON.Valid || payloadJSON.String == "" {
		return nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(payloadJSON.String), &payload); err != nil {
		slog.Warn("Failed to unmarshal payload JSON", append([]any{"error", err}, warnAttrs...)...)
		return nil
	}
	return payload
}
