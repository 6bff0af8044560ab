package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
)

// GetCase retrieves a case by id, including its parsed consent flags.
// Returns ErrCaseNotFound when no row matches.
func (db *DB) GetCase(ctx context.Context, caseID string) (*Case, error) {
	query := `
		SELECT id, user_id, type, species, geohash6, consent, status, created_at, expires_at
		FROM cases
		WHERE id = $1
	`
	var c Case
	var consentJSON string
	var expiresAt sql.NullTime
	err := db.conn.QueryRowContext(ctx, query, caseID).Scan(
		&c.ID,
		&c.UserID,
		&c.Type,
		&c.Species,
		&c.Geohash6,
		&consentJSON,
		&c.Status,
		&c.CreatedAt,
		&expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrCaseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	if err := json.Unmarshal([]byte(consentJSON), &c.Consent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal consent for case %s: %w", caseID, err)
	}
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}
	return &c, nil
}

// PetsForCase returns the subject identifiers belonging to a case. The
// mapping is maintained by the case-management collaborator.
func (db *DB) PetsForCase(ctx context.Context, caseID string) ([]string, error) {
	query := `
		SELECT pet_id
		FROM case_pets
		WHERE case_id = $1
		ORDER BY pet_id
	`
	rows, err := db.conn.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query case pets: %w", err)
	}
	defer rows.Close()

	var pets []string
	for rows.Next() {
		var petID string
		if err := rows.Scan(&petID); err != nil {
			return nil, fmt.Errorf("failed to scan case pet: %w", err)
		}
		pets = append(pets, petID)
	}
	return pets, rows.Err()
}

// ListPhotos returns the photo metadata owned by a case, newest first.
func (db *DB) ListPhotos(ctx context.Context, caseID string) ([]*Photo, error) {
	query := `
		SELECT id, case_id, url_encrypted, view, hash, created_at
		FROM photos
		WHERE case_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query photos: %w", err)
	}
	defer rows.Close()

	var photos []*Photo
	for rows.Next() {
		var p Photo
		var url, view, hash sql.NullString
		if err := rows.Scan(&p.ID, &p.CaseID, &url, &view, &hash, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", err)
		}
		p.URLEncrypted = url.String
		p.View = view.String
		p.Hash = hash.String
		photos = append(photos, &p)
	}
	return photos, rows.Err()
}

// InsertReview persists a reviewer decision for a case.
func (db *DB) InsertReview(ctx context.Context, review *Review) error {
	query := `
		INSERT INTO case_reviews (id, case_id, candidate_pet_id, decision, band, score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := db.conn.ExecContext(ctx, query,
		review.ID,
		review.CaseID,
		review.CandidatePetID,
		review.Decision,
		review.Band,
		review.Score,
		review.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" { // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrCaseNotFound, review.CaseID)
		}
		return fmt.Errorf("failed to insert review: %w", err)
	}
	return nil
}

// ListReviews returns the review history for a case, newest first.
func (db *DB) ListReviews(ctx context.Context, caseID string) ([]*Review, error) {
	query := `
		SELECT id, case_id, candidate_pet_id, decision, band, score, created_at
		FROM case_reviews
		WHERE case_id = $1
		ORDER BY created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, caseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.CaseID, &r.CandidatePetID, &r.Decision, &r.Band, &r.Score, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		reviews = append(reviews, &r)
	}
	return reviews, rows.Err()
}

// EraseCase deletes the case, its photos and reviews, and all alerts and
// events belonging to the given subjects, in one transaction. No reader can
// observe a partially erased cascade. Returns true if the case row existed.
func (db *DB) EraseCase(ctx context.Context, caseID string, petIDs []string) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, fmt.Errorf("failed to begin erase transaction: %w", err)
	}
	defer tx.Rollback()

	if len(petIDs) > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM alerts WHERE pet_id = ANY($1)`, pq.Array(petIDs)); err != nil {
			return false, fmt.Errorf("failed to erase alerts: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE pet_id = ANY($1)`, pq.Array(petIDs)); err != nil {
			return false, fmt.Errorf("failed to erase events: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM case_reviews WHERE case_id = $1`, caseID); err != nil {
		return false, fmt.Errorf("failed to erase reviews: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM photos WHERE case_id = $1`, caseID); err != nil {
		return false, fmt.Errorf("failed to erase photos: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM case_pets WHERE case_id = $1`, caseID); err != nil {
		return false, fmt.Errorf("failed to erase case pets: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM cases WHERE id = $1`, caseID)
	if err != nil {
		return false, fmt.Errorf("failed to erase case: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read erase row count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit erase transaction: %w", err)
	}
	return affected > 0, nil
}
