package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// EventSummary is the read-only list projection of an event.
type EventSummary struct {
	EventID        string    `json:"event_id"`
	EventType      string    `json:"event_type"`
	EventSubtype   string    `json:"event_subtype"`
	SequenceCount  int       `json:"sequence_count"`
	CandidateCount int       `json:"candidate_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ListEvents returns event summaries, optionally filtered by event type
// and/or exact event id, newest first.
func (db *DB) ListEvents(ctx context.Context, eventType, eventID string) ([]*EventSummary, error) {
	query := `
		SELECT e.event_id, e.event_type, e.event_subtype,
		       (SELECT COUNT(*) FROM eventsequences s WHERE s.event_id = e.event_id),
		       (SELECT COUNT(*) FROM eventcandidates c WHERE c.event_id = e.event_id),
		       e.created_at, e.updated_at
		FROM nonlocalizedevents e
		WHERE ($1 = '' OR e.event_type = $1)
		  AND ($2 = '' OR e.event_id = $2)
		ORDER BY e.created_at DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, eventType, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var summaries []*EventSummary
	for rows.Next() {
		var s EventSummary
		if err := rows.Scan(
			&s.EventID,
			&s.EventType,
			&s.EventSubtype,
			&s.SequenceCount,
			&s.CandidateCount,
			&s.CreatedAt,
			&s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event summary: %w", err)
		}
		summaries = append(summaries, &s)
	}
	return summaries, rows.Err()
}

// GetCandidate retrieves a single candidate by id along with its owning
// event id. Returns model.ErrCandidateNotFound if no such candidate exists.
func (db *DB) GetCandidate(ctx context.Context, candidateID string) (*model.EventCandidate, string, error) {
	query := `
		SELECT candidate_id, external_id, ra, dec, magnitude, viable, viability_reason,
		       priority, viable_curated, priority_curated, created_at, updated_at, event_id
		FROM eventcandidates
		WHERE candidate_id = $1
	`
	var c model.EventCandidate
	var ra, dec, mag sql.NullFloat64
	var eventID string
	err := db.conn.QueryRowContext(ctx, query, candidateID).Scan(
		&c.CandidateID,
		&c.ExternalID,
		&ra,
		&dec,
		&mag,
		&c.Viable,
		&c.ViabilityReason,
		&c.Priority,
		&c.ViableCurated,
		&c.PriorityCurated,
		&c.CreatedAt,
		&c.UpdatedAt,
		&eventID,
	)
	if err == sql.ErrNoRows {
		return nil, "", fmt.Errorf("candidate %s: %w", candidateID, model.ErrCandidateNotFound)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to get candidate: %w", err)
	}
	if ra.Valid {
		v := ra.Float64
		c.RA = &v
	}
	if dec.Valid {
		v := dec.Float64
		c.Dec = &v
	}
	if mag.Valid {
		v := mag.Float64
		c.Magnitude = &v
	}
	return &c, eventID, nil
}

// UpdateCandidate applies a partial update to a candidate's curated fields.
// Only the fields named in the patch change; everything else is read back and
// written unchanged within the same transaction, so concurrent patches to
// different fields do not clobber each other.
func (db *DB) UpdateCandidate(ctx context.Context, candidateID string, patch model.CandidatePatch) (*model.EventCandidate, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT candidate_id, external_id, ra, dec, magnitude, viable, viability_reason,
		       priority, viable_curated, priority_curated, created_at, updated_at
		FROM eventcandidates
		WHERE candidate_id = $1
		FOR UPDATE
	`
	c, err := scanCandidate(tx.QueryRowContext(ctx, selectQuery, candidateID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("candidate %s: %w", candidateID, model.ErrCandidateNotFound)
		}
		return nil, err
	}

	// Apply the patch even when values are unchanged: naming a field in the
	// patch still marks it curated.
	patch.Apply(c, time.Now())
	if !patch.IsZero() {
		updateQuery := `
			UPDATE eventcandidates
			SET viable = $2,
			    viability_reason = $3,
			    priority = $4,
			    viable_curated = $5,
			    priority_curated = $6,
			    updated_at = $7
			WHERE candidate_id = $1
		`
		if _, err := tx.ExecContext(ctx, updateQuery,
			c.CandidateID,
			c.Viable,
			c.ViabilityReason,
			c.Priority,
			c.ViableCurated,
			c.PriorityCurated,
			c.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to update candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit candidate update: %w", err)
	}
	return c, nil
}

// ListLocalizations returns the localization history for an event, oldest
// first. Returns model.ErrEventNotFound if the event does not exist, which is
// distinct from an existing event with no localizations.
func (db *DB) ListLocalizations(ctx context.Context, eventID string) ([]*model.EventLocalization, error) {
	var exists bool
	query := `SELECT EXISTS (SELECT 1 FROM nonlocalizedevents WHERE event_id = $1)`
	if err := db.conn.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check event: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("event %s: %w", eventID, model.ErrEventNotFound)
	}
	return db.loadLocalizations(ctx, eventID)
}
