// Package database provides Postgres persistence for the event aggregate:
// nonlocalizedevents, eventsequences, eventlocalizations, and
// eventcandidates.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// DB wraps a database connection and provides event aggregate operations.
type DB struct {
	conn *sql.DB
}

// NewDB creates a new database connection using the provided DSN.
func NewDB(dsn string) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Successfully connected to PostgreSQL database")

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	if db.conn != nil {
		slog.Info("Closing database connection")
		return db.conn.Close()
	}
	return nil
}

// GetEvent loads the full aggregate for the given external event id.
// Returns model.ErrEventNotFound if no such event exists.
func (db *DB) GetEvent(ctx context.Context, eventID string) (*model.NonLocalizedEvent, error) {
	event := &model.NonLocalizedEvent{}
	query := `
		SELECT event_id, event_type, event_subtype, created_at, updated_at
		FROM nonlocalizedevents
		WHERE event_id = $1
	`
	var eventType string
	err := db.conn.QueryRowContext(ctx, query, eventID).Scan(
		&event.EventID,
		&eventType,
		&event.EventSubtype,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %s: %w", eventID, model.ErrEventNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	event.EventType = model.EventType(eventType)

	if event.Sequences, err = db.loadSequences(ctx, eventID); err != nil {
		return nil, err
	}
	if event.Localizations, err = db.loadLocalizations(ctx, eventID); err != nil {
		return nil, err
	}
	if event.Candidates, err = db.loadCandidates(ctx, eventID); err != nil {
		return nil, err
	}
	return event, nil
}

func (db *DB) loadSequences(ctx context.Context, eventID string) ([]*model.EventSequence, error) {
	query := `
		SELECT sequence_id, event_subtype, issuance_time, created, localization_id
		FROM eventsequences
		WHERE event_id = $1
		ORDER BY created ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sequences: %w", err)
	}
	defer rows.Close()

	var sequences []*model.EventSequence
	for rows.Next() {
		var seq model.EventSequence
		var issuance sql.NullTime
		var locID sql.NullString
		if err := rows.Scan(&seq.SequenceID, &seq.EventSubtype, &issuance, &seq.Created, &locID); err != nil {
			return nil, fmt.Errorf("failed to scan sequence: %w", err)
		}
		if issuance.Valid {
			t := issuance.Time
			seq.IssuanceTime = &t
		}
		if locID.Valid {
			seq.LocalizationID = locID.String
		}
		sequences = append(sequences, &seq)
	}
	return sequences, rows.Err()
}

func (db *DB) loadLocalizations(ctx context.Context, eventID string) ([]*model.EventLocalization, error) {
	query := `
		SELECT localization_id, sequence_id, skymap_url, distance_mean, distance_std, area_50, area_90, created
		FROM eventlocalizations
		WHERE event_id = $1
		ORDER BY created ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load localizations: %w", err)
	}
	defer rows.Close()

	var localizations []*model.EventLocalization
	for rows.Next() {
		var loc model.EventLocalization
		if err := rows.Scan(
			&loc.LocalizationID,
			&loc.SequenceID,
			&loc.SkymapURL,
			&loc.DistanceMean,
			&loc.DistanceStd,
			&loc.Area50,
			&loc.Area90,
			&loc.Created,
		); err != nil {
			return nil, fmt.Errorf("failed to scan localization: %w", err)
		}
		localizations = append(localizations, &loc)
	}
	return localizations, rows.Err()
}

func (db *DB) loadCandidates(ctx context.Context, eventID string) ([]*model.EventCandidate, error) {
	query := `
		SELECT candidate_id, external_id, ra, dec, magnitude, viable, viability_reason,
		       priority, viable_curated, priority_curated, created_at, updated_at
		FROM eventcandidates
		WHERE event_id = $1
		ORDER BY priority ASC, created_at ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidates: %w", err)
	}
	defer rows.Close()

	var candidates []*model.EventCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*model.EventCandidate, error) {
	var c model.EventCandidate
	var ra, dec, mag sql.NullFloat64
	if err := row.Scan(
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
	); err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
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
	return &c, nil
}

// SaveEvent persists the aggregate's current state in a single transaction.
// The event insert is idempotent on event_id, so concurrent first-report
// writers converge instead of erroring; event_type is fixed at creation and
// never overwritten by the conflict path.
func (db *DB) SaveEvent(ctx context.Context, event *model.NonLocalizedEvent) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	eventQuery := `
		INSERT INTO nonlocalizedevents (event_id, event_type, event_subtype, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO UPDATE
		SET event_subtype = EXCLUDED.event_subtype,
		    updated_at = EXCLUDED.updated_at
	`
	if _, err := tx.ExecContext(ctx, eventQuery,
		event.EventID,
		string(event.EventType),
		event.EventSubtype,
		event.CreatedAt,
		event.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to upsert event: %w", err)
	}

	locQuery := `
		INSERT INTO eventlocalizations (localization_id, event_id, sequence_id, skymap_url,
		                                distance_mean, distance_std, area_50, area_90, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (localization_id) DO UPDATE
		SET skymap_url = EXCLUDED.skymap_url,
		    distance_mean = EXCLUDED.distance_mean,
		    distance_std = EXCLUDED.distance_std,
		    area_50 = EXCLUDED.area_50,
		    area_90 = EXCLUDED.area_90
	`
	for _, loc := range event.Localizations {
		if _, err := tx.ExecContext(ctx, locQuery,
			loc.LocalizationID,
			event.EventID,
			loc.SequenceID,
			loc.SkymapURL,
			loc.DistanceMean,
			loc.DistanceStd,
			loc.Area50,
			loc.Area90,
			loc.Created,
		); err != nil {
			return fmt.Errorf("failed to upsert localization: %w", err)
		}
	}

	seqQuery := `
		INSERT INTO eventsequences (event_id, sequence_id, event_subtype, issuance_time, created, localization_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id, sequence_id) DO UPDATE
		SET event_subtype = EXCLUDED.event_subtype,
		    issuance_time = EXCLUDED.issuance_time,
		    localization_id = EXCLUDED.localization_id
	`
	for _, seq := range event.Sequences {
		var issuance sql.NullTime
		if seq.IssuanceTime != nil {
			issuance = sql.NullTime{Time: *seq.IssuanceTime, Valid: true}
		}
		var locID sql.NullString
		if seq.LocalizationID != "" {
			locID = sql.NullString{String: seq.LocalizationID, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, seqQuery,
			event.EventID,
			seq.SequenceID,
			seq.EventSubtype,
			issuance,
			seq.Created,
			locID,
		); err != nil {
			return fmt.Errorf("failed to upsert sequence: %w", err)
		}
	}

	// Candidates with an external id conflict on (event_id, external_id):
	// two processes that both miss the identity match in memory still
	// converge on one row, with the loser's insert folded into an update of
	// the winner's. Anonymous candidates only have their uuid as identity.
	candByIdentityQuery := `
		INSERT INTO eventcandidates (candidate_id, event_id, external_id, ra, dec, magnitude,
		                             viable, viability_reason, priority, viable_curated,
		                             priority_curated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (event_id, external_id) WHERE external_id <> '' DO UPDATE
		SET ra = EXCLUDED.ra,
		    dec = EXCLUDED.dec,
		    magnitude = EXCLUDED.magnitude,
		    viable = EXCLUDED.viable,
		    viability_reason = EXCLUDED.viability_reason,
		    priority = EXCLUDED.priority,
		    viable_curated = EXCLUDED.viable_curated,
		    priority_curated = EXCLUDED.priority_curated,
		    updated_at = EXCLUDED.updated_at
	`
	candByIDQuery := `
		INSERT INTO eventcandidates (candidate_id, event_id, external_id, ra, dec, magnitude,
		                             viable, viability_reason, priority, viable_curated,
		                             priority_curated, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (candidate_id) DO UPDATE
		SET external_id = EXCLUDED.external_id,
		    ra = EXCLUDED.ra,
		    dec = EXCLUDED.dec,
		    magnitude = EXCLUDED.magnitude,
		    viable = EXCLUDED.viable,
		    viability_reason = EXCLUDED.viability_reason,
		    priority = EXCLUDED.priority,
		    viable_curated = EXCLUDED.viable_curated,
		    priority_curated = EXCLUDED.priority_curated,
		    updated_at = EXCLUDED.updated_at
	`
	for _, c := range event.Candidates {
		candQuery := candByIDQuery
		if c.ExternalID != "" {
			candQuery = candByIdentityQuery
		}
		if _, err := tx.ExecContext(ctx, candQuery,
			c.CandidateID,
			event.EventID,
			c.ExternalID,
			nullFloat(c.RA),
			nullFloat(c.Dec),
			nullFloat(c.Magnitude),
			c.Viable,
			c.ViabilityReason,
			c.Priority,
			c.ViableCurated,
			c.PriorityCurated,
			c.CreatedAt,
			c.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to upsert candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event save: %w", err)
	}
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
