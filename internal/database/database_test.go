// Package database provides tests for the event aggregate persistence.
// These tests use sqlmock to mock database interactions.
package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

func floatPtr(f float64) *float64 { return &f }

// TestDB_Close tests the Close method.
func TestDB_Close(t *testing.T) {
	db := &DB{conn: nil}
	if err := db.Close(); err != nil {
		t.Errorf("Close() with nil conn error = %v, want nil", err)
	}
}

// TestDB_GetEvent tests loading the full aggregate.
func TestDB_GetEvent(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issued := now.Add(time.Hour)

	mock.ExpectQuery("SELECT event_id, event_type, event_subtype, created_at, updated_at").
		WithArgs("S250601a").
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "event_type", "event_subtype", "created_at", "updated_at"}).
			AddRow("S250601a", "GRAVITATIONAL_WAVE", "INITIAL", now, now))

	mock.ExpectQuery("SELECT sequence_id, event_subtype, issuance_time, created, localization_id").
		WithArgs("S250601a").
		WillReturnRows(sqlmock.NewRows([]string{"sequence_id", "event_subtype", "issuance_time", "created", "localization_id"}).
			AddRow("1", "PRELIMINARY", nil, now, nil).
			AddRow("2", "INITIAL", issued, now, "loc-2"))

	mock.ExpectQuery("SELECT localization_id, sequence_id, skymap_url").
		WithArgs("S250601a").
		WillReturnRows(sqlmock.NewRows([]string{"localization_id", "sequence_id", "skymap_url", "distance_mean", "distance_std", "area_50", "area_90", "created"}).
			AddRow("loc-2", "2", "https://gracedb.example/skymap.fits", 120.0, 30.0, 200.0, 850.0, now))

	mock.ExpectQuery("SELECT candidate_id, external_id, ra, dec, magnitude").
		WithArgs("S250601a").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "external_id", "ra", "dec", "magnitude", "viable", "viability_reason", "priority", "viable_curated", "priority_curated", "created_at", "updated_at"}).
			AddRow("cand-1", "AT2025abc", 150.0, -30.0, 19.2, true, "", 1, false, false, now, now).
			AddRow("cand-2", "", nil, nil, nil, false, "duplicate detection", 2, true, false, now, now))

	event, err := d.GetEvent(ctx, "S250601a")
	if err != nil {
		t.Fatalf("GetEvent() error = %v", err)
	}
	if event.EventType != model.EventTypeGravitationalWave {
		t.Errorf("EventType = %v", event.EventType)
	}
	if len(event.Sequences) != 2 {
		t.Fatalf("len(Sequences) = %d, want 2", len(event.Sequences))
	}
	if event.Sequences[0].IssuanceTime != nil {
		t.Error("sequence 1 should have nil IssuanceTime")
	}
	if event.Sequences[1].LocalizationID != "loc-2" {
		t.Errorf("sequence 2 LocalizationID = %q", event.Sequences[1].LocalizationID)
	}
	if len(event.Localizations) != 1 || event.Localizations[0].Area90 != 850.0 {
		t.Errorf("Localizations = %+v", event.Localizations)
	}
	if len(event.Candidates) != 2 {
		t.Fatalf("len(Candidates) = %d, want 2", len(event.Candidates))
	}
	if event.Candidates[0].RA == nil || *event.Candidates[0].RA != 150.0 {
		t.Errorf("candidate 1 RA = %v", event.Candidates[0].RA)
	}
	if event.Candidates[1].RA != nil {
		t.Error("candidate 2 RA should be nil")
	}
	if !event.Candidates[1].ViableCurated {
		t.Error("candidate 2 ViableCurated = false, want true")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_GetEvent_NotFound tests the sentinel mapping for missing events.
func TestDB_GetEvent_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}

	mock.ExpectQuery("SELECT event_id, event_type, event_subtype").
		WithArgs("S999999z").
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "event_type", "event_subtype", "created_at", "updated_at"}))

	_, err = d.GetEvent(context.Background(), "S999999z")
	if !errors.Is(err, model.ErrEventNotFound) {
		t.Errorf("GetEvent() error = %v, want ErrEventNotFound", err)
	}
}

// TestDB_SaveEvent tests that the whole aggregate commits in one transaction.
func TestDB_SaveEvent(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &model.NonLocalizedEvent{
		EventID:      "S250601a",
		EventType:    model.EventTypeGravitationalWave,
		EventSubtype: "INITIAL",
		Localizations: []*model.EventLocalization{
			{LocalizationID: "loc-1", SequenceID: "1", SkymapURL: "u", Created: now},
		},
		Sequences: []*model.EventSequence{
			{SequenceID: "1", EventSubtype: "INITIAL", Created: now, LocalizationID: "loc-1"},
		},
		Candidates: []*model.EventCandidate{
			{CandidateID: "cand-1", ExternalID: "AT2025abc", RA: floatPtr(150.0), Dec: floatPtr(-30.0), Viable: true, Priority: 1, CreatedAt: now, UpdatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nonlocalizedevents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventlocalizations").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventsequences").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventcandidates").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := d.SaveEvent(context.Background(), event); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_SaveEvent_CandidateIdentityConflict tests that externally identified
// candidates upsert on (event_id, external_id) while anonymous candidates
// upsert on their uuid. Two processes inserting the same external id under
// different uuids then converge on one row instead of duplicating the
// candidate.
func TestDB_SaveEvent_CandidateIdentityConflict(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &model.NonLocalizedEvent{
		EventID:   "S250601a",
		EventType: model.EventTypeGravitationalWave,
		Candidates: []*model.EventCandidate{
			{CandidateID: "cand-1", ExternalID: "AT2025abc", RA: floatPtr(150.0), Dec: floatPtr(-30.0), Viable: true, Priority: 1, CreatedAt: now, UpdatedAt: now},
			{CandidateID: "cand-2", Viable: false, Priority: 2, CreatedAt: now, UpdatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nonlocalizedevents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO eventcandidates.+ON CONFLICT \(event_id, external_id\) WHERE external_id <> ''`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO eventcandidates.+ON CONFLICT \(candidate_id\) DO UPDATE`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := d.SaveEvent(context.Background(), event); err != nil {
		t.Fatalf("SaveEvent() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_SaveEvent_RollbackOnFailure tests that a failed upsert rolls the
// whole transaction back.
func TestDB_SaveEvent_RollbackOnFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	event := &model.NonLocalizedEvent{
		EventID:   "S250601a",
		EventType: model.EventTypeGravitationalWave,
		Sequences: []*model.EventSequence{{SequenceID: "1"}},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO nonlocalizedevents").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO eventsequences").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	if err := d.SaveEvent(context.Background(), event); err == nil {
		t.Fatal("SaveEvent() error = nil, want failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_ListEvents tests the summary projection with filters.
func TestDB_ListEvents(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT e.event_id, e.event_type, e.event_subtype").
		WithArgs("GRAVITATIONAL_WAVE", "").
		WillReturnRows(sqlmock.NewRows([]string{"event_id", "event_type", "event_subtype", "seq_count", "cand_count", "created_at", "updated_at"}).
			AddRow("S250601a", "GRAVITATIONAL_WAVE", "INITIAL", 2, 3, now, now))

	summaries, err := d.ListEvents(context.Background(), "GRAVITATIONAL_WAVE", "")
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("len(summaries) = %d, want 1", len(summaries))
	}
	if summaries[0].SequenceCount != 2 || summaries[0].CandidateCount != 3 {
		t.Errorf("summary = %+v", summaries[0])
	}
}

// TestDB_GetCandidate_NotFound tests the sentinel mapping.
func TestDB_GetCandidate_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}

	mock.ExpectQuery("SELECT candidate_id, external_id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id"}))

	_, _, err = d.GetCandidate(context.Background(), "nope")
	if !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("GetCandidate() error = %v, want ErrCandidateNotFound", err)
	}
}

// TestDB_UpdateCandidate tests the read-modify-write partial update.
func TestDB_UpdateCandidate(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	viable := false

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT candidate_id, external_id").
		WithArgs("cand-1").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id", "external_id", "ra", "dec", "magnitude", "viable", "viability_reason", "priority", "viable_curated", "priority_curated", "created_at", "updated_at"}).
			AddRow("cand-1", "AT2025abc", 150.0, -30.0, nil, true, "", 1, false, false, now, now))
	mock.ExpectExec("UPDATE eventcandidates").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := d.UpdateCandidate(context.Background(), "cand-1", model.CandidatePatch{Viable: &viable})
	if err != nil {
		t.Fatalf("UpdateCandidate() error = %v", err)
	}
	if c.Viable {
		t.Error("Viable = true, want false")
	}
	if !c.ViableCurated {
		t.Error("ViableCurated = false, want true")
	}
	if c.PriorityCurated {
		t.Error("PriorityCurated = true, want false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

// TestDB_UpdateCandidate_NotFound tests the sentinel mapping inside the
// transaction.
func TestDB_UpdateCandidate_NotFound(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}
	viable := false

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT candidate_id, external_id").
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"candidate_id"}))
	mock.ExpectRollback()

	_, err = d.UpdateCandidate(context.Background(), "nope", model.CandidatePatch{Viable: &viable})
	if !errors.Is(err, model.ErrCandidateNotFound) {
		t.Errorf("UpdateCandidate() error = %v, want ErrCandidateNotFound", err)
	}
}

// TestDB_ListLocalizations_UnknownEvent tests that a missing event is
// distinguished from an event with no localizations.
func TestDB_ListLocalizations_UnknownEvent(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer conn.Close()

	d := &DB{conn: conn}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("S999999z").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	_, err = d.ListLocalizations(context.Background(), "S999999z")
	if !errors.Is(err, model.ErrEventNotFound) {
		t.Errorf("ListLocalizations() error = %v, want ErrEventNotFound", err)
	}
}
