package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// IngestResult is the outcome of ingesting one report.
type IngestResult struct {
	Event        *model.NonLocalizedEvent
	EventCreated bool
	Sequence     SequenceMergeResult
	Candidates   []CandidateOutcome
}

// Ingestor is the ingestion entry point: it resolves identity, creates the
// event if needed, runs the sequence merge and candidate triage, and commits
// the whole ingestion atomically. Concurrent ingests for the same event id
// are serialized by a keyed mutex; cross-process creation races are closed by
// the storage's idempotent create.
type Ingestor struct {
	storage  EventStorage
	resolver *IdentityResolver
	merger   *SequenceMerger
	triage   *TriageEngine
	locks    *KeyMutex
	now      func() time.Time
}

// NewIngestor creates an ingestor over the given storage and triage engine.
// A nil triage engine gets the default tolerance.
func NewIngestor(storage EventStorage, triage *TriageEngine) *Ingestor {
	if triage == nil {
		triage = NewTriageEngine()
	}
	return &Ingestor{
		storage:  storage,
		resolver: NewIdentityResolver(storage),
		merger:   NewSequenceMerger(),
		triage:   triage,
		locks:    NewKeyMutex(),
		now:      time.Now,
	}
}

// Ingest processes one raw report. The report is validated before any
// mutation; invalid reports are rejected with *events.InvalidReportError and
// ambiguous candidate matches with *AmbiguousMatchError, both before any
// state is committed.
func (in *Ingestor) Ingest(ctx context.Context, report *events.RawReport) (*IngestResult, error) {
	if err := report.Validate(); err != nil {
		return nil, err
	}

	unlock := in.locks.Lock(report.EventID)
	defer unlock()

	event, created, err := in.resolveOrCreate(ctx, report)
	if err != nil {
		return nil, err
	}

	seqResult := in.merger.Merge(event, report)

	candOutcomes, err := in.triage.MergeCandidates(event, report.Candidates, false)
	if err != nil {
		// The in-memory aggregate is discarded; nothing was committed.
		return nil, err
	}

	if mutated(created, seqResult, candOutcomes) {
		event.UpdatedAt = in.now()
		if err := in.storage.SaveEvent(ctx, event); err != nil {
			return nil, fmt.Errorf("failed to save event %s: %w", event.EventID, err)
		}
	}

	return &IngestResult{
		Event:        event,
		EventCreated: created,
		Sequence:     seqResult,
		Candidates:   candOutcomes,
	}, nil
}

// resolveOrCreate looks the event up and builds a fresh aggregate on first
// report. The new aggregate only becomes visible when SaveEvent commits, so a
// failed ingest leaves no partial event behind. Losing the creation race to
// another writer is absorbed by the storage's idempotent event insert.
func (in *Ingestor) resolveOrCreate(ctx context.Context, report *events.RawReport) (*model.NonLocalizedEvent, bool, error) {
	event, err := in.resolver.Resolve(ctx, report.EventID)
	if err == nil {
		return event, false, nil
	}
	if !errors.Is(err, model.ErrEventNotFound) {
		return nil, false, fmt.Errorf("failed to resolve event %s: %w", report.EventID, err)
	}

	slog.Debug("Creating event on first report", "event_id", report.EventID, "event_type", report.EventType)
	now := in.now()
	event = &model.NonLocalizedEvent{
		EventID:   report.EventID,
		EventType: model.ParseEventType(report.EventType),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return event, true, nil
}

// mutated reports whether the ingest changed anything worth persisting.
// A pure duplicate must not bump the event timestamp.
func mutated(created bool, seq SequenceMergeResult, cands []CandidateOutcome) bool {
	if created || seq != SequenceDuplicate {
		return true
	}
	for _, o := range cands {
		if o.Result != CandidateUnchanged {
			return true
		}
	}
	return false
}
