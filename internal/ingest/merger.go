package ingest

import (
	"time"

	"github.com/google/uuid"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// SequenceMergeResult describes what a sequence merge did.
type SequenceMergeResult int

const (
	// SequenceCreated means the report carried a sequence id not yet on the
	// event and a new sequence entry was appended.
	SequenceCreated SequenceMergeResult = iota
	// SequenceUpdated means an existing sequence entry was corrected in place.
	SequenceUpdated
	// SequenceDuplicate means the report was identical in all merge-relevant
	// fields to the stored entry and nothing was mutated.
	SequenceDuplicate
)

func (r SequenceMergeResult) String() string {
	switch r {
	case SequenceCreated:
		return "created"
	case SequenceUpdated:
		return "updated"
	case SequenceDuplicate:
		return "duplicate_ignored"
	default:
		return "unknown"
	}
}

// rollingSequenceID is used for reports that carry no sequence id at all.
// Such reports describe a single rolling revision of the event and merge
// idempotently into one entry.
const rollingSequenceID = "0"

// SequenceMerger decides whether a report is a new sequence entry, a
// correction of an existing one, or a duplicate to discard.
type SequenceMerger struct {
	now func() time.Time
}

// NewSequenceMerger creates a merger using the wall clock for ingestion
// timestamps.
func NewSequenceMerger() *SequenceMerger {
	return &SequenceMerger{now: time.Now}
}

// Merge applies the report's sequence data to the event. After any mutation
// the event's subtype is recomputed from the most recent sequence across all
// entries, so an out-of-order correction to an older sequence never regresses
// the displayed subtype.
func (m *SequenceMerger) Merge(event *model.NonLocalizedEvent, report *events.RawReport) SequenceMergeResult {
	seqID := report.SequenceID
	if seqID == "" {
		seqID = rollingSequenceID
	}

	existing := event.FindSequence(seqID)
	if existing == nil {
		m.appendSequence(event, seqID, report)
		event.RecomputeSubtype()
		return SequenceCreated
	}

	if m.sequenceUnchanged(event, existing, report) {
		return SequenceDuplicate
	}

	existing.EventSubtype = report.EventSubtype
	if report.IssuanceTime != nil {
		t := *report.IssuanceTime
		existing.IssuanceTime = &t
	}
	if report.Localization != nil {
		m.mergeLocalization(event, existing, report.Localization)
	}
	event.RecomputeSubtype()
	return SequenceUpdated
}

func (m *SequenceMerger) appendSequence(event *model.NonLocalizedEvent, seqID string, report *events.RawReport) {
	seq := &model.EventSequence{
		SequenceID:   seqID,
		EventSubtype: report.EventSubtype,
		Created:      m.now(),
	}
	if report.IssuanceTime != nil {
		t := *report.IssuanceTime
		seq.IssuanceTime = &t
	}
	if report.Localization != nil {
		m.mergeLocalization(event, seq, report.Localization)
	}
	event.Sequences = append(event.Sequences, seq)
}

// mergeLocalization updates the sequence's localization in place if it has
// one, otherwise attaches a new one.
func (m *SequenceMerger) mergeLocalization(event *model.NonLocalizedEvent, seq *model.EventSequence, raw *events.RawLocalization) {
	if seq.LocalizationID != "" {
		if loc := event.FindLocalization(seq.LocalizationID); loc != nil {
			loc.SkymapURL = raw.SkymapURL
			loc.DistanceMean = raw.DistanceMean
			loc.DistanceStd = raw.DistanceStd
			loc.Area50 = raw.Area50
			loc.Area90 = raw.Area90
			return
		}
	}
	loc := &model.EventLocalization{
		LocalizationID: uuid.NewString(),
		SequenceID:     seq.SequenceID,
		SkymapURL:      raw.SkymapURL,
		DistanceMean:   raw.DistanceMean,
		DistanceStd:    raw.DistanceStd,
		Area50:         raw.Area50,
		Area90:         raw.Area90,
		Created:        m.now(),
	}
	event.Localizations = append(event.Localizations, loc)
	seq.LocalizationID = loc.LocalizationID
}

// sequenceUnchanged reports whether the report is identical to the stored
// sequence entry in all merge-relevant fields.
func (m *SequenceMerger) sequenceUnchanged(event *model.NonLocalizedEvent, seq *model.EventSequence, report *events.RawReport) bool {
	if seq.EventSubtype != report.EventSubtype {
		return false
	}
	if report.IssuanceTime != nil {
		if seq.IssuanceTime == nil || !seq.IssuanceTime.Equal(*report.IssuanceTime) {
			return false
		}
	}
	if report.Localization != nil {
		if seq.LocalizationID == "" {
			return false
		}
		loc := event.FindLocalization(seq.LocalizationID)
		if loc == nil {
			return false
		}
		raw := report.Localization
		if loc.SkymapURL != raw.SkymapURL ||
			loc.DistanceMean != raw.DistanceMean ||
			loc.DistanceStd != raw.DistanceStd ||
			loc.Area50 != raw.Area50 ||
			loc.Area90 != raw.Area90 {
			return false
		}
	}
	return true
}
