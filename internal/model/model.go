// Package model defines the canonical event aggregate: a NonLocalizedEvent
// with its ordered sequences, localizations, and candidate counterparts.
package model

import (
	"errors"
	"strconv"
	"time"
)

// ErrEventNotFound is returned by storage lookups when no event exists for
// the given external identifier.
var ErrEventNotFound = errors.New("event not found")

// ErrCandidateNotFound is returned by storage lookups when no candidate
// exists for the given identifier.
var ErrCandidateNotFound = errors.New("candidate not found")

// EventType classifies a non-localized event and selects which source client
// and presentation rules apply. Fixed at event creation.
type EventType string

const (
	EventTypeGravitationalWave EventType = "GRAVITATIONAL_WAVE"
	EventTypeGammaRayBurst     EventType = "GAMMA_RAY_BURST"
	EventTypeNeutrino          EventType = "NEUTRINO"
	EventTypeUnknown           EventType = "UNKNOWN"
)

// ParseEventType maps a wire string to an EventType. Unrecognized values map
// to EventTypeUnknown rather than failing; the event is still tracked.
func ParseEventType(s string) EventType {
	switch EventType(s) {
	case EventTypeGravitationalWave, EventTypeGammaRayBurst, EventTypeNeutrino:
		return EventType(s)
	default:
		return EventTypeUnknown
	}
}

// NonLocalizedEvent is the aggregate root. Exactly one exists per distinct
// EventID; sequences, localizations, and candidates are owned by it.
type NonLocalizedEvent struct {
	EventID       string
	EventType     EventType
	EventSubtype  string
	Sequences     []*EventSequence
	Localizations []*EventLocalization
	Candidates    []*EventCandidate
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EventSequence is one reported revision of the event's timeline.
// SequenceID is unique within the owning event, not globally.
type EventSequence struct {
	SequenceID     string
	EventSubtype   string
	IssuanceTime   *time.Time
	Created        time.Time // ingestion time, not external issuance
	LocalizationID string    // empty if this revision carried no localization
}

// EventLocalization is the sky probability map metadata carried by one
// sequence revision. Distances are in Mpc, areas in square degrees.
type EventLocalization struct {
	LocalizationID string
	SequenceID     string
	SkymapURL      string
	DistanceMean   float64
	DistanceStd    float64
	Area50         float64
	Area90         float64
	Created        time.Time
}

// EventCandidate is a candidate electromagnetic counterpart. Lower Priority
// means more promising. ViableCurated and PriorityCurated mark fields set by
// an operator; automated merges must not overwrite them without an explicit
// override.
type EventCandidate struct {
	CandidateID     string
	ExternalID      string
	RA              *float64
	Dec             *float64
	Magnitude       *float64
	Viable          bool
	ViabilityReason string
	Priority        int
	ViableCurated   bool
	PriorityCurated bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HasPosition reports whether the candidate carries sky coordinates.
func (c *EventCandidate) HasPosition() bool {
	return c.RA != nil && c.Dec != nil
}

// FindSequence returns the sequence with the given external sequence id, or
// nil if the event has no such revision.
func (e *NonLocalizedEvent) FindSequence(sequenceID string) *EventSequence {
	for _, s := range e.Sequences {
		if s.SequenceID == sequenceID {
			return s
		}
	}
	return nil
}

// FindCandidate returns the candidate with the given id, or nil.
func (e *NonLocalizedEvent) FindCandidate(candidateID string) *EventCandidate {
	for _, c := range e.Candidates {
		if c.CandidateID == candidateID {
			return c
		}
	}
	return nil
}

// FindLocalization returns the localization with the given id, or nil.
func (e *NonLocalizedEvent) FindLocalization(localizationID string) *EventLocalization {
	for _, l := range e.Localizations {
		if l.LocalizationID == localizationID {
			return l
		}
	}
	return nil
}

// LatestSequence returns the most recent sequence per the ordering key chain,
// or nil if the event has no sequences yet.
func (e *NonLocalizedEvent) LatestSequence() *EventSequence {
	var latest *EventSequence
	for _, s := range e.Sequences {
		if latest == nil || MoreRecent(s, latest) {
			latest = s
		}
	}
	return latest
}

// RecomputeSubtype sets EventSubtype from the most recent sequence across all
// entries. An out-of-order correction to an older sequence therefore never
// regresses the displayed subtype.
func (e *NonLocalizedEvent) RecomputeSubtype() {
	if latest := e.LatestSequence(); latest != nil {
		e.EventSubtype = latest.EventSubtype
	}
}

// CurrentLocalization returns the localization from the most recent sequence
// that carried one, or nil if no sequence has localization data.
func (e *NonLocalizedEvent) CurrentLocalization() *EventLocalization {
	var best *EventSequence
	for _, s := range e.Sequences {
		if s.LocalizationID == "" {
			continue
		}
		if best == nil || MoreRecent(s, best) {
			best = s
		}
	}
	if best == nil {
		return nil
	}
	return e.FindLocalization(best.LocalizationID)
}

// WorstPriority returns the numerically greatest (least promising) priority
// among the event's candidates, or 0 if there are none. New candidates default
// to WorstPriority()+1.
func (e *NonLocalizedEvent) WorstPriority() int {
	worst := 0
	for _, c := range e.Candidates {
		if c.Priority > worst {
			worst = c.Priority
		}
	}
	return worst
}

// MoreRecent reports whether sequence a is more recent than b. The ordering
// key chain is tried in priority order and the first key that distinguishes
// the two entries decides:
//
//  1. external issuance time, when both entries carry one
//  2. numeric sequence id, when both parse as integers
//  3. lexical sequence id
//  4. ingestion time
func MoreRecent(a, b *EventSequence) bool {
	if a.IssuanceTime != nil && b.IssuanceTime != nil && !a.IssuanceTime.Equal(*b.IssuanceTime) {
		return a.IssuanceTime.After(*b.IssuanceTime)
	}
	an, aerr := strconv.Atoi(a.SequenceID)
	bn, berr := strconv.Atoi(b.SequenceID)
	if aerr == nil && berr == nil && an != bn {
		return an > bn
	}
	if a.SequenceID != b.SequenceID {
		return a.SequenceID > b.SequenceID
	}
	return a.Created.After(b.Created)
}

// SortSequences returns the event's sequences ordered oldest first per the
// same key chain used by MoreRecent. The receiver's slice is not modified.
func (e *NonLocalizedEvent) SortSequences() []*EventSequence {
	out := make([]*EventSequence, len(e.Sequences))
	copy(out, e.Sequences)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && MoreRecent(out[j-1], out[j]); j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
