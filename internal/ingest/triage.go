package ingest

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// DefaultMatchToleranceArcsec is the angular tolerance used to resolve
// candidate identity by position when no tolerance is configured for the
// event type.
const DefaultMatchToleranceArcsec = 2.0

// CandidateMergeResult describes what a candidate merge did.
type CandidateMergeResult int

const (
	// CandidateCreated means no existing candidate matched and a new one was
	// appended to the event.
	CandidateCreated CandidateMergeResult = iota
	// CandidateUpdated means an existing candidate matched and at least one
	// field changed.
	CandidateUpdated
	// CandidateUnchanged means an existing candidate matched but the report
	// carried nothing new.
	CandidateUnchanged
)

func (r CandidateMergeResult) String() string {
	switch r {
	case CandidateCreated:
		return "created"
	case CandidateUpdated:
		return "updated"
	case CandidateUnchanged:
		return "unchanged"
	default:
		return "unknown"
	}
}

// CandidateOutcome is the per-candidate audit record returned by a merge.
type CandidateOutcome struct {
	Candidate *model.EventCandidate
	Result    CandidateMergeResult
}

// AmbiguousMatchError is returned when a positional match finds more than one
// existing candidate within tolerance. The merge must not guess; the report
// is surfaced for manual resolution.
type AmbiguousMatchError struct {
	EventID      string
	ExternalID   string
	CandidateIDs []string
}

func (e *AmbiguousMatchError) Error() string {
	return fmt.Sprintf("ambiguous candidate match on event %s: %d candidates within tolerance (%s)",
		e.EventID, len(e.CandidateIDs), strings.Join(e.CandidateIDs, ", "))
}

// TriageEngine merges reported candidate counterparts into an event without
// losing manually-curated overrides.
type TriageEngine struct {
	// tolerance returns the match tolerance in arcseconds for an event type.
	tolerance func(model.EventType) float64
	now       func() time.Time
}

// NewTriageEngine creates an engine using DefaultMatchToleranceArcsec for
// every event type.
func NewTriageEngine() *TriageEngine {
	return &TriageEngine{
		tolerance: func(model.EventType) float64 { return DefaultMatchToleranceArcsec },
		now:       time.Now,
	}
}

// NewTriageEngineWithTolerance creates an engine with a per-event-type
// tolerance function. A nil function falls back to the default tolerance.
func NewTriageEngineWithTolerance(tolerance func(model.EventType) float64) *TriageEngine {
	e := NewTriageEngine()
	if tolerance != nil {
		e.tolerance = tolerance
	}
	return e
}

// MergeCandidates merges the reported candidates into the event. Identity is
// resolved per candidate, in order: external id equality, then positional
// match within the configured tolerance, then creation. Curated fields are
// preserved unless override is set. Returns one outcome per reported
// candidate, or an *AmbiguousMatchError when a positional match is not
// unique.
func (t *TriageEngine) MergeCandidates(event *model.NonLocalizedEvent, reported []events.RawCandidate, override bool) ([]CandidateOutcome, error) {
	outcomes := make([]CandidateOutcome, 0, len(reported))
	for i := range reported {
		raw := &reported[i]

		match, err := t.resolveIdentity(event, raw)
		if err != nil {
			return nil, err
		}

		if match == nil {
			created := t.createCandidate(event, raw)
			event.Candidates = append(event.Candidates, created)
			outcomes = append(outcomes, CandidateOutcome{Candidate: created, Result: CandidateCreated})
			continue
		}

		result := CandidateUnchanged
		if t.updateCandidate(match, raw, override) {
			result = CandidateUpdated
		}
		outcomes = append(outcomes, CandidateOutcome{Candidate: match, Result: result})
	}
	return outcomes, nil
}

// resolveIdentity finds the existing candidate the report refers to, or nil
// when a new one must be created.
func (t *TriageEngine) resolveIdentity(event *model.NonLocalizedEvent, raw *events.RawCandidate) (*model.EventCandidate, error) {
	if raw.ExternalID != "" {
		for _, c := range event.Candidates {
			if c.ExternalID == raw.ExternalID {
				return c, nil
			}
		}
	}

	if raw.RA == nil || raw.Dec == nil {
		return nil, nil
	}

	tolDeg := t.tolerance(event.EventType) / model.ArcsecPerDegree
	var matched []*model.EventCandidate
	for _, c := range event.Candidates {
		if !c.HasPosition() {
			continue
		}
		// A candidate with a conflicting external id is a different object
		// even if it sits at the same position.
		if raw.ExternalID != "" && c.ExternalID != "" && c.ExternalID != raw.ExternalID {
			continue
		}
		if model.AngularSeparation(*raw.RA, *raw.Dec, *c.RA, *c.Dec) <= tolDeg {
			matched = append(matched, c)
		}
	}

	switch len(matched) {
	case 0:
		return nil, nil
	case 1:
		return matched[0], nil
	default:
		ids := make([]string, len(matched))
		for i, c := range matched {
			ids[i] = c.CandidateID
		}
		return nil, &AmbiguousMatchError{
			EventID:      event.EventID,
			ExternalID:   raw.ExternalID,
			CandidateIDs: ids,
		}
	}
}

func (t *TriageEngine) createCandidate(event *model.NonLocalizedEvent, raw *events.RawCandidate) *model.EventCandidate {
	now := t.now()
	c := &model.EventCandidate{
		CandidateID:     uuid.NewString(),
		ExternalID:      raw.ExternalID,
		Viable:          true,
		ViabilityReason: raw.Reason,
		Priority:        event.WorstPriority() + 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if raw.Viable != nil {
		c.Viable = *raw.Viable
	}
	copyPosition(c, raw)
	return c
}

// updateCandidate applies descriptive fields from the report. Curated fields
// are only touched when override is set. Returns true if anything changed.
func (t *TriageEngine) updateCandidate(c *model.EventCandidate, raw *events.RawCandidate, override bool) bool {
	changed := false

	if raw.RA != nil && raw.Dec != nil {
		if c.RA == nil || c.Dec == nil || *c.RA != *raw.RA || *c.Dec != *raw.Dec {
			copyPosition(c, raw)
			changed = true
		}
	}
	if raw.Magnitude != nil && (c.Magnitude == nil || *c.Magnitude != *raw.Magnitude) {
		m := *raw.Magnitude
		c.Magnitude = &m
		changed = true
	}
	if raw.ExternalID != "" && c.ExternalID == "" {
		c.ExternalID = raw.ExternalID
		changed = true
	}

	if !c.ViableCurated || override {
		if raw.Viable != nil && c.Viable != *raw.Viable {
			c.Viable = *raw.Viable
			changed = true
		}
		if raw.Reason != "" && c.ViabilityReason != raw.Reason {
			c.ViabilityReason = raw.Reason
			changed = true
		}
	}

	if changed {
		c.UpdatedAt = t.now()
	}
	return changed
}

func copyPosition(c *model.EventCandidate, raw *events.RawCandidate) {
	if raw.RA != nil && raw.Dec != nil {
		ra, dec := *raw.RA, *raw.Dec
		c.RA = &ra
		c.Dec = &dec
	}
	if raw.Magnitude != nil {
		m := *raw.Magnitude
		c.Magnitude = &m
	}
}
