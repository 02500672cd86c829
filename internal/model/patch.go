package model

import "time"

// CandidatePatch is an operator-driven partial update of a candidate's
// curated fields. Only fields that are non-nil are applied; everything else
// is left untouched. This is a strict contract relied on by the API layer.
type CandidatePatch struct {
	Viable          *bool
	ViabilityReason *string
	Priority        *int
}

// IsZero reports whether the patch names no fields at all.
func (p CandidatePatch) IsZero() bool {
	return p.Viable == nil && p.ViabilityReason == nil && p.Priority == nil
}

// Apply applies the named fields to the candidate and marks them as curated,
// so later automated merges will not silently revert them. Returns true if
// any field actually changed.
func (p CandidatePatch) Apply(c *EventCandidate, now time.Time) bool {
	changed := false
	if p.Viable != nil {
		if c.Viable != *p.Viable {
			c.Viable = *p.Viable
			changed = true
		}
		c.ViableCurated = true
	}
	if p.ViabilityReason != nil {
		if c.ViabilityReason != *p.ViabilityReason {
			c.ViabilityReason = *p.ViabilityReason
			changed = true
		}
		c.ViableCurated = true
	}
	if p.Priority != nil {
		if c.Priority != *p.Priority {
			c.Priority = *p.Priority
			changed = true
		}
		c.PriorityCurated = true
	}
	if changed {
		c.UpdatedAt = now
	}
	return changed
}
