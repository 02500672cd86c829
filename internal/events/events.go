// Package events defines the wire structures for the reports.raw and
// reports.deadletter topics.
package events

import (
	"fmt"
	"time"
)

// RawLocalization carries the sky-localization payload of a report, when present.
type RawLocalization struct {
	SkymapURL    string  `json:"skymap_url"`
	DistanceMean float64 `json:"distance_mean_mpc,omitempty"`
	DistanceStd  float64 `json:"distance_std_mpc,omitempty"`
	Area50       float64 `json:"area_50_sq_deg,omitempty"`
	Area90       float64 `json:"area_90_sq_deg,omitempty"`
}

// RawCandidate is a candidate counterpart as carried by a report.
// ExternalID is optional; RA/Dec are in degrees (ICRS).
type RawCandidate struct {
	ExternalID string   `json:"external_id,omitempty"`
	RA         *float64 `json:"ra,omitempty"`
	Dec        *float64 `json:"dec,omitempty"`
	Magnitude  *float64 `json:"magnitude,omitempty"`
	Viable     *bool    `json:"viable,omitempty"`
	Reason     string   `json:"viability_reason,omitempty"`
}

// RawReport is one revision of a non-localized event as received from an
// external alert stream. EventID and EventType are required; everything else
// depends on what the upstream notice carried.
type RawReport struct {
	EventID      string           `json:"event_id"`
	EventType    string           `json:"event_type"`
	SequenceID   string           `json:"sequence_id,omitempty"`
	EventSubtype string           `json:"event_subtype,omitempty"`
	IssuanceTime *time.Time       `json:"issuance_time,omitempty"`
	Localization *RawLocalization `json:"localization,omitempty"`
	Candidates   []RawCandidate   `json:"candidates,omitempty"`
}

// Validate checks that the report carries the fields required before any
// mutation is attempted. Returns an *InvalidReportError describing the first
// missing field.
func (r *RawReport) Validate() error {
	if r.EventID == "" {
		return &InvalidReportError{Field: "event_id", Reason: "missing"}
	}
	if r.EventType == "" {
		return &InvalidReportError{Field: "event_type", Reason: "missing"}
	}
	for i, c := range r.Candidates {
		if (c.RA == nil) != (c.Dec == nil) {
			return &InvalidReportError{
				Field:  fmt.Sprintf("candidates[%d]", i),
				Reason: "ra and dec must be provided together",
			}
		}
	}
	return nil
}

// InvalidReportError indicates a report was rejected before ingestion.
type InvalidReportError struct {
	Field  string
	Reason string
}

func (e *InvalidReportError) Error() string {
	return fmt.Sprintf("invalid report: field %s: %s", e.Field, e.Reason)
}

// ReportRejected is published to the deadletter topic when a report cannot be
// ingested and needs manual resolution (invalid input or an ambiguous
// candidate match).
type ReportRejected struct {
	Report     *RawReport `json:"report"`
	Reason     string     `json:"reason"`
	RejectedAt time.Time  `json:"rejected_at"`
}
