package model

import (
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }

// TestParseEventType tests wire string to EventType mapping.
func TestParseEventType(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  EventType
	}{
		{"gravitational wave", "GRAVITATIONAL_WAVE", EventTypeGravitationalWave},
		{"gamma ray burst", "GAMMA_RAY_BURST", EventTypeGammaRayBurst},
		{"neutrino", "NEUTRINO", EventTypeNeutrino},
		{"unrecognized", "SOLAR_FLARE", EventTypeUnknown},
		{"empty", "", EventTypeUnknown},
		{"lowercase is not canonical", "neutrino", EventTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseEventType(tt.input); got != tt.want {
				t.Errorf("ParseEventType(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// TestMoreRecent tests the ordering key chain: issuance time, then numeric
// sequence id, then lexical sequence id, then ingestion time.
func TestMoreRecent(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    *EventSequence
		b    *EventSequence
		want bool
	}{
		{
			name: "issuance time decides when both carry one",
			a:    &EventSequence{SequenceID: "1", IssuanceTime: timePtr(base.Add(time.Hour))},
			b:    &EventSequence{SequenceID: "2", IssuanceTime: timePtr(base)},
			want: true,
		},
		{
			name: "equal issuance times fall through to sequence id",
			a:    &EventSequence{SequenceID: "3", IssuanceTime: timePtr(base)},
			b:    &EventSequence{SequenceID: "2", IssuanceTime: timePtr(base)},
			want: true,
		},
		{
			name: "numeric sequence ids compare numerically",
			a:    &EventSequence{SequenceID: "10"},
			b:    &EventSequence{SequenceID: "9"},
			want: true,
		},
		{
			name: "one missing issuance time falls back to sequence id",
			a:    &EventSequence{SequenceID: "2"},
			b:    &EventSequence{SequenceID: "3", IssuanceTime: timePtr(base)},
			want: false,
		},
		{
			name: "non-numeric ids compare lexically",
			a:    &EventSequence{SequenceID: "update-b"},
			b:    &EventSequence{SequenceID: "update-a"},
			want: true,
		},
		{
			name: "identical ids fall back to ingestion time",
			a:    &EventSequence{SequenceID: "1", Created: base.Add(time.Minute)},
			b:    &EventSequence{SequenceID: "1", Created: base},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MoreRecent(tt.a, tt.b); got != tt.want {
				t.Errorf("MoreRecent() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestRecomputeSubtype_OutOfOrderCorrection tests that correcting an older
// sequence does not regress the displayed subtype.
func TestRecomputeSubtype_OutOfOrderCorrection(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &NonLocalizedEvent{
		EventID:   "S250601a",
		EventType: EventTypeGravitationalWave,
		Sequences: []*EventSequence{
			{SequenceID: "1", EventSubtype: "EARLY_WARNING", IssuanceTime: timePtr(base)},
			{SequenceID: "3", EventSubtype: "UPDATE", IssuanceTime: timePtr(base.Add(2 * time.Hour))},
		},
	}

	event.RecomputeSubtype()
	if event.EventSubtype != "UPDATE" {
		t.Fatalf("EventSubtype = %q, want UPDATE", event.EventSubtype)
	}

	// A late correction arrives for the older sequence.
	event.Sequences[0].EventSubtype = "EARLY_WARNING_RETRACTED"
	event.RecomputeSubtype()
	if event.EventSubtype != "UPDATE" {
		t.Errorf("EventSubtype = %q after correcting older sequence, want UPDATE", event.EventSubtype)
	}
}

// TestSortSequences tests that sequences come back oldest first and the
// receiver's slice is untouched.
func TestSortSequences(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &NonLocalizedEvent{
		Sequences: []*EventSequence{
			{SequenceID: "3", IssuanceTime: timePtr(base.Add(2 * time.Hour))},
			{SequenceID: "1", IssuanceTime: timePtr(base)},
			{SequenceID: "2", IssuanceTime: timePtr(base.Add(time.Hour))},
		},
	}

	sorted := event.SortSequences()
	want := []string{"1", "2", "3"}
	for i, seq := range sorted {
		if seq.SequenceID != want[i] {
			t.Errorf("sorted[%d].SequenceID = %q, want %q", i, seq.SequenceID, want[i])
		}
	}

	if event.Sequences[0].SequenceID != "3" {
		t.Error("SortSequences modified the receiver's slice")
	}
}

// TestCurrentLocalization tests that the most recent sequence carrying a
// localization wins, skipping newer sequences without one.
func TestCurrentLocalization(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := &NonLocalizedEvent{
		Sequences: []*EventSequence{
			{SequenceID: "1", IssuanceTime: timePtr(base), LocalizationID: "loc-1"},
			{SequenceID: "2", IssuanceTime: timePtr(base.Add(time.Hour)), LocalizationID: "loc-2"},
			{SequenceID: "3", IssuanceTime: timePtr(base.Add(2 * time.Hour))}, // no localization
		},
		Localizations: []*EventLocalization{
			{LocalizationID: "loc-1", SequenceID: "1"},
			{LocalizationID: "loc-2", SequenceID: "2"},
		},
	}

	loc := event.CurrentLocalization()
	if loc == nil {
		t.Fatal("CurrentLocalization() = nil, want loc-2")
	}
	if loc.LocalizationID != "loc-2" {
		t.Errorf("CurrentLocalization().LocalizationID = %q, want loc-2", loc.LocalizationID)
	}
}

func TestCurrentLocalization_NoneAttached(t *testing.T) {
	event := &NonLocalizedEvent{
		Sequences: []*EventSequence{{SequenceID: "1"}},
	}
	if loc := event.CurrentLocalization(); loc != nil {
		t.Errorf("CurrentLocalization() = %v, want nil", loc)
	}
}

// TestWorstPriority tests the default-priority baseline for new candidates.
func TestWorstPriority(t *testing.T) {
	event := &NonLocalizedEvent{}
	if got := event.WorstPriority(); got != 0 {
		t.Errorf("WorstPriority() with no candidates = %d, want 0", got)
	}

	event.Candidates = []*EventCandidate{
		{CandidateID: "a", Priority: 2},
		{CandidateID: "b", Priority: 5},
		{CandidateID: "c", Priority: 1},
	}
	if got := event.WorstPriority(); got != 5 {
		t.Errorf("WorstPriority() = %d, want 5", got)
	}
}
