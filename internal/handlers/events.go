package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/database"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// SequenceResponse is one sequence entry in an event detail view.
type SequenceResponse struct {
	SequenceID   string     `json:"sequence_id"`
	EventSubtype string     `json:"event_subtype"`
	IssuanceTime *time.Time `json:"issuance_time,omitempty"`
	Created      time.Time  `json:"created"`
}

// LocalizationResponse is the localization metadata in a detail view.
type LocalizationResponse struct {
	LocalizationID string    `json:"localization_id"`
	SequenceID     string    `json:"sequence_id"`
	SkymapURL      string    `json:"skymap_url"`
	DistanceMean   float64   `json:"distance_mean_mpc"`
	DistanceStd    float64   `json:"distance_std_mpc"`
	Area50         float64   `json:"area_50_sq_deg"`
	Area90         float64   `json:"area_90_sq_deg"`
	Created        time.Time `json:"created"`
}

// CandidateResponse is one candidate in a detail view.
type CandidateResponse struct {
	CandidateID     string    `json:"candidate_id"`
	ExternalID      string    `json:"external_id,omitempty"`
	RA              *float64  `json:"ra,omitempty"`
	Dec             *float64  `json:"dec,omitempty"`
	Magnitude       *float64  `json:"magnitude,omitempty"`
	Viable          bool      `json:"viable"`
	ViabilityReason string    `json:"viability_reason,omitempty"`
	Priority        int       `json:"priority"`
	ViableCurated   bool      `json:"viable_curated"`
	PriorityCurated bool      `json:"priority_curated"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EventDetailResponse is the full read-only projection of one event.
// SourceReport and SourceExtras carry live data from the event's external
// authority when a source client is registered for the type; both are absent
// when the source is unreachable, leaving the stored state authoritative.
type EventDetailResponse struct {
	EventID             string                `json:"event_id"`
	EventType           string                `json:"event_type"`
	EventSubtype        string                `json:"event_subtype"`
	Sequences           []SequenceResponse    `json:"sequences"`
	Candidates          []CandidateResponse   `json:"candidates"`
	CurrentLocalization *LocalizationResponse `json:"current_localization,omitempty"`
	SourceReport        *events.RawReport     `json:"source_report,omitempty"`
	SourceExtras        map[string]any        `json:"source_extras,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

// ListEvents returns event summaries, optionally filtered by event_type
// and/or event_id query parameters.
func (h *Handlers) ListEvents(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	h.metrics.RecordReceived()
	startTime := time.Now()

	ctx := r.Context()
	summaries, err := h.db.ListEvents(ctx, r.URL.Query().Get("event_type"), r.URL.Query().Get("event_id"))
	if h.handleStoreError(w, err, "events", "") {
		return
	}
	if summaries == nil {
		summaries = []*database.EventSummary{}
	}

	writeJSON(w, http.StatusOK, summaries)
	h.metrics.RecordProcessed(time.Since(startTime))
}

// GetEventDetail returns the full projection for one event: ordered
// sequences, ranked candidates, current localization, and supplementary
// source data when a source client is registered for the event type.
func (h *Handlers) GetEventDetail(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	h.metrics.RecordReceived()
	startTime := time.Now()

	eventID, ok := requireQueryParam(w, r, "event_id")
	if !ok {
		return
	}

	ctx := r.Context()
	event, err := h.db.GetEvent(ctx, eventID)
	if h.handleStoreError(w, err, "event", eventID) {
		return
	}

	resp := buildEventDetail(event)
	// Source enrichment happens after the database read, outside any lock,
	// and its failure never fails the request.
	resp.SourceReport = h.fetchCanonicalReport(ctx, event.EventType, eventID)
	resp.SourceExtras = h.fetchExtras(ctx, event.EventType, eventID)

	writeJSON(w, http.StatusOK, resp)
	h.metrics.RecordProcessed(time.Since(startTime))
}

func buildEventDetail(event *model.NonLocalizedEvent) *EventDetailResponse {
	resp := &EventDetailResponse{
		EventID:      event.EventID,
		EventType:    string(event.EventType),
		EventSubtype: event.EventSubtype,
		Sequences:    make([]SequenceResponse, 0, len(event.Sequences)),
		Candidates:   make([]CandidateResponse, 0, len(event.Candidates)),
		CreatedAt:    event.CreatedAt,
		UpdatedAt:    event.UpdatedAt,
	}

	for _, seq := range event.SortSequences() {
		resp.Sequences = append(resp.Sequences, SequenceResponse{
			SequenceID:   seq.SequenceID,
			EventSubtype: seq.EventSubtype,
			IssuanceTime: seq.IssuanceTime,
			Created:      seq.Created,
		})
	}
	for _, c := range event.Candidates {
		resp.Candidates = append(resp.Candidates, candidateResponse(c))
	}
	if loc := event.CurrentLocalization(); loc != nil {
		lr := localizationResponse(loc)
		resp.CurrentLocalization = &lr
	}
	return resp
}

func localizationResponse(l *model.EventLocalization) LocalizationResponse {
	return LocalizationResponse{
		LocalizationID: l.LocalizationID,
		SequenceID:     l.SequenceID,
		SkymapURL:      l.SkymapURL,
		DistanceMean:   l.DistanceMean,
		DistanceStd:    l.DistanceStd,
		Area50:         l.Area50,
		Area90:         l.Area90,
		Created:        l.Created,
	}
}

func candidateResponse(c *model.EventCandidate) CandidateResponse {
	return CandidateResponse{
		CandidateID:     c.CandidateID,
		ExternalID:      c.ExternalID,
		RA:              c.RA,
		Dec:             c.Dec,
		Magnitude:       c.Magnitude,
		Viable:          c.Viable,
		ViabilityReason: c.ViabilityReason,
		Priority:        c.Priority,
		ViableCurated:   c.ViableCurated,
		PriorityCurated: c.PriorityCurated,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// fetchCanonicalReport returns the event's current authoritative state from
// its source, going through the payload cache first. Any source failure is
// logged and the stored state is served without it.
func (h *Handlers) fetchCanonicalReport(ctx context.Context, eventType model.EventType, eventID string) *events.RawReport {
	client, ok := h.sources.Lookup(eventType)
	if !ok {
		return nil
	}

	cacheKey := "report:" + eventID
	var cached events.RawReport
	if h.cacheGet(ctx, cacheKey, &cached) {
		return &cached
	}

	report, err := client.GetCanonicalReport(ctx, eventID)
	if err != nil {
		slog.Warn("Failed to fetch canonical report, serving stored state",
			"event_id", eventID,
			"event_type", eventType,
			"error", err,
		)
		return nil
	}

	h.cacheSet(ctx, cacheKey, report)
	return report
}

// fetchExtras returns supplementary display data for the event, going
// through the payload cache first. Any source failure is logged and the
// stored state is served without extras.
func (h *Handlers) fetchExtras(ctx context.Context, eventType model.EventType, eventID string) map[string]any {
	client, ok := h.sources.Lookup(eventType)
	if !ok {
		return nil
	}

	cacheKey := "extras:" + eventID
	var cached map[string]any
	if h.cacheGet(ctx, cacheKey, &cached) {
		return cached
	}

	extras, err := client.GetPresentationExtras(ctx, eventID)
	if err != nil {
		slog.Warn("Failed to fetch source extras, serving stored state",
			"event_id", eventID,
			"event_type", eventType,
			"error", err,
		)
		return nil
	}

	h.cacheSet(ctx, cacheKey, extras)
	return extras
}

// cacheGet reads a cached source payload into out, reporting whether a
// usable value was found. Cache failures degrade to a miss.
func (h *Handlers) cacheGet(ctx context.Context, key string, out any) bool {
	if h.cache == nil {
		return false
	}
	data, found, err := h.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache read failed", "key", key, "error", err)
		return false
	}
	if !found {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		slog.Warn("Discarding undecodable cached payload", "key", key, "error", err)
		return false
	}
	return true
}

// cacheSet stores a source payload; failures are logged, never surfaced.
func (h *Handlers) cacheSet(ctx context.Context, key string, v any) {
	if h.cache == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, key, data); err != nil {
		slog.Warn("Cache write failed", "key", key, "error", err)
	}
}
