package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/ingest"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// UpdateCandidateRequest is a partial update of a candidate's curated
// fields. Only fields present in the JSON body are applied; absent fields
// are left bit-for-bit unchanged.
type UpdateCandidateRequest struct {
	Viable          *bool   `json:"viable,omitempty"`
	ViabilityReason *string `json:"viability_reason,omitempty"`
	Priority        *int    `json:"priority,omitempty"`
}

// UpdateCandidate applies a partial update to one candidate. Fields set here
// are marked curated, so later automated reports will not revert them.
func (h *Handlers) UpdateCandidate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPatch) {
		return
	}
	h.metrics.RecordReceived()
	startTime := time.Now()

	candidateID, ok := requireQueryParam(w, r, "candidate_id")
	if !ok {
		return
	}

	var req UpdateCandidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	patch := model.CandidatePatch{
		Viable:          req.Viable,
		ViabilityReason: req.ViabilityReason,
		Priority:        req.Priority,
	}
	if patch.IsZero() {
		http.Error(w, "at least one of viable, viability_reason, priority is required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	candidate, err := h.db.UpdateCandidate(ctx, candidateID, patch)
	if h.handleStoreError(w, err, "candidate", candidateID) {
		return
	}

	writeJSON(w, http.StatusOK, candidateResponse(candidate))
	h.metrics.RecordProcessed(time.Since(startTime))
}

// GetCandidate returns a single candidate.
func (h *Handlers) GetCandidate(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	h.metrics.RecordReceived()

	candidateID, ok := requireQueryParam(w, r, "candidate_id")
	if !ok {
		return
	}

	candidate, eventID, err := h.db.GetCandidate(r.Context(), candidateID)
	if h.handleStoreError(w, err, "candidate", candidateID) {
		return
	}

	resp := struct {
		CandidateResponse
		EventID string `json:"event_id"`
	}{candidateResponse(candidate), eventID}
	writeJSON(w, http.StatusOK, resp)
}

// BulkCandidatesRequest is one reported candidate in a bulk submission.
type BulkCandidatesRequest struct {
	EventID         string   `json:"event_id"`
	ExternalID      string   `json:"external_id,omitempty"`
	RA              *float64 `json:"ra,omitempty"`
	Dec             *float64 `json:"dec,omitempty"`
	Magnitude       *float64 `json:"magnitude,omitempty"`
	Viable          *bool    `json:"viable,omitempty"`
	ViabilityReason string   `json:"viability_reason,omitempty"`
}

// BulkCandidateOutcome reports what happened to one submitted candidate.
type BulkCandidateOutcome struct {
	Result    string            `json:"result"` // created, updated, unchanged
	Candidate CandidateResponse `json:"candidate"`
}

// BulkUpsertCandidates accepts either a single candidate object or a list
// and merges them into their event through the same identity rules the
// ingestion path uses: external id equality, then positional match within
// tolerance. All submitted candidates must belong to the same event.
// The override query parameter allows an explicit operator override of
// curated fields.
func (h *Handlers) BulkUpsertCandidates(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	h.metrics.RecordReceived()
	startTime := time.Now()

	reqs, ok := decodeCandidateList(w, r)
	if !ok {
		return
	}
	if len(reqs) == 0 {
		http.Error(w, "at least one candidate is required", http.StatusBadRequest)
		return
	}

	eventID := reqs[0].EventID
	if eventID == "" {
		http.Error(w, "event_id is required", http.StatusBadRequest)
		return
	}
	reported := make([]events.RawCandidate, 0, len(reqs))
	for _, req := range reqs {
		if req.EventID != eventID {
			http.Error(w, "all candidates must reference the same event_id", http.StatusBadRequest)
			return
		}
		reported = append(reported, events.RawCandidate{
			ExternalID: req.ExternalID,
			RA:         req.RA,
			Dec:        req.Dec,
			Magnitude:  req.Magnitude,
			Viable:     req.Viable,
			Reason:     req.ViabilityReason,
		})
	}

	override := r.URL.Query().Get("override") == "true"

	// Same hazard as ingestion: two writers loading the event before either
	// saves would both miss the identity match and create the candidate
	// twice. Serialize the load-merge-save cycle per event id.
	unlock := h.locks.Lock(eventID)
	defer unlock()

	ctx := r.Context()
	event, err := h.db.GetEvent(ctx, eventID)
	if h.handleStoreError(w, err, "event", eventID) {
		return
	}

	outcomes, err := h.triage.MergeCandidates(event, reported, override)
	if err != nil {
		var ambiguous *ingest.AmbiguousMatchError
		if errors.As(err, &ambiguous) {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.handleStoreError(w, err, "candidates", eventID)
		return
	}

	if anyCandidateChanged(outcomes) {
		event.UpdatedAt = time.Now()
		if h.handleStoreError(w, h.db.SaveEvent(ctx, event), "event", eventID) {
			return
		}
	}

	resp := make([]BulkCandidateOutcome, 0, len(outcomes))
	for _, o := range outcomes {
		resp = append(resp, BulkCandidateOutcome{
			Result:    o.Result.String(),
			Candidate: candidateResponse(o.Candidate),
		})
	}
	writeJSON(w, http.StatusOK, resp)
	h.metrics.RecordProcessed(time.Since(startTime))
}

// decodeCandidateList accepts both a single JSON object and a JSON list.
func decodeCandidateList(w http.ResponseWriter, r *http.Request) ([]BulkCandidatesRequest, bool) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}

	trimmed := bytes.TrimLeft(body, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []BulkCandidatesRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return nil, false
		}
		return reqs, true
	}

	var req BulkCandidatesRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return []BulkCandidatesRequest{req}, true
}

func anyCandidateChanged(outcomes []ingest.CandidateOutcome) bool {
	for _, o := range outcomes {
		if o.Result != ingest.CandidateUnchanged {
			return true
		}
	}
	return false
}
