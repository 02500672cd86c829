package handlers

import (
	"net/http"
)

// ListLocalizations returns every localization attached to an event,
// oldest first.
func (h *Handlers) ListLocalizations(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	h.metrics.RecordReceived()

	eventID, ok := requireQueryParam(w, r, "event_id")
	if !ok {
		return
	}

	localizations, err := h.db.ListLocalizations(r.Context(), eventID)
	if h.handleStoreError(w, err, "event", eventID) {
		return
	}

	resp := make([]LocalizationResponse, 0, len(localizations))
	for _, l := range localizations {
		resp = append(resp, localizationResponse(l))
	}
	writeJSON(w, http.StatusOK, resp)
}
