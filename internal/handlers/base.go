package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/cache"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/ingest"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/sourceclient"
)

// Handlers wraps dependencies for the HTTP handlers.
type Handlers struct {
	db      Repository
	triage  *ingest.TriageEngine
	sources *sourceclient.Registry
	cache   cache.Cache
	locks   *ingest.KeyMutex
	metrics MetricsRecorder
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetrics sets a custom metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(h *Handlers) {
		if m != nil {
			h.metrics = m
		}
	}
}

// WithSourceRegistry sets the source client registry used to enrich event
// detail views. Without one, details are served from stored state only.
func WithSourceRegistry(r *sourceclient.Registry) Option {
	return func(h *Handlers) {
		h.sources = r
	}
}

// WithCache sets the cache used for source payloads.
func WithCache(c cache.Cache) Option {
	return func(h *Handlers) {
		h.cache = c
	}
}

// NewHandlers creates a new handlers instance. A nil triage engine gets the
// default tolerance.
func NewHandlers(db Repository, triage *ingest.TriageEngine, opts ...Option) *Handlers {
	if triage == nil {
		triage = ingest.NewTriageEngine()
	}
	h := &Handlers{
		db:      db,
		triage:  triage,
		sources: sourceclient.NewRegistry(),
		locks:   ingest.NewKeyMutex(),
		metrics: &NoOpMetrics{}, // Default to no-op, never nil
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// requireMethod checks the HTTP method.
// Returns true if it matches, false otherwise (after writing the error).
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// decodeJSON decodes a JSON request body into v.
// Returns true on success, false otherwise (after writing the error).
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// requireQueryParam fetches a required query parameter.
// Returns the value and true, or false otherwise (after writing the error).
func requireQueryParam(w http.ResponseWriter, r *http.Request, paramName string) (string, bool) {
	value := r.URL.Query().Get(paramName)
	if value == "" {
		http.Error(w, paramName+" query parameter is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// handleStoreError maps storage errors onto HTTP responses.
// Returns true if the error was handled.
func (h *Handlers) handleStoreError(w http.ResponseWriter, err error, resource, resourceID string) bool {
	if err == nil {
		return false
	}

	slog.Error("Storage error", "error", err, "resource", resource, "resource_id", resourceID)
	h.metrics.RecordError()

	if errors.Is(err, model.ErrEventNotFound) {
		http.Error(w, "Event not found", http.StatusNotFound)
		return true
	}
	if errors.Is(err, model.ErrCandidateNotFound) {
		http.Error(w, "Candidate not found", http.StatusNotFound)
		return true
	}

	http.Error(w, "Failed to access "+resource, http.StatusInternalServerError)
	return true
}
