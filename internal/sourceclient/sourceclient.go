// Package sourceclient defines the contract for fetching an event's
// authoritative state from its external source (e.g. GraceDB for
// gravitational-wave superevents), plus a static registry keyed by event
// type.
package sourceclient

import (
	"context"
	"errors"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// Sentinel errors for source-client failures. A failed call is never treated
// as "no data"; callers decide the fallback (usually: show stored state).
var (
	// ErrSourceUnavailable means the external service could not be reached
	// or answered with a server error. Safe to retry.
	ErrSourceUnavailable = errors.New("event source unavailable")
	// ErrSourceNotFound means the external service has no record of the
	// event id.
	ErrSourceNotFound = errors.New("event not found at source")
	// ErrSourceMalformed means the external service answered with a payload
	// that could not be decoded.
	ErrSourceMalformed = errors.New("malformed response from event source")
)

// Client fetches a canonical event's current report and supplementary display
// data from the external authority for its event type. Calls are read-only
// and idempotent; implementations may be slow and must respect ctx.
type Client interface {
	// GetCanonicalReport fetches the current authoritative state of the
	// event.
	GetCanonicalReport(ctx context.Context, externalID string) (*events.RawReport, error)

	// GetPresentationExtras fetches optional supplementary display data.
	GetPresentationExtras(ctx context.Context, externalID string) (map[string]any, error)
}

// Registry maps event types to their source clients. Event types without a
// registered client (e.g. UNKNOWN) simply have no live source; lookups
// report that explicitly rather than returning a nil that gets called.
type Registry struct {
	clients map[model.EventType]Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[model.EventType]Client)}
}

// Register associates a client with an event type, replacing any previous
// registration.
func (r *Registry) Register(eventType model.EventType, client Client) {
	r.clients[eventType] = client
}

// Lookup returns the client for the event type and whether one is
// registered.
func (r *Registry) Lookup(eventType model.EventType) (Client, bool) {
	c, ok := r.clients[eventType]
	return c, ok
}
