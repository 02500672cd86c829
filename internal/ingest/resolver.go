package ingest

import (
	"context"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// IdentityResolver maps an incoming report's external identifier to an
// existing canonical event. Lookup is by event_id only, exact and
// case-sensitive. It never creates; on model.ErrEventNotFound the caller
// decides.
type IdentityResolver struct {
	storage EventStorage
}

// NewIdentityResolver creates a resolver over the given storage.
func NewIdentityResolver(storage EventStorage) *IdentityResolver {
	return &IdentityResolver{storage: storage}
}

// Resolve returns the event for the given external identifier, or
// model.ErrEventNotFound. No side effects.
func (r *IdentityResolver) Resolve(ctx context.Context, externalID string) (*model.NonLocalizedEvent, error) {
	return r.storage.GetEvent(ctx, externalID)
}
