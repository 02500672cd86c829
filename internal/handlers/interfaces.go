// Package handlers provides HTTP handlers for the event-api service.
package handlers

import (
	"context"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/database"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// Repository defines the database operations the handlers need.
// This allows handlers to be tested without a real database.
type Repository interface {
	GetEvent(ctx context.Context, eventID string) (*model.NonLocalizedEvent, error)
	SaveEvent(ctx context.Context, event *model.NonLocalizedEvent) error
	ListEvents(ctx context.Context, eventType, eventID string) ([]*database.EventSummary, error)
	GetCandidate(ctx context.Context, candidateID string) (*model.EventCandidate, string, error)
	UpdateCandidate(ctx context.Context, candidateID string, patch model.CandidatePatch) (*model.EventCandidate, error)
	ListLocalizations(ctx context.Context, eventID string) ([]*model.EventLocalization, error)
	Close() error
}

// MetricsRecorder defines the metrics operations recorded by handlers.
// This uses the null object pattern - a no-op implementation avoids nil
// checks.
type MetricsRecorder interface {
	RecordReceived()
	RecordProcessed(latency time.Duration)
	RecordError()
}

// NoOpMetrics is a null-object implementation of MetricsRecorder.
type NoOpMetrics struct{}

var _ MetricsRecorder = (*NoOpMetrics)(nil)

// RecordReceived does nothing.
func (n *NoOpMetrics) RecordReceived() {}

// RecordProcessed does nothing.
func (n *NoOpMetrics) RecordProcessed(_ time.Duration) {}

// RecordError does nothing.
func (n *NoOpMetrics) RecordError() {}
