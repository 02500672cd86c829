// Package ingest turns raw alert reports into canonical event state: identity
// resolution, sequence merging, and candidate triage.
package ingest

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// EventStorage is the aggregate persistence abstraction. Implementations own
// the transactional boundary: SaveEvent must commit the whole aggregate or
// nothing.
type EventStorage interface {
	// GetEvent loads the full aggregate (sequences, localizations,
	// candidates) for the given external event id.
	// Returns model.ErrEventNotFound if no such event exists.
	GetEvent(ctx context.Context, eventID string) (*model.NonLocalizedEvent, error)

	// SaveEvent persists the aggregate's current state in one transaction,
	// creating the event row on first save. The event insert must be
	// idempotent on event_id so that losing a creation race to another
	// writer degrades to an update instead of an error.
	SaveEvent(ctx context.Context, event *model.NonLocalizedEvent) error

	// Close closes the storage connection.
	Close() error
}

// ReportReader reads raw alert reports from a message queue.
type ReportReader interface {
	// ReadReport reads the next message and returns the decoded RawReport
	// along with the raw message for offset tracking.
	ReadReport(ctx context.Context) (*events.RawReport, *kafka.Message, error)

	// CommitMessage commits the offset for the given message.
	CommitMessage(ctx context.Context, msg *kafka.Message) error

	// Close closes the reader and releases resources.
	Close() error
}

// DeadLetterPublisher publishes reports that were rejected and need manual
// resolution.
type DeadLetterPublisher interface {
	Publish(ctx context.Context, rejected *events.ReportRejected) error
	Close() error
}
