package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
)

// Processor drives the ingestion loop: it reads raw reports from the message
// queue, ingests them, and routes rejected reports to the deadletter topic.
type Processor struct {
	reader     ReportReader
	deadletter DeadLetterPublisher
	ingestor   *Ingestor
	metrics    MetricsRecorder
}

// NewProcessor creates a processor with no-op metrics.
func NewProcessor(reader ReportReader, deadletter DeadLetterPublisher, ingestor *Ingestor) *Processor {
	return &Processor{
		reader:     reader,
		deadletter: deadletter,
		ingestor:   ingestor,
		metrics:    &NoOpMetrics{},
	}
}

// NewProcessorWithMetrics creates a processor with the provided metrics
// recorder. If m is nil, a no-op implementation is used.
func NewProcessorWithMetrics(reader ReportReader, deadletter DeadLetterPublisher, ingestor *Ingestor, m MetricsRecorder) *Processor {
	p := NewProcessor(reader, deadletter, ingestor)
	if m != nil {
		p.metrics = m
	}
	return p
}

// ProcessReports continuously reads raw reports from the message queue and
// ingests them. Offsets are committed only after a report is either ingested
// or deadlettered, giving at-least-once semantics.
func (p *Processor) ProcessReports(ctx context.Context) error {
	slog.Info("Starting report ingestion loop")

	for {
		select {
		case <-ctx.Done():
			slog.Info("Report ingestion loop stopped")
			return nil
		default:
			report, msg, err := p.reader.ReadReport(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read report", "error", err)
				if msg != nil {
					// Undecodable payload. Commit past it so one poison
					// message cannot wedge the partition.
					p.metrics.IncrementCustom("reports_undecodable")
					p.commit(ctx, msg)
				}
				continue
			}

			p.metrics.RecordReceived()

			if !p.processReport(ctx, report) {
				continue
			}

			p.commit(ctx, msg)
		}
	}
}

// processReport ingests a single report. Returns true if the message should
// be committed: either the ingest succeeded or the report was rejected and
// handed to the deadletter topic. Transient failures return false so the
// message is redelivered.
func (p *Processor) processReport(ctx context.Context, report *events.RawReport) bool {
	startTime := time.Now()

	result, err := p.ingestor.Ingest(ctx, report)
	if err != nil {
		var invalid *events.InvalidReportError
		var ambiguous *AmbiguousMatchError
		if errors.As(err, &invalid) || errors.As(err, &ambiguous) {
			return p.reject(ctx, report, err)
		}
		slog.Error("Failed to ingest report",
			"event_id", report.EventID,
			"sequence_id", report.SequenceID,
			"error", err,
		)
		p.metrics.RecordError()
		return false
	}

	if result.Sequence == SequenceDuplicate {
		p.metrics.IncrementCustom("reports_deduplicated")
	} else {
		p.metrics.IncrementCustom("sequences_" + result.Sequence.String())
	}
	if result.EventCreated {
		p.metrics.IncrementCustom("events_created")
	}

	slog.Info("Ingested report",
		"event_id", report.EventID,
		"event_type", result.Event.EventType,
		"sequence_id", report.SequenceID,
		"sequence_result", result.Sequence.String(),
		"event_created", result.EventCreated,
		"candidates", len(result.Candidates),
	)

	p.metrics.RecordProcessed(time.Since(startTime))
	return true
}

// reject publishes the report to the deadletter topic for manual resolution.
// Returns true if publishing succeeded so the offset can be committed.
func (p *Processor) reject(ctx context.Context, report *events.RawReport, cause error) bool {
	slog.Warn("Rejecting report",
		"event_id", report.EventID,
		"sequence_id", report.SequenceID,
		"reason", cause,
	)

	rejected := &events.ReportRejected{
		Report:     report,
		Reason:     cause.Error(),
		RejectedAt: time.Now(),
	}
	if err := p.deadletter.Publish(ctx, rejected); err != nil {
		slog.Error("Failed to publish rejected report",
			"event_id", report.EventID,
			"error", err,
		)
		p.metrics.RecordError()
		return false
	}

	p.metrics.RecordPublished()
	p.metrics.IncrementCustom("reports_rejected")
	return true
}

// commit commits the offset for the given message. Commit failures are
// logged and tolerated: the offset will be committed on a later message and
// the idempotent ingest absorbs any redelivery.
func (p *Processor) commit(ctx context.Context, msg *kafka.Message) {
	if err := p.reader.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit offset", "error", err)
	}
}
