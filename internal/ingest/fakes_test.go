package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/model"
)

// FakeStorage is an in-memory test fake for EventStorage.
type FakeStorage struct {
	Events    map[string]*model.NonLocalizedEvent
	GetErr    error
	SaveErr   error
	SaveCalls int
	GetCalls  int
}

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{Events: make(map[string]*model.NonLocalizedEvent)}
}

func (f *FakeStorage) GetEvent(ctx context.Context, eventID string) (*model.NonLocalizedEvent, error) {
	f.GetCalls++
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	event, ok := f.Events[eventID]
	if !ok {
		return nil, model.ErrEventNotFound
	}
	return event, nil
}

func (f *FakeStorage) SaveEvent(ctx context.Context, event *model.NonLocalizedEvent) error {
	f.SaveCalls++
	if f.SaveErr != nil {
		return f.SaveErr
	}
	f.Events[event.EventID] = event
	return nil
}

func (f *FakeStorage) Close() error {
	return nil
}

// FakeReader is a test fake for ReportReader. OnDrain, when set, is called
// once all reports have been read; tests use it to cancel the loop's context.
type FakeReader struct {
	Reports    []*events.RawReport
	ReadErr    error
	CommitErr  error
	ReadIndex  int
	Committed  []kafka.Message
	ReadCalled int
	OnDrain    func()
}

func (f *FakeReader) ReadReport(ctx context.Context) (*events.RawReport, *kafka.Message, error) {
	f.ReadCalled++
	if f.ReadErr != nil {
		return nil, nil, f.ReadErr
	}
	if f.ReadIndex >= len(f.Reports) {
		if f.OnDrain != nil {
			f.OnDrain()
		}
		return nil, nil, errors.New("no more reports")
	}
	report := f.Reports[f.ReadIndex]
	f.ReadIndex++
	if report == nil {
		// Simulates an undecodable payload: the message is still returned
		// so the caller can commit past it.
		return nil, &kafka.Message{}, errors.New("failed to unmarshal report")
	}
	return report, &kafka.Message{}, nil
}

func (f *FakeReader) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	if f.CommitErr != nil {
		return f.CommitErr
	}
	f.Committed = append(f.Committed, *msg)
	return nil
}

func (f *FakeReader) Close() error {
	return nil
}

// FakePublisher is a test fake for DeadLetterPublisher.
type FakePublisher struct {
	Published  []*events.ReportRejected
	PublishErr error
}

func (f *FakePublisher) Publish(ctx context.Context, rejected *events.ReportRejected) error {
	if f.PublishErr != nil {
		return f.PublishErr
	}
	f.Published = append(f.Published, rejected)
	return nil
}

func (f *FakePublisher) Close() error {
	return nil
}

// FakeMetrics is a test fake for MetricsRecorder that tracks calls.
type FakeMetrics struct {
	ReceivedCount      int
	ProcessedCount     int
	PublishedCount     int
	ErrorCount         int
	CustomIncrements   map[string]int
	ProcessedLatencies []time.Duration
}

func NewFakeMetrics() *FakeMetrics {
	return &FakeMetrics{
		CustomIncrements: make(map[string]int),
	}
}

func (f *FakeMetrics) RecordReceived() {
	f.ReceivedCount++
}

func (f *FakeMetrics) RecordProcessed(latency time.Duration) {
	f.ProcessedCount++
	f.ProcessedLatencies = append(f.ProcessedLatencies, latency)
}

func (f *FakeMetrics) RecordPublished() {
	f.PublishedCount++
}

func (f *FakeMetrics) RecordError() {
	f.ErrorCount++
}

func (f *FakeMetrics) IncrementCustom(name string) {
	f.CustomIncrements[name]++
}
