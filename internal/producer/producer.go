// Package producer provides Kafka producer functionality for the reports
// deadletter topic.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	kafkautil "github.com/TOMToolkit/tom-nonlocalizedevents/internal/kafka"
)

// Producer wraps a Kafka writer and publishes rejected reports for manual
// resolution.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer creates a new Kafka producer with the specified brokers and
// topic. Writes are synchronous for at-least-once semantics.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Hash balancer keys partitions by event_id so rejections for the same
	// event stay in order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: kafkautil.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes a rejected report to JSON and publishes it, keyed by
// event_id.
func (p *Producer) Publish(ctx context.Context, rejected *events.ReportRejected) error {
	payload, err := json.Marshal(rejected)
	if err != nil {
		return fmt.Errorf("failed to marshal rejected report: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(rejected.Report.EventID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(rejected.Report.EventID)},
		},
		Time: time.Now(),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		slog.Error("Failed to write message to Kafka",
			"event_id", rejected.Report.EventID,
			"topic", p.topic,
			"error", err,
		)
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Info("Published rejected report",
		"event_id", rejected.Report.EventID,
		"reason", rejected.Reason,
	)

	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
