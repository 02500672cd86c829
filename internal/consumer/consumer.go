// Package consumer provides Kafka consumer functionality for the raw reports
// topic.
package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/events"
	kafkautil "github.com/TOMToolkit/tom-nonlocalizedevents/internal/kafka"
)

// Consumer wraps a Kafka reader and provides a simple interface for consuming
// raw alert reports.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic,
// and group ID. The consumer is configured for at-least-once delivery
// semantics.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadReport fetches the next message from Kafka and decodes it as a
// RawReport. Fetch does not commit the offset; the caller commits after the
// report is processed, so a crash mid-ingestion redelivers. On a decode
// failure the raw message is still returned so the caller can commit past
// the poison payload.
func (c *Consumer) ReadReport(ctx context.Context) (*events.RawReport, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch message from Kafka: %w", err)
	}

	var report events.RawReport
	if err := json.Unmarshal(msg.Value, &report); err != nil {
		return nil, &msg, fmt.Errorf("failed to unmarshal raw report: %w", err)
	}

	return &report, &msg, nil
}

// CommitMessage commits the offset for the given message.
// This should be called after successfully processing a message.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}
