// Package kafka provides shared Kafka utilities for the event services.
package kafka

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// MaxPollWait is the maximum time the reader waits for new data.
	MaxPollWait = 10 * time.Second
	// CommitInterval is how often offsets are flushed after processing.
	CommitInterval = 1 * time.Second
	// WriteTimeout is the maximum time to wait for a Kafka write operation.
	WriteTimeout = 10 * time.Second
)

// ParseBrokers parses a comma-separated broker list and trims whitespace.
// Returns a slice of broker addresses.
func ParseBrokers(brokers string) []string {
	if brokers == "" {
		return nil
	}
	brokerList := strings.Split(brokers, ",")
	for i := range brokerList {
		brokerList[i] = strings.TrimSpace(brokerList[i])
	}
	return brokerList
}

// ValidateConsumerParams validates common consumer parameters.
// Returns an error if any parameter is invalid.
func ValidateConsumerParams(brokers, topic, groupID string) error {
	if brokers == "" {
		return fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	if groupID == "" {
		return fmt.Errorf("groupID cannot be empty")
	}
	return nil
}

// ValidateProducerParams validates common producer parameters.
// Returns an error if any parameter is invalid.
func ValidateProducerParams(brokers, topic string) error {
	if brokers == "" {
		return fmt.Errorf("brokers cannot be empty")
	}
	if topic == "" {
		return fmt.Errorf("topic cannot be empty")
	}
	return nil
}

// NewReaderConfig creates a standard Kafka reader configuration for
// at-least-once delivery. Reports for the same event id are produced with the
// event id as the message key, so one consumer owns an event at a time.
func NewReaderConfig(brokers []string, topic, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,    // Return immediately when any data is available
		MaxBytes:       10e6, // 10MB
		MaxWait:        MaxPollWait,
		CommitInterval: CommitInterval,
		StartOffset:    kafka.FirstOffset, // Start from beginning if no committed offset
	}
}
