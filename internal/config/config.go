// Package config provides configuration parsing and validation for the event
// services.
package config

import (
	"fmt"
	"time"
)

// AggregatorConfig holds all configuration parameters for the
// event-aggregator service.
type AggregatorConfig struct {
	KafkaBrokers     string
	ReportsTopic     string
	DeadLetterTopic  string
	ConsumerGroupID  string
	PostgresDSN      string
	RedisAddr        string
	TriagePolicyPath string // optional
}

// Validate checks that all required configuration fields are set.
// Returns an error if validation fails, nil otherwise.
func (c *AggregatorConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.ReportsTopic == "" {
		return fmt.Errorf("reports-topic cannot be empty")
	}
	if c.DeadLetterTopic == "" {
		return fmt.Errorf("deadletter-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	return nil
}

// APIConfig holds all configuration parameters for the event-api service.
type APIConfig struct {
	HTTPPort         string
	PostgresDSN      string
	RedisAddr        string
	GraceDBURL       string // optional; empty disables the GW source client
	CacheTTL         time.Duration
	TriagePolicyPath string // optional
}

// Validate checks that all required configuration fields are set.
func (c *APIConfig) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("http-port cannot be empty")
	}
	if c.PostgresDSN == "" {
		return fmt.Errorf("postgres-dsn cannot be empty")
	}
	if c.RedisAddr == "" {
		return fmt.Errorf("redis-addr cannot be empty")
	}
	return nil
}
