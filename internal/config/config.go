// Package config provides configuration parsing and validation for the
// petwatch services.
package config

import (
	"fmt"
	"time"
)

// IngestorConfig holds all configuration parameters for the ingestor service.
// Port serves the privacy endpoints; they live here rather than on the API
// binary so an erase shares the pipeline's subject locks and can clear its
// in-memory dedup and rule state.
type IngestorConfig struct {
	KafkaBrokers    string
	LitterTopic     string
	PlayroomTopic   string
	ConsumerGroupID string
	DatabaseURL     string
	RedisAddr       string
	Port            string
	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *IngestorConfig) Validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.LitterTopic == "" {
		return fmt.Errorf("litter-topic cannot be empty")
	}
	if c.PlayroomTopic == "" {
		return fmt.Errorf("playroom-topic cannot be empty")
	}
	if c.ConsumerGroupID == "" {
		return fmt.Errorf("consumer-group-id cannot be empty")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database-url cannot be empty")
	}
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.DedupWindow <= 0 {
		return fmt.Errorf("dedup-window must be > 0")
	}
	if c.DedupMaxEntries <= 0 {
		return fmt.Errorf("dedup-max-entries must be > 0")
	}
	return nil
}

// APIConfig holds all configuration parameters for the API service.
type APIConfig struct {
	Port        string
	DatabaseURL string
	RedisAddr   string
}

// Validate checks that all required configuration fields are set and have valid values.
// Returns an error if validation fails, nil otherwise.
func (c *APIConfig) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("database-url cannot be empty")
	}
	return nil
}
