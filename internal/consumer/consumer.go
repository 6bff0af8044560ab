// Package consumer provides Kafka consumer functionality for the telemetry
// ingest topics. Messages are returned raw so the processor can run schema
// validation and record rejections before any decoding side effects.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	// ReadTimeout is the maximum time to wait for a Kafka read operation.
	ReadTimeout = 10 * time.Second
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

// NewReaderConfig creates a standard Kafka reader configuration for
// at-least-once delivery. Shared by all consumers in the pipeline.
// CommitInterval stays zero: offsets are committed synchronously and only
// through CommitMessage, never on a timer.
func NewReaderConfig(brokers []string, topic, groupID string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:     brokers,
		Topic:       topic,
		GroupID:     groupID,
		MinBytes:    1,    // Return immediately when any data is available
		MaxBytes:    10e6, // 10MB
		MaxWait:     ReadTimeout,
		StartOffset: kafka.FirstOffset, // Start from beginning if no committed offset
	}
}

// MessageConsumer defines the interface for consuming raw telemetry messages.
// This interface is implemented by Consumer and can be used for testing.
type MessageConsumer interface {
	ReadMessage(ctx context.Context) (*kafka.Message, error)
	CommitMessage(ctx context.Context, msg *kafka.Message) error
	Topic() string
	Close() error
}

// Consumer wraps a Kafka reader and provides a simple interface for consuming
// raw messages from a single ingest topic.
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic, and group ID.
// The consumer is configured for at-least-once delivery semantics.
func NewConsumer(brokers string, topic string, groupID string) (*Consumer, error) {
	if err := ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	// Parse comma-separated broker list
	brokerList := ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	// Configure Kafka reader for at-least-once delivery
	// StartOffset only applies when no committed offset exists for the consumer group
	// Using FirstOffset ensures we read all messages when starting fresh
	reader := kafka.NewReader(NewReaderConfig(brokerList, topic, groupID))

	slog.Info("Kafka consumer configured",
		"min_bytes", 1,
		"max_bytes", 10e6,
		"max_wait", ReadTimeout,
	)

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadMessage reads the next raw message from Kafka. Deserialization is left
// to the caller so malformed payloads can be rejected and still committed.
// FetchMessage, not Reader.ReadMessage: with a consumer group configured,
// Reader.ReadMessage commits the offset on read, which would drop any
// message whose processing fails before CommitMessage.
func (c *Consumer) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}
	return &msg, nil
}

// CommitMessage commits the offset for the given message.
// This should be called after successfully processing a message.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Topic returns the topic this consumer reads from.
func (c *Consumer) Topic() string {
	return c.topic
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	slog.Info("Kafka consumer closed successfully")
	return nil
}
