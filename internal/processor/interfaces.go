// Package processor orchestrates the ingest pipeline for one topic: contract
// validation, duplicate suppression, event persistence, rule evaluation, and
// alert creation.
package processor

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
	"petwatch/internal/rules"
)

// MessageConsumer reads raw messages from a message queue.
type MessageConsumer interface {
	// ReadMessage reads the next raw message for offset tracking and decoding.
	ReadMessage(ctx context.Context) (*kafka.Message, error)

	// CommitMessage commits the offset for the given message.
	CommitMessage(ctx context.Context, msg *kafka.Message) error

	// Topic returns the topic this consumer reads from.
	Topic() string

	// Close closes the consumer and releases resources.
	Close() error
}

// EventStorage persists telemetry events with idempotency protection.
type EventStorage interface {
	// InsertEventIdempotent inserts an event, returning true if a new row was
	// written and false if the (source, id) pair already existed.
	InsertEventIdempotent(ctx context.Context, ev *database.TelemetryEvent) (bool, error)
}

// AlertCreator opens alerts from rule intents.
type AlertCreator interface {
	Create(ctx context.Context, intent rules.AlertIntent) (*alerts.Alert, error)
}

// RuleEvaluator turns events into alert intents.
type RuleEvaluator interface {
	// Evaluate runs threshold-breach rules against an event.
	Evaluate(ev rules.Event) []rules.AlertIntent

	// Forward maps an upstream-detected alert signal one-to-one to an intent.
	Forward(petID, roomID, kind, severity, evidenceURL string, ts time.Time) rules.AlertIntent
}

// DedupStore tracks recently processed message identities per subject.
type DedupStore interface {
	Seen(subjectID, messageID string) bool
	Record(subjectID, messageID string)
}

// SubjectGate serializes pipeline work against per-subject exclusive sections.
type SubjectGate interface {
	// Lock acquires the subject's section and returns its release func.
	Lock(subject string) func()
}
