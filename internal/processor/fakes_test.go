package processor

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
	"petwatch/internal/rules"
)

// fakeConsumer is a test fake for MessageConsumer.
type fakeConsumer struct {
	topic     string
	messages  [][]byte
	readIndex int
	readErr   error
	commitErr error
	committed int
	onEmpty   func() // called when the message queue is exhausted
}

func newFakeConsumer(topic string, messages ...[]byte) *fakeConsumer {
	return &fakeConsumer{topic: topic, messages: messages}
}

func (f *fakeConsumer) ReadMessage(ctx context.Context) (*kafka.Message, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if f.readIndex >= len(f.messages) {
		if f.onEmpty != nil {
			f.onEmpty()
		}
		return nil, errors.New("no more messages")
	}
	msg := kafka.Message{Topic: f.topic, Value: f.messages[f.readIndex]}
	f.readIndex++
	return &msg, nil
}

func (f *fakeConsumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed++
	return nil
}

func (f *fakeConsumer) Topic() string { return f.topic }

func (f *fakeConsumer) Close() error { return nil }

// fakeEventStorage is a test fake for EventStorage.
type fakeEventStorage struct {
	inserted  []*database.TelemetryEvent
	insertErr error
	exists    map[string]bool // keyed source + "/" + id
}

func newFakeEventStorage() *fakeEventStorage {
	return &fakeEventStorage{exists: make(map[string]bool)}
}

func (f *fakeEventStorage) InsertEventIdempotent(ctx context.Context, ev *database.TelemetryEvent) (bool, error) {
	if f.insertErr != nil {
		return false, f.insertErr
	}
	key := ev.Source + "/" + ev.ID
	if f.exists[key] {
		return false, nil
	}
	f.exists[key] = true
	f.inserted = append(f.inserted, ev)
	return true, nil
}

// fakeAlertCreator is a test fake for AlertCreator.
type fakeAlertCreator struct {
	created   []rules.AlertIntent
	createErr error
}

func (f *fakeAlertCreator) Create(ctx context.Context, intent rules.AlertIntent) (*alerts.Alert, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, intent)
	return &alerts.Alert{
		ID:       "alert-" + intent.PetID,
		PetID:    intent.PetID,
		Kind:     intent.Kind,
		Severity: intent.Severity,
		State:    alerts.StateOpen,
		TS:       intent.TS,
	}, nil
}

// fakeEngine is a test fake for RuleEvaluator with scripted intents.
type fakeEngine struct {
	evaluated []rules.Event
	intents   []rules.AlertIntent
}

func (f *fakeEngine) Evaluate(ev rules.Event) []rules.AlertIntent {
	f.evaluated = append(f.evaluated, ev)
	return f.intents
}

func (f *fakeEngine) Forward(petID, roomID, kind, severity, evidenceURL string, ts time.Time) rules.AlertIntent {
	return rules.AlertIntent{
		PetID:       petID,
		RoomID:      roomID,
		Kind:        kind,
		Severity:    severity,
		EvidenceURL: evidenceURL,
		TS:          ts,
	}
}

// fakeMetrics is a test fake for MetricsRecorder that tracks calls.
type fakeMetrics struct {
	receivedCount    int
	processedCount   int
	errorCount       int
	customIncrements map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{customIncrements: make(map[string]int)}
}

func (f *fakeMetrics) RecordReceived() { f.receivedCount++ }

func (f *fakeMetrics) RecordProcessed(_ time.Duration) { f.processedCount++ }

func (f *fakeMetrics) RecordError() { f.errorCount++ }

func (f *fakeMetrics) IncrementCustom(name string) { f.customIncrements[name]++ }
