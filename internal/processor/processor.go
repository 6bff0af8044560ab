package processor

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"petwatch/internal/contracts"
	"petwatch/internal/database"
	"petwatch/internal/rules"
)

// Topic name prefixes routed by the processor.
const (
	LitterTopicPrefix   = "events.litter"
	PlayroomTopicPrefix = "playroom.alerts"
)

// Processor consumes one ingest topic and drives messages through the
// pipeline: validate, serialize per subject, dedup, persist, evaluate, alert.
type Processor struct {
	consumer MessageConsumer
	storage  EventStorage
	alerts   AlertCreator
	engine   RuleEvaluator
	dedup    DedupStore
	gate     SubjectGate
	metrics  MetricsRecorder
}

// NewProcessor creates a processor for the consumer's topic with no-op metrics.
func NewProcessor(consumer MessageConsumer, storage EventStorage, alerts AlertCreator, engine RuleEvaluator, dedup DedupStore, gate SubjectGate) *Processor {
	return NewProcessorWithMetrics(consumer, storage, alerts, engine, dedup, gate, nil)
}

// NewProcessorWithMetrics creates a processor with the provided metrics
// recorder. If m is nil, a no-op implementation is used.
func NewProcessorWithMetrics(consumer MessageConsumer, storage EventStorage, alerts AlertCreator, engine RuleEvaluator, dedup DedupStore, gate SubjectGate, m MetricsRecorder) *Processor {
	if m == nil {
		m = &NoOpMetrics{}
	}
	return &Processor{
		consumer: consumer,
		storage:  storage,
		alerts:   alerts,
		engine:   engine,
		dedup:    dedup,
		gate:     gate,
		metrics:  m,
	}
}

// Run continuously reads messages from the consumer's topic and processes
// them. Offsets are committed only after successful processing, so a crash
// mid-pipeline redelivers the message (at-least-once).
func (p *Processor) Run(ctx context.Context) error {
	topic := p.consumer.Topic()
	slog.Info("Starting ingest processing loop", "topic", topic)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Ingest processing loop stopped", "topic", topic)
			return nil
		default:
			msg, err := p.consumer.ReadMessage(ctx)
			if err != nil {
				// Check if context was cancelled
				if ctx.Err() != nil {
					return nil
				}
				slog.Error("Failed to read message", "topic", topic, "error", err)
				continue
			}

			p.metrics.RecordReceived()

			// Process the message; only commit if processing succeeds
			if !p.processMessage(ctx, msg.Value) {
				continue
			}

			// Commit offset only after successful processing
			// This ensures at-least-once semantics: if we crash before commit, message will be redelivered
			if err := p.consumer.CommitMessage(ctx, msg); err != nil {
				slog.Error("Failed to commit offset", "topic", topic, "error", err)
				// Continue processing - offset will be committed on next interval or retry
			}
		}
	}
}

// processMessage routes a raw message by topic family.
// Returns true if the message's offset should be committed.
func (p *Processor) processMessage(ctx context.Context, raw []byte) bool {
	topic := p.consumer.Topic()
	switch {
	case strings.HasPrefix(topic, LitterTopicPrefix):
		return p.processLitterEvent(ctx, raw, topic)
	case strings.HasPrefix(topic, PlayroomTopicPrefix):
		return p.processPlayroomAlert(ctx, raw, topic)
	default:
		slog.Error("No handler for topic", "topic", topic)
		p.metrics.RecordError()
		// Commit so an unroutable topic does not wedge the partition
		return true
	}
}

// processLitterEvent handles a single litter sensor event: validates the
// contract, suppresses duplicates, persists the event, and evaluates
// threshold rules. The dedup record is written only after every downstream
// step succeeded, so a redelivered message retries the whole pipeline.
func (p *Processor) processLitterEvent(ctx context.Context, raw []byte, topic string) bool {
	startTime := time.Now()

	ev, rej := contracts.DecodeLitterEvent(raw, topic)
	if rej != nil {
		p.recordRejection(rej)
		// Rejections are terminal: commit so the message is not redelivered
		return true
	}

	// Serialize against erasure and other messages for the same pet
	release := p.gate.Lock(ev.PetID)
	defer release()

	messageID := ev.Source + "/" + ev.ID
	if p.dedup.Seen(ev.PetID, messageID) {
		p.metrics.IncrementCustom("duplicates_dropped")
		slog.Debug("Duplicate event dropped",
			"pet_id", ev.PetID,
			"source", ev.Source,
			"event_id", ev.ID,
		)
		return true
	}

	inserted, err := p.storage.InsertEventIdempotent(ctx, &database.TelemetryEvent{
		ID:        ev.ID,
		Source:    ev.Source,
		PetID:     ev.PetID,
		Type:      ev.Type,
		TS:        ev.TS,
		DurationS: ev.DurationS,
		Conf:      ev.Conf,
		Payload:   ev.Payload,
	})
	if err != nil {
		slog.Error("Failed to persist event",
			"pet_id", ev.PetID,
			"event_id", ev.ID,
			"error", err,
		)
		p.metrics.RecordError()
		// No dedup record: the redelivered message must retry
		return false
	}
	if inserted {
		p.metrics.IncrementCustom("events_persisted")
	} else {
		// Already persisted by an earlier delivery; rule evaluation still
		// runs so an alert lost to a mid-pipeline crash is recreated.
		slog.Debug("Event already persisted", "pet_id", ev.PetID, "event_id", ev.ID)
	}

	intents := p.engine.Evaluate(rules.Event{
		PetID:     ev.PetID,
		Type:      ev.Type,
		TS:        ev.TS,
		DurationS: ev.DurationS,
		Conf:      ev.Conf,
	})
	for _, intent := range intents {
		if !p.createAlert(ctx, intent) {
			return false
		}
	}

	p.dedup.Record(ev.PetID, messageID)
	p.metrics.RecordProcessed(time.Since(startTime))
	return true
}

// processPlayroomAlert handles an upstream-detected playroom alert signal:
// validates the contract, suppresses duplicates, and opens the alert
// one-to-one without windowing.
func (p *Processor) processPlayroomAlert(ctx context.Context, raw []byte, topic string) bool {
	startTime := time.Now()

	a, rej := contracts.DecodePlayroomAlert(raw, topic)
	if rej != nil {
		p.recordRejection(rej)
		return true
	}

	release := p.gate.Lock(a.PetID)
	defer release()

	if p.dedup.Seen(a.PetID, a.ID) {
		p.metrics.IncrementCustom("duplicates_dropped")
		slog.Debug("Duplicate playroom alert dropped", "pet_id", a.PetID, "alert_id", a.ID)
		return true
	}

	intent := p.engine.Forward(a.PetID, a.RoomID, a.Kind, a.Severity, a.EvidenceURL, a.TS)
	if !p.createAlert(ctx, intent) {
		return false
	}

	p.dedup.Record(a.PetID, a.ID)
	p.metrics.RecordProcessed(time.Since(startTime))
	return true
}

// createAlert opens an alert for an intent. Returns true on success.
func (p *Processor) createAlert(ctx context.Context, intent rules.AlertIntent) bool {
	alert, err := p.alerts.Create(ctx, intent)
	if err != nil {
		slog.Error("Failed to create alert",
			"pet_id", intent.PetID,
			"kind", intent.Kind,
			"error", err,
		)
		p.metrics.RecordError()
		return false
	}

	p.metrics.IncrementCustom("alerts_emitted")
	slog.Info("Alert opened",
		"alert_id", alert.ID,
		"pet_id", alert.PetID,
		"kind", alert.Kind,
		"severity", alert.Severity,
	)
	return true
}

// recordRejection logs a contract rejection with its payload digest.
func (p *Processor) recordRejection(rej *contracts.RejectionError) {
	slog.Warn("Message rejected by contract validation",
		"topic", rej.Topic,
		"reason", rej.Reason,
		"payload_digest", rej.Digest,
	)
	p.metrics.IncrementCustom("schema_rejections")
}
