// Package contracts defines the typed message variants for the two inbound
// topics and the validation applied before a message enters the pipeline.
package contracts

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// LitterEvent is the payload defined by the AsyncAPI contract for the
// events.litter.* topic.
type LitterEvent struct {
	ID        string         `json:"id"`
	Source    string         `json:"source"`
	PetID     string         `json:"pet_id"`
	Type      string         `json:"type"`
	TS        time.Time      `json:"ts"`
	DurationS *float64       `json:"duration_s,omitempty"`
	Conf      *float64       `json:"conf,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// PlayroomAlert is the payload defined by the AsyncAPI contract for the
// playroom.alerts.* topic. It is already a fully-formed alert signal.
type PlayroomAlert struct {
	ID          string    `json:"id"`
	PetID       string    `json:"pet_id"`
	RoomID      string    `json:"room_id"`
	Kind        string    `json:"kind"`
	Severity    string    `json:"severity"`
	EvidenceURL string    `json:"evidence_url,omitempty"`
	TS          time.Time `json:"ts"`
}

// RejectionError describes a message that failed contract validation.
// The raw payload is never carried, only a digest for log correlation.
type RejectionError struct {
	Topic  string
	Reason string
	Digest string
}

// Error implements the error interface.
func (e *RejectionError) Error() string {
	return fmt.Sprintf("schema rejection on %s: %s (payload %s)", e.Topic, e.Reason, e.Digest)
}

// PayloadDigest returns a short hex digest of a raw payload for logging.
func PayloadDigest(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:6])
}

func reject(topic, reason string, raw []byte) *RejectionError {
	return &RejectionError{Topic: topic, Reason: reason, Digest: PayloadDigest(raw)}
}

// DecodeLitterEvent validates a raw events.litter.* message against its
// contract shape. Unknown fields and missing required fields are rejected;
// semantically odd but well-formed values (negative duration, conf outside
// [0,1]) are a rule concern and pass through.
func DecodeLitterEvent(raw []byte, topic string) (*LitterEvent, *RejectionError) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var ev LitterEvent
	if err := dec.Decode(&ev); err != nil {
		return nil, reject(topic, fmt.Sprintf("malformed payload: %v", err), raw)
	}
	if ev.ID == "" {
		return nil, reject(topic, "missing required field: id", raw)
	}
	if ev.Source == "" {
		return nil, reject(topic, "missing required field: source", raw)
	}
	if ev.PetID == "" {
		return nil, reject(topic, "missing required field: pet_id", raw)
	}
	if ev.Type == "" {
		return nil, reject(topic, "missing required field: type", raw)
	}
	if ev.TS.IsZero() {
		return nil, reject(topic, "missing required field: ts", raw)
	}
	return &ev, nil
}

// DecodePlayroomAlert validates a raw playroom.alerts.* message against its
// contract shape.
func DecodePlayroomAlert(raw []byte, topic string) (*PlayroomAlert, *RejectionError) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var a PlayroomAlert
	if err := dec.Decode(&a); err != nil {
		return nil, reject(topic, fmt.Sprintf("malformed payload: %v", err), raw)
	}
	if a.ID == "" {
		return nil, reject(topic, "missing required field: id", raw)
	}
	if a.PetID == "" {
		return nil, reject(topic, "missing required field: pet_id", raw)
	}
	if a.RoomID == "" {
		return nil, reject(topic, "missing required field: room_id", raw)
	}
	if a.Kind == "" {
		return nil, reject(topic, "missing required field: kind", raw)
	}
	if a.Severity == "" {
		return nil, reject(topic, "missing required field: severity", raw)
	}
	if a.TS.IsZero() {
		return nil, reject(topic, "missing required field: ts", raw)
	}
	return &a, nil
}
