package contracts

import (
	"strings"
	"testing"
)

func TestDecodeLitterEvent_Valid(t *testing.T) {
	raw := []byte(`{
		"id": "evt-1",
		"source": "litterbox-7",
		"pet_id": "pet-1",
		"type": "entry",
		"ts": "2026-08-01T10:00:00Z",
		"duration_s": 42.5,
		"conf": 0.91,
		"payload": {"weight_g": 4100}
	}`)

	ev, rej := DecodeLitterEvent(raw, "events.litter.box7")
	if rej != nil {
		t.Fatalf("DecodeLitterEvent() rejection = %v, want nil", rej)
	}
	if ev.ID != "evt-1" {
		t.Errorf("ID = %q, want evt-1", ev.ID)
	}
	if ev.PetID != "pet-1" {
		t.Errorf("PetID = %q, want pet-1", ev.PetID)
	}
	if ev.DurationS == nil || *ev.DurationS != 42.5 {
		t.Errorf("DurationS = %v, want 42.5", ev.DurationS)
	}
	if ev.Conf == nil || *ev.Conf != 0.91 {
		t.Errorf("Conf = %v, want 0.91", ev.Conf)
	}
}

func TestDecodeLitterEvent_OptionalFieldsAbsent(t *testing.T) {
	raw := []byte(`{"id":"evt-2","source":"feeder-1","pet_id":"pet-1","type":"meal","ts":"2026-08-01T10:00:00Z"}`)

	ev, rej := DecodeLitterEvent(raw, "events.litter.feeder1")
	if rej != nil {
		t.Fatalf("DecodeLitterEvent() rejection = %v, want nil", rej)
	}
	if ev.DurationS != nil {
		t.Errorf("DurationS = %v, want nil", ev.DurationS)
	}
	if ev.Conf != nil {
		t.Errorf("Conf = %v, want nil", ev.Conf)
	}
}

func TestDecodeLitterEvent_UnknownFieldRejected(t *testing.T) {
	raw := []byte(`{"id":"evt-3","source":"s","pet_id":"p","type":"entry","ts":"2026-08-01T10:00:00Z","bogus":1}`)

	_, rej := DecodeLitterEvent(raw, "events.litter.box1")
	if rej == nil {
		t.Fatal("DecodeLitterEvent() rejection = nil, want unknown-field rejection")
	}
	if !strings.Contains(rej.Reason, "bogus") {
		t.Errorf("Reason = %q, want mention of unknown field", rej.Reason)
	}
	if rej.Digest == "" {
		t.Error("Digest is empty, want payload digest")
	}
}

func TestDecodeLitterEvent_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want string
	}{
		{"no id", `{"source":"s","pet_id":"p","type":"entry","ts":"2026-08-01T10:00:00Z"}`, "id"},
		{"no source", `{"id":"e","pet_id":"p","type":"entry","ts":"2026-08-01T10:00:00Z"}`, "source"},
		{"no pet_id", `{"id":"e","source":"s","type":"entry","ts":"2026-08-01T10:00:00Z"}`, "pet_id"},
		{"no type", `{"id":"e","source":"s","pet_id":"p","ts":"2026-08-01T10:00:00Z"}`, "type"},
		{"no ts", `{"id":"e","source":"s","pet_id":"p","type":"entry"}`, "ts"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, rej := DecodeLitterEvent([]byte(tc.raw), "events.litter.box1")
			if rej == nil {
				t.Fatal("DecodeLitterEvent() rejection = nil, want missing-field rejection")
			}
			if !strings.Contains(rej.Reason, tc.want) {
				t.Errorf("Reason = %q, want mention of %q", rej.Reason, tc.want)
			}
		})
	}
}

func TestDecodeLitterEvent_SemanticallyOddValuesPass(t *testing.T) {
	// Negative duration and out-of-range confidence are rule concerns,
	// not schema concerns.
	raw := []byte(`{"id":"evt-4","source":"s","pet_id":"p","type":"entry","ts":"2026-08-01T10:00:00Z","duration_s":-5,"conf":1.7}`)

	ev, rej := DecodeLitterEvent(raw, "events.litter.box1")
	if rej != nil {
		t.Fatalf("DecodeLitterEvent() rejection = %v, want nil", rej)
	}
	if *ev.DurationS != -5 {
		t.Errorf("DurationS = %v, want -5", *ev.DurationS)
	}
}

func TestDecodeLitterEvent_MalformedJSON(t *testing.T) {
	_, rej := DecodeLitterEvent([]byte(`{not json`), "events.litter.box1")
	if rej == nil {
		t.Fatal("DecodeLitterEvent() rejection = nil, want malformed rejection")
	}
	if rej.Topic != "events.litter.box1" {
		t.Errorf("Topic = %q, want events.litter.box1", rej.Topic)
	}
}

func TestDecodePlayroomAlert_Valid(t *testing.T) {
	raw := []byte(`{
		"id": "al-1",
		"pet_id": "pet-9",
		"room_id": "room-2",
		"kind": "rough_play",
		"severity": "high",
		"evidence_url": "https://clips.example/al-1",
		"ts": "2026-08-01T11:00:00Z"
	}`)

	a, rej := DecodePlayroomAlert(raw, "playroom.alerts.room2")
	if rej != nil {
		t.Fatalf("DecodePlayroomAlert() rejection = %v, want nil", rej)
	}
	if a.RoomID != "room-2" {
		t.Errorf("RoomID = %q, want room-2", a.RoomID)
	}
	if a.Kind != "rough_play" {
		t.Errorf("Kind = %q, want rough_play", a.Kind)
	}
}

func TestDecodePlayroomAlert_MissingRoomID(t *testing.T) {
	raw := []byte(`{"id":"al-2","pet_id":"p","kind":"k","severity":"low","ts":"2026-08-01T11:00:00Z"}`)

	_, rej := DecodePlayroomAlert(raw, "playroom.alerts.room1")
	if rej == nil {
		t.Fatal("DecodePlayroomAlert() rejection = nil, want missing-field rejection")
	}
	if !strings.Contains(rej.Reason, "room_id") {
		t.Errorf("Reason = %q, want mention of room_id", rej.Reason)
	}
}

func TestRejectionError_Error(t *testing.T) {
	rej := &RejectionError{Topic: "events.litter.box1", Reason: "missing required field: id", Digest: "abc123"}
	msg := rej.Error()
	for _, want := range []string{"events.litter.box1", "missing required field: id", "abc123"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, want it to contain %q", msg, want)
		}
	}
}
