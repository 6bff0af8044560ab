package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"petwatch/internal/rules"
)

var testTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func testManager(storage Storage, opts ...Option) *Manager {
	opts = append(opts, WithClock(func() time.Time { return testTime }))
	return NewManager(storage, opts...)
}

func TestCreate_OpensAlert(t *testing.T) {
	storage := newFakeStorage()
	notifier := &fakeNotifier{}
	m := testManager(storage, WithNotifier(notifier))

	intent := rules.AlertIntent{
		PetID:    "pet-1",
		Kind:     "litter_frequency",
		Severity: "moderate",
		TS:       testTime.Add(-time.Minute),
	}
	alert, err := m.Create(context.Background(), intent)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if alert.State != StateOpen {
		t.Errorf("State = %q, want %q", alert.State, StateOpen)
	}
	if alert.ID == "" {
		t.Error("ID is empty, want generated id")
	}
	if alert.Kind != "litter_frequency" || alert.PetID != "pet-1" {
		t.Errorf("alert = %+v, intent fields not carried", alert)
	}
	if len(notifier.changed) != 1 {
		t.Errorf("notifier received %d changes, want 1", len(notifier.changed))
	}
}

func TestCreate_StorageFailureSurfaced(t *testing.T) {
	storage := newFakeStorage()
	storage.insertErr = errors.New("connection refused")
	m := testManager(storage)

	_, err := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})
	if err == nil {
		t.Fatal("Create() error = nil, want storage failure")
	}
}

func TestTransition_OpenToAcknowledged(t *testing.T) {
	storage := newFakeStorage()
	m := testManager(storage)
	alert, _ := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})

	updated, err := m.Transition(context.Background(), alert.ID, StateAcknowledged)
	if err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if updated.State != StateAcknowledged {
		t.Errorf("State = %q, want %q", updated.State, StateAcknowledged)
	}
}

func TestTransition_ResolveFromEitherState(t *testing.T) {
	for _, via := range []string{"", StateAcknowledged} {
		storage := newFakeStorage()
		m := testManager(storage)
		alert, _ := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})
		if via != "" {
			if _, err := m.Transition(context.Background(), alert.ID, via); err != nil {
				t.Fatalf("setup transition error = %v", err)
			}
		}

		updated, err := m.Transition(context.Background(), alert.ID, StateResolved)
		if err != nil {
			t.Fatalf("Transition(resolved) via %q error = %v", via, err)
		}
		if updated.State != StateResolved {
			t.Errorf("State = %q, want %q", updated.State, StateResolved)
		}
	}
}

func TestTransition_ResolvedIsTerminal(t *testing.T) {
	storage := newFakeStorage()
	m := testManager(storage)
	alert, _ := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})
	if _, err := m.Transition(context.Background(), alert.ID, StateResolved); err != nil {
		t.Fatalf("setup transition error = %v", err)
	}

	for _, target := range []string{StateAcknowledged, StateResolved} {
		_, err := m.Transition(context.Background(), alert.ID, target)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(%q) error = %v, want ErrInvalidTransition", target, err)
		}
		stored, _ := storage.GetAlert(context.Background(), alert.ID)
		if stored.State != StateResolved {
			t.Errorf("stored state = %q after failed transition, want resolved", stored.State)
		}
	}
}

func TestTransition_AcknowledgedCannotRegress(t *testing.T) {
	storage := newFakeStorage()
	m := testManager(storage)
	alert, _ := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})
	if _, err := m.Transition(context.Background(), alert.ID, StateAcknowledged); err != nil {
		t.Fatalf("setup transition error = %v", err)
	}

	_, err := m.Transition(context.Background(), alert.ID, StateAcknowledged)
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Transition(acknowledged) twice error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransition_UnknownTargetState(t *testing.T) {
	m := testManager(newFakeStorage())

	_, err := m.Transition(context.Background(), "any", "escalated")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Transition(escalated) error = %v, want ErrInvalidTransition", err)
	}
}

func TestTransition_UnknownAlert(t *testing.T) {
	m := testManager(newFakeStorage())

	_, err := m.Transition(context.Background(), "missing", StateResolved)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Transition() error = %v, want ErrNotFound", err)
	}
}

func TestTransition_NotifiesOnChange(t *testing.T) {
	storage := newFakeStorage()
	notifier := &fakeNotifier{}
	m := testManager(storage, WithNotifier(notifier))
	alert, _ := m.Create(context.Background(), rules.AlertIntent{PetID: "pet-1", Kind: "k"})

	if _, err := m.Transition(context.Background(), alert.ID, StateResolved); err != nil {
		t.Fatalf("Transition() error = %v", err)
	}
	if len(notifier.changed) != 2 {
		t.Fatalf("notifier received %d changes, want 2 (create + transition)", len(notifier.changed))
	}
	if notifier.changed[1].State != StateResolved {
		t.Errorf("notified state = %q, want resolved", notifier.changed[1].State)
	}
}

func TestList_MostRecentFirst(t *testing.T) {
	storage := newFakeStorage()
	m := testManager(storage)

	for i, offset := range []time.Duration{0, 2 * time.Hour, time.Hour} {
		_, err := m.Create(context.Background(), rules.AlertIntent{
			PetID: "pet-1",
			Kind:  "k",
			TS:    testTime.Add(offset - 3*time.Hour),
		})
		if err != nil {
			t.Fatalf("Create(%d) error = %v", i, err)
		}
	}

	listed, err := m.List(context.Background(), Filter{PetID: "pet-1"})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("List() returned %d alerts, want 3", len(listed))
	}
	for i := 1; i < len(listed); i++ {
		if listed[i].TS.After(listed[i-1].TS) {
			t.Errorf("List() not ordered by timestamp descending at index %d", i)
		}
	}
}
