// Package rules turns a validated per-subject event stream into alert-worthy
// conditions using sliding time windows with per-kind cooldowns.
package rules

import (
	"sync"
	"time"
)

// Event is the rule engine's view of a validated telemetry event.
type Event struct {
	PetID     string
	Type      string
	TS        time.Time
	DurationS *float64
	Conf      *float64
}

// AlertIntent is an unpersisted candidate alert produced when a rule breaches.
type AlertIntent struct {
	PetID       string
	RoomID      string
	Kind        string
	Severity    string
	TS          time.Time
	EvidenceURL string
	Evidence    map[string]any
}

// Config describes one threshold-breach rule. Threshold and cooldown are
// per-kind configuration. MinConfidence and MinDurationS, when set, decide
// which events count toward the window; they never reject the event itself.
type Config struct {
	Kind          string
	EventType     string
	Threshold     int
	Window        time.Duration
	Cooldown      time.Duration
	Severity      string
	MinConfidence float64
	MinDurationS  float64
}

// Defaults returns the built-in rule set. The confidence floor and dwell
// duration carry over the original edge thresholds as rule parameters.
func Defaults() []Config {
	return []Config{
		{
			Kind:      "litter_frequency",
			EventType: "entry",
			Threshold: 3,
			Window:    60 * time.Minute,
			Cooldown:  30 * time.Minute,
			Severity:  "moderate",
		},
		{
			Kind:          "litter_dwell",
			EventType:     "entry",
			Threshold:     2,
			Window:        6 * time.Hour,
			Cooldown:      time.Hour,
			Severity:      "high",
			MinConfidence: 0.4,
			MinDurationS:  180,
		},
	}
}

type windowKey struct {
	petID string
	kind  string
}

// Engine owns per-(subject, kind) window state. It is never process-global:
// each instance carries its own arena so it can be tested in isolation and
// sharded by subject.
type Engine struct {
	mu        sync.Mutex
	rules     []Config
	byType    map[string][]int
	windows   map[windowKey]*ring
	cooldowns map[windowKey]time.Time
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates a rule engine over the given rule set.
func NewEngine(rules []Config, opts ...Option) *Engine {
	e := &Engine{
		rules:     rules,
		byType:    make(map[string][]int),
		windows:   make(map[windowKey]*ring),
		cooldowns: make(map[windowKey]time.Time),
		now:       time.Now,
	}
	for i, r := range rules {
		e.byType[r.EventType] = append(e.byType[r.EventType], i)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate feeds one event into every rule keyed on its type and returns the
// alert intents breached by it. Events are windowed by their own timestamp,
// so late arrivals land in the right window, but an already-cooled-down kind
// is never re-triggered retroactively.
func (e *Engine) Evaluate(ev Event) []AlertIntent {
	e.mu.Lock()
	defer e.mu.Unlock()

	var intents []AlertIntent
	now := e.now()

	for _, idx := range e.byType[ev.Type] {
		rule := e.rules[idx]
		if !ruleCounts(rule, ev) {
			continue
		}

		key := windowKey{petID: ev.PetID, kind: rule.Kind}
		w, ok := e.windows[key]
		if !ok {
			w = newRing(ringCapacity(rule))
			e.windows[key] = w
		}
		w.add(ev.TS)

		// Window is half-open [now-window, now): events exactly at the
		// lower boundary are excluded, now itself is excluded.
		count := w.countIn(now.Add(-rule.Window), now)
		if count < rule.Threshold {
			continue
		}
		if until, cooling := e.cooldowns[key]; cooling && now.Before(until) {
			continue
		}
		e.cooldowns[key] = now.Add(rule.Cooldown)

		intents = append(intents, AlertIntent{
			PetID:    ev.PetID,
			Kind:     rule.Kind,
			Severity: rule.Severity,
			TS:       ev.TS,
			Evidence: breachEvidence(rule, ev, count),
		})
	}
	return intents
}

// Forward maps a playroom alert signal one-to-one to an intent. No window
// state is involved; dedup and idempotency are handled upstream.
func (e *Engine) Forward(petID, roomID, kind, severity, evidenceURL string, ts time.Time) AlertIntent {
	return AlertIntent{
		PetID:       petID,
		RoomID:      roomID,
		Kind:        kind,
		Severity:    severity,
		TS:          ts,
		EvidenceURL: evidenceURL,
	}
}

// Forget drops all window and cooldown state for a subject.
func (e *Engine) Forget(petID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key := range e.windows {
		if key.petID == petID {
			delete(e.windows, key)
		}
	}
	for key := range e.cooldowns {
		if key.petID == petID {
			delete(e.cooldowns, key)
		}
	}
}

func ruleCounts(rule Config, ev Event) bool {
	if rule.MinConfidence > 0 && ev.Conf != nil && *ev.Conf < rule.MinConfidence {
		return false
	}
	if rule.MinDurationS > 0 && (ev.DurationS == nil || *ev.DurationS < rule.MinDurationS) {
		return false
	}
	return true
}

func breachEvidence(rule Config, ev Event, count int) map[string]any {
	evidence := map[string]any{
		"count":     count,
		"threshold": rule.Threshold,
		"window":    rule.Window.String(),
	}
	// Confidence and duration pass through unmodified when present.
	if ev.Conf != nil {
		evidence["conf"] = *ev.Conf
	}
	if ev.DurationS != nil {
		evidence["duration_s"] = *ev.DurationS
	}
	return evidence
}

func ringCapacity(rule Config) int {
	capacity := rule.Threshold * 4
	if capacity < 64 {
		capacity = 64
	}
	return capacity
}

// ring is a bounded circular buffer of timestamps. When full the oldest
// insertion is overwritten, keeping per-subject state bounded.
type ring struct {
	buf   []time.Time
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]time.Time, capacity)}
}

func (r *ring) add(ts time.Time) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = ts
		r.size++
		return
	}
	r.buf[r.start] = ts
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) countIn(from, to time.Time) int {
	count := 0
	for i := 0; i < r.size; i++ {
		ts := r.buf[(r.start+i)%len(r.buf)]
		if !ts.Before(from) && ts.Before(to) {
			count++
		}
	}
	return count
}
