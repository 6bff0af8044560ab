// Package gate serializes work per subject. The ingestion pipeline holds a
// single subject's lock while processing a message; the privacy cascade
// takes an exclusive section over every subject of a case so an in-flight
// ingestion write can never resurrect a row after erase.
package gate

import (
	"sort"
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// Gate provides keyed mutual exclusion. Lock entries are created on demand
// and removed once the last holder releases them.
type Gate struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty gate.
func New() *Gate {
	return &Gate{entries: make(map[string]*entry)}
}

func (g *Gate) acquire(key string) *entry {
	g.mu.Lock()
	e, ok := g.entries[key]
	if !ok {
		e = &entry{}
		g.entries[key] = e
	}
	e.refs++
	g.mu.Unlock()

	e.mu.Lock()
	return e
}

func (g *Gate) release(key string, e *entry) {
	e.mu.Unlock()

	g.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(g.entries, key)
	}
	g.mu.Unlock()
}

// Lock acquires the lock for a single subject and returns its release
// function.
func (g *Gate) Lock(subject string) func() {
	e := g.acquire(subject)
	return func() { g.release(subject, e) }
}

// LockAll acquires the locks for every given subject in a deterministic
// order, so concurrent multi-subject sections cannot deadlock. Duplicate
// subjects are collapsed. The returned function releases all of them.
func (g *Gate) LockAll(subjects []string) func() {
	uniq := make([]string, 0, len(subjects))
	seen := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		uniq = append(uniq, s)
	}
	sort.Strings(uniq)

	held := make([]*entry, len(uniq))
	for i, s := range uniq {
		held[i] = g.acquire(s)
	}
	return func() {
		for i := len(uniq) - 1; i >= 0; i-- {
			g.release(uniq[i], held[i])
		}
	}
}
