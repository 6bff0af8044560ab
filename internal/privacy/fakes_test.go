package privacy

import (
	"context"
	"sort"

	"petwatch/internal/alerts"
	"petwatch/internal/database"
)

// fakeStore is an in-memory cascade store standing in for the database.
type fakeStore struct {
	cases    map[string]*database.Case
	photos   map[string][]*database.Photo
	reviews  map[string][]*database.Review
	alerts   []*alerts.Alert
	events   []*database.TelemetryEvent
	casePets map[string][]string

	eraseErr   error
	eraseCalls int

	// afterListPhotos runs after ListPhotos returns its snapshot, between
	// the cascade reads.
	afterListPhotos func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		cases:    make(map[string]*database.Case),
		photos:   make(map[string][]*database.Photo),
		reviews:  make(map[string][]*database.Review),
		casePets: make(map[string][]string),
	}
}

func (f *fakeStore) GetCase(_ context.Context, caseID string) (*database.Case, error) {
	c, ok := f.cases[caseID]
	if !ok {
		return nil, database.ErrCaseNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *fakeStore) ListPhotos(_ context.Context, caseID string) ([]*database.Photo, error) {
	var out []*database.Photo
	for _, p := range f.photos[caseID] {
		copied := *p
		out = append(out, &copied)
	}
	if f.afterListPhotos != nil {
		f.afterListPhotos()
	}
	return out, nil
}

func (f *fakeStore) ListReviews(_ context.Context, caseID string) ([]*database.Review, error) {
	return f.reviews[caseID], nil
}

func (f *fakeStore) ListAlertsByPets(_ context.Context, petIDs []string) ([]*alerts.Alert, error) {
	var out []*alerts.Alert
	for _, a := range f.alerts {
		if contains(petIDs, a.PetID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListEventsByPets(_ context.Context, petIDs []string) ([]*database.TelemetryEvent, error) {
	var out []*database.TelemetryEvent
	for _, ev := range f.events {
		if contains(petIDs, ev.PetID) {
			copied := *ev
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeStore) EraseCase(_ context.Context, caseID string, petIDs []string) (bool, error) {
	f.eraseCalls++
	if f.eraseErr != nil {
		return false, f.eraseErr
	}
	if _, ok := f.cases[caseID]; !ok {
		return false, nil
	}
	delete(f.cases, caseID)
	delete(f.photos, caseID)
	delete(f.reviews, caseID)
	delete(f.casePets, caseID)

	kept := f.alerts[:0]
	for _, a := range f.alerts {
		if !contains(petIDs, a.PetID) {
			kept = append(kept, a)
		}
	}
	f.alerts = kept

	keptEvents := f.events[:0]
	for _, ev := range f.events {
		if !contains(petIDs, ev.PetID) {
			keptEvents = append(keptEvents, ev)
		}
	}
	f.events = keptEvents
	return true, nil
}

func (f *fakeStore) PetsForCase(_ context.Context, caseID string) ([]string, error) {
	pets := append([]string(nil), f.casePets[caseID]...)
	sort.Strings(pets)
	return pets, nil
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// fakeLocker records lock acquisitions.
type fakeLocker struct {
	locked   [][]string
	released int
}

func (f *fakeLocker) LockAll(subjects []string) func() {
	f.locked = append(f.locked, append([]string(nil), subjects...))
	return func() { f.released++ }
}

// fakeReset records Forget calls.
type fakeReset struct {
	forgotten []string
}

func (f *fakeReset) Forget(subjectID string) {
	f.forgotten = append(f.forgotten, subjectID)
}
