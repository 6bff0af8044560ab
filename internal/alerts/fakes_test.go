package alerts

import (
	"context"
	"sort"
)

// fakeStorage is an in-memory test fake for Storage.
type fakeStorage struct {
	alerts    map[string]*Alert
	insertErr error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{alerts: make(map[string]*Alert)}
}

func (f *fakeStorage) InsertAlert(_ context.Context, alert *Alert) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	stored := *alert
	f.alerts[alert.ID] = &stored
	return nil
}

func (f *fakeStorage) GetAlert(_ context.Context, alertID string) (*Alert, error) {
	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *alert
	return &copied, nil
}

func (f *fakeStorage) UpdateAlertState(_ context.Context, alertID, target string, allowedFrom []string) (*Alert, error) {
	alert, ok := f.alerts[alertID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, from := range allowedFrom {
		if alert.State == from {
			alert.State = target
			copied := *alert
			return &copied, nil
		}
	}
	// Mirrors the SQL behaviour: no row matches the allowed-from set.
	return nil, ErrNotFound
}

func (f *fakeStorage) ListAlerts(_ context.Context, filter Filter) ([]*Alert, error) {
	var out []*Alert
	for _, alert := range f.alerts {
		if filter.PetID != "" && alert.PetID != filter.PetID {
			continue
		}
		if filter.State != "" && alert.State != filter.State {
			continue
		}
		copied := *alert
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// fakeNotifier records change notifications.
type fakeNotifier struct {
	changed []*Alert
}

func (f *fakeNotifier) AlertChanged(alert *Alert) {
	f.changed = append(f.changed, alert)
}
