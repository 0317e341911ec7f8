package storage

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory AlertStore/SignalStore used by tests and
// the simulate command. It honours the same conditional-update contract
// as the Postgres store.
type MemoryStore struct {
	mu      sync.Mutex
	alerts  map[string]Alert
	signals []SignalRecord
	nextID  int64
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{alerts: make(map[string]Alert), nextID: 1}
}

// ListActive returns alerts with status active.
func (m *MemoryStore) ListActive(ctx context.Context) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	active := make([]Alert, 0)
	for _, alert := range m.alerts {
		if alert.Status == StatusActive {
			active = append(active, alert)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.Before(active[j].CreatedAt) })
	return active, nil
}

// ListAlerts returns all alerts, optionally filtered by owner.
func (m *MemoryStore) ListAlerts(ctx context.Context, owner string) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alerts := make([]Alert, 0, len(m.alerts))
	for _, alert := range m.alerts {
		if owner != "" && alert.Owner != owner {
			continue
		}
		alerts = append(alerts, alert)
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].UpdatedAt.After(alerts[j].UpdatedAt) })
	return alerts, nil
}

// GetAlert fetches an alert by id.
func (m *MemoryStore) GetAlert(ctx context.Context, id string) (Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return Alert{}, ErrNotFound
	}
	return alert, nil
}

// CreateAlert stores a new alert.
func (m *MemoryStore) CreateAlert(ctx context.Context, alert Alert) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alerts[alert.ID] = alert
	return nil
}

// UpdateFired applies the firing state, conditional on LastNotifiedAt
// being unchanged since the alert was read.
func (m *MemoryStore) UpdateFired(ctx context.Context, id, topicID string, sequence uint64, firedAt time.Time, prevNotifiedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	if !sameInstant(alert.LastNotifiedAt, prevNotifiedAt) {
		return ErrStaleAlert
	}

	ts := firedAt
	alert.TopicID = topicID
	alert.LastSequence = sequence
	alert.LastNotifiedAt = &ts
	alert.UpdatedAt = firedAt
	m.alerts[id] = alert
	return nil
}

// UpdateStatus transitions an alert's status.
func (m *MemoryStore) UpdateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	alert, ok := m.alerts[id]
	if !ok {
		return ErrNotFound
	}
	alert.Status = status
	alert.UpdatedAt = time.Now().UTC()
	m.alerts[id] = alert
	return nil
}

// DeleteAlert removes an alert.
func (m *MemoryStore) DeleteAlert(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[id]; !ok {
		return ErrNotFound
	}
	delete(m.alerts, id)
	return nil
}

// InsertSignal appends to the in-memory audit trail.
func (m *MemoryStore) InsertSignal(ctx context.Context, record SignalRecord) (SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = m.nextID
	m.nextID++
	m.signals = append(m.signals, record)
	return record, nil
}

// ListSignalsBetween lists signals within [from, to).
func (m *MemoryStore) ListSignalsBetween(ctx context.Context, from, to time.Time) ([]SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]SignalRecord, 0)
	for _, record := range m.signals {
		if !record.PublishedAt.Before(from) && record.PublishedAt.Before(to) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].PublishedAt.Before(records[j].PublishedAt) })
	return records, nil
}

// ListRecentSignals lists up to limit signals, newest first.
func (m *MemoryStore) ListRecentSignals(ctx context.Context, limit int) ([]SignalRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]SignalRecord, len(m.signals))
	copy(records, m.signals)
	sort.Slice(records, func(i, j int) bool { return records[i].PublishedAt.After(records[j].PublishedAt) })
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

var (
	_ AlertStore  = (*MemoryStore)(nil)
	_ SignalStore = (*MemoryStore)(nil)
)
