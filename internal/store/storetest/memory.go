// Package storetest provides an in-memory snapshot store with the same
// insert-if-absent semantics as the PostgreSQL store, for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/bookfill/internal/model"
	"github.com/rickgao/bookfill/internal/store"
)

// Memory is an in-memory snapshot store. The zero value is ready to use.
type Memory struct {
	mu   sync.Mutex
	rows map[model.SnapshotKey]model.OrderBookSnapshot

	// AppendErr, when set, is returned (wrapped in a *store.StorageError)
	// by every Append call.
	AppendErr error

	appends int
}

// NewMemory returns a store pre-loaded with snapshots.
func NewMemory(snapshots ...model.OrderBookSnapshot) *Memory {
	m := &Memory{}
	m.load(snapshots)
	return m
}

// EnsureSchema is a no-op.
func (m *Memory) EnsureSchema(ctx context.Context) error {
	return nil
}

// Append stores snapshots whose key is not present yet and returns how many
// were written.
func (m *Memory) Append(ctx context.Context, snapshots []model.OrderBookSnapshot) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.appends++
	if m.AppendErr != nil {
		return 0, &store.StorageError{Op: "append", Table: "memory", Err: m.AppendErr}
	}
	return m.loadLocked(snapshots), nil
}

// LatestTimestamp returns the largest received time held.
func (m *Memory) LatestTimestamp(ctx context.Context) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest time.Time
	found := false
	for _, s := range m.rows {
		if !found || s.ReceivedTime.After(latest) {
			latest = s.ReceivedTime
			found = true
		}
	}
	return latest, found, nil
}

// TimestampsInRange returns received times in [start, end], ascending.
func (m *Memory) TimestampsInRange(ctx context.Context, start, end time.Time) ([]time.Time, error) {
	rows, _ := m.RowsInRange(ctx, start, end)
	var out []time.Time
	for _, s := range rows {
		out = append(out, s.ReceivedTime)
	}
	return out, nil
}

// RowsInRange returns snapshots with received time in [start, end], ascending.
func (m *Memory) RowsInRange(ctx context.Context, start, end time.Time) ([]model.OrderBookSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	start, end = model.Canonical(start), model.Canonical(end)
	var out []model.OrderBookSnapshot
	for _, s := range m.rows {
		if s.ReceivedTime.Before(start) || s.ReceivedTime.After(end) {
			continue
		}
		out = append(out, s)
	}
	sortSnapshots(out)
	return out, nil
}

// All returns every stored snapshot, ascending.
func (m *Memory) All() []model.OrderBookSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]model.OrderBookSnapshot, 0, len(m.rows))
	for _, s := range m.rows {
		out = append(out, s)
	}
	sortSnapshots(out)
	return out
}

// Len returns the number of stored snapshots.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// Appends returns how many times Append was called.
func (m *Memory) Appends() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}

func (m *Memory) load(snapshots []model.OrderBookSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadLocked(snapshots)
}

func (m *Memory) loadLocked(snapshots []model.OrderBookSnapshot) int {
	if m.rows == nil {
		m.rows = make(map[model.SnapshotKey]model.OrderBookSnapshot)
	}
	written := 0
	for _, s := range snapshots {
		if store.Check(s) != nil {
			continue
		}
		s.ReceivedTime = model.Canonical(s.ReceivedTime)
		s.OriginTime = model.Canonical(s.OriginTime)
		if !s.Provenance.Valid() {
			s.Provenance = model.ProvenanceFetched
		}
		key := s.Key()
		if _, exists := m.rows[key]; exists {
			continue
		}
		m.rows[key] = s
		written++
	}
	return written
}

func sortSnapshots(rows []model.OrderBookSnapshot) {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].ReceivedTime.Equal(rows[j].ReceivedTime) {
			return rows[i].ReceivedTime.Before(rows[j].ReceivedTime)
		}
		return seqOf(rows[i]) < seqOf(rows[j])
	})
}

func seqOf(s model.OrderBookSnapshot) int64 {
	if s.SequenceNumber == nil {
		return store.NoSequence
	}
	return *s.SequenceNumber
}
