// Package store persists events and sync records. Open picks a backend from
// a DSN: memory, SQLite (two drivers) or Postgres.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/compasscal/compass/internal/core"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It backs tests and memory:// DSNs.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]core.CompassEvent
	syncs  map[string]core.SyncRecord
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events: make(map[string]core.CompassEvent),
		syncs:  make(map[string]core.SyncRecord),
		now:    time.Now,
	}
}

func (m *MemoryStore) BulkWrite(ctx context.Context, ops []core.BulkOperation) (core.BulkResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res core.BulkResult
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch op := op.(type) {
		case core.DeleteMany:
			res.Deleted += m.deleteMany(op)
		case core.ReplaceOne:
			res.Add(m.replaceOne(op))
		default:
			return res, unsupportedOp(op)
		}
	}
	return res, nil
}

func (m *MemoryStore) deleteMany(op core.DeleteMany) int {
	doomed := make(map[string]struct{}, len(op.GEventIDs))
	for _, id := range op.GEventIDs {
		doomed[id] = struct{}{}
	}
	n := 0
	for id, e := range m.events {
		if e.User != op.User || e.GEventID == "" {
			continue
		}
		if _, ok := doomed[e.GEventID]; ok {
			delete(m.events, id)
			n++
		}
	}
	return n
}

func (m *MemoryStore) replaceOne(op core.ReplaceOne) core.BulkResult {
	next := op.Replacement
	next.User = op.User
	next.GEventID = op.GEventID
	next.UpdatedAt = m.now()

	// Every row carrying the id is replaced, as the SQL UPDATE does.
	n := 0
	for id, e := range m.events {
		if e.User == op.User && e.GEventID == op.GEventID {
			next.ID = id
			m.events[id] = next
			n++
		}
	}
	if n > 0 || !op.Upsert {
		return core.BulkResult{Modified: n}
	}
	next.ID = uuid.NewString()
	m.events[next.ID] = next
	return core.BulkResult{Upserted: 1}
}

func (m *MemoryStore) SaveEvent(ctx context.Context, event core.CompassEvent) (core.CompassEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	event.UpdatedAt = m.now()
	if event.IsNew() {
		event.ID = uuid.NewString()
	} else if _, ok := m.events[event.ID]; !ok {
		return core.CompassEvent{}, core.ErrNotFound
	}
	m.events[event.ID] = event
	return event, nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, filter core.EventFilter) ([]core.CompassEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []core.CompassEvent
	for _, e := range m.events {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sortEvents(out)
	return out, nil
}

func (m *MemoryStore) GetSync(ctx context.Context, user string) (core.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.syncs[user]
	if !ok {
		return core.SyncRecord{}, core.ErrNotFound
	}
	return cloneSync(r), nil
}

func (m *MemoryStore) FindSyncByResource(ctx context.Context, resourceID string) (core.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.syncs {
		if r.WatchIndex(resourceID) >= 0 {
			return cloneSync(r), nil
		}
	}
	return core.SyncRecord{}, core.ErrNotFound
}

func (m *MemoryStore) SaveSync(ctx context.Context, record core.SyncRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.syncs[record.User] = cloneSync(record)
	return nil
}

func (m *MemoryStore) DeleteSync(ctx context.Context, user string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.syncs, user)
	return nil
}

func (m *MemoryStore) ListSyncs(ctx context.Context) ([]core.SyncRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]core.SyncRecord, 0, len(m.syncs))
	for _, r := range m.syncs {
		out = append(out, cloneSync(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

func cloneSync(r core.SyncRecord) core.SyncRecord {
	r.Watches = append([]core.CalendarWatch(nil), r.Watches...)
	return r
}

// sortEvents orders by start, then ID so ties are stable across backends.
func sortEvents(events []core.CompassEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}
