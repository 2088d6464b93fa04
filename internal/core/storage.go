package core

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Storage lookups that match nothing.
var ErrNotFound = errors.New("not found")

// Storage handles the persistence of events and sync state.
type Storage interface {
	// BulkWrite applies the operations in order.
	BulkWrite(ctx context.Context, ops []BulkOperation) (BulkResult, error)
	// SaveEvent inserts a new event (assigning its ID) or updates an existing one.
	SaveEvent(ctx context.Context, event CompassEvent) (CompassEvent, error)
	// ListEvents returns events sorted by Start time.
	ListEvents(ctx context.Context, filter EventFilter) ([]CompassEvent, error)

	GetSync(ctx context.Context, user string) (SyncRecord, error)
	// FindSyncByResource returns the record holding a watch with the given resource ID.
	FindSyncByResource(ctx context.Context, resourceID string) (SyncRecord, error)
	SaveSync(ctx context.Context, record SyncRecord) error
	DeleteSync(ctx context.Context, user string) error
	ListSyncs(ctx context.Context) ([]SyncRecord, error)

	Close() error
}

// EventFilter defines criteria for querying the store.
type EventFilter struct {
	User string
	// Zero values disable the bound.
	Start time.Time
	End   time.Time
}

// Matches reports whether the event falls inside the filter.
func (f EventFilter) Matches(e CompassEvent) bool {
	if f.User != "" && e.User != f.User {
		return false
	}
	if !f.Start.IsZero() && e.End.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && !e.Start.Before(f.End) {
		return false
	}
	return true
}
