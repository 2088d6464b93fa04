package core

import (
	"context"

	"google.golang.org/api/calendar/v3"
)

// Provider represents the external calendar service that pushes change notifications.
type Provider interface {
	// ID returns the unique identifier from the config (e.g. "google")
	ID() string
	// Name returns a human-readable label (e.g. "Google Calendar")
	Name() string
	// ListChanges returns events changed since syncToken, or every event when
	// syncToken is empty, along with the token for the next incremental call.
	ListChanges(ctx context.Context, calendarID, syncToken string) ([]*calendar.Event, string, error)
	// Watch opens a push channel on calendarID that delivers to address.
	Watch(ctx context.Context, calendarID, address, expiration string) (CalendarWatch, error)
	// StopWatch closes a push channel.
	StopWatch(ctx context.Context, watch CalendarWatch) error
}
