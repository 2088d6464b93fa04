package core

import (
	"time"
)

// Category is the grid lane an event belongs to.
type Category int

const (
	CategoryTimed   Category = iota // Placed on the hourly grid
	CategoryAllDay                  // Placed in the all-day row
	CategorySomeday                 // Unscheduled, lives in the sidebar
)

func (c Category) String() string {
	switch c {
	case CategoryTimed:
		return "timed"
	case CategoryAllDay:
		return "allday"
	case CategorySomeday:
		return "someday"
	default:
		return "unknown"
	}
}

// Event origins.
const (
	OriginGoogleImport = "googleimport"
	OriginCompass      = "compass"
)

// PriorityUnassigned is the priority given to events that arrive from a provider.
const PriorityUnassigned = "unassigned"

// CompassEvent is the normalized local event.
// Provider adapters convert their data to this format before it is stored.
type CompassEvent struct {
	// Local identifier. Empty until the event has been persisted.
	ID string `json:"id,omitempty"`
	// Provider event ID (Google's event.Id). Empty for events created locally.
	GEventID string `json:"gEventId,omitempty"`
	// Owner
	User string `json:"user"`
	// Details
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Origin      string `json:"origin,omitempty"`
	// Timing
	Start     time.Time `json:"startDate"`
	End       time.Time `json:"endDate"`
	IsAllDay  bool      `json:"isAllDay"`
	IsSomeday bool      `json:"isSomeday"`
	// Metadata
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category reports which lane the event is drawn in.
func (e CompassEvent) Category() Category {
	switch {
	case e.IsSomeday:
		return CategorySomeday
	case e.IsAllDay:
		return CategoryAllDay
	default:
		return CategoryTimed
	}
}

// IsNew reports whether the event has never been persisted.
func (e CompassEvent) IsNew() bool {
	return e.ID == ""
}

// Duration returns the length of the event.
func (e CompassEvent) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// InProgress checks if the event is happening right now.
func (e CompassEvent) InProgress(now time.Time) bool {
	return now.After(e.Start) && now.Before(e.End)
}
