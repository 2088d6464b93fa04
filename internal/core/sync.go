package core

import "time"

// CalendarWatch maps one provider notification channel to a provider calendar.
type CalendarWatch struct {
	GCalendarID string `json:"gCalendarId"`
	// ResourceID is assigned by Google when the channel is created and is
	// echoed back in every notification.
	ResourceID string `json:"resourceId"`
	ChannelID  string `json:"channelId"`
	// Expiration is a millisecond epoch encoded as a string, as Google returns it.
	Expiration    string `json:"expiration"`
	NextSyncToken string `json:"nextSyncToken,omitempty"`
}

// SyncRecord is the per-user sync state.
// A ResourceID must appear at most once across Watches.
type SyncRecord struct {
	User       string          `json:"user"`
	Watches    []CalendarWatch `json:"watches"`
	LastActive time.Time       `json:"lastActive"`
}

// WatchIndex returns the position of the watch with the given resource ID, or -1.
func (r SyncRecord) WatchIndex(resourceID string) int {
	for i, w := range r.Watches {
		if w.ResourceID == resourceID {
			return i
		}
	}
	return -1
}
