package google

import (
	"time"

	"github.com/compasscal/compass/internal/core"

	"google.golang.org/api/calendar/v3"
)

const dateLayout = "2006-01-02"

// ToCompass converts Google events to local events owned by userID. Events
// without usable start and end times are dropped.
func ToCompass(userID string, items []*calendar.Event) []core.CompassEvent {
	out := make([]core.CompassEvent, 0, len(items))
	for _, item := range items {
		e, ok := parseEvent(userID, item)
		if !ok {
			continue
		}
		out = append(out, e)
	}
	return out
}

// parseEvent converts a Google Calendar event to the local event type.
func parseEvent(userID string, item *calendar.Event) (core.CompassEvent, bool) {
	if item == nil || item.Start == nil || item.End == nil {
		return core.CompassEvent{}, false
	}

	// Timing (all day vs time specific)
	var start, end time.Time
	var err error
	isAllDay := false

	if item.Start.DateTime != "" {
		if start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
			return core.CompassEvent{}, false
		}
		if end, err = time.Parse(time.RFC3339, item.End.DateTime); err != nil {
			return core.CompassEvent{}, false
		}
	} else {
		// All day event (YYYY-MM-DD). Google's end date is exclusive.
		if start, err = time.ParseInLocation(dateLayout, item.Start.Date, time.Local); err != nil {
			return core.CompassEvent{}, false
		}
		if end, err = time.ParseInLocation(dateLayout, item.End.Date, time.Local); err != nil {
			return core.CompassEvent{}, false
		}
		isAllDay = true
	}

	var updated time.Time
	if item.Updated != "" {
		updated, _ = time.Parse(time.RFC3339, item.Updated)
	}

	return core.CompassEvent{
		GEventID:    item.Id,
		User:        userID,
		Title:       item.Summary,
		Description: item.Description,
		Priority:    core.PriorityUnassigned,
		Origin:      core.OriginGoogleImport,
		Start:       start,
		End:         end,
		IsAllDay:    isAllDay,
		UpdatedAt:   updated,
	}, true
}
