package reconcile

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/logging"
)

// ErrDuplicateResourceID means a sync record is corrupt: two watches share a
// provider resource id.
var ErrDuplicateResourceID = errors.New("duplicate resource ids")

// FindCalendarID resolves the provider calendar behind a notification's
// resource id. No match is logged and reported through found; more than one
// match is an error.
func FindCalendarID(resourceID string, record core.SyncRecord, logger *slog.Logger) (calendarID string, found bool, err error) {
	var matches []core.CalendarWatch
	for _, w := range record.Watches {
		if w.ResourceID == resourceID {
			matches = append(matches, w)
		}
	}

	if len(matches) != 1 {
		logging.OrDiscard(logger).Error("No calendar has resourceId: "+resourceID, "user", record.User, "matches", len(matches))
	}

	if len(matches) > 1 {
		return "", false, fmt.Errorf("%w: multiple calendars share resourceId: %s", ErrDuplicateResourceID, resourceID)
	}
	if len(matches) == 0 {
		return "", false, nil
	}
	return matches[0].GCalendarID, true, nil
}
