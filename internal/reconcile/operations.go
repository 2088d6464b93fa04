package reconcile

import (
	"github.com/compasscal/compass/internal/core"

	"google.golang.org/api/calendar/v3"
)

// MapFunc normalizes provider events for a user.
type MapFunc func(userID string, events []*calendar.Event) []core.CompassEvent

// AssembleOperations builds the bulk write for one categorized batch: a single
// DeleteMany covering every id in toDelete, then one upserting ReplaceOne per
// mapped event. Empty sides contribute nothing.
func AssembleOperations(userID string, toDelete []string, toUpdate []*calendar.Event, toCompass MapFunc) []core.BulkOperation {
	var ops []core.BulkOperation

	if len(toDelete) > 0 {
		ids := make([]string, len(toDelete))
		copy(ids, toDelete)
		ops = append(ops, core.DeleteMany{User: userID, GEventIDs: ids})
	}

	if len(toUpdate) > 0 {
		for _, e := range toCompass(userID, toUpdate) {
			ops = append(ops, core.ReplaceOne{
				User:        userID,
				GEventID:    e.GEventID,
				Replacement: e,
				Upsert:      true,
			})
		}
	}

	return ops
}
