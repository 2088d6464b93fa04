package reconcile

import (
	"google.golang.org/api/calendar/v3"
)

const statusCancelled = "cancelled"

// Categorized splits a provider batch into deletions and upserts.
type Categorized struct {
	ToDelete []string
	ToUpdate []*calendar.Event
}

// Categorize partitions events by membership in the cancelled-id set. An
// event whose id is being deleted is never updated, even when this particular
// copy of it is not cancelled.
func Categorize(events []*calendar.Event) Categorized {
	deleting := make(map[string]struct{})
	var toDelete []string
	for _, e := range events {
		if e == nil || e.Status != statusCancelled {
			continue
		}
		if _, seen := deleting[e.Id]; seen {
			continue
		}
		deleting[e.Id] = struct{}{}
		toDelete = append(toDelete, e.Id)
	}

	var toUpdate []*calendar.Event
	for _, e := range events {
		if e == nil {
			continue
		}
		if _, gone := deleting[e.Id]; gone {
			continue
		}
		toUpdate = append(toUpdate, e)
	}

	return Categorized{ToDelete: toDelete, ToUpdate: toUpdate}
}
