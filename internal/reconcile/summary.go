package reconcile

import (
	"fmt"
	"strings"

	"google.golang.org/api/calendar/v3"
)

// Batches at or above this size are summarized by count.
const summaryListMax = 3

// Summary renders a one-line digest of a sync batch for the logs.
//
// The update and delete clauses are joined with no separator. Consumers match
// on the exact string, so this is kept as is.
func Summary(toUpdate []*calendar.Event, toDelete []string) string {
	var updateSummary, deleteSummary string

	if n := len(toUpdate); n > 0 {
		if n < summaryListMax {
			titles := make([]string, 0, n)
			for _, e := range toUpdate {
				if e == nil {
					titles = append(titles, "")
					continue
				}
				titles = append(titles, e.Summary)
			}
			updateSummary = `updating: "` + strings.Join(titles, ",") + `" `
		} else {
			updateSummary = fmt.Sprintf("updating %d", n)
		}
	}

	if n := len(toDelete); n > 0 {
		if n < summaryListMax {
			// provider ids, there is no title left for a cancelled event
			deleteSummary = "deleting: " + strings.Join(toDelete, ",")
		} else {
			deleteSummary = fmt.Sprintf(" deleting %d", n)
		}
	}

	return updateSummary + deleteSummary
}
