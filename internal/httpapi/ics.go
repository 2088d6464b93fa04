package httpapi

import (
	"time"

	"github.com/compasscal/compass/internal/core"

	ical "github.com/arran4/golang-ical"
)

const icsProductID = "-//compass//compass calendar//EN"

// BuildICS renders events as a VCALENDAR. Someday events have no place on a
// calendar and are left out.
func BuildICS(events []core.CompassEvent, stamp time.Time) string {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(icsProductID)

	for _, e := range events {
		if e.IsSomeday {
			continue
		}
		uid := e.ID
		if e.GEventID != "" {
			uid = e.GEventID
		}
		ve := cal.AddEvent(uid + "@compass")
		ve.SetDtStampTime(stamp)
		if !e.UpdatedAt.IsZero() {
			ve.SetModifiedAt(e.UpdatedAt)
		}
		if e.IsAllDay {
			ve.SetAllDayStartAt(e.Start)
			ve.SetAllDayEndAt(e.End)
		} else {
			ve.SetStartAt(e.Start)
			ve.SetEndAt(e.End)
		}
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
	}
	return cal.Serialize()
}
