package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/draft"
)

type zone int

const (
	zoneNone zone = iota
	zoneAllDay
	zoneGrid
)

// hit maps a terminal cell to the lane under it and, on the grid, the start
// of the slot.
func (m Model) hit(x, y int) (zone, time.Time) {
	switch {
	case y == allDayRow:
		return zoneAllDay, m.day
	case y >= gridTop && y < gridTop+m.visibleSlots():
		return zoneGrid, m.slotTime(m.scroll + y - gridTop)
	}
	return zoneNone, time.Time{}
}

func (m Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if m.draft.IsOpen || m.showHelp {
		return m, nil
	}
	z, at := m.hit(msg.X, msg.Y)

	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			m.scrollBy(-1)
		case tea.MouseButtonWheelDown:
			m.scrollBy(1)
		case tea.MouseButtonLeft:
			m.draft = m.press(z, at, msg.X)
		}
	case tea.MouseActionMotion:
		if z == zoneGrid && m.draft.Category == core.CategoryTimed {
			if m.draft.IsResizing {
				at = at.Add(slotDuration)
			}
			m.draft = m.draft.Move(at)
		}
	case tea.MouseActionRelease:
		return m.release(z)
	}
	return m, nil
}

// press starts a draft. Grabbing an event's last slot resizes it, anywhere
// else drags it; empty grid starts a new half-hour event that stretches with
// the pointer.
func (m Model) press(z zone, at time.Time, x int) draft.State {
	switch z {
	case zoneAllDay:
		ev, ok := m.chipAt(x)
		if !ok {
			ev = m.newEvent(m.day, m.day.AddDate(0, 0, 1))
			ev.IsAllDay = true
		}
		return draft.Start(ev).StartDrag(ev.Start)
	case zoneGrid:
		if ev, ok := m.timedAt(at); ok {
			s := draft.Start(ev)
			if ev.Duration() > slotDuration && !ev.End.After(at.Add(slotDuration)) {
				return s.StartResize()
			}
			return s.StartDrag(at)
		}
		return draft.Start(m.newEvent(at, at.Add(slotDuration))).StartResize()
	}
	return m.draft
}

// release resolves the pointer release for the lane it happened over.
func (m Model) release(z zone) (tea.Model, tea.Cmd) {
	var out draft.Outcome
	if z == zoneAllDay {
		out = draft.OnAllDayMouseUp(m.draft)
	} else {
		out = draft.OnMainGridMouseUp(m.draft)
	}
	m.draft = draft.Apply(m.draft, out)

	switch {
	case out.Has(draft.EffectOpenForm):
		m.form.SetValue(m.draft.Draft.Title)
		m.form.CursorEnd()
		cmd := m.form.Focus()
		return m, cmd
	case out.Has(draft.EffectSubmit):
		ev := *m.draft.Draft
		m.draft = draft.Discard()
		return m, m.saveEvent(ev)
	}
	return m, nil
}

// timedAt returns the first timed event covering the slot starting at t.
func (m Model) timedAt(t time.Time) (core.CompassEvent, bool) {
	end := t.Add(slotDuration)
	for _, ev := range m.events {
		if ev.Category() == core.CategoryTimed && ev.Start.Before(end) && ev.End.After(t) {
			return ev, true
		}
	}
	return core.CompassEvent{}, false
}

func (m Model) chipAt(x int) (core.CompassEvent, bool) {
	for _, c := range m.allDayChips() {
		if c.draft {
			continue
		}
		if x >= c.x0 && x < c.x1 {
			return c.event, true
		}
	}
	return core.CompassEvent{}, false
}
