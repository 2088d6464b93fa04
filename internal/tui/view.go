package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/compasscal/compass/internal/core"
)

const (
	slotMinutes  = 30
	slotDuration = slotMinutes * time.Minute
	slotsPerDay  = 24 * 60 / slotMinutes

	// Row layout: header, all-day lane, separator, slots, status, help.
	allDayRow  = 1
	gridTop    = 3
	footerRows = 2

	gutterWidth  = 8
	chipMaxWidth = 20
	formLabel    = "title: "
)

func (m Model) visibleSlots() int {
	n := m.height - gridTop - footerRows
	return min(max(n, 1), slotsPerDay)
}

func (m Model) slotTime(slot int) time.Time {
	return m.day.Add(time.Duration(slot) * slotDuration)
}

func (m *Model) scrollBy(delta int) {
	m.scroll += delta
	m.clampScroll()
}

func (m *Model) clampScroll() {
	m.scroll = min(max(m.scroll, 0), slotsPerDay-m.visibleSlots())
}

// scrollToNow puts the current slot near the top on today, and 08:00 on
// other days.
func (m *Model) scrollToNow() {
	now := m.now()
	slot := 16
	if startOfDay(now).Equal(m.day) {
		slot = int(now.Sub(m.day)/slotDuration) - 2
	}
	m.scroll = slot
	m.clampScroll()
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpPanel()
	}

	rows := make([]string, 0, gridTop+m.visibleSlots()+footerRows)
	rows = append(rows,
		m.renderHeader(),
		m.renderAllDay(),
		SeparatorStyle.Render(strings.Repeat("─", m.width)),
	)
	for i := 0; i < m.visibleSlots(); i++ {
		rows = append(rows, m.renderSlot(m.scroll+i))
	}
	rows = append(rows, m.renderStatus(), m.renderHelp())
	return strings.Join(rows, "\n")
}

func (m Model) renderHeader() string {
	dateStr := m.day.Format("Monday, January 2, 2006")
	if m.day.Equal(startOfDay(m.now())) {
		dateStr = "Today • " + dateStr
	}
	if m.loading {
		dateStr += " (loading)"
	}
	return lipgloss.JoinHorizontal(lipgloss.Center, HeaderStyle.Render("compass"), "  ", DateStyle.Render(dateStr))
}

type chip struct {
	event core.CompassEvent
	label string
	x0    int
	x1    int
	draft bool
}

// allDayChips lays out the all-day lane left to right, with the draft in
// place of the event it edits.
func (m Model) allDayChips() []chip {
	var evs []core.CompassEvent
	var isDraft []bool
	d := m.draft.Draft
	showDraft := d != nil && m.draft.Category == core.CategoryAllDay
	for _, ev := range m.events {
		if ev.Category() != core.CategoryAllDay {
			continue
		}
		if showDraft && !d.IsNew() && ev.ID == d.ID {
			evs, isDraft = append(evs, *d), append(isDraft, true)
			showDraft = false
			continue
		}
		evs, isDraft = append(evs, ev), append(isDraft, false)
	}
	if showDraft {
		evs, isDraft = append(evs, *d), append(isDraft, true)
	}

	chips := make([]chip, 0, len(evs))
	x := gutterWidth
	for i, ev := range evs {
		label := "[" + ansi.Truncate(titleOf(ev), chipMaxWidth, "…") + "]"
		w := ansi.StringWidth(label)
		chips = append(chips, chip{event: ev, label: label, x0: x, x1: x + w, draft: isDraft[i]})
		x += w + 1
	}
	return chips
}

func (m Model) renderAllDay() string {
	var b strings.Builder
	b.WriteString(LaneLabel.Render(pad("all-day", gutterWidth)))
	for i, c := range m.allDayChips() {
		if i > 0 {
			b.WriteString(" ")
		}
		style := ChipStyle
		if c.draft {
			style = DraftChipStyle
		}
		b.WriteString(style.Render(c.label))
	}
	return ansi.Truncate(b.String(), m.width, "…")
}

type slotEvent struct {
	core.CompassEvent
	draft bool
}

// timedEvents returns the day's timed events with the draft overlaid.
func (m Model) timedEvents() []slotEvent {
	d := m.draft.Draft
	showDraft := d != nil && m.draft.Category == core.CategoryTimed
	out := make([]slotEvent, 0, len(m.events)+1)
	for _, ev := range m.events {
		if ev.Category() != core.CategoryTimed {
			continue
		}
		if showDraft && !d.IsNew() && ev.ID == d.ID {
			continue
		}
		out = append(out, slotEvent{CompassEvent: ev})
	}
	if showDraft {
		out = append(out, slotEvent{CompassEvent: *d, draft: true})
	}
	return out
}

func (m Model) renderSlot(slot int) string {
	start := m.slotTime(slot)
	end := start.Add(slotDuration)
	now := m.now()

	gutter := ""
	if slot%2 == 0 {
		gutter = start.Format("15:04")
	}
	gStyle := TimeStyle
	if !now.Before(start) && now.Before(end) {
		gStyle = NowTimeStyle
	}

	var covering []slotEvent
	for _, ev := range m.timedEvents() {
		if ev.Start.Before(end) && ev.End.After(start) {
			covering = append(covering, ev)
		}
	}

	cellWidth := max(m.width-gutterWidth, 1)
	cell, style := "", EmptyCellStyle
	if len(covering) > 0 {
		// the draft is drawn above anything it overlaps
		top := covering[len(covering)-1]
		if !top.draft {
			top = covering[0]
		}
		switch {
		case top.draft:
			style = DraftStyle
		case !top.End.After(now):
			style = PastEventStyle
		default:
			style = EventStyle
		}
		if !top.Start.Before(start) || slot == m.scroll {
			cell = fmt.Sprintf(" %s-%s %s", top.Start.Format("15:04"), top.End.Format("15:04"), titleOf(top.CompassEvent))
		} else {
			cell = " │"
		}
		if len(covering) > 1 {
			cell += fmt.Sprintf(" +%d", len(covering)-1)
		}
	}
	cell = ansi.Truncate(cell, cellWidth, "…")
	return gStyle.Render(pad(gutter, gutterWidth-1)) + " " + style.Width(cellWidth-1).Render(cell)
}

func (m Model) renderStatus() string {
	switch {
	case m.draft.IsOpen:
		return FormLabelStyle.Render(formLabel) + m.form.View()
	case m.err != nil:
		return ErrorStyle.Render(ansi.Truncate("Error: "+m.err.Error(), m.width, "…"))
	case m.draft.IsDragging:
		return StatusStyle.Render("moving " + titleOf(*m.draft.Draft))
	case m.draft.IsResizing:
		return StatusStyle.Render("resizing " + titleOf(*m.draft.Draft))
	}
	return StatusStyle.Render(ansi.Truncate(m.status, m.width, "…"))
}

func (m Model) renderHelp() string {
	if m.draft.IsOpen {
		return HelpStyle.Render(HelpKeyStyle.Render("enter") + " save  •  " + HelpKeyStyle.Render("esc") + " discard")
	}
	keys := []string{
		HelpKeyStyle.Render("↑/↓") + " scroll",
		HelpKeyStyle.Render("←/→") + " day",
		HelpKeyStyle.Render("t") + " today",
		HelpKeyStyle.Render("r") + " refresh",
		HelpKeyStyle.Render("q") + " quit",
	}
	fullLine := strings.Join(keys, "  •  ")
	if lipgloss.Width(fullLine) > m.width {
		return HelpStyle.Render(HelpKeyStyle.Render("?") + " help")
	}
	return HelpStyle.Render(fullLine)
}

func (m Model) renderHelpPanel() string {
	header := HeaderStyle.Render("Keyboard & Mouse")
	lines := []string{
		"",
		HelpKeyStyle.Render("  click empty slot  ") + " New event, drag down to stretch",
		HelpKeyStyle.Render("  drag event        ") + " Move it",
		HelpKeyStyle.Render("  drag last slot    ") + " Change its end",
		HelpKeyStyle.Render("  click all-day lane") + " New all-day event",
		HelpKeyStyle.Render("  ↑/↓ or wheel      ") + " Scroll",
		HelpKeyStyle.Render("  ←/→               ") + " Previous / next day",
		HelpKeyStyle.Render("  t                 ") + " Jump to now",
		HelpKeyStyle.Render("  esc               ") + " Drop the draft",
		HelpKeyStyle.Render("  q / ctrl+c        ") + " Quit",
		"",
		lipgloss.NewStyle().Foreground(mutedColor).Italic(true).Render("  Press any key to close"),
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, strings.Join(lines, "\n"))
}

func titleOf(ev core.CompassEvent) string {
	if ev.Title == "" {
		return "(no title)"
	}
	return ev.Title
}

func pad(s string, width int) string {
	if w := ansi.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s
}
