// Package tui is a one-day calendar grid where events are drafted, dragged
// and resized with the mouse.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/compasscal/compass/internal/core"
	"github.com/compasscal/compass/internal/draft"
)

// KeyMap defines the keybindings for the TUI
type KeyMap struct {
	Up      key.Binding
	Down    key.Binding
	NextDay key.Binding
	PrevDay key.Binding
	Today   key.Binding
	Refresh key.Binding
	Cancel  key.Binding
	Quit    key.Binding
	Help    key.Binding
}

var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑", "earlier"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓", "later"),
	),
	NextDay: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→", "next day"),
	),
	PrevDay: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←", "prev day"),
	),
	Today: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "today"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "drop draft"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
}

// EventStore is the part of core.Storage the grid reads and writes.
type EventStore interface {
	ListEvents(ctx context.Context, filter core.EventFilter) ([]core.CompassEvent, error)
	SaveEvent(ctx context.Context, event core.CompassEvent) (core.CompassEvent, error)
}

// Model is the Bubble Tea model for the day grid
type Model struct {
	store EventStore
	user  string
	now   func() time.Time
	keys  KeyMap

	day    time.Time
	events []core.CompassEvent
	draft  draft.State
	form   textinput.Model
	scroll int // first visible slot

	width    int
	height   int
	loading  bool
	loaded   bool
	err      error
	status   string
	showHelp bool
}

// NewModel creates a grid over user's events in store.
func NewModel(store EventStore, user string) Model {
	form := textinput.New()
	form.Placeholder = "title"
	form.CharLimit = 200
	form.Prompt = ""

	m := Model{
		store:   store,
		user:    user,
		now:     time.Now,
		keys:    DefaultKeyMap,
		form:    form,
		loading: true,
	}
	m.day = startOfDay(m.now())
	return m
}

// WithClock replaces the wall clock and moves the grid to its current day.
func (m Model) WithClock(now func() time.Time) Model {
	m.now = now
	m.day = startOfDay(now())
	return m
}

// Draft exposes the current draft state.
func (m Model) Draft() draft.State {
	return m.draft
}

// Messages
type eventsLoadedMsg struct {
	events []core.CompassEvent
	err    error
}

type eventSavedMsg struct {
	event core.CompassEvent
	err   error
}

type tickMsg time.Time

// Commands
func (m Model) loadEvents() tea.Cmd {
	filter := core.EventFilter{User: m.user, Start: m.day, End: m.day.AddDate(0, 0, 1)}
	return func() tea.Msg {
		events, err := m.store.ListEvents(context.Background(), filter)
		return eventsLoadedMsg{events: events, err: err}
	}
}

func (m Model) saveEvent(ev core.CompassEvent) tea.Cmd {
	return func() tea.Msg {
		saved, err := m.store.SaveEvent(context.Background(), ev)
		return eventSavedMsg{event: saved, err: err}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadEvents(), tickCmd())
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.form.Width = max(msg.Width-len(formLabel)-1, 10)
		m.clampScroll()
		return m, nil

	case eventsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.events = msg.events
		if !m.loaded {
			m.loaded = true
			m.scrollToNow()
		}
		return m, nil

	case eventSavedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("save %q: %w", msg.event.Title, msg.err)
			return m, nil
		}
		m.status = "saved " + msg.event.Title
		return m, m.loadEvents()

	case tickMsg:
		return m, tickCmd()

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		if m.draft.IsOpen {
			return m.updateForm(msg)
		}
		return m.handleKey(msg)
	}

	if m.draft.IsOpen {
		var cmd tea.Cmd
		m.form, cmd = m.form.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
	case key.Matches(msg, m.keys.Up):
		m.scrollBy(-1)
	case key.Matches(msg, m.keys.Down):
		m.scrollBy(1)
	case key.Matches(msg, m.keys.Cancel):
		m.draft = draft.Discard()
	case key.Matches(msg, m.keys.NextDay):
		return m.gotoDay(m.day.AddDate(0, 0, 1))
	case key.Matches(msg, m.keys.PrevDay):
		return m.gotoDay(m.day.AddDate(0, 0, -1))
	case key.Matches(msg, m.keys.Today):
		if m.day.Equal(startOfDay(m.now())) {
			m.scrollToNow()
			return m, nil
		}
		next, cmd := m.gotoDay(startOfDay(m.now()))
		nm := next.(Model)
		nm.scrollToNow()
		return nm, cmd
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, m.loadEvents()
	}
	return m, nil
}

func (m Model) gotoDay(day time.Time) (tea.Model, tea.Cmd) {
	m.day = day
	m.draft = draft.Discard()
	m.loading = true
	return m, m.loadEvents()
}

// updateForm edits the draft title. Enter saves, esc drops the draft.
func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		ev := *m.draft.Draft
		ev.Title = strings.TrimSpace(m.form.Value())
		m.closeForm()
		if ev.Title == "" {
			m.status = "dropped untitled draft"
			return m, nil
		}
		return m, m.saveEvent(ev)
	case tea.KeyEsc:
		m.closeForm()
		return m, nil
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.Update(msg)
	return m, cmd
}

func (m *Model) closeForm() {
	m.form.Blur()
	m.form.SetValue("")
	m.draft = draft.Discard()
}

func (m Model) newEvent(start, end time.Time) core.CompassEvent {
	return core.CompassEvent{
		User:     m.user,
		Start:    start,
		End:      end,
		Origin:   core.OriginCompass,
		Priority: core.PriorityUnassigned,
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
