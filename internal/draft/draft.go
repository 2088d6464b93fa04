// Package draft decides what a pointer release on the calendar grid does to
// the event being drafted. Decisions are pure; callers apply them.
package draft

import (
	"time"

	"github.com/compasscal/compass/internal/core"
)

// MoveStatus tracks whether a drag or resize actually changed the draft.
type MoveStatus struct {
	HasMoved bool
}

// State is the draft under the pointer. The zero value is idle.
type State struct {
	Draft *core.CompassEvent
	// IsOpen is set once the edit form is showing.
	IsOpen     bool
	IsDrafting bool
	IsDragging bool
	IsResizing bool
	// nil outside a drag or resize
	DragStatus   *MoveStatus
	ResizeStatus *MoveStatus
	// Category is the lane the draft was started in.
	Category core.Category

	// grabOffset is the distance from the draft start to where it was grabbed.
	grabOffset time.Duration
}

// Action is the decision for one pointer release.
type Action struct {
	ShouldOpenForm bool
	ShouldSubmit   bool
}

// Effect is a state change the caller must perform.
type Effect int

const (
	EffectStopDragging Effect = iota
	EffectStopResizing
	EffectDiscard
	EffectStopPropagation
	EffectOpenForm
	EffectSubmit
)

func (e Effect) String() string {
	switch e {
	case EffectStopDragging:
		return "stop-dragging"
	case EffectStopResizing:
		return "stop-resizing"
	case EffectDiscard:
		return "discard"
	case EffectStopPropagation:
		return "stop-propagation"
	case EffectOpenForm:
		return "open-form"
	case EffectSubmit:
		return "submit"
	default:
		return "unknown"
	}
}

// Outcome is what a pointer release resolved to, effects in order.
type Outcome struct {
	Action  Action
	Effects []Effect
}

// Has reports whether e is among the outcome's effects.
func (o Outcome) Has(e Effect) bool {
	for _, got := range o.Effects {
		if got == e {
			return true
		}
	}
	return false
}

// IsNew reports whether the draft has not been persisted yet.
func (s State) IsNew() bool {
	return s.Draft == nil || s.Draft.IsNew()
}

func moved(m *MoveStatus) bool {
	return m != nil && m.HasMoved
}

// NextAction decides between opening the form and submitting. A new draft,
// or an existing one that was clicked without moving, opens the form; a
// finished drag or resize submits silently.
func NextAction(s State, category core.Category) Action {
	var hasMoved, shouldSubmit bool

	switch category {
	case core.CategoryTimed:
		hasMoved = moved(s.ResizeStatus) || moved(s.DragStatus)
		shouldSubmit = !s.IsOpen
	case core.CategoryAllDay:
		hasMoved = moved(s.DragStatus)
		shouldSubmit = hasMoved
	case core.CategorySomeday:
		// someday drafts are never placed from the grid
	}

	isNew := s.IsNew()
	clickedOnExisting := !isNew && !hasMoved
	return Action{
		ShouldOpenForm: (isNew || clickedOnExisting) && !s.IsOpen,
		ShouldSubmit:   shouldSubmit,
	}
}

// OnAllDayMouseUp resolves a release over the all-day lane.
func OnAllDayMouseUp(s State) Outcome {
	var out Outcome
	if s.IsDragging {
		out.Effects = append(out.Effects, EffectStopDragging)
	}
	if s.Draft == nil || !s.IsDrafting {
		return out
	}

	out.Action = NextAction(s, core.CategoryAllDay)
	return out.resolve()
}

// OnMainGridMouseUp resolves a release over the timed grid. Drafts that
// started in another lane are dropped.
func OnMainGridMouseUp(s State) Outcome {
	var out Outcome
	if s.Draft == nil || !s.IsDrafting {
		return out
	}

	switch s.Category {
	case core.CategoryAllDay:
		out.Effects = append(out.Effects, EffectDiscard)
		return out
	case core.CategorySomeday:
		out.Effects = append(out.Effects, EffectStopPropagation, EffectDiscard)
		return out
	}

	if s.IsResizing {
		out.Effects = append(out.Effects, EffectStopResizing)
	}
	if s.IsDragging {
		out.Effects = append(out.Effects, EffectStopDragging)
	}

	// statuses are read as they were before the stops above take effect
	out.Action = NextAction(s, core.CategoryTimed)
	return out.resolve()
}

// resolve appends the form or submit effect. Opening the form wins.
func (o Outcome) resolve() Outcome {
	switch {
	case o.Action.ShouldOpenForm:
		o.Effects = append(o.Effects, EffectOpenForm)
	case o.Action.ShouldSubmit:
		o.Effects = append(o.Effects, EffectSubmit)
	}
	return o
}

// Apply performs the local effects of o on s. Submitting is left to the
// caller, which should Discard once the draft is saved.
func Apply(s State, o Outcome) State {
	for _, e := range o.Effects {
		switch e {
		case EffectStopDragging:
			s = s.StopDragging()
		case EffectStopResizing:
			s = s.StopResizing()
		case EffectDiscard:
			s = Discard()
		case EffectOpenForm:
			s.IsOpen = true
		case EffectStopPropagation, EffectSubmit:
		}
	}
	return s
}

// Discard returns the idle state.
func Discard() State {
	return State{}
}

// Start begins drafting ev in its own category.
func Start(ev core.CompassEvent) State {
	return State{
		Draft:      &ev,
		IsDrafting: true,
		Category:   ev.Category(),
	}
}

// StartDrag grabs the draft at the given time.
func (s State) StartDrag(grab time.Time) State {
	s.IsDragging = true
	s.DragStatus = &MoveStatus{}
	if s.Draft != nil {
		s.grabOffset = grab.Sub(s.Draft.Start)
	}
	return s
}

// StartResize begins stretching the draft's end.
func (s State) StartResize() State {
	s.IsResizing = true
	s.ResizeStatus = &MoveStatus{}
	return s
}

func (s State) StopDragging() State {
	s.IsDragging = false
	s.DragStatus = nil
	s.grabOffset = 0
	return s
}

func (s State) StopResizing() State {
	s.IsResizing = false
	s.ResizeStatus = nil
	return s
}

// Move follows the pointer to at. A drag shifts the whole draft, a resize
// moves its end; an end at or before the start is ignored.
func (s State) Move(at time.Time) State {
	if s.Draft == nil {
		return s
	}
	d := *s.Draft

	switch {
	case s.IsDragging:
		start := at.Add(-s.grabOffset)
		if start.Equal(d.Start) {
			return s
		}
		dur := d.Duration()
		d.Start = start
		d.End = start.Add(dur)
		s.DragStatus = &MoveStatus{HasMoved: true}
	case s.IsResizing:
		if !at.After(d.Start) || at.Equal(d.End) {
			return s
		}
		d.End = at
		s.ResizeStatus = &MoveStatus{HasMoved: true}
	default:
		return s
	}

	s.Draft = &d
	return s
}
