package calendar

import "time"

// Gesture is the before/after pair produced when a move or resize is committed.
type Gesture struct {
	Original CalendarEvent
	Final    CalendarEvent
	// Dragged is false when the pointer never left the drag threshold.
	Dragged bool
}

// Changed reports whether the gesture altered the event's time or resource.
func (g Gesture) Changed() bool {
	return !g.Original.SameSchedule(g.Final)
}

// MoveEngine repositions an existing event while the pointer drags it.
type MoveEngine struct {
	grid     Grid
	active   bool
	original CalendarEvent
	current  CalendarEvent
	anchor   time.Time
	origin   Pointer
	dragged  bool
}

// Active reports whether an event is being moved.
func (m *MoveEngine) Active() bool {
	return m.active
}

// Event returns the live candidate.
func (m *MoveEngine) Event() (CalendarEvent, bool) {
	if !m.active {
		return CalendarEvent{}, false
	}
	return m.current, true
}

// Begin captures ev and the pointer's starting position.
func (m *MoveEngine) Begin(grid Grid, ev CalendarEvent, p Pointer) {
	*m = MoveEngine{
		grid:     grid,
		active:   true,
		original: ev.Clone(),
		current:  ev.Clone(),
		anchor:   ev.Start,
		origin:   p,
	}
}

// Move recomputes the candidate from p. A resolved column supplies the day,
// the resource and a minute from the pointer's offset within it; otherwise
// the original start is shifted by the raw pointer delta on the original day
// and resource. Positions inside the drag threshold leave the event where it is.
func (m *MoveEngine) Move(p Pointer, resolver ColumnResolver) (CalendarEvent, bool) {
	if !m.active {
		return CalendarEvent{}, false
	}
	if !m.dragged {
		if !p.exceeds(m.origin, DragThreshold) {
			return m.current.Clone(), false
		}
		m.dragged = true
	}

	next := m.current.Clone()
	if column, ok := resolve(resolver, p); ok {
		next.Start = AtMinute(column.Day, m.grid.PixelsToMinutes(p.Y-column.Top))
		if column.assignsResource() {
			next.Label = column.applyLabel(next.Label)
		}
	} else {
		raw := float64(MinuteOfDay(m.anchor)) + m.grid.DeltaMinutes(p.Y-m.origin.Y)
		next.Start = AtMinute(m.anchor, Snap15(raw))
		next.Label = m.original.Label
	}

	if m.original.End != nil {
		end := next.Start.Add(m.original.End.Sub(m.original.Start))
		next.End = &end
	}

	m.current = next
	return next.Clone(), true
}

// Commit stops tracking and returns the original and final positions.
func (m *MoveEngine) Commit() (Gesture, bool) {
	if !m.active {
		return Gesture{}, false
	}
	g := Gesture{Original: m.original, Final: m.current, Dragged: m.dragged}
	m.Reset()
	return g, true
}

// Reset discards the gesture.
func (m *MoveEngine) Reset() {
	*m = MoveEngine{}
}
