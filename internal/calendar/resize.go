package calendar

import (
	"math"
	"time"
)

// Edge names the boundary of an event grabbed by a resize handle.
type Edge int

const (
	EdgeStart Edge = iota
	EdgeEnd
)

func (e Edge) String() string {
	if e == EdgeStart {
		return "start"
	}
	return "end"
}

// ResizeEngine stretches or shrinks one edge of an event.
type ResizeEngine struct {
	grid          Grid
	active        bool
	edge          Edge
	originY       float64
	original      CalendarEvent
	current       CalendarEvent
	originalStart time.Time
	originalEnd   *time.Time
}

// Active reports whether an edge is being dragged.
func (r *ResizeEngine) Active() bool {
	return r.active
}

// Event returns the live candidate.
func (r *ResizeEngine) Event() (CalendarEvent, bool) {
	if !r.active {
		return CalendarEvent{}, false
	}
	return r.current, true
}

// Begin captures the grabbed edge and the event's original bounds.
func (r *ResizeEngine) Begin(grid Grid, ev CalendarEvent, edge Edge, p Pointer) {
	original := ev.Clone()
	*r = ResizeEngine{
		grid:          grid,
		active:        true,
		edge:          edge,
		originY:       p.Y,
		original:      original,
		current:       ev.Clone(),
		originalStart: original.Start,
		originalEnd:   original.End,
	}
}

// Move applies the pointer delta to the grabbed edge. A candidate that would
// leave less than MinDuration is dropped for this tick only.
func (r *ResizeEngine) Move(p Pointer) (CalendarEvent, bool) {
	if !r.active {
		return CalendarEvent{}, false
	}

	delta := time.Duration(Snap15(math.Round(r.grid.DeltaMinutes(p.Y-r.originY)))) * time.Minute
	next := r.current.Clone()

	switch r.edge {
	case EdgeStart:
		// An open event gets its implied end pinned so only the start moves.
		end := next.EffectiveEnd()
		if next.End == nil {
			end = r.originalStart.Add(DefaultDuration)
		}
		candidate := r.originalStart.Add(delta)
		if candidate.After(end.Add(-MinDuration)) {
			return next, false
		}
		next.Start = candidate
		next.End = &end
	case EdgeEnd:
		base := r.originalStart.Add(DefaultDuration)
		if r.originalEnd != nil {
			base = *r.originalEnd
		}
		candidate := base.Add(delta)
		if candidate.Before(next.Start.Add(MinDuration)) {
			return next, false
		}
		next.End = &candidate
	}

	r.current = next
	return next.Clone(), true
}

// Commit stops tracking and returns the original and final bounds.
func (r *ResizeEngine) Commit() (Gesture, bool) {
	if !r.active {
		return Gesture{}, false
	}
	g := Gesture{Original: r.original, Final: r.current, Dragged: true}
	r.Reset()
	return g, true
}

// Reset discards the gesture.
func (r *ResizeEngine) Reset() {
	*r = ResizeEngine{}
}
