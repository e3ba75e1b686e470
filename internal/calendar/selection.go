package calendar

import (
	"math"
	"time"
)

// Pointer is a pointer position in page pixels.
type Pointer struct {
	X float64
	Y float64
}

func (p Pointer) exceeds(origin Pointer, threshold float64) bool {
	return math.Abs(p.X-origin.X) > threshold || math.Abs(p.Y-origin.Y) > threshold
}

// Selection is the normalized outcome of a drag-to-create gesture.
type Selection struct {
	Range   SelectionRange
	Dragged bool
}

// SelectionEngine turns a pointer-down, drag, pointer-up gesture over empty
// grid space into a SelectionRange.
type SelectionEngine struct {
	grid     Grid
	active   bool
	dragged  bool
	start    SlotPoint
	end      SlotPoint
	origin   Pointer
	startDay time.Time
	startTop float64
}

// Active reports whether a gesture is in progress.
func (s *SelectionEngine) Active() bool {
	return s.active
}

// Begin starts a gesture at p inside column. The tentative end is one snap step after the start.
func (s *SelectionEngine) Begin(grid Grid, p Pointer, column Column) {
	minutes := grid.PixelsToMinutes(p.Y - column.Top)
	*s = SelectionEngine{
		grid:     grid,
		active:   true,
		start:    SlotPoint{Day: StartOfDay(column.Day), Minutes: minutes},
		end:      SlotPoint{Day: StartOfDay(column.Day), Minutes: minutes + SnapStep},
		origin:   p,
		startDay: StartOfDay(column.Day),
		startTop: column.Top,
	}
}

// Move recomputes the end point from p. Columns that do not resolve fall back to the start day.
func (s *SelectionEngine) Move(p Pointer, resolver ColumnResolver) {
	if !s.active {
		return
	}
	if !s.dragged && p.exceeds(s.origin, DragThreshold) {
		s.dragged = true
	}
	day, top := s.startDay, s.startTop
	if column, ok := resolve(resolver, p); ok {
		day, top = StartOfDay(column.Day), column.Top
	}
	s.end = SlotPoint{Day: day, Minutes: s.grid.PixelsToMinutes(p.Y - top)}
}

// Current returns the live, normalized range while a gesture is active.
func (s *SelectionEngine) Current() (SelectionRange, bool) {
	if !s.active {
		return SelectionRange{}, false
	}
	return NormalizeSelection(s.start, s.end), true
}

// End applies the final pointer position, emits the normalized range and
// clears all state. With no active gesture it only resets.
func (s *SelectionEngine) End(p Pointer, resolver ColumnResolver) (Selection, bool) {
	if !s.active {
		s.Reset()
		return Selection{}, false
	}
	s.Move(p, resolver)
	out := Selection{Range: NormalizeSelection(s.start, s.end), Dragged: s.dragged}
	s.Reset()
	return out, true
}

// Reset discards the gesture.
func (s *SelectionEngine) Reset() {
	*s = SelectionEngine{}
}

// NormalizeSelection orders a raw start/end pair chronologically. When the
// pointer ended above where it started, the range runs from the end point to
// one snap step past the start point so the pressed slot stays included.
func NormalizeSelection(start, end SlotPoint) SelectionRange {
	switch {
	case end.Before(start):
		return SelectionRange{
			Start: end,
			End:   SlotPoint{Day: start.Day, Minutes: start.Minutes + SnapStep},
		}
	case !start.Before(end):
		return SelectionRange{
			Start: start,
			End:   SlotPoint{Day: start.Day, Minutes: start.Minutes + SnapStep},
		}
	}
	return SelectionRange{Start: start, End: end}
}
