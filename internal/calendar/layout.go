package calendar

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// View is the calendar's display mode.
type View int

const (
	ViewMonth View = iota
	ViewWeek
	ViewDay
)

func (v View) String() string {
	switch v {
	case ViewMonth:
		return "month"
	case ViewDay:
		return "day"
	}
	return "week"
}

// ParseView accepts month, week or day.
func ParseView(s string) (View, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "month":
		return ViewMonth, nil
	case "week":
		return ViewWeek, nil
	case "day":
		return ViewDay, nil
	}
	return ViewWeek, fmt.Errorf("calendar: unknown view %q", s)
}

const (
	DefaultColumnWidth  = 160.0
	DefaultGutterWidth  = 56.0
	DefaultHeaderHeight = 32.0
	// EdgeHandleHeight is the height of the resize handles at the top and bottom of a card.
	EdgeHandleHeight = 6.0
)

// LayoutOptions controls the geometry of a time-grid layout.
type LayoutOptions struct {
	Grid         Grid
	Styles       StyleTable
	Now          time.Time
	ColumnWidth  float64
	GutterWidth  float64
	HeaderHeight float64
}

func (o LayoutOptions) withDefaults() LayoutOptions {
	if o.ColumnWidth <= 0 {
		o.ColumnWidth = DefaultColumnWidth
	}
	if o.GutterWidth < 0 {
		o.GutterWidth = 0
	} else if o.GutterWidth == 0 {
		o.GutterWidth = DefaultGutterWidth
	}
	if o.HeaderHeight <= 0 {
		o.HeaderHeight = DefaultHeaderHeight
	}
	return o
}

// GridColumn is one rendered column with its page geometry.
type GridColumn struct {
	Column
	Left  float64
	Width float64
}

// EventBox is the placement of one event (or one day's segment of it) in a column.
type EventBox struct {
	Event  CalendarEvent
	Style  EventStyle
	Column int
	Lane   int
	Lanes  int
	X      float64
	Y      float64
	Width  float64
	Height float64

	ContinuesBefore bool
	ContinuesAfter  bool
	Conflict        bool
	Pending         bool
	ReadOnly        bool
}

func (b EventBox) contains(p Pointer) bool {
	return p.X >= b.X && p.X < b.X+b.Width && p.Y >= b.Y && p.Y < b.Y+b.Height
}

// NowMarker places the current-time line.
type NowMarker struct {
	Column int
	Y      float64
}

// TimeGridLayout is the computed day or week view.
type TimeGridLayout struct {
	View    View
	Grid    Grid
	Columns []GridColumn
	Boxes   []EventBox
	Now     []NowMarker
	Top     float64
	Height  float64
	Width   float64
}

// LayoutWeek lays out the seven days starting on the Sunday of anchor's week.
func LayoutWeek(anchor time.Time, events []CalendarEvent, opts LayoutOptions) TimeGridLayout {
	opts = opts.withDefaults()
	start := StartOfWeek(anchor)
	columns := make([]Column, 0, 7)
	for i := range 7 {
		day := AddDays(start, i)
		columns = append(columns, Column{Day: day, Name: day.Format("Mon 1/2")})
	}
	return layoutColumns(ViewWeek, columns, events, opts, func(Column, CalendarEvent) bool {
		return true
	})
}

// LayoutDay lays out one column per resource plus an unassigned bucket. Events
// whose label matches no resource land in the unassigned bucket.
func LayoutDay(day time.Time, resources []Resource, events []CalendarEvent, opts LayoutOptions) TimeGridLayout {
	opts = opts.withDefaults()
	day = StartOfDay(day)
	known := make(map[string]bool, len(resources))
	columns := make([]Column, 0, len(resources)+1)
	for _, r := range resources {
		known[r.ID] = true
		columns = append(columns, Column{Day: day, Resource: r.ID, Name: firstNonEmpty(r.Name, r.ID)})
	}
	columns = append(columns, Column{Day: day, Name: UnassignedColumnName, Unassigned: true})
	return layoutColumns(ViewDay, columns, events, opts, func(c Column, e CalendarEvent) bool {
		if c.Unassigned {
			return !known[e.Label]
		}
		return e.Label == c.Resource
	})
}

func layoutColumns(view View, columns []Column, events []CalendarEvent, opts LayoutOptions, belongs func(Column, CalendarEvent) bool) TimeGridLayout {
	g := opts.Grid
	layout := TimeGridLayout{
		View:   view,
		Grid:   g,
		Top:    opts.HeaderHeight,
		Height: g.Height(),
		Width:  opts.GutterWidth + float64(len(columns))*opts.ColumnWidth,
	}
	conflicts := Conflicts(events)

	for i, c := range columns {
		c.Top = opts.HeaderHeight
		gc := GridColumn{Column: c, Left: opts.GutterWidth + float64(i)*opts.ColumnWidth, Width: opts.ColumnWidth}
		layout.Columns = append(layout.Columns, gc)

		winStart := AtMinute(c.Day, g.StartHour()*60)
		winEnd := AtMinute(c.Day, g.EndHour()*60)

		var segments []laneItem
		for _, e := range events {
			if !belongs(c, e) || !EventOverlapsDay(e, c.Day) {
				continue
			}
			visualEnd := e.EffectiveEnd()
			if minEnd := e.Start.Add(MinDuration); visualEnd.Before(minEnd) {
				visualEnd = minEnd
			}
			segStart, segEnd := laterOf(e.Start, winStart), earlierOf(visualEnd, winEnd)
			if !segStart.Before(segEnd) {
				continue
			}
			segments = append(segments, laneItem{
				event:  e,
				start:  segStart,
				end:    segEnd,
				before: e.Start.Before(winStart),
				after:  visualEnd.After(winEnd),
			})
		}
		assignLanes(segments)

		for _, s := range segments {
			laneWidth := gc.Width / float64(s.lanes)
			y0 := g.MinutesToPixels(s.start.Sub(StartOfDay(c.Day)).Minutes())
			y1 := g.MinutesToPixels(s.end.Sub(StartOfDay(c.Day)).Minutes())
			layout.Boxes = append(layout.Boxes, EventBox{
				Event:           s.event,
				Style:           ResolveStyle(s.event, opts.Styles),
				Column:          i,
				Lane:            s.lane,
				Lanes:           s.lanes,
				X:               gc.Left + float64(s.lane)*laneWidth,
				Y:               c.Top + y0,
				Width:           laneWidth,
				Height:          y1 - y0,
				ContinuesBefore: s.before,
				ContinuesAfter:  s.after,
				Conflict:        conflicts[s.event.ID],
				ReadOnly:        s.event.ReadOnly(),
			})
		}

		if !opts.Now.IsZero() && IsSameDay(c.Day, opts.Now) {
			now := opts.Now.In(c.Day.Location())
			if !now.Before(winStart) && now.Before(winEnd) {
				layout.Now = append(layout.Now, NowMarker{Column: i, Y: c.Top + g.TimeToPixels(now)})
			}
		}
	}
	return layout
}

// Resolver exposes the layout's column boxes for the drag engines.
func (l TimeGridLayout) Resolver() ColumnBoxes {
	boxes := make(ColumnBoxes, 0, len(l.Columns))
	for _, c := range l.Columns {
		boxes = append(boxes, ColumnBox{Left: c.Left, Right: c.Left + c.Width, Column: c.Column})
	}
	return boxes
}

// TargetKind classifies what lies under the pointer.
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetEmpty
	TargetEvent
	TargetStartEdge
	TargetEndEdge
)

func (k TargetKind) String() string {
	switch k {
	case TargetEmpty:
		return "empty"
	case TargetEvent:
		return "event"
	case TargetStartEdge:
		return "start"
	case TargetEndEdge:
		return "end"
	}
	return "none"
}

// Target is the result of a hit test.
type Target struct {
	Kind    TargetKind
	EventID string
	Column  Column
}

// HitTest finds what lies under p. Later boxes are drawn on top and win.
func (l TimeGridLayout) HitTest(p Pointer) Target {
	column, inColumn := l.Resolver().ResolveColumn(p.X, p.Y)
	if p.Y < l.Top || p.Y >= l.Top+l.Height {
		inColumn = false
	}
	for i := len(l.Boxes) - 1; i >= 0; i-- {
		b := l.Boxes[i]
		if !b.contains(p) {
			continue
		}
		t := Target{Kind: TargetEvent, EventID: b.Event.ID, Column: l.Columns[b.Column].Column}
		handle := min(EdgeHandleHeight, b.Height/3)
		switch {
		case !b.ContinuesBefore && p.Y < b.Y+handle:
			t.Kind = TargetStartEdge
		case !b.ContinuesAfter && p.Y >= b.Y+b.Height-handle:
			t.Kind = TargetEndEdge
		}
		return t
	}
	if inColumn {
		return Target{Kind: TargetEmpty, Column: column}
	}
	return Target{Kind: TargetNone}
}

// MonthCell is one day of the month grid.
type MonthCell struct {
	Day     time.Time
	InMonth bool
	Today   bool
	Events  []CalendarEvent
}

// MonthLayout is the computed month view, one row per week.
type MonthLayout struct {
	Month time.Time
	Weeks [][]MonthCell
}

// LayoutMonth buckets events into the Sunday-first weeks covering anchor's month.
func LayoutMonth(anchor time.Time, events []CalendarEvent, now time.Time) MonthLayout {
	first := StartOfMonth(anchor)
	layout := MonthLayout{Month: first}
	sorted := SortEvents(events)
	for week := StartOfWeek(first); week.Before(AddMonths(first, 1)); week = AddDays(week, 7) {
		row := make([]MonthCell, 0, 7)
		for i := range 7 {
			day := AddDays(week, i)
			cell := MonthCell{
				Day:     day,
				InMonth: IsSameMonth(day, first),
				Today:   !now.IsZero() && IsSameDay(day, now),
			}
			for _, e := range sorted {
				if EventOverlapsDay(e, day) {
					cell.Events = append(cell.Events, e)
				}
			}
			row = append(row, cell)
		}
		layout.Weeks = append(layout.Weeks, row)
	}
	return layout
}

// SortEvents returns a copy ordered by start, then longer first, then id.
func SortEvents(events []CalendarEvent) []CalendarEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b CalendarEvent) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := b.EffectiveEnd().Compare(a.EffectiveEnd()); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

type laneItem struct {
	event  CalendarEvent
	start  time.Time
	end    time.Time
	before bool
	after  bool
	lane   int
	lanes  int
}

// assignLanes groups transitively overlapping segments into clusters and gives
// each segment the first free lane. Every member of a cluster shares the
// cluster's lane count, which equals its maximum concurrency.
func assignLanes(items []laneItem) {
	slices.SortStableFunc(items, func(a, b laneItem) int {
		if c := a.start.Compare(b.start); c != 0 {
			return c
		}
		if c := b.end.Compare(a.end); c != 0 {
			return c
		}
		return strings.Compare(a.event.ID, b.event.ID)
	})

	var (
		clusterStart int
		clusterEnd   time.Time
		laneEnds     []time.Time
	)
	closeCluster := func(upTo int) {
		for j := clusterStart; j < upTo; j++ {
			items[j].lanes = len(laneEnds)
		}
		clusterStart = upTo
		laneEnds = laneEnds[:0]
	}

	for i := range items {
		if i > clusterStart && !items[i].start.Before(clusterEnd) {
			closeCluster(i)
		}
		lane := -1
		for l, end := range laneEnds {
			if !end.After(items[i].start) {
				lane = l
				break
			}
		}
		if lane < 0 {
			lane = len(laneEnds)
			laneEnds = append(laneEnds, items[i].end)
		} else {
			laneEnds[lane] = items[i].end
		}
		items[i].lane = lane
		if i == clusterStart || items[i].end.After(clusterEnd) {
			clusterEnd = items[i].end
		}
	}
	closeCluster(len(items))
}

// Conflicts returns the ids of events that overlap another event assigned to
// the same resource. Unassigned events never conflict.
func Conflicts(events []CalendarEvent) map[string]bool {
	byLabel := make(map[string][]CalendarEvent)
	for _, e := range events {
		if e.Label != "" {
			byLabel[e.Label] = append(byLabel[e.Label], e)
		}
	}
	out := make(map[string]bool)
	for _, group := range byLabel {
		sorted := SortEvents(group)
		for i := range sorted {
			for j := i + 1; j < len(sorted); j++ {
				if !sorted[j].Start.Before(sorted[i].EffectiveEnd()) {
					break
				}
				if EventOverlaps(sorted[i], sorted[j]) {
					out[sorted[i].ID] = true
					out[sorted[j].ID] = true
				}
			}
		}
	}
	return out
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
