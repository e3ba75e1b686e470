package calendar

import (
	"fmt"
	"maps"
	"time"
)

const (
	// SnapStep is the granularity, in minutes, every pointer-derived time is rounded to.
	SnapStep = 15
	// MinDuration is the shortest event the resize engine will produce.
	MinDuration = SnapStep * time.Minute
	// DefaultDuration stands in for the length of events without an end.
	DefaultDuration = time.Hour
	// DragThreshold is the pointer displacement, in pixels, that turns a click into a drag.
	DragThreshold = 3.0
	// MinutesPerDay is the length of a full grid day.
	MinutesPerDay = 24 * 60
)

// Metadata keys the grid reads for display. Everything else is passed through untouched.
const (
	MetaEventType  = "event_type"
	MetaExternal   = "external"
	MetaReadOnly   = "read_only"
	MetaJobID      = "job_id"
	MetaOccurrence = "occurrence"
)

// Metadata is the open bag of domain fields carried by an event.
type Metadata map[string]any

// String returns the value stored under key when it is a string.
func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

// Bool returns the value stored under key when it is a bool or a "true" string.
func (m Metadata) Bool(key string) bool {
	if m == nil {
		return false
	}
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// CalendarEvent is the unit of schedulable work shown on the grid.
type CalendarEvent struct {
	ID          string
	Start       time.Time
	End         *time.Time
	Title       string
	Description string
	// Label is the resource the event is assigned to; empty means unassigned.
	Label     string
	Confirmed *bool
	Metadata  Metadata
}

// EffectiveEnd returns End, or Start plus DefaultDuration when End is absent.
func (e CalendarEvent) EffectiveEnd() time.Time {
	if e.End != nil {
		return *e.End
	}
	return e.Start.Add(DefaultDuration)
}

// Duration returns the effective length of the event.
func (e CalendarEvent) Duration() time.Duration {
	return e.EffectiveEnd().Sub(e.Start)
}

// ReadOnly reports whether the grid must refuse to move or resize the event.
func (e CalendarEvent) ReadOnly() bool {
	return e.Metadata.Bool(MetaReadOnly) || e.Metadata.Bool(MetaExternal)
}

// Clone returns a copy that shares no pointers with e.
func (e CalendarEvent) Clone() CalendarEvent {
	out := e
	if e.End != nil {
		end := *e.End
		out.End = &end
	}
	if e.Confirmed != nil {
		confirmed := *e.Confirmed
		out.Confirmed = &confirmed
	}
	if e.Metadata != nil {
		out.Metadata = maps.Clone(e.Metadata)
	}
	return out
}

// SameSchedule reports whether two events occupy the same time and resource.
func (e CalendarEvent) SameSchedule(other CalendarEvent) bool {
	if !e.Start.Equal(other.Start) || e.Label != other.Label {
		return false
	}
	if (e.End == nil) != (other.End == nil) {
		return false
	}
	return e.End == nil || e.End.Equal(*other.End)
}

// SlotPoint addresses a snapped position on the grid: a day plus minutes from midnight.
type SlotPoint struct {
	Day     time.Time
	Minutes int
}

// Time returns the absolute instant of the point in the day's location.
func (p SlotPoint) Time() time.Time {
	return AtMinute(p.Day, p.Minutes)
}

// Before reports whether p is chronologically earlier than other.
func (p SlotPoint) Before(other SlotPoint) bool {
	pd, od := StartOfDay(p.Day), StartOfDay(other.Day)
	if !pd.Equal(od) {
		return pd.Before(od)
	}
	return p.Minutes < other.Minutes
}

// SelectionRange is the transient result of a drag-to-create gesture.
type SelectionRange struct {
	Start SlotPoint
	End   SlotPoint
}

// OfficeHours bounds the interactive portion of the day grid, in whole hours.
type OfficeHours struct {
	Start int
	End   int
}

// Valid reports whether the window is a non-empty range inside one day.
func (o OfficeHours) Valid() bool {
	return o.Start >= 0 && o.End <= 24 && o.Start < o.End
}

// Resource is a schedulable lane in the day view.
type Resource struct {
	ID   string
	Name string
}
