package calendar

import (
	"math"
	"time"
)

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns the Sunday at 00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	return day.AddDate(0, 0, -int(day.Weekday()))
}

// StartOfMonth returns the first day of t's month at 00:00.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

// AddDays shifts t by n calendar days, keeping the wall-clock time.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// AddMonths shifts t by n months. Day-of-month overflow rolls into the
// following month the way time.Date normalizes (Jan 31 + 1 month = Mar 3 or 2).
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}

// SubMonths shifts t back by n months.
func SubMonths(t time.Time, n int) time.Time {
	return AddMonths(t, -n)
}

// IsSameDay compares calendar dates, reading b in a's location.
func IsSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// IsSameMonth compares year and month, reading b in a's location.
func IsSameMonth(a, b time.Time) bool {
	ay, am, _ := a.Date()
	by, bm, _ := b.In(a.Location()).Date()
	return ay == by && am == bm
}

// AtMinute returns the instant minutes after midnight of day's calendar date.
func AtMinute(day time.Time, minutes int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, 0, minutes, 0, 0, day.Location())
}

// MinuteOfDay returns the wall-clock minutes since midnight of t.
func MinuteOfDay(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// EventOverlapsDay reports whether [start, end or start] intersects the
// closed window [00:00, 23:59:59.999] of day.
func EventOverlapsDay(e CalendarEvent, day time.Time) bool {
	dayStart := StartOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Millisecond)
	end := e.Start
	if e.End != nil {
		end = *e.End
	}
	return !e.Start.After(dayEnd) && !end.Before(dayStart)
}

// EventOverlaps reports whether two events share time. Missing ends count as
// one hour and touching endpoints do not overlap.
func EventOverlaps(a, b CalendarEvent) bool {
	return IntervalsOverlap(a.Start, a.EffectiveEnd(), b.Start, b.EffectiveEnd())
}

// IntervalsOverlap is the half-open interval test aStart < bEnd && aEnd > bStart.
func IntervalsOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// Snap15 rounds minutes to the nearest SnapStep boundary, halves rounding up.
func Snap15(minutes float64) int {
	return int(math.Floor(minutes/SnapStep+0.5)) * SnapStep
}

// MinutesToPixels converts minutes-from-midnight into a vertical offset.
func MinutesToPixels(minutes, zoom float64, officeStartHour int) float64 {
	return ((minutes - float64(officeStartHour*60)) / 60) * zoom
}

// PixelsToMinutes converts a vertical offset into snapped minutes-from-midnight
// clamped to the full day.
func PixelsToMinutes(px, zoom float64, officeStartHour int) int {
	return Grid{Zoom: zoom, startHour: officeStartHour}.PixelsToMinutes(px)
}

// Grid carries the zoom level and optional office hours shared by the
// conversion routines of one rendered view.
type Grid struct {
	// Zoom is the height of one hour in pixels.
	Zoom   float64
	Office *OfficeHours

	// startHour lets the package-level helpers offset without office bounds.
	startHour int
}

// NewGrid builds a Grid, ignoring office hours that do not describe a valid window.
func NewGrid(zoom float64, office *OfficeHours) Grid {
	g := Grid{Zoom: zoom}
	if office != nil && office.Valid() {
		o := *office
		g.Office = &o
	}
	return g
}

// StartHour is the first visible hour.
func (g Grid) StartHour() int {
	if g.Office != nil {
		return g.Office.Start
	}
	return g.startHour
}

// EndHour is the hour the visible window closes at.
func (g Grid) EndHour() int {
	if g.Office != nil {
		return g.Office.End
	}
	return 24
}

// Bounds returns the smallest and largest minute a pointer may select.
func (g Grid) Bounds() (lo, hi int) {
	if g.Office != nil {
		return g.Office.Start * 60, g.Office.End*60 - SnapStep
	}
	return 0, MinutesPerDay - SnapStep
}

// Clamp restricts minutes to Bounds.
func (g Grid) Clamp(minutes int) int {
	lo, hi := g.Bounds()
	return min(max(minutes, lo), hi)
}

// Height is the pixel height of the visible window.
func (g Grid) Height() float64 {
	return float64(g.EndHour()-g.StartHour()) * g.Zoom
}

// MinutesToPixels converts minutes-from-midnight into an offset from the grid top.
func (g Grid) MinutesToPixels(minutes float64) float64 {
	return MinutesToPixels(minutes, g.Zoom, g.StartHour())
}

// TimeToPixels places t on the grid of its own calendar day.
func (g Grid) TimeToPixels(t time.Time) float64 {
	return g.MinutesToPixels(t.Sub(StartOfDay(t)).Minutes())
}

// RawMinutes converts an offset from the grid top into unsnapped minutes-from-midnight.
func (g Grid) RawMinutes(px float64) float64 {
	return g.DeltaMinutes(px) + float64(g.StartHour()*60)
}

// DeltaMinutes converts a pixel displacement into an unsnapped minute displacement.
func (g Grid) DeltaMinutes(dy float64) float64 {
	if g.Zoom <= 0 {
		return 0
	}
	return dy / g.Zoom * 60
}

// PixelsToMinutes converts an offset from the grid top into snapped, clamped minutes.
func (g Grid) PixelsToMinutes(px float64) int {
	return g.Clamp(Snap15(g.RawMinutes(px)))
}
