package recurrence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// DefaultMaxOccurrences caps the occurrences produced for one series in one window.
const DefaultMaxOccurrences = 500

// occurrenceSeparator joins a series id and an occurrence start into an event id.
const occurrenceSeparator = "@"

var (
	// ErrInvalidRule indicates the RRULE text could not be parsed.
	ErrInvalidRule = errors.New("recurrence: invalid rule")
	// ErrInvalidWindow indicates the generation window ends before it starts.
	ErrInvalidWindow = errors.New("recurrence: window end is before window start")
	// ErrInvalidDuration indicates the series ends before it starts.
	ErrInvalidDuration = errors.New("recurrence: series end is before its start")
)

// Series is a recurring job: its first occurrence plus an RRULE.
type Series struct {
	ID      string
	Start   time.Time
	End     *time.Time
	Rule    string
	ExDates []time.Time
}

// Occurrence is one generated instance of a series. End is nil when the
// series has no end.
type Occurrence struct {
	ID       string
	SeriesID string
	Start    time.Time
	End      *time.Time
}

// Result wraps the occurrences of one expansion.
type Result struct {
	Occurrences []Occurrence
	Truncated   bool
}

// Engine expands recurrence rules into occurrences.
type Engine struct {
	location *time.Location
	max      int
	logger   *slog.Logger
}

// NewEngine constructs an Engine that reports occurrences in loc. A nil loc
// means time.Local and a non-positive limit means DefaultMaxOccurrences.
func NewEngine(loc *time.Location, limit int) *Engine {
	return NewEngineWithLogger(loc, limit, nil)
}

// NewEngineWithLogger is NewEngine with an explicit logger.
func NewEngineWithLogger(loc *time.Location, limit int, logger *slog.Logger) *Engine {
	if loc == nil {
		loc = time.Local
	}
	if limit <= 0 {
		limit = DefaultMaxOccurrences
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{location: loc, max: limit, logger: logger.With("component", "recurrence")}
}

// ValidateRule reports whether rule is an RRULE the engine can expand.
func ValidateRule(rule string) error {
	if _, err := parseRule(rule); err != nil {
		return err
	}
	return nil
}

func parseRule(rule string) (*rrule.ROption, error) {
	text := strings.TrimSpace(rule)
	text = strings.TrimPrefix(text, "RRULE:")
	if text == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidRule)
	}
	opt, err := rrule.StrToROption(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return opt, nil
}

// Expand returns the occurrences of series that overlap [from, to). The
// series start is DTSTART and every occurrence keeps the series duration.
// Series without an end occupy one hour for the overlap test.
func (e *Engine) Expand(series Series, from, to time.Time) (Result, error) {
	if to.Before(from) {
		return Result{}, ErrInvalidWindow
	}
	if series.End != nil && series.End.Before(series.Start) {
		return Result{}, ErrInvalidDuration
	}
	opt, err := parseRule(series.Rule)
	if err != nil {
		return Result{}, err
	}

	start := series.Start.In(e.location)
	opt.Dtstart = start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range series.ExDates {
		set.ExDate(ex.In(e.location))
	}

	span := calendar.DefaultDuration
	if series.End != nil {
		span = series.End.Sub(series.Start)
	}

	// Occurrences that began up to one span before the window may still run into it.
	candidates := set.Between(from.In(e.location).Add(-span), to.In(e.location), true)

	var result Result
	for _, occStart := range candidates {
		if !calendar.IntervalsOverlap(occStart, occStart.Add(span), from, to) && !occStart.Equal(from) {
			continue
		}
		if len(result.Occurrences) == e.max {
			result.Truncated = true
			break
		}
		occ := Occurrence{
			ID:       OccurrenceID(series.ID, occStart),
			SeriesID: series.ID,
			Start:    occStart,
		}
		if series.End != nil {
			end := occStart.Add(span)
			occ.End = &end
		}
		result.Occurrences = append(result.Occurrences, occ)
	}

	if result.Truncated {
		e.logger.Warn("occurrences truncated",
			"series_id", series.ID,
			"cap", e.max,
		)
	}
	return result, nil
}

// ExpandEvent expands a recurring calendar event into read-only occurrence
// events. Each copy keeps the template's fields and carries the series id
// under MetaJobID.
func (e *Engine) ExpandEvent(template calendar.CalendarEvent, rule string, from, to time.Time) ([]calendar.CalendarEvent, error) {
	result, err := e.Expand(Series{ID: template.ID, Start: template.Start, End: template.End, Rule: rule}, from, to)
	if err != nil {
		return nil, err
	}
	events := make([]calendar.CalendarEvent, 0, len(result.Occurrences))
	for _, occ := range result.Occurrences {
		ev := template.Clone()
		ev.ID = occ.ID
		ev.Start = occ.Start
		ev.End = occ.End
		if ev.Metadata == nil {
			ev.Metadata = calendar.Metadata{}
		}
		ev.Metadata[calendar.MetaJobID] = occ.SeriesID
		ev.Metadata[calendar.MetaOccurrence] = true
		ev.Metadata[calendar.MetaReadOnly] = true
		events = append(events, ev)
	}
	return events, nil
}

// OccurrenceID builds the stable id of the occurrence of seriesID starting at start.
func OccurrenceID(seriesID string, start time.Time) string {
	return seriesID + occurrenceSeparator + start.UTC().Format(time.RFC3339)
}

// ParseOccurrenceID splits an occurrence id into its series id and start.
func ParseOccurrenceID(id string) (seriesID string, start time.Time, ok bool) {
	i := strings.LastIndex(id, occurrenceSeparator)
	if i <= 0 {
		return "", time.Time{}, false
	}
	start, err := time.Parse(time.RFC3339, id[i+1:])
	if err != nil {
		return "", time.Time{}, false
	}
	return id[:i], start, true
}
