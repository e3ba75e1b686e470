package ics

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/recurrence"
)

// Metadata keys set on feed events besides the calendar ones.
const (
	MetaFeed     = "feed"
	MetaLocation = "address"
	MetaAllDay   = "all_day"
)

// ErrEmptyFeed is returned when a feed body carries no data.
var ErrEmptyFeed = errors.New("ics: empty feed body")

// Feed is one configured external calendar.
type Feed struct {
	ID   string
	Name string
	URL  string
}

// vevent is the subset of a VEVENT the scheduler uses.
type vevent struct {
	uid         string
	sequence    int
	summary     string
	description string
	location    string
	status      string
	start       time.Time
	end         *time.Time
	allDay      bool
	rrule       string
	exdates     []time.Time
	recurrence  *time.Time
}

// Parser converts feed bodies into calendar events.
type Parser struct {
	engine *recurrence.Engine
	loc    *time.Location
	logger *slog.Logger
}

// NewParser returns a parser that expands recurring events with engine.
// Floating and all-day times are read in loc.
func NewParser(engine *recurrence.Engine, loc *time.Location, logger *slog.Logger) *Parser {
	if loc == nil {
		loc = time.Local
	}
	if engine == nil {
		engine = recurrence.NewEngineWithLogger(loc, recurrence.DefaultMaxOccurrences, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{engine: engine, loc: loc, logger: logger}
}

// ParseFeed returns the events of body that overlap [from, to). Malformed
// VEVENTs are skipped and logged. Cancelled events are dropped.
func (p *Parser) ParseFeed(feed Feed, body []byte, from, to time.Time) ([]calendar.CalendarEvent, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyFeed
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse feed %s: %w", feed.ID, err)
	}

	logger := p.logger.With("feed", feed.ID, "url", RedactURL(feed.URL))

	bases := make(map[string][]vevent)
	overrides := make(map[string]map[int64]vevent)
	var order []string
	for _, comp := range cal.Events() {
		ev, err := p.readVEvent(comp)
		if err != nil {
			logger.Warn("skipping malformed vevent", "error", err)
			continue
		}
		if ev.recurrence != nil {
			if overrides[ev.uid] == nil {
				overrides[ev.uid] = make(map[int64]vevent)
			}
			key := ev.recurrence.Unix()
			if prev, ok := overrides[ev.uid][key]; !ok || ev.sequence >= prev.sequence {
				overrides[ev.uid][key] = ev
			}
			continue
		}
		if _, seen := bases[ev.uid]; !seen {
			order = append(order, ev.uid)
		}
		bases[ev.uid] = append(bases[ev.uid], ev)
	}

	var out []calendar.CalendarEvent
	for _, uid := range order {
		for _, base := range latestSequence(bases[uid]) {
			events, err := p.expand(feed, base, overrides[uid], from, to)
			if err != nil {
				logger.Warn("skipping unexpandable vevent", "uid", uid, "error", err)
				continue
			}
			out = append(out, events...)
		}
	}

	logger.Debug("feed parsed", "event_count", len(out))
	return calendar.SortEvents(out), nil
}

// latestSequence keeps the highest SEQUENCE when a feed repeats a UID.
func latestSequence(events []vevent) []vevent {
	if len(events) <= 1 {
		return events
	}
	best := events[0]
	for _, ev := range events[1:] {
		if ev.sequence >= best.sequence {
			best = ev
		}
	}
	return []vevent{best}
}

func (p *Parser) expand(feed Feed, base vevent, overrides map[int64]vevent, from, to time.Time) ([]calendar.CalendarEvent, error) {
	if base.rrule == "" {
		if base.status == string(ical.ObjectStatusCancelled) {
			return nil, nil
		}
		ev := p.toEvent(feed, base.uid, base)
		if !calendar.IntervalsOverlap(ev.Start, ev.EffectiveEnd(), from, to) {
			return nil, nil
		}
		return []calendar.CalendarEvent{ev}, nil
	}

	result, err := p.engine.Expand(recurrence.Series{
		ID:      base.uid,
		Start:   base.start,
		End:     base.end,
		Rule:    base.rrule,
		ExDates: base.exdates,
	}, from, to)
	if err != nil {
		return nil, err
	}

	events := make([]calendar.CalendarEvent, 0, len(result.Occurrences))
	for _, occ := range result.Occurrences {
		inst := base
		inst.start = occ.Start
		inst.end = occ.End
		if o, ok := overrides[occ.Start.Unix()]; ok {
			inst = o
		}
		if inst.status == string(ical.ObjectStatusCancelled) {
			continue
		}
		ev := p.toEvent(feed, occ.ID, inst)
		ev.Metadata[calendar.MetaOccurrence] = true
		events = append(events, ev)
	}
	return events, nil
}

func (p *Parser) toEvent(feed Feed, id string, v vevent) calendar.CalendarEvent {
	ev := calendar.CalendarEvent{
		ID:          id,
		Start:       v.start,
		Title:       v.summary,
		Description: v.description,
		Metadata: calendar.Metadata{
			calendar.MetaExternal: true,
			calendar.MetaReadOnly: true,
			MetaFeed:              feed.ID,
		},
	}
	if v.end != nil {
		end := *v.end
		ev.End = &end
	}
	if v.location != "" {
		ev.Metadata[MetaLocation] = v.location
	}
	if v.allDay {
		ev.Metadata[MetaAllDay] = true
	}
	if v.status == string(ical.ObjectStatusTentative) {
		confirmed := false
		ev.Confirmed = &confirmed
	}
	return ev
}

func (p *Parser) readVEvent(ve *ical.VEvent) (vevent, error) {
	var out vevent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || strings.TrimSpace(uid.Value) == "" {
		return out, errors.New("missing UID")
	}
	out.uid = strings.TrimSpace(uid.Value)

	if prop := ve.GetProperty(ical.ComponentPropertySequence); prop != nil {
		if n, err := strconv.Atoi(strings.TrimSpace(prop.Value)); err == nil {
			out.sequence = n
		}
	}
	out.summary = propertyValue(ve, ical.ComponentPropertySummary)
	out.description = propertyValue(ve, ical.ComponentPropertyDescription)
	out.location = propertyValue(ve, ical.ComponentPropertyLocation)
	out.status = strings.ToUpper(propertyValue(ve, ical.ComponentPropertyStatus))

	dtstart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtstart == nil {
		return out, errors.New("missing DTSTART")
	}
	out.allDay = isDateValue(dtstart)

	if out.allDay {
		start, err := time.ParseInLocation("20060102", strings.TrimSpace(dtstart.Value), p.loc)
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.start = start
		end := start.AddDate(0, 0, 1)
		if dtend := ve.GetProperty(ical.ComponentPropertyDtEnd); dtend != nil {
			if t, err := time.ParseInLocation("20060102", strings.TrimSpace(dtend.Value), p.loc); err == nil && t.After(start) {
				end = t
			}
		}
		out.end = &end
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.start = start
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			out.end = &end
		}
	}

	if prop := ve.GetProperty(ical.ComponentPropertyRrule); prop != nil {
		out.rrule = strings.TrimSpace(prop.Value)
	}
	for _, prop := range ve.GetProperties(ical.ComponentPropertyExdate) {
		for _, part := range strings.Split(prop.Value, ",") {
			if t, err := p.parseTime(part); err == nil {
				out.exdates = append(out.exdates, t)
			}
		}
	}
	sort.Slice(out.exdates, func(i, j int) bool { return out.exdates[i].Before(out.exdates[j]) })

	if prop := ve.GetProperty(ical.ComponentProperty("RECURRENCE-ID")); prop != nil {
		if t, err := p.parseTime(prop.Value); err == nil {
			out.recurrence = &t
		}
	}
	return out, nil
}

func propertyValue(ve *ical.VEvent, prop ical.ComponentProperty) string {
	if p := ve.GetProperty(prop); p != nil {
		return p.Value
	}
	return ""
}

func isDateValue(prop *ical.IANAProperty) bool {
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(prop.Value, "T")
}

// parseTime reads the basic DATE and DATE-TIME forms used by EXDATE and
// RECURRENCE-ID. Floating values are read in the parser location.
func (p *Parser) parseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, p.loc)
	default:
		return time.ParseInLocation("20060102", v, p.loc)
	}
}

// RedactURL keeps only the scheme and host of a feed URL, which may embed a secret token.
func RedactURL(u string) string {
	i := strings.Index(u, "://")
	if i < 0 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
