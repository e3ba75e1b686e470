package ics

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// ProductID identifies the generator in exported calendars.
const ProductID = "-//cleaning-scheduler//jobs//EN"

// ExportOptions configures Export.
type ExportOptions struct {
	Name string
	// Domain is appended to event ids to form globally unique UIDs.
	Domain string
	Now    time.Time
	// RecurrenceKey names the metadata entry holding a series RRULE.
	RecurrenceKey string
	// LocationKey names the metadata entry written as LOCATION.
	LocationKey string
}

// Export writes events as a VCALENDAR. External events are skipped since
// they belong to someone else's calendar.
func Export(w io.Writer, events []calendar.CalendarEvent, opts ExportOptions) error {
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}
	if opts.Domain == "" {
		opts.Domain = "cleaning-scheduler"
	}
	if opts.LocationKey == "" {
		opts.LocationKey = MetaLocation
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetName(opts.Name)
		cal.SetXWRCalName(opts.Name)
	}

	for _, ev := range events {
		if ev.Metadata.Bool(calendar.MetaExternal) {
			continue
		}
		vevent := cal.AddEvent(fmt.Sprintf("%s@%s", ev.ID, opts.Domain))
		vevent.SetDtStampTime(opts.Now.UTC())
		vevent.SetStartAt(ev.Start.UTC())
		vevent.SetEndAt(ev.EffectiveEnd().UTC())
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		if loc := ev.Metadata.String(opts.LocationKey); loc != "" {
			vevent.SetLocation(loc)
		}
		if ev.Confirmed != nil && !*ev.Confirmed {
			vevent.SetStatus(ical.ObjectStatusTentative)
		} else {
			vevent.SetStatus(ical.ObjectStatusConfirmed)
		}
		if t := ev.Metadata.String(calendar.MetaEventType); t != "" {
			vevent.SetProperty(ical.ComponentPropertyCategories, t)
		}
		if opts.RecurrenceKey != "" && !ev.Metadata.Bool(calendar.MetaOccurrence) {
			if rule := ev.Metadata.String(opts.RecurrenceKey); rule != "" {
				vevent.AddRrule(rule)
			}
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
