package application

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
)

// Metadata keys carrying job fields on calendar events.
const (
	MetaClientName     = "client_name"
	MetaAddress        = "address"
	MetaStatus         = "status"
	MetaPriceCents     = "price_cents"
	MetaFeed           = "feed"
	MetaRecurrenceRule = "recurrence_rule"
)

// JobToEvent converts a stored job into a grid event. External jobs are read-only.
func JobToEvent(job Job) calendar.CalendarEvent {
	ev := calendar.CalendarEvent{
		ID:          job.ID,
		Start:       job.Start,
		Title:       job.Title,
		Description: job.Description,
		Metadata: calendar.Metadata{
			calendar.MetaEventType: job.EventType,
			MetaClientName:         job.ClientName,
			MetaAddress:            job.Address,
			MetaStatus:             job.Status,
			MetaPriceCents:         job.PriceCents,
		},
	}
	if job.End != nil {
		end := *job.End
		ev.End = &end
	}
	if job.EmployeeID != nil {
		ev.Label = *job.EmployeeID
	}
	if job.Confirmed != nil {
		confirmed := *job.Confirmed
		ev.Confirmed = &confirmed
	}
	if job.RecurrenceRule != nil {
		ev.Metadata[MetaRecurrenceRule] = *job.RecurrenceRule
	}
	if job.External() {
		ev.Metadata[calendar.MetaExternal] = true
		ev.Metadata[calendar.MetaReadOnly] = true
		ev.Metadata[MetaFeed] = job.Feed
	}
	return ev
}

// EventToJobInput overlays the fields a grid event carries onto base.
// Metadata keys that are absent leave the base value untouched.
func EventToJobInput(base JobInput, ev calendar.CalendarEvent) (JobInput, error) {
	input := base
	input.Title = ev.Title
	input.Description = ev.Description
	input.Start = ev.Start
	input.End = nil
	if ev.End != nil {
		end := *ev.End
		input.End = &end
	}
	input.EmployeeID = nil
	if ev.Label != "" {
		label := ev.Label
		input.EmployeeID = &label
	}
	if ev.Confirmed != nil {
		confirmed := *ev.Confirmed
		input.Confirmed = &confirmed
	}

	if _, ok := ev.Metadata[MetaClientName]; ok {
		input.ClientName = ev.Metadata.String(MetaClientName)
	}
	if _, ok := ev.Metadata[MetaAddress]; ok {
		input.Address = ev.Metadata.String(MetaAddress)
	}
	if _, ok := ev.Metadata[MetaStatus]; ok {
		input.Status = ev.Metadata.String(MetaStatus)
	}
	if _, ok := ev.Metadata[calendar.MetaEventType]; ok {
		input.EventType = ev.Metadata.String(calendar.MetaEventType)
	}
	if raw, ok := ev.Metadata[MetaPriceCents]; ok {
		price, err := priceFromMetadata(raw)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("price_cents", "price must be a whole number of cents")
			return input, vErr
		}
		input.PriceCents = price
	}
	return input, nil
}

func priceFromMetadata(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("fractional price %v", v)
		}
		return int64(v), nil
	case string:
		if v == "" {
			return 0, nil
		}
		return strconv.ParseInt(v, 10, 64)
	case nil:
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported price type %T", raw)
}

// CalendarEvents returns the grid events overlapping [from, to), with
// recurring jobs expanded into read-only occurrences.
func (s *JobService) CalendarEvents(ctx context.Context, from, to time.Time, employeeIDs []string) ([]calendar.CalendarEvent, error) {
	if s == nil {
		return nil, fmt.Errorf("JobService is nil")
	}
	jobs, _, err := s.ListJobs(ctx, ListJobsParams{EmployeeIDs: employeeIDs, StartsAfter: &from, EndsBefore: &to})
	if err != nil {
		return nil, err
	}

	events := make([]calendar.CalendarEvent, 0, len(jobs))
	for _, job := range jobs {
		ev := JobToEvent(job)
		if job.RecurrenceRule == nil {
			events = append(events, ev)
			continue
		}
		occurrences, err := s.expander.ExpandEvent(ev, *job.RecurrenceRule, from, to)
		if err != nil {
			s.loggerWith(ctx, "CalendarEvents", "job_id", job.ID).WarnContext(ctx, "skipping unexpandable recurring job", "error", err)
			continue
		}
		events = append(events, occurrences...)
	}
	return calendar.SortEvents(events), nil
}
