package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/recurrence"
)

// CalendarSaver persists grid mutations through the job service.
type CalendarSaver struct {
	jobs   *JobService
	logger *slog.Logger
}

var _ calendar.Saver = (*CalendarSaver)(nil)

// NewCalendarSaver returns a saver backed by jobs.
func NewCalendarSaver(jobs *JobService, logger *slog.Logger) *CalendarSaver {
	return &CalendarSaver{jobs: jobs, logger: logging.OrDefault(logger)}
}

// Save applies m. Domain rejections are reported as an unsuccessful result so
// the grid can revert and show the message; only infrastructure failures are
// returned as errors.
func (s *CalendarSaver) Save(ctx context.Context, m calendar.Mutation) (calendar.SaveResult, error) {
	if s == nil || s.jobs == nil {
		return calendar.SaveResult{}, fmt.Errorf("CalendarSaver is not configured")
	}

	ev := m.Event
	if _, _, ok := recurrence.ParseOccurrenceID(ev.ID); ok || ev.Metadata.Bool(calendar.MetaOccurrence) {
		return rejected(ErrReadOnly), nil
	}

	switch m.Kind {
	case calendar.MutationCreate:
		input, err := EventToJobInput(JobInput{}, ev)
		if err != nil {
			return rejected(err), nil
		}
		job, _, err := s.jobs.CreateJob(ctx, input)
		if err != nil {
			return s.failure(ctx, m, err)
		}
		stored := JobToEvent(job)
		return calendar.SaveResult{Success: true, Event: &stored}, nil

	case calendar.MutationUpdate:
		existing, err := s.jobs.GetJob(ctx, ev.ID)
		if err != nil {
			return s.failure(ctx, m, err)
		}
		input, err := EventToJobInput(existing.Input(), ev)
		if err != nil {
			return rejected(err), nil
		}
		job, _, err := s.jobs.UpdateJob(ctx, ev.ID, input)
		if err != nil {
			return s.failure(ctx, m, err)
		}
		stored := JobToEvent(job)
		return calendar.SaveResult{Success: true, Event: &stored}, nil

	case calendar.MutationDelete:
		if err := s.jobs.DeleteJob(ctx, ev.ID); err != nil {
			return s.failure(ctx, m, err)
		}
		return calendar.SaveResult{Success: true}, nil
	}

	return calendar.SaveResult{}, fmt.Errorf("unsupported mutation %q", m.Kind)
}

func (s *CalendarSaver) failure(ctx context.Context, m calendar.Mutation, err error) (calendar.SaveResult, error) {
	if ErrorKind(err) == "unexpected" {
		return calendar.SaveResult{}, err
	}
	s.logger.DebugContext(ctx, "calendar mutation rejected",
		"event_id", m.Event.ID,
		"mutation", string(m.Kind),
		"error_kind", ErrorKind(err),
	)
	return rejected(err), nil
}

func rejected(err error) calendar.SaveResult {
	return calendar.SaveResult{Success: false, Error: UserMessage(err)}
}

// UserMessage renders err as text suitable for a notification.
func UserMessage(err error) string {
	var vErr *ValidationError
	var cErr *ConflictError
	switch {
	case errors.As(err, &cErr):
		ids := make([]string, 0, len(cErr.Warnings))
		for _, w := range cErr.Warnings {
			ids = append(ids, w.WithJobID)
		}
		return "The slot is already booked: overlaps " + strings.Join(ids, ", ")
	case errors.As(err, &vErr):
		return strings.TrimPrefix(vErr.Error(), "validation failed: ")
	case errors.Is(err, ErrNotFound):
		return "The job no longer exists"
	case errors.Is(err, ErrReadOnly):
		return "This job cannot be edited here"
	case errors.Is(err, ErrAlreadyExists):
		return "The job already exists"
	}
	return "Unexpected error"
}
