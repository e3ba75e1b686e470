package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/persistence"
	"github.com/example/cleaning-scheduler/internal/recurrence"
	"github.com/example/cleaning-scheduler/internal/scheduler"
)

// JobRepository captures the persistence operations needed by the job service.
type JobRepository interface {
	CreateJob(ctx context.Context, job Job) (Job, error)
	GetJob(ctx context.Context, id string) (Job, error)
	UpdateJob(ctx context.Context, job Job) (Job, error)
	DeleteJob(ctx context.Context, id string) error
	ListJobs(ctx context.Context, filter JobRepositoryFilter) ([]Job, error)
	ReplaceExternalJobs(ctx context.Context, feed string, jobs []Job) error
}

// EmployeeDirectory resolves employee references.
type EmployeeDirectory interface {
	EmployeeExists(ctx context.Context, id string) (bool, error)
}

// JobPolicy carries the configured scheduling rules.
type JobPolicy struct {
	// EventTypes lists the known job types. An empty table accepts any type.
	EventTypes map[string]calendar.EventType
	// StrictConflicts turns double-booking warnings into ErrConflict.
	StrictConflicts bool
	// Location is used for period presets and allowed-slot checks.
	Location *time.Location
}

// JobService coordinates validation, conflict detection and persistence for jobs.
type JobService struct {
	jobs        JobRepository
	employees   EmployeeDirectory
	policy      JobPolicy
	expander    *recurrence.Engine
	cache       *warningCache
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewJobService constructs a job service with the provided dependencies.
func NewJobService(jobs JobRepository, employees EmployeeDirectory, policy JobPolicy, idGenerator func() string, now func() time.Time) *JobService {
	return NewJobServiceWithLogger(jobs, employees, policy, idGenerator, now, nil)
}

// NewJobServiceWithLogger constructs a job service with a specified logger.
func NewJobServiceWithLogger(jobs JobRepository, employees EmployeeDirectory, policy JobPolicy, idGenerator func() string, now func() time.Time, logger *slog.Logger) *JobService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if policy.Location == nil {
		policy.Location = time.Local
	}
	logger = logging.OrDefault(logger)
	return &JobService{
		jobs:        jobs,
		employees:   employees,
		policy:      policy,
		expander:    recurrence.NewEngineWithLogger(policy.Location, recurrence.DefaultMaxOccurrences, logger),
		cache:       newWarningCache(30*time.Second, 128, now),
		idGenerator: idGenerator,
		now:         now,
		logger:      logger,
	}
}

func (s *JobService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.For(ctx, s.logger).With(append([]any{"service", "JobService", "operation", operation}, attrs...)...)
}

// Policy returns the scheduling rules the service enforces.
func (s *JobService) Policy() JobPolicy {
	return s.policy
}

// CreateJob validates input, checks for double-booking and persists a new job.
func (s *JobService) CreateJob(ctx context.Context, input JobInput) (job Job, warnings []ConflictWarning, err error) {
	if s == nil {
		err = fmt.Errorf("JobService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateJob")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create job", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("job_id", job.ID, "warning_count", len(warnings)).InfoContext(ctx, "job created")
	}()

	input = s.withDefaults(input)
	if err = s.validateJobInput(ctx, input); err != nil {
		return
	}

	createdAt := s.now()
	job = jobFromInput(Job{ID: s.idGenerator(), Source: SourceInternal, CreatedAt: createdAt}, input)
	job.UpdatedAt = createdAt

	if s.jobs == nil {
		return
	}

	warnings, err = s.detectConflicts(ctx, job)
	if err != nil {
		return
	}
	if len(warnings) > 0 && s.policy.StrictConflicts {
		err = &ConflictError{Warnings: warnings}
		return
	}

	var persisted Job
	persisted, err = s.jobs.CreateJob(ctx, job)
	if err != nil {
		err = mapJobRepoError(err)
		return
	}
	s.cache.InvalidateJobs(persisted)
	job = persisted
	return
}

// UpdateJob replaces the editable fields of an internal job.
func (s *JobService) UpdateJob(ctx context.Context, id string, input JobInput) (job Job, warnings []ConflictWarning, err error) {
	if s == nil {
		err = fmt.Errorf("JobService is nil")
		return
	}
	if s.jobs == nil {
		err = fmt.Errorf("job repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateJob", "job_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update job", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("warning_count", len(warnings)).InfoContext(ctx, "job updated")
	}()

	var existing Job
	existing, err = s.jobs.GetJob(ctx, id)
	if err != nil {
		err = mapJobRepoError(err)
		return
	}
	if existing.External() {
		err = ErrReadOnly
		return
	}

	input = s.withDefaults(input)
	if err = s.validateJobInput(ctx, input); err != nil {
		return
	}

	updated := jobFromInput(existing, input)
	updated.UpdatedAt = s.now()

	warnings, err = s.detectConflicts(ctx, updated)
	if err != nil {
		return
	}
	if len(warnings) > 0 && s.policy.StrictConflicts {
		err = &ConflictError{Warnings: warnings}
		return
	}

	job, err = s.jobs.UpdateJob(ctx, updated)
	if err != nil {
		err = mapJobRepoError(err)
		return
	}
	s.cache.InvalidateJobs(existing, job)
	return
}

// DeleteJob removes an internal job.
func (s *JobService) DeleteJob(ctx context.Context, id string) (err error) {
	if s == nil {
		return fmt.Errorf("JobService is nil")
	}
	if s.jobs == nil {
		return fmt.Errorf("job repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteJob", "job_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to delete job", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "job deleted")
	}()

	existing, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return mapJobRepoError(err)
	}
	if existing.External() {
		return ErrReadOnly
	}
	if err = s.jobs.DeleteJob(ctx, id); err != nil {
		return mapJobRepoError(err)
	}
	s.cache.InvalidateJobs(existing)
	return nil
}

// GetJob returns one job.
func (s *JobService) GetJob(ctx context.Context, id string) (Job, error) {
	if s == nil || s.jobs == nil {
		return Job{}, ErrNotFound
	}
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		return Job{}, mapJobRepoError(err)
	}
	return job, nil
}

// ListJobs returns the jobs matching params ordered by start, together with
// the double-bookings among them. Recurring jobs are returned as series.
func (s *JobService) ListJobs(ctx context.Context, params ListJobsParams) (jobs []Job, warnings []ConflictWarning, err error) {
	if s == nil {
		err = fmt.Errorf("JobService is nil")
		return
	}
	if s.jobs == nil {
		err = fmt.Errorf("job repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "ListJobs", "period", string(params.Period))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list jobs", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(jobs), "warning_count", len(warnings)).DebugContext(ctx, "jobs listed")
	}()

	filter := s.buildListFilter(params)

	var raw []Job
	raw, err = s.jobs.ListJobs(ctx, filter)
	if err != nil {
		if isNotFoundError(err) {
			err = nil
		}
		return
	}

	jobs = make([]Job, len(raw))
	copy(jobs, raw)
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Start.Equal(jobs[j].Start) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].Start.Before(jobs[j].Start)
	})

	scope := scopeForFilter(filter)
	if cached, ok := s.cache.Get(scope); ok {
		warnings = cached
		return
	}
	warnings = detectListConflicts(s.toSchedulerJobs(jobs, filter.StartsAfter, filter.EndsBefore))
	s.cache.Store(scope, warnings)
	return
}

// SyncExternalJobs replaces the appointments stored for feed with events.
func (s *JobService) SyncExternalJobs(ctx context.Context, feed string, events []calendar.CalendarEvent) (count int, err error) {
	if s == nil {
		err = fmt.Errorf("JobService is nil")
		return
	}
	if s.jobs == nil {
		err = fmt.Errorf("job repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "SyncExternalJobs", "feed", feed)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to sync external jobs", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("job_count", count).InfoContext(ctx, "external jobs synchronized")
	}()

	if strings.TrimSpace(feed) == "" {
		vErr := &ValidationError{}
		vErr.add("feed", "feed is required")
		err = vErr
		return
	}

	now := s.now()
	jobs := make([]Job, 0, len(events))
	seen := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev.ID == "" || ev.Start.IsZero() {
			continue
		}
		if _, dup := seen[ev.ID]; dup {
			continue
		}
		seen[ev.ID] = struct{}{}

		uid := ev.ID
		job := Job{
			ID:          s.idGenerator(),
			Title:       strings.TrimSpace(ev.Title),
			Description: ev.Description,
			ClientName:  ev.Metadata.String(MetaClientName),
			Address:     ev.Metadata.String(MetaAddress),
			Start:       ev.Start,
			End:         ev.End,
			EventType:   ev.Metadata.String(calendar.MetaEventType),
			Status:      StatusScheduled,
			Confirmed:   ev.Confirmed,
			Source:      SourceExternal,
			Feed:        feed,
			ExternalUID: &uid,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if job.Title == "" {
			job.Title = "(busy)"
		}
		if job.End != nil && job.End.Before(job.Start) {
			job.End = nil
		}
		jobs = append(jobs, job)
	}

	if err = s.jobs.ReplaceExternalJobs(ctx, feed, jobs); err != nil {
		err = mapJobRepoError(err)
		return
	}
	s.cache.Invalidate()
	count = len(jobs)
	return
}

func (s *JobService) withDefaults(input JobInput) JobInput {
	input.Title = strings.TrimSpace(input.Title)
	input.EventType = strings.TrimSpace(input.EventType)
	if input.Status == "" {
		input.Status = StatusScheduled
	}
	if input.EmployeeID != nil && strings.TrimSpace(*input.EmployeeID) == "" {
		input.EmployeeID = nil
	}
	if input.RecurrenceRule != nil && strings.TrimSpace(*input.RecurrenceRule) == "" {
		input.RecurrenceRule = nil
	}
	if input.End == nil && !input.Start.IsZero() {
		if t, ok := s.policy.EventTypes[input.EventType]; ok && t.DurationMinutes > 0 {
			end := input.Start.Add(time.Duration(t.DurationMinutes) * time.Minute)
			input.End = &end
		}
	}
	return input
}

func (s *JobService) validateJobInput(ctx context.Context, input JobInput) error {
	vErr := &ValidationError{}

	if input.Title == "" {
		vErr.add("title", "title is required")
	}
	if input.Start.IsZero() {
		vErr.add("start", "start is required")
	}
	if input.End != nil && !input.Start.IsZero() && !input.End.After(input.Start) {
		vErr.add("end", "end must be after start")
	}
	if input.PriceCents < 0 {
		vErr.add("price_cents", "price must not be negative")
	}
	switch input.Status {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
	default:
		vErr.add("status", "status must be one of scheduled, in_progress, completed, cancelled")
	}
	if input.RecurrenceRule != nil {
		if err := recurrence.ValidateRule(*input.RecurrenceRule); err != nil {
			vErr.add("recurrence_rule", "recurrence rule is not a valid RRULE")
		}
	}
	s.validateEventType(input, vErr)

	if vErr.HasErrors() {
		return vErr
	}

	if input.EmployeeID != nil && s.employees != nil {
		ok, err := s.employees.EmployeeExists(ctx, *input.EmployeeID)
		if err != nil {
			return err
		}
		if !ok {
			vErr.add("employee_id", "employee does not exist")
			return vErr
		}
	}
	return nil
}

func (s *JobService) validateEventType(input JobInput, vErr *ValidationError) {
	if input.EventType == "" || input.EventType == calendar.BlockType || len(s.policy.EventTypes) == 0 {
		return
	}
	t, ok := s.policy.EventTypes[input.EventType]
	if !ok {
		vErr.add("event_type", fmt.Sprintf("unknown event type %q", input.EventType))
		return
	}
	if len(t.AllowedSlots) == 0 || input.Start.IsZero() {
		return
	}

	start := input.Start.In(s.policy.Location)
	end := start.Add(time.Hour)
	if input.End != nil {
		end = input.End.In(s.policy.Location)
	}
	startMin := calendar.MinuteOfDay(start)
	endMin := startMin + int(end.Sub(start)/time.Minute)
	for _, slot := range t.AllowedSlots {
		if slot.Contains(startMin, endMin) {
			return
		}
	}
	vErr.add("start", fmt.Sprintf("%s jobs must be booked inside their allowed time slots", input.EventType))
}

func (s *JobService) detectConflicts(ctx context.Context, candidate Job) ([]ConflictWarning, error) {
	if candidate.Status == StatusCancelled {
		return nil, nil
	}

	from, to := candidate.Start, candidate.EffectiveEnd()
	existing, err := s.jobs.ListJobs(ctx, JobRepositoryFilter{StartsAfter: &from, EndsBefore: &to})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}

	others := make([]Job, 0, len(existing))
	for _, job := range existing {
		if job.ID != candidate.ID {
			others = append(others, job)
		}
	}

	conflicts := scheduler.DetectConflicts(s.toSchedulerJobs(others, &from, &to), toSchedulerJob(candidate))
	return toConflictWarnings(candidate.ID, conflicts), nil
}

// toSchedulerJobs flattens jobs for the detector, expanding recurring series
// inside the window and dropping cancelled jobs.
func (s *JobService) toSchedulerJobs(jobs []Job, from, to *time.Time) []scheduler.Job {
	out := make([]scheduler.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.Status == StatusCancelled {
			continue
		}
		if job.RecurrenceRule == nil || from == nil || to == nil {
			out = append(out, toSchedulerJob(job))
			continue
		}
		result, err := s.expander.Expand(recurrence.Series{ID: job.ID, Start: job.Start, End: job.End, Rule: *job.RecurrenceRule}, *from, *to)
		if err != nil {
			out = append(out, toSchedulerJob(job))
			continue
		}
		for _, occ := range result.Occurrences {
			inst := job
			inst.ID = occ.ID
			inst.Start = occ.Start
			inst.End = occ.End
			out = append(out, toSchedulerJob(inst))
		}
	}
	return out
}

func (s *JobService) buildListFilter(params ListJobsParams) JobRepositoryFilter {
	employees := sortStrings(uniqueStrings(params.EmployeeIDs))
	if len(employees) == 0 {
		employees = nil
	}

	startsAfter := params.StartsAfter
	endsBefore := params.EndsBefore

	if params.Period != ListPeriodNone {
		reference := params.PeriodReference
		if reference.IsZero() {
			reference = s.now()
		}
		start, end := computePeriodRange(params.Period, reference.In(s.policy.Location))
		if startsAfter == nil {
			startsAfter = &start
		}
		if endsBefore == nil {
			endsBefore = &end
		}
	}

	return JobRepositoryFilter{
		EmployeeIDs: employees,
		StartsAfter: startsAfter,
		EndsBefore:  endsBefore,
		Source:      params.Source,
	}
}

func jobFromInput(base Job, input JobInput) Job {
	job := base
	job.Title = input.Title
	job.Description = input.Description
	job.ClientName = strings.TrimSpace(input.ClientName)
	job.Address = strings.TrimSpace(input.Address)
	job.Start = input.Start
	job.End = input.End
	job.EmployeeID = input.EmployeeID
	job.EventType = input.EventType
	job.Status = input.Status
	job.PriceCents = input.PriceCents
	job.Confirmed = input.Confirmed
	job.RecurrenceRule = input.RecurrenceRule
	return job
}

func computePeriodRange(period ListPeriod, reference time.Time) (time.Time, time.Time) {
	switch period {
	case ListPeriodDay:
		start := calendar.StartOfDay(reference)
		return start, start.AddDate(0, 0, 1)
	case ListPeriodWeek:
		start := calendar.StartOfWeek(reference)
		return start, start.AddDate(0, 0, 7)
	case ListPeriodMonth:
		start := calendar.StartOfMonth(reference)
		return start, start.AddDate(0, 1, 0)
	default:
		return time.Time{}, time.Time{}
	}
}

func detectListConflicts(jobs []scheduler.Job) []ConflictWarning {
	if len(jobs) <= 1 {
		return nil
	}

	var warnings []ConflictWarning
	for i, candidate := range jobs {
		if i+1 >= len(jobs) {
			break
		}
		conflicts := scheduler.DetectConflicts(jobs[i+1:], candidate)
		warnings = append(warnings, toConflictWarnings(candidate.ID, conflicts)...)
	}
	return warnings
}

func toSchedulerJob(job Job) scheduler.Job {
	return scheduler.Job{
		ID:         job.ID,
		EmployeeID: job.EmployeeID,
		EventType:  job.EventType,
		Start:      job.Start,
		End:        job.End,
	}
}

func toConflictWarnings(jobID string, conflicts []scheduler.Conflict) []ConflictWarning {
	if len(conflicts) == 0 {
		return nil
	}

	warnings := make([]ConflictWarning, 0, len(conflicts))
	for _, conflict := range conflicts {
		warnings = append(warnings, ConflictWarning{
			JobID:      jobID,
			WithJobID:  conflict.WithJobID,
			Type:       string(conflict.Type),
			EmployeeID: conflict.EmployeeID,
		})
	}
	return warnings
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func sortStrings(values []string) []string {
	sort.Strings(values)
	return values
}

func mapJobRepoError(err error) error {
	if err == nil {
		return nil
	}
	if isNotFoundError(err) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return ErrAlreadyExists
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("job", "job violates a storage constraint")
		return vErr
	}
	if errors.Is(err, persistence.ErrForeignKeyViolation) {
		vErr := &ValidationError{}
		vErr.add("employee_id", "employee does not exist")
		return vErr
	}
	return err
}

func isNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound)
}
