package application

import "time"

// Job statuses.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Job sources.
const (
	SourceInternal = "internal"
	SourceExternal = "external"
)

// JobInput captures caller provided job fields.
type JobInput struct {
	Title          string
	Description    string
	ClientName     string
	Address        string
	Start          time.Time
	End            *time.Time
	EmployeeID     *string
	EventType      string
	Status         string
	PriceCents     int64
	Confirmed      *bool
	RecurrenceRule *string
}

// Job represents a scheduled cleaning job or an imported external appointment.
type Job struct {
	ID             string
	Title          string
	Description    string
	ClientName     string
	Address        string
	Start          time.Time
	End            *time.Time
	EmployeeID     *string
	EventType      string
	Status         string
	PriceCents     int64
	Confirmed      *bool
	Source         string
	Feed           string
	ExternalUID    *string
	RecurrenceRule *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveEnd returns End, or Start plus one hour for open-ended jobs.
func (j Job) EffectiveEnd() time.Time {
	if j.End != nil {
		return *j.End
	}
	return j.Start.Add(time.Hour)
}

// External reports whether the job was imported from a feed.
func (j Job) External() bool {
	return j.Source == SourceExternal
}

// Input returns the editable fields of the job.
func (j Job) Input() JobInput {
	return JobInput{
		Title:          j.Title,
		Description:    j.Description,
		ClientName:     j.ClientName,
		Address:        j.Address,
		Start:          j.Start,
		End:            j.End,
		EmployeeID:     j.EmployeeID,
		EventType:      j.EventType,
		Status:         j.Status,
		PriceCents:     j.PriceCents,
		Confirmed:      j.Confirmed,
		RecurrenceRule: j.RecurrenceRule,
	}
}

// EmployeeInput captures caller provided employee fields. A nil Active keeps
// the current value on update and means true on create.
type EmployeeInput struct {
	Name   string
	Email  string
	Phone  string
	Color  string
	Active *bool
}

// Employee is a crew member jobs are assigned to.
type Employee struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Color     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConflictWarning describes a scheduling conflict that should be surfaced to callers.
type ConflictWarning struct {
	JobID      string
	WithJobID  string
	Type       string
	EmployeeID string
}

// ListPeriod identifies the range preset requested for job listings.
type ListPeriod string

const (
	// ListPeriodNone indicates no preset; caller supplied explicit bounds.
	ListPeriodNone ListPeriod = ""
	// ListPeriodDay constrains results to a single day.
	ListPeriodDay ListPeriod = "day"
	// ListPeriodWeek constrains results to the Sunday-start week containing the reference time.
	ListPeriodWeek ListPeriod = "week"
	// ListPeriodMonth constrains results to the month containing the reference time.
	ListPeriodMonth ListPeriod = "month"
)

// ListJobsParams describes the jobs a caller wants to see.
type ListJobsParams struct {
	EmployeeIDs     []string
	StartsAfter     *time.Time
	EndsBefore      *time.Time
	Period          ListPeriod
	PeriodReference time.Time
	Source          string
}

// JobRepositoryFilter narrows queries issued to the job repository.
type JobRepositoryFilter struct {
	EmployeeIDs []string
	StartsAfter *time.Time
	EndsBefore  *time.Time
	Source      string
}
