package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/persistence"
	"github.com/example/cleaning-scheduler/internal/scheduler"
)

var (
	employeeCounter uint64
	jobCounter      uint64
)

// referenceTime is a Monday morning so week-based tests line up with the grid.
var referenceTime = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Employee fixtures -----------------------------

// EmployeeFixture is a deterministic employee record.
type EmployeeFixture struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	Color     string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EmployeeOption configures the generated employee fixture.
type EmployeeOption func(*EmployeeFixture)

// NewEmployeeFixture returns an active employee with unique id and email.
func NewEmployeeFixture(opts ...EmployeeOption) EmployeeFixture {
	idx := atomic.AddUint64(&employeeCounter, 1)
	id := fmt.Sprintf("emp-%03d", idx)
	created := referenceTime.Add(-time.Duration(idx) * time.Hour)
	fixture := EmployeeFixture{
		ID:        id,
		Name:      fmt.Sprintf("Cleaner %03d", idx),
		Email:     fmt.Sprintf("%s@example.com", id),
		Color:     calendar.DefaultEventColor,
		Active:    true,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithEmployeeID overrides the generated id.
func WithEmployeeID(id string) EmployeeOption {
	return func(f *EmployeeFixture) {
		f.ID = id
	}
}

// WithEmployeeName overrides the generated name.
func WithEmployeeName(name string) EmployeeOption {
	return func(f *EmployeeFixture) {
		f.Name = name
	}
}

// WithEmployeeEmail overrides the generated email. An empty email is stored as NULL.
func WithEmployeeEmail(email string) EmployeeOption {
	return func(f *EmployeeFixture) {
		f.Email = email
	}
}

// WithEmployeeColor sets the display color.
func WithEmployeeColor(color string) EmployeeOption {
	return func(f *EmployeeFixture) {
		f.Color = color
	}
}

// Inactive marks the employee as no longer taking jobs.
func Inactive() EmployeeOption {
	return func(f *EmployeeFixture) {
		f.Active = false
	}
}

// Application returns the fixture as an application.Employee.
func (f EmployeeFixture) Application() application.Employee {
	return application.Employee{
		ID:        f.ID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Color:     f.Color,
		Active:    f.Active,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Employee.
func (f EmployeeFixture) Persistence() persistence.Employee {
	return persistence.Employee(f.Application())
}

// Input returns the editable fields of the fixture.
func (f EmployeeFixture) Input() application.EmployeeInput {
	active := f.Active
	return application.EmployeeInput{
		Name:   f.Name,
		Email:  f.Email,
		Phone:  f.Phone,
		Color:  f.Color,
		Active: &active,
	}
}

// Resource returns the fixture as a day-view column.
func (f EmployeeFixture) Resource() calendar.Resource {
	return calendar.Resource{ID: f.ID, Name: f.Name}
}

// ------------------------------- Job fixtures --------------------------------

// JobFixture is a deterministic job record.
type JobFixture struct {
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

// JobOption configures the generated job fixture.
type JobOption func(*JobFixture)

// NewJobFixture returns a two hour unassigned regular job starting at ReferenceTime.
func NewJobFixture(opts ...JobOption) JobFixture {
	idx := atomic.AddUint64(&jobCounter, 1)
	id := fmt.Sprintf("job-%03d", idx)
	end := referenceTime.Add(2 * time.Hour)
	created := referenceTime.Add(-24 * time.Hour)
	fixture := JobFixture{
		ID:         id,
		Title:      fmt.Sprintf("Job %03d", idx),
		ClientName: fmt.Sprintf("Client %03d", idx),
		Address:    fmt.Sprintf("%d Main Street", idx),
		Start:      referenceTime,
		End:        &end,
		EventType:  "regular",
		Status:     application.StatusScheduled,
		PriceCents: 12000,
		Source:     application.SourceInternal,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithJobID overrides the generated id.
func WithJobID(id string) JobOption {
	return func(f *JobFixture) {
		f.ID = id
	}
}

// WithJobTitle overrides the generated title.
func WithJobTitle(title string) JobOption {
	return func(f *JobFixture) {
		f.Title = title
	}
}

// WithJobStartEnd sets both bounds.
func WithJobStartEnd(start, end time.Time) JobOption {
	return func(f *JobFixture) {
		f.Start = start
		f.End = &end
	}
}

// WithoutJobEnd makes the job open-ended.
func WithoutJobEnd() JobOption {
	return func(f *JobFixture) {
		f.End = nil
	}
}

// WithJobEmployee assigns the job.
func WithJobEmployee(id string) JobOption {
	return func(f *JobFixture) {
		f.EmployeeID = &id
	}
}

// WithJobType sets the event type tag.
func WithJobType(eventType string) JobOption {
	return func(f *JobFixture) {
		f.EventType = eventType
	}
}

// WithJobStatus sets the status.
func WithJobStatus(status string) JobOption {
	return func(f *JobFixture) {
		f.Status = status
	}
}

// WithJobPrice sets the price in cents.
func WithJobPrice(cents int64) JobOption {
	return func(f *JobFixture) {
		f.PriceCents = cents
	}
}

// WithJobConfirmed sets the confirmation flag.
func WithJobConfirmed(confirmed bool) JobOption {
	return func(f *JobFixture) {
		f.Confirmed = &confirmed
	}
}

// WithJobRecurrence makes the job a recurring series.
func WithJobRecurrence(rule string) JobOption {
	return func(f *JobFixture) {
		f.RecurrenceRule = &rule
	}
}

// WithJobExternal marks the job as imported from feed with the given uid.
func WithJobExternal(feed, uid string) JobOption {
	return func(f *JobFixture) {
		f.Source = application.SourceExternal
		f.Feed = feed
		f.ExternalUID = &uid
	}
}

// Application returns the fixture as an application.Job.
func (f JobFixture) Application() application.Job {
	return application.Job{
		ID:             f.ID,
		Title:          f.Title,
		Description:    f.Description,
		ClientName:     f.ClientName,
		Address:        f.Address,
		Start:          f.Start,
		End:            copyTimePtr(f.End),
		EmployeeID:     copyStringPtr(f.EmployeeID),
		EventType:      f.EventType,
		Status:         f.Status,
		PriceCents:     f.PriceCents,
		Confirmed:      copyBoolPtr(f.Confirmed),
		Source:         f.Source,
		Feed:           f.Feed,
		ExternalUID:    copyStringPtr(f.ExternalUID),
		RecurrenceRule: copyStringPtr(f.RecurrenceRule),
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Job.
func (f JobFixture) Persistence() persistence.Job {
	return persistence.Job(f.Application())
}

// Input returns the editable fields of the fixture.
func (f JobFixture) Input() application.JobInput {
	return f.Application().Input()
}

// Event returns the fixture as it is shown on the grid.
func (f JobFixture) Event() calendar.CalendarEvent {
	return application.JobToEvent(f.Application())
}

// Scheduler returns the fixture as seen by the conflict detector.
func (f JobFixture) Scheduler() scheduler.Job {
	return scheduler.Job{
		ID:         f.ID,
		EmployeeID: copyStringPtr(f.EmployeeID),
		EventType:  f.EventType,
		Start:      f.Start,
		End:        copyTimePtr(f.End),
	}
}

func copyStringPtr(src *string) *string {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyTimePtr(src *time.Time) *time.Time {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}

func copyBoolPtr(src *bool) *bool {
	if src == nil {
		return nil
	}
	v := *src
	return &v
}
