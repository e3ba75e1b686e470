package persistence

import (
	"context"
	"time"
)

// EmployeeRepository exposes CRUD operations for employees.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) error
	UpdateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id string) (Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
}

// JobFilter narrows job queries. Window bounds use overlap semantics: a job
// matches when it starts before EndsBefore and ends after StartsAfter.
type JobFilter struct {
	EmployeeIDs []string
	StartsAfter *time.Time
	EndsBefore  *time.Time
	Source      string
}

// JobRepository stores jobs and synchronized external appointments.
type JobRepository interface {
	CreateJob(ctx context.Context, job Job) error
	UpdateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id string) (Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]Job, error)
	DeleteJob(ctx context.Context, id string) error
	// ReplaceExternalJobs swaps every job imported from feed for the given set.
	ReplaceExternalJobs(ctx context.Context, feed string, jobs []Job) error
}
