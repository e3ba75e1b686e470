package testfixtures

import (
	"context"
	"testing"

	"github.com/example/cleaning-scheduler/internal/application"
	"github.com/example/cleaning-scheduler/internal/persistence"
)

type capturingEmployeeRepo struct {
	created application.Employee
}

func (c *capturingEmployeeRepo) CreateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	c.created = employee
	return employee, nil
}

func (c *capturingEmployeeRepo) GetEmployee(ctx context.Context, id string) (application.Employee, error) {
	return application.Employee{}, application.ErrNotFound
}

func (c *capturingEmployeeRepo) UpdateEmployee(ctx context.Context, employee application.Employee) (application.Employee, error) {
	return employee, nil
}

func (c *capturingEmployeeRepo) DeleteEmployee(ctx context.Context, id string) error {
	return nil
}

func (c *capturingEmployeeRepo) ListEmployees(ctx context.Context) ([]application.Employee, error) {
	return nil, nil
}

// jobRepoAdapter exposes the harness job repository through the application interface.
type jobRepoAdapter struct {
	h *SQLiteHarness
}

func (a jobRepoAdapter) CreateJob(ctx context.Context, job application.Job) (application.Job, error) {
	if err := a.h.Jobs.CreateJob(ctx, persistence.Job(job)); err != nil {
		return application.Job{}, err
	}
	return a.GetJob(ctx, job.ID)
}

func (a jobRepoAdapter) GetJob(ctx context.Context, id string) (application.Job, error) {
	job, err := a.h.Jobs.GetJob(ctx, id)
	return application.Job(job), err
}

func (a jobRepoAdapter) UpdateJob(ctx context.Context, job application.Job) (application.Job, error) {
	if err := a.h.Jobs.UpdateJob(ctx, persistence.Job(job)); err != nil {
		return application.Job{}, err
	}
	return a.GetJob(ctx, job.ID)
}

func (a jobRepoAdapter) DeleteJob(ctx context.Context, id string) error {
	return a.h.Jobs.DeleteJob(ctx, id)
}

func (a jobRepoAdapter) ListJobs(ctx context.Context, filter application.JobRepositoryFilter) ([]application.Job, error) {
	jobs, err := a.h.Jobs.ListJobs(ctx, persistence.JobFilter(filter))
	if err != nil {
		return nil, err
	}
	out := make([]application.Job, len(jobs))
	for i, j := range jobs {
		out[i] = application.Job(j)
	}
	return out, nil
}

func (a jobRepoAdapter) ReplaceExternalJobs(ctx context.Context, feed string, jobs []application.Job) error {
	converted := make([]persistence.Job, len(jobs))
	for i, j := range jobs {
		converted[i] = persistence.Job(j)
	}
	return a.h.Jobs.ReplaceExternalJobs(ctx, feed, converted)
}

func TestServiceFactoryNewEmployeeService(t *testing.T) {
	factory := NewServiceFactory()
	repo := &capturingEmployeeRepo{}

	svc := factory.NewEmployeeService(EmployeeServiceDeps{Employees: repo})

	employee, err := svc.CreateEmployee(context.Background(), NewEmployeeFixture().Input())
	if err != nil {
		t.Fatalf("CreateEmployee returned error: %v", err)
	}

	if employee.ID != "id-1" {
		t.Fatalf("expected generated ID id-1, got %q", employee.ID)
	}
	if repo.created.ID != employee.ID {
		t.Fatalf("repository received unexpected ID: %q", repo.created.ID)
	}
	if !employee.CreatedAt.Equal(factory.Clock.Current()) {
		t.Fatalf("expected timestamp %v, got %v", factory.Clock.Current(), employee.CreatedAt)
	}
}

func TestServiceFactoryNewJobServiceAgainstSQLite(t *testing.T) {
	harness := NewSQLiteHarness(t)
	factory := NewServiceFactory(WithIDGenerator(NewIDGenerator("job")))

	svc := factory.NewJobService(JobServiceDeps{Jobs: jobRepoAdapter{harness}})

	job, _, err := svc.CreateJob(context.Background(), NewJobFixture().Input())
	if err != nil {
		t.Fatalf("CreateJob returned error: %v", err)
	}
	stored, err := harness.Jobs.GetJob(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetJob returned error: %v", err)
	}
	if stored.ID != "job-1" || stored.Title != job.Title {
		t.Fatalf("unexpected stored job %+v", stored)
	}
}
