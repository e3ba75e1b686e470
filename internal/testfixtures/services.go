package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/cleaning-scheduler/internal/application"
)

// ServiceFactory builds application services with deterministic identifiers
// and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// JobServiceDeps captures dependencies for constructing a job service.
type JobServiceDeps struct {
	Jobs      application.JobRepository
	Employees application.EmployeeDirectory
	Policy    application.JobPolicy
	Logger    *slog.Logger
}

// NewJobService builds a job service on the factory clock and id sequence.
func (f *ServiceFactory) NewJobService(deps JobServiceDeps) *application.JobService {
	policy := deps.Policy
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return application.NewJobServiceWithLogger(
		deps.Jobs,
		deps.Employees,
		policy,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}

// EmployeeServiceDeps captures dependencies for constructing an employee service.
type EmployeeServiceDeps struct {
	Employees application.EmployeeRepository
	Logger    *slog.Logger
}

// NewEmployeeService builds an employee service on the factory clock and id sequence.
func (f *ServiceFactory) NewEmployeeService(deps EmployeeServiceDeps) *application.EmployeeService {
	return application.NewEmployeeServiceWithLogger(
		deps.Employees,
		f.IDGenerator.NextFunc(),
		f.Clock.NowFunc(),
		deps.Logger,
	)
}
