package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/calendar"
	"github.com/example/cleaning-scheduler/internal/logging"
	"github.com/example/cleaning-scheduler/internal/persistence"
)

// EmployeeRepository captures the persistence operations needed by the service.
type EmployeeRepository interface {
	CreateEmployee(ctx context.Context, employee Employee) (Employee, error)
	GetEmployee(ctx context.Context, id string) (Employee, error)
	UpdateEmployee(ctx context.Context, employee Employee) (Employee, error)
	DeleteEmployee(ctx context.Context, id string) error
	ListEmployees(ctx context.Context) ([]Employee, error)
}

// EmployeeService orchestrates validation and persistence for employees.
type EmployeeService struct {
	employees   EmployeeRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
	// order lists employee ids placed first in Resources.
	order []string
}

// NewEmployeeService constructs an employee service with the provided dependencies.
func NewEmployeeService(employees EmployeeRepository, idGenerator func() string, now func() time.Time) *EmployeeService {
	return NewEmployeeServiceWithLogger(employees, idGenerator, now, nil)
}

// NewEmployeeServiceWithLogger constructs an employee service with a specified logger.
func NewEmployeeServiceWithLogger(employees EmployeeRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *EmployeeService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &EmployeeService{employees: employees, idGenerator: idGenerator, now: now, logger: logging.OrDefault(logger)}
}

func (s *EmployeeService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return logging.For(ctx, s.logger).With(append([]any{"service", "EmployeeService", "operation", operation}, attrs...)...)
}

// CreateEmployee validates input and persists a new employee.
func (s *EmployeeService) CreateEmployee(ctx context.Context, input EmployeeInput) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateEmployee")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("employee_id", employee.ID).InfoContext(ctx, "employee created")
	}()

	vErr := validateEmployeeInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}
	employee = Employee{
		ID:        s.idGenerator(),
		Name:      strings.TrimSpace(input.Name),
		Email:     strings.TrimSpace(input.Email),
		Phone:     strings.TrimSpace(input.Phone),
		Color:     strings.ToLower(strings.TrimSpace(input.Color)),
		Active:    active,
		CreatedAt: s.now(),
	}
	employee.UpdatedAt = employee.CreatedAt

	if s.employees == nil {
		return
	}

	var persisted Employee
	persisted, err = s.employees.CreateEmployee(ctx, employee)
	if err != nil {
		err = mapEmployeeRepoError(err)
		return
	}
	employee = persisted
	return
}

// UpdateEmployee validates input and updates an existing employee.
func (s *EmployeeService) UpdateEmployee(ctx context.Context, id string, input EmployeeInput) (employee Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}
	if s.employees == nil {
		err = fmt.Errorf("employee repository not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateEmployee", "employee_id", id)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update employee", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "employee updated")
	}()

	var existing Employee
	existing, err = s.employees.GetEmployee(ctx, id)
	if err != nil {
		err = mapEmployeeRepoError(err)
		return
	}

	vErr := validateEmployeeInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated := existing
	updated.Name = strings.TrimSpace(input.Name)
	updated.Email = strings.TrimSpace(input.Email)
	updated.Phone = strings.TrimSpace(input.Phone)
	updated.Color = strings.ToLower(strings.TrimSpace(input.Color))
	if input.Active != nil {
		updated.Active = *input.Active
	}
	updated.UpdatedAt = s.now()

	employee, err = s.employees.UpdateEmployee(ctx, updated)
	if err != nil {
		err = mapEmployeeRepoError(err)
	}
	return
}

// DeleteEmployee removes an employee. Their jobs become unassigned.
func (s *EmployeeService) DeleteEmployee(ctx context.Context, id string) error {
	if s == nil {
		return fmt.Errorf("EmployeeService is nil")
	}
	if s.employees == nil {
		return fmt.Errorf("employee repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteEmployee", "employee_id", id)
	if err := s.employees.DeleteEmployee(ctx, id); err != nil {
		err = mapEmployeeRepoError(err)
		logger.ErrorContext(ctx, "failed to delete employee", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	logger.InfoContext(ctx, "employee deleted")
	return nil
}

// GetEmployee returns one employee.
func (s *EmployeeService) GetEmployee(ctx context.Context, id string) (Employee, error) {
	if s == nil || s.employees == nil {
		return Employee{}, ErrNotFound
	}
	employee, err := s.employees.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, mapEmployeeRepoError(err)
	}
	return employee, nil
}

// EmployeeExists reports whether id names a stored employee.
func (s *EmployeeService) EmployeeExists(ctx context.Context, id string) (bool, error) {
	_, err := s.GetEmployee(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ListEmployees returns every employee ordered by name.
func (s *EmployeeService) ListEmployees(ctx context.Context) (employees []Employee, err error) {
	if s == nil {
		err = fmt.Errorf("EmployeeService is nil")
		return
	}
	if s.employees == nil {
		return nil, nil
	}

	logger := s.loggerWith(ctx, "ListEmployees")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list employees", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(employees)).DebugContext(ctx, "employees listed")
	}()

	var raw []Employee
	raw, err = s.employees.ListEmployees(ctx)
	if err != nil {
		err = mapEmployeeRepoError(err)
		return
	}

	employees = make([]Employee, len(raw))
	copy(employees, raw)
	sort.Slice(employees, func(i, j int) bool {
		if strings.EqualFold(employees[i].Name, employees[j].Name) {
			return employees[i].ID < employees[j].ID
		}
		return strings.ToLower(employees[i].Name) < strings.ToLower(employees[j].Name)
	})
	return
}

// SetResourceOrder pins the given employee ids, in order, ahead of the
// name-ordered remainder returned by Resources. Unknown ids are ignored.
func (s *EmployeeService) SetResourceOrder(ids []string) {
	s.order = uniqueStrings(ids)
}

// Resources returns the active employees as day-view columns, ordered by name
// after any ids pinned with SetResourceOrder.
func (s *EmployeeService) Resources(ctx context.Context) ([]calendar.Resource, error) {
	employees, err := s.ListEmployees(ctx)
	if err != nil {
		return nil, err
	}
	rank := make(map[string]int, len(s.order))
	for i, id := range s.order {
		rank[id] = i
	}
	resources := make([]calendar.Resource, 0, len(employees))
	for _, e := range employees {
		if e.Active {
			resources = append(resources, calendar.Resource{ID: e.ID, Name: e.Name})
		}
	}
	sort.SliceStable(resources, func(i, j int) bool {
		ri, pinnedI := rank[resources[i].ID]
		rj, pinnedJ := rank[resources[j].ID]
		switch {
		case pinnedI && pinnedJ:
			return ri < rj
		case pinnedI != pinnedJ:
			return pinnedI
		}
		return false
	})
	return resources, nil
}

func validateEmployeeInput(input EmployeeInput) *ValidationError {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.Name) == "" {
		vErr.add("name", "name is required")
	}
	if email := strings.TrimSpace(input.Email); email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			vErr.add("email", "must be a valid email address")
		}
	}
	if color := strings.TrimSpace(input.Color); color != "" {
		if _, _, _, ok := calendar.ParseHexColor(color); !ok {
			vErr.add("color", "must be a hex color such as #3b82f6")
		}
	}
	return vErr
}

func mapEmployeeRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("email", "email is already used by another employee")
		return vErr
	}
	if errors.Is(err, persistence.ErrConstraintViolation) {
		vErr := &ValidationError{}
		vErr.add("name", "name is required")
		return vErr
	}
	return err
}
