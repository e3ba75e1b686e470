package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/cleaning-scheduler/internal/persistence"
)

// EmployeeRepository implements persistence.EmployeeRepository using SQLite
type EmployeeRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewEmployeeRepository creates a new SQLite employee repository
func NewEmployeeRepository(pool *ConnectionPool) *EmployeeRepository {
	return &EmployeeRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

const employeeColumns = `id, name, email, phone, color, active, created_at, updated_at`

// CreateEmployee inserts a new employee. Zero timestamps are filled in.
func (r *EmployeeRepository) CreateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" || employee.Name == "" {
		return persistence.ErrConstraintViolation
	}
	now := r.now().UTC()
	if employee.CreatedAt.IsZero() {
		employee.CreatedAt = now
	}
	if employee.UpdatedAt.IsZero() {
		employee.UpdatedAt = employee.CreatedAt
	}

	_, err := r.helper.Exec(ctx, `
		INSERT INTO employees (`+employeeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		employee.ID,
		employee.Name,
		nullString(employee.Email),
		nullString(employee.Phone),
		nullString(employee.Color),
		employee.Active,
		formatTime(employee.CreatedAt),
		formatTime(employee.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateEmployee updates an existing employee.
func (r *EmployeeRepository) UpdateEmployee(ctx context.Context, employee persistence.Employee) error {
	if employee.ID == "" || employee.Name == "" {
		return persistence.ErrConstraintViolation
	}
	if employee.UpdatedAt.IsZero() {
		employee.UpdatedAt = r.now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE employees
		SET name = ?, email = ?, phone = ?, color = ?, active = ?, updated_at = ?
		WHERE id = ?
	`,
		employee.Name,
		nullString(employee.Email),
		nullString(employee.Phone),
		nullString(employee.Color),
		employee.Active,
		formatTime(employee.UpdatedAt),
		employee.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetEmployee retrieves an employee by ID.
func (r *EmployeeRepository) GetEmployee(ctx context.Context, id string) (persistence.Employee, error) {
	if id == "" {
		return persistence.Employee{}, persistence.ErrNotFound
	}
	row := r.helper.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = ?`, id)
	employee, err := scanEmployee(row)
	if err != nil {
		return persistence.Employee{}, r.mapper.MapError(err)
	}
	return employee, nil
}

// ListEmployees returns all employees ordered by name then ID.
func (r *EmployeeRepository) ListEmployees(ctx context.Context) ([]persistence.Employee, error) {
	rows, err := r.helper.Query(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var employees []persistence.Employee
	for rows.Next() {
		employee, err := scanEmployee(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		employees = append(employees, employee)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return employees, nil
}

// DeleteEmployee removes an employee. Their jobs become unassigned.
func (r *EmployeeRepository) DeleteEmployee(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := r.helper.ExecTx(ctx, tx, "UPDATE jobs SET employee_id = NULL WHERE employee_id = ?", id); err != nil {
			return r.mapper.MapError(err)
		}
		result, err := r.helper.ExecTx(ctx, tx, "DELETE FROM employees WHERE id = ?", id)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireAffected(result)
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (persistence.Employee, error) {
	var (
		employee             persistence.Employee
		email, phone, color  sql.NullString
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&employee.ID,
		&employee.Name,
		&email,
		&phone,
		&color,
		&employee.Active,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Employee{}, err
	}
	employee.Email = email.String
	employee.Phone = phone.String
	employee.Color = color.String

	var err error
	if employee.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Employee{}, err
	}
	if employee.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Employee{}, err
	}
	return employee, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
