package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/cleaning-scheduler/internal/persistence"
)

// defaultJobLength is the length assumed for jobs without an end when
// filtering by window.
const defaultJobLength = time.Hour

// JobRepository implements persistence.JobRepository using SQLite
type JobRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	retry  *RetryHelper
	now    func() time.Time
}

// NewJobRepository creates a new SQLite job repository
func NewJobRepository(pool *ConnectionPool) *JobRepository {
	return &JobRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
		now:    time.Now,
	}
}

const jobColumns = `id, title, description, client_name, address, start_at, end_at, employee_id,
	event_type, status, price_cents, confirmed, source, feed, external_uid, recurrence_rule,
	created_at, updated_at`

const insertJobSQL = `
	INSERT INTO jobs (` + jobColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// CreateJob inserts a new job. Zero timestamps are filled in.
func (r *JobRepository) CreateJob(ctx context.Context, job persistence.Job) error {
	if err := r.prepare(&job); err != nil {
		return err
	}
	_, err := r.helper.Exec(ctx, insertJobSQL, jobArgs(job)...)
	return r.mapper.MapError(err)
}

// UpdateJob replaces the stored fields of an existing job. created_at is kept.
func (r *JobRepository) UpdateJob(ctx context.Context, job persistence.Job) error {
	stamped := !job.UpdatedAt.IsZero()
	if err := r.prepare(&job); err != nil {
		return err
	}
	if !stamped {
		job.UpdatedAt = r.now().UTC()
	}

	result, err := r.helper.Exec(ctx, `
		UPDATE jobs
		SET title = ?, description = ?, client_name = ?, address = ?, start_at = ?, end_at = ?,
			employee_id = ?, event_type = ?, status = ?, price_cents = ?, confirmed = ?,
			source = ?, feed = ?, external_uid = ?, recurrence_rule = ?, updated_at = ?
		WHERE id = ?
	`,
		job.Title,
		nullString(job.Description),
		nullString(job.ClientName),
		nullString(job.Address),
		formatTime(job.Start),
		nullTimePtr(job.End),
		nullStringPtr(job.EmployeeID),
		nullString(job.EventType),
		job.Status,
		job.PriceCents,
		nullBoolPtr(job.Confirmed),
		job.Source,
		nullString(job.Feed),
		nullStringPtr(job.ExternalUID),
		nullStringPtr(job.RecurrenceRule),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// GetJob retrieves a job by ID.
func (r *JobRepository) GetJob(ctx context.Context, id string) (persistence.Job, error) {
	if id == "" {
		return persistence.Job{}, persistence.ErrNotFound
	}
	job, err := scanJob(r.helper.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id))
	if err != nil {
		return persistence.Job{}, r.mapper.MapError(err)
	}
	return job, nil
}

// ListJobs returns jobs matching filter ordered by start then ID. Recurring
// jobs that begin before the window end are always included so their
// occurrences can be expanded by the caller.
func (r *JobRepository) ListJobs(ctx context.Context, filter persistence.JobFilter) ([]persistence.Job, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.EmployeeIDs) > 0 {
		where = append(where, "employee_id IN (?"+strings.Repeat(", ?", len(filter.EmployeeIDs)-1)+")")
		for _, id := range filter.EmployeeIDs {
			args = append(args, id)
		}
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.EndsBefore != nil {
		where = append(where, "start_at < ?")
		args = append(args, formatTime(*filter.EndsBefore))
	}
	if filter.StartsAfter != nil {
		from := *filter.StartsAfter
		where = append(where, `(recurrence_rule IS NOT NULL
			OR (end_at IS NOT NULL AND end_at > ?)
			OR (end_at IS NULL AND start_at > ?))`)
		args = append(args, formatTime(from), formatTime(from.Add(-defaultJobLength)))
	}

	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY start_at ASC, id ASC"

	rows, err := r.helper.Query(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var jobs []persistence.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, r.mapper.MapError(err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return jobs, nil
}

// DeleteJob removes a job by ID.
func (r *JobRepository) DeleteJob(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, "DELETE FROM jobs WHERE id = ?", id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireAffected(result)
}

// ReplaceExternalJobs atomically swaps the jobs imported from feed for jobs.
// Busy databases are retried since refreshes run in the background.
func (r *JobRepository) ReplaceExternalJobs(ctx context.Context, feed string, jobs []persistence.Job) error {
	if feed == "" {
		return persistence.ErrConstraintViolation
	}
	for i := range jobs {
		jobs[i].Source = persistence.SourceExternal
		jobs[i].Feed = feed
		if err := r.prepare(&jobs[i]); err != nil {
			return err
		}
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := r.helper.ExecTx(ctx, tx, "DELETE FROM jobs WHERE source = ? AND feed = ?", persistence.SourceExternal, feed); err != nil {
				return err
			}
			for _, job := range jobs {
				if _, err := r.helper.ExecTx(ctx, tx, insertJobSQL, jobArgs(job)...); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// prepare applies defaults and rejects jobs the schema would refuse.
func (r *JobRepository) prepare(job *persistence.Job) error {
	if job.ID == "" || job.Title == "" || job.Start.IsZero() {
		return persistence.ErrConstraintViolation
	}
	if job.End != nil && job.End.Before(job.Start) {
		return persistence.ErrConstraintViolation
	}
	if job.PriceCents < 0 {
		return persistence.ErrConstraintViolation
	}
	if job.Status == "" {
		job.Status = "scheduled"
	}
	if job.Source == "" {
		job.Source = persistence.SourceInternal
	}
	now := r.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	return nil
}

func jobArgs(job persistence.Job) []any {
	return []any{
		job.ID,
		job.Title,
		nullString(job.Description),
		nullString(job.ClientName),
		nullString(job.Address),
		formatTime(job.Start),
		nullTimePtr(job.End),
		nullStringPtr(job.EmployeeID),
		nullString(job.EventType),
		job.Status,
		job.PriceCents,
		nullBoolPtr(job.Confirmed),
		job.Source,
		nullString(job.Feed),
		nullStringPtr(job.ExternalUID),
		nullStringPtr(job.RecurrenceRule),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	}
}

func scanJob(row rowScanner) (persistence.Job, error) {
	var (
		job                                      persistence.Job
		description, client, address, eventType  sql.NullString
		feed, start, createdAt, updatedAt        sql.NullString
		end, employeeID, externalUID, recurrence sql.NullString
		confirmed                                sql.NullBool
	)
	if err := row.Scan(
		&job.ID,
		&job.Title,
		&description,
		&client,
		&address,
		&start,
		&end,
		&employeeID,
		&eventType,
		&job.Status,
		&job.PriceCents,
		&confirmed,
		&job.Source,
		&feed,
		&externalUID,
		&recurrence,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Job{}, err
	}
	job.Description = description.String
	job.ClientName = client.String
	job.Address = address.String
	job.EventType = eventType.String
	job.Feed = feed.String
	if employeeID.Valid {
		job.EmployeeID = &employeeID.String
	}
	if externalUID.Valid {
		job.ExternalUID = &externalUID.String
	}
	if recurrence.Valid {
		job.RecurrenceRule = &recurrence.String
	}
	if confirmed.Valid {
		job.Confirmed = &confirmed.Bool
	}

	var err error
	if job.Start, err = parseTime("start_at", start.String); err != nil {
		return persistence.Job{}, err
	}
	if end.Valid {
		e, err := parseTime("end_at", end.String)
		if err != nil {
			return persistence.Job{}, err
		}
		job.End = &e
	}
	if job.CreatedAt, err = parseTime("created_at", createdAt.String); err != nil {
		return persistence.Job{}, err
	}
	if job.UpdatedAt, err = parseTime("updated_at", updatedAt.String); err != nil {
		return persistence.Job{}, err
	}
	return job, nil
}
