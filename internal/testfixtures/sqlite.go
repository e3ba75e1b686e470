package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/cleaning-scheduler/internal/persistence"
	"github.com/example/cleaning-scheduler/internal/persistence/sqlite"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style persistence tests.
type SQLiteHarness struct {
	Employees persistence.EmployeeRepository
	Jobs      persistence.JobRepository
	Storage   *sqlite.Storage

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness opens and migrates a database in a temporary directory.
// The harness is closed automatically when the test finishes.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "scheduler.db")
	ctx := context.Background()

	storage, err := sqlite.Open(ctx, path)
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := storage.Migrate(ctx); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Employees: storage,
		Jobs:      storage,
		Storage:   storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// SeedEmployees stores the given fixtures, failing the test on error.
func (h *SQLiteHarness) SeedEmployees(tb testing.TB, fixtures ...EmployeeFixture) {
	tb.Helper()
	for _, f := range fixtures {
		if err := h.Employees.CreateEmployee(context.Background(), f.Persistence()); err != nil {
			tb.Fatalf("seed employee %s: %v", f.ID, err)
		}
	}
}

// SeedJobs stores the given fixtures, failing the test on error.
func (h *SQLiteHarness) SeedJobs(tb testing.TB, fixtures ...JobFixture) {
	tb.Helper()
	for _, f := range fixtures {
		if err := h.Jobs.CreateJob(context.Background(), f.Persistence()); err != nil {
			tb.Fatalf("seed job %s: %v", f.ID, err)
		}
	}
}
