package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/cleaning-scheduler/internal/persistence/sqlite/migration"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	*EmployeeRepository
	*JobRepository

	pool   *ConnectionPool
	logger *slog.Logger
}

// Open opens the database at dsn (a file path or ":memory:") with the default settings.
func Open(ctx context.Context, dsn string) (*Storage, error) {
	return OpenWithConfig(ctx, migration.DefaultSQLiteConfig(dsn), nil)
}

// OpenWithConfig opens the database described by config.
func OpenWithConfig(ctx context.Context, config migration.SQLiteConfig, logger *slog.Logger) (*Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return &Storage{
		EmployeeRepository: NewEmployeeRepository(pool),
		JobRepository:      NewJobRepository(pool),
		pool:               pool,
		logger:             logger,
	}, nil
}

// Migrate applies the embedded schema migrations that have not run yet.
func (s *Storage) Migrate(ctx context.Context) error {
	migrations, err := migration.Scan(schemaFS, "schema")
	if err != nil {
		return fmt.Errorf("sqlite: load migrations: %w", err)
	}
	manager := migration.NewManager(migration.NewSQLiteExecutor(s.pool.DB()), migrations, s.logger)
	if err := manager.Run(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Ping checks that the database answers.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	return s.pool.Close()
}
