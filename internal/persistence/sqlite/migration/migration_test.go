package migration

import (
	"context"
	"errors"
	"testing"
	"testing/fstest"
)

func TestScan(t *testing.T) {
	t.Parallel()

	t.Run("orders by numeric version and reads descriptions", func(t *testing.T) {
		t.Parallel()
		fsys := fstest.MapFS{
			"schema/10_add_index.sql":    {Data: []byte("CREATE INDEX idx_a ON a(name);")},
			"schema/2_create_a.sql":      {Data: []byte("-- Description: Create table a\nCREATE TABLE a (name TEXT);")},
			"schema/README.md":           {Data: []byte("ignored")},
			"schema/nested/003_skip.sql": {Data: []byte("SELECT 1;")},
		}
		migrations, err := Scan(fsys, "schema")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(migrations) != 2 || migrations[0].Version != "2" || migrations[1].Version != "10" {
			t.Fatalf("unexpected order %+v", migrations)
		}
		if migrations[0].Description != "Create table a" {
			t.Fatalf("expected description from content, got %q", migrations[0].Description)
		}
		if migrations[1].Description != "add index" {
			t.Fatalf("expected description from filename, got %q", migrations[1].Description)
		}
		if migrations[0].Checksum == "" {
			t.Fatal("expected a checksum")
		}
	})

	t.Run("rejects bad names, empty files and duplicates", func(t *testing.T) {
		t.Parallel()
		cases := map[string]fstest.MapFS{
			"bad name":  {"schema/create.sql": {Data: []byte("SELECT 1;")}},
			"empty":     {"schema/001_empty.sql": {Data: []byte("-- nothing here\n")}},
			"duplicate": {"schema/1_a.sql": {Data: []byte("SELECT 1;")}, "schema/001_b.sql": {Data: []byte("SELECT 2;")}},
		}
		for name, fsys := range cases {
			if _, err := Scan(fsys, "schema"); err == nil {
				t.Fatalf("%s: expected an error", name)
			}
		}
	})
}

func TestManagerRun(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	db, err := Open(ctx, InMemorySQLiteConfig())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fsys := fstest.MapFS{
		"schema/001_create.sql": {Data: []byte("CREATE TABLE crews (id TEXT PRIMARY KEY);\nCREATE TABLE notes (id TEXT PRIMARY KEY, crew_id TEXT REFERENCES crews(id));")},
	}
	migrations, err := Scan(fsys, "schema")
	if err != nil {
		t.Fatal(err)
	}
	executor := NewSQLiteExecutor(db)
	manager := NewManager(executor, migrations, nil)

	if err := manager.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := manager.Run(ctx); err != nil {
		t.Fatalf("second run must be a no-op: %v", err)
	}
	status, err := manager.Status(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if status.CurrentVersion != "001" || len(status.Pending) != 0 || len(status.Applied) != 1 {
		t.Fatalf("unexpected status %+v", status)
	}

	if _, err := db.ExecContext(ctx, "INSERT INTO notes (id, crew_id) VALUES ('n1', 'missing')"); err == nil {
		t.Fatal("expected foreign keys to be enforced")
	}

	t.Run("failed migration is rolled back", func(t *testing.T) {
		broken := fstest.MapFS{
			"schema/001_create.sql": fsys["schema/001_create.sql"],
			"schema/002_broken.sql": {Data: []byte("CREATE TABLE vans (id TEXT);\nINSERT INTO nowhere VALUES (1);")},
		}
		migrations, err := Scan(broken, "schema")
		if err != nil {
			t.Fatal(err)
		}
		err = NewManager(executor, migrations, nil).Run(ctx)
		if !errors.Is(err, ErrMigrationFailed) {
			t.Fatalf("expected ErrMigrationFailed, got %v", err)
		}
		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE name = 'vans'").Scan(&count); err != nil {
			t.Fatal(err)
		}
		if count != 0 {
			t.Fatal("expected the partial migration to be rolled back")
		}
	})

	t.Run("edited migrations are detected", func(t *testing.T) {
		edited := fstest.MapFS{
			"schema/001_create.sql": {Data: []byte("CREATE TABLE crews (id TEXT PRIMARY KEY, name TEXT);")},
		}
		migrations, err := Scan(edited, "schema")
		if err != nil {
			t.Fatal(err)
		}
		if err := NewManager(executor, migrations, nil).Run(ctx); !errors.Is(err, ErrChecksumMismatch) {
			t.Fatalf("expected ErrChecksumMismatch, got %v", err)
		}
	})
}

func TestSQLiteConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*SQLiteConfig)
		wantErr bool
	}{
		{"defaults", func(*SQLiteConfig) {}, false},
		{"empty dsn", func(c *SQLiteConfig) { c.DSN = " " }, true},
		{"bad journal", func(c *SQLiteConfig) { c.JournalMode = "FAST" }, true},
		{"lowercase journal", func(c *SQLiteConfig) { c.JournalMode = "wal" }, false},
		{"bad sync", func(c *SQLiteConfig) { c.Synchronous = "SOMETIMES" }, true},
		{"negative pool", func(c *SQLiteConfig) { c.MaxOpenConns = -1 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultSQLiteConfig("data/scheduler.db")
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}

	if got := connectionString(DefaultSQLiteConfig("data/scheduler.db")); got[:len("file:data/scheduler.db?")] != "file:data/scheduler.db?" {
		t.Fatalf("unexpected connection string %q", got)
	}
}
