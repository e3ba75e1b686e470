// Package migration applies versioned schema changes to a SQLite database.
//
// Migrations are read from an fs.FS, normally an embedded directory, and must
// be named {version}_{description}.sql (e.g. "001_initial_schema.sql"). Each
// file runs in its own transaction and is recorded in the schema_migrations
// table so it is applied exactly once.
//
// Example usage:
//
//	migrations, err := migration.Scan(schemaFS, "schema")
//	if err != nil {
//		return err
//	}
//	manager := migration.NewManager(migration.NewSQLiteExecutor(db), migrations, logger)
//	if err := manager.Run(ctx); err != nil {
//		return err
//	}
package migration
