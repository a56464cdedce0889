// Package migration applies numbered SQL migrations to a SQLite database.
//
// Migration files follow the naming convention {version}_{description}.sql
// (for example "001_initial_schema.sql") and are read from any fs.FS, which
// lets the schema ship embedded in the binary. Applied versions are tracked
// in the schema_migrations table and every migration runs in its own
// transaction.
//
// Example usage:
//
//	scanner := NewFileScanner(migrationsFS, "migrations")
//	manager := NewMigrationManager(scanner, NewSQLiteExecutor(db), logger)
//	if err := manager.RunMigrations(ctx); err != nil {
//		return err
//	}
package migration
