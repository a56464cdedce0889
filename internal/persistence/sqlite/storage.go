package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/club-crm/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Storage bundles the SQLite repositories over one connection pool.
type Storage struct {
	pool *ConnectionPool

	Users      *UserRepository
	Sessions   *SessionRepository
	Members    *MemberRepository
	Meetings   *MeetingRepository
	Attendance *AttendanceRepository
}

// Open connects to the database described by config and builds the
// repositories. Call Migrate before first use.
func Open(config migration.SQLiteConfig) (*Storage, error) {
	pool, err := NewConnectionPool(config)
	if err != nil {
		return nil, err
	}

	return &Storage{
		pool:       pool,
		Users:      NewUserRepository(pool),
		Sessions:   NewSessionRepository(pool),
		Members:    NewMemberRepository(pool),
		Meetings:   NewMeetingRepository(pool),
		Attendance: NewAttendanceRepository(pool),
	}, nil
}

// Migrate applies the embedded schema migrations.
func (s *Storage) Migrate(ctx context.Context, logger *slog.Logger) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("sqlite: storage is not open")
	}

	manager := migration.NewMigrationManager(
		migration.NewFileScanner(migrationFiles, "migrations"),
		migration.NewSQLiteExecutor(s.pool.DB()),
		logger,
	)
	return manager.RunMigrations(ctx)
}

// Ping checks database connectivity.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	return s.pool.Close()
}
