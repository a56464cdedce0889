package testfixtures

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/example/club-crm/internal/persistence"
	"github.com/example/club-crm/internal/persistence/sqlite"
	"github.com/example/club-crm/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Users      persistence.UserRepository
	Sessions   persistence.SessionRepository
	Members    persistence.MemberRepository
	Meetings   persistence.MeetingRepository
	Attendance persistence.AttendanceRepository

	storage *sqlite.Storage
	cleanup func()
}

// Storage exposes the underlying storage, e.g. for Ping.
func (h *SQLiteHarness) Storage() *sqlite.Storage {
	return h.storage
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "crm.db")
	storage, err := sqlite.Open(migration.TempFileTestSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := storage.Migrate(context.Background(), quiet); err != nil {
		_ = storage.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Users:      storage.Users,
		Sessions:   storage.Sessions,
		Members:    storage.Members,
		Meetings:   storage.Meetings,
		Attendance: storage.Attendance,
		storage:    storage,
		cleanup: func() {
			_ = storage.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}
