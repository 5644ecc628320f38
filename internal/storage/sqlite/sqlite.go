// Package sqlite persists monitoring events, milestones, suggestions and
// webhook deliveries so they can be queried after the fact.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/gitpulse/internal/storage/migrations"
)

// Store is the SQLite-backed record of everything the pipeline produced.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens (creating if needed) the database at path and applies the schema.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		// WAL lets the API read while the watcher writes
		dsn = "file:" + path + "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// every connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	applied, err := migrations.NewManager(schemaMigrations...).Apply(context.Background(), db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if applied > 0 {
		logger.Debug("applied schema migrations", slog.Int("count", applied), slog.String("path", path))
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats holds row counts per table.
type Stats struct {
	Events      int `json:"events"`
	Milestones  int `json:"milestones"`
	Suggestions int `json:"suggestions"`
	Deliveries  int `json:"deliveries"`
}

// Stats counts stored rows.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM monitoring_events),
			(SELECT COUNT(*) FROM milestones),
			(SELECT COUNT(*) FROM suggestions),
			(SELECT COUNT(*) FROM deliveries)
	`).Scan(&st.Events, &st.Milestones, &st.Suggestions, &st.Deliveries)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count rows: %w", err)
	}
	return st, nil
}

func toNanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
