package sqlite

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// retentionTables are trimmed by DeleteBefore.
var retentionTables = []string{"monitoring_events", "milestones", "suggestions", "deliveries"}

// DeleteBefore removes every record older than cutoff and returns how many
// rows were deleted. All tables are trimmed in one transaction.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin cleanup: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	total := 0
	for _, table := range retentionTables {
		result, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE timestamp < ?", table), toNanos(cutoff))
		if err != nil {
			return 0, fmt.Errorf("failed to trim %s: %w", table, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to get rows affected: %w", err)
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cleanup: %w", err)
	}
	if total > 0 {
		s.logger.Info("retention cleanup", slog.Int("deleted", total), slog.Time("cutoff", cutoff))
	}
	return total, nil
}

// RunCleanup calls DeleteBefore every interval until ctx is cancelled.
func (s *Store) RunCleanup(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.DeleteBefore(ctx, time.Now().Add(-retention)); err != nil && ctx.Err() == nil {
			s.logger.Warn("retention cleanup failed", slog.Any("error", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
