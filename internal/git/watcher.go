package git

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SnapshotFunc receives consecutive observations. prev is nil on the first cycle.
type SnapshotFunc func(ctx context.Context, prev, curr *Snapshot)

// Watcher polls a GitService and reports each successful observation.
// A cycle where any GitService call fails is skipped and logged; the previous
// snapshot is kept so the next successful cycle diffs against it.
type Watcher struct {
	git      GitService
	interval time.Duration
	onChange SnapshotFunc
	logger   *slog.Logger
	now      func() time.Time

	prev *Snapshot
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Git      GitService
	Interval time.Duration
	OnChange SnapshotFunc
	Logger   *slog.Logger
	// Now overrides the clock, for tests
	Now func() time.Time
}

// NewWatcher creates a Watcher. Interval defaults to 5s.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	if cfg.Git == nil {
		return nil, fmt.Errorf("git service required")
	}
	if cfg.OnChange == nil {
		return nil, fmt.Errorf("snapshot callback required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		git:      cfg.Git,
		interval: cfg.Interval,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}, nil
}

// Run polls until ctx is cancelled. The first poll happens immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Poll performs a single observation cycle and reports whether it succeeded.
func (w *Watcher) Poll(ctx context.Context) bool {
	curr, err := w.observe(ctx)
	if err != nil {
		w.logger.Warn("git observation unavailable, skipping cycle", slog.String("error", err.Error()))
		return false
	}

	prev := w.prev
	w.prev = curr
	w.onChange(ctx, prev, curr)
	return true
}

func (w *Watcher) observe(ctx context.Context) (*Snapshot, error) {
	branch, err := w.git.GetCurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("current branch: %w", err)
	}
	branches, err := w.git.ListBranches(ctx)
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	tags, err := w.git.ListTags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	last, err := w.git.GetLastCommit(ctx)
	if err != nil {
		return nil, fmt.Errorf("last commit: %w", err)
	}
	changes, err := w.git.GetUncommittedChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("uncommitted changes: %w", err)
	}

	return &Snapshot{
		Branch:     branch,
		Branches:   branches,
		Tags:       tags,
		LastCommit: last,
		Changes:    changes,
		TakenAt:    w.now(),
	}, nil
}
