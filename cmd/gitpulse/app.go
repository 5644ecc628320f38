package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/steveyegge/gitpulse/internal/ai"
	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/pipeline"
	"github.com/steveyegge/gitpulse/internal/repl"
	"github.com/steveyegge/gitpulse/internal/storage/sqlite"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// dbPath resolves the configured database against the project directory.
func dbPath() string {
	if filepath.IsAbs(cfg.Storage.Path) {
		return cfg.Storage.Path
	}
	return filepath.Join(projectPath, cfg.Storage.Path)
}

func openStore() (*sqlite.Store, error) {
	store, err := sqlite.New(dbPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", dbPath(), err)
	}
	return store, nil
}

// initGit opens the project repository. A missing repository is not fatal
// for commands that only track conversation.
func initGit(ctx context.Context) (*git.Git, error) {
	return git.NewGit(ctx, projectPath)
}

// newPipeline builds the pipeline for the project, seeding the suggestion
// engine with the repository's current branch and tags when svc is set.
func newPipeline(ctx context.Context, svc git.GitService) (*pipeline.Pipeline, error) {
	pcfg := pipeline.Config{
		ProjectPath:          projectPath,
		ConversationTracking: cfg.Monitoring.ConversationTracking,
		Aggregation:          cfg.Aggregation,
		Suggestions:          cfg.Monitoring.Suggestions(),
		Logger:               logger,
	}
	if svc != nil {
		if branch, err := svc.GetCurrentBranch(ctx); err == nil {
			pcfg.Branch = branch
		}
		if tags, err := svc.ListTags(ctx); err == nil {
			pcfg.Tags = tags
		}
	}
	return pipeline.New(pcfg)
}

// newApplier wraps svc so applied suggestions are reported to the pipeline
// as automation tasks. The AI writer is used when enabled and keyed.
func newApplier(p *pipeline.Pipeline, svc git.GitService) (*suggestions.Applier, error) {
	tracked, err := git.NewEventTracker(&git.EventTrackerConfig{
		Git:         svc,
		Emit:        p.Emitter(),
		ProjectPath: projectPath,
		Agent:       "gitpulse",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event tracker: %w", err)
	}

	var writer suggestions.MessageWriter
	if cfg.AI.Enabled {
		w, err := ai.NewCommitWriter(ai.Config{
			APIKey: os.Getenv("ANTHROPIC_API_KEY"),
			Model:  cfg.AI.Model,
		}, logger)
		if err != nil {
			logger.Warn("AI commit messages disabled", slog.Any("error", err))
		} else {
			writer = w
		}
	}
	return suggestions.NewApplier(tracked, writer, logger), nil
}

// printHandler renders milestones and suggestions as they are published.
// Monitoring events are printed only in the detailed style.
func printHandler() eventbus.Handler {
	style := cfg.Monitoring.NotificationStyle
	return eventbus.NewHandler("cli-printer", func(_ context.Context, de events.DomainEvent) error {
		if m, err := events.MilestoneFromDomain(de); err == nil {
			repl.PrintMilestone(os.Stdout, m)
			return nil
		}
		if s, err := events.SuggestionFromDomain(de); err == nil {
			repl.PrintSuggestion(os.Stdout, s)
			return nil
		}
		if style == config.NotifyDetailed {
			if ev, err := events.MonitoringEventFromDomain(de); err == nil {
				repl.PrintEvent(os.Stdout, ev)
			}
		}
		return nil
	})
}
