package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/steveyegge/gitpulse/internal/api"
	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/guard"
	"github.com/steveyegge/gitpulse/internal/pipeline"
	"github.com/steveyegge/gitpulse/internal/webhook"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository and print suggestions as they arise",
	Long: `Poll the repository for changes and run every observation through the
pipeline: classification, milestone aggregation and suggestions.

Everything produced is recorded in the local database and forwarded to the
configured webhooks. With --serve the HTTP API (queries, conversation intake
and a live websocket stream) is started alongside.

Examples:
  gitpulse watch                 # Watch the current directory
  gitpulse watch --serve         # Also serve the API on server.addr
  gitpulse watch -C ../app       # Watch another project`,
	Run: func(cmd *cobra.Command, args []string) {
		serve, _ := cmd.Flags().GetBool("serve")

		if !cfg.Monitoring.Enabled {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s Monitoring is disabled (monitoring.enabled: false)\n", yellow("!"))
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runWatch(ctx, serve); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	watchCmd.Flags().Bool("serve", false, "Serve the HTTP API while watching")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, serve bool) error {
	repo, err := initGit(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize git: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	p, err := newPipeline(ctx, repo)
	if err != nil {
		return err
	}
	p.Attach(store.Handler())
	if cfg.Monitoring.NotificationStyle != config.NotifySilent {
		p.Attach(printHandler())
	}

	watcher, err := git.NewWatcher(git.WatcherConfig{
		Git:      repo,
		Interval: cfg.Monitoring.PollInterval,
		OnChange: p.Observe,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	if len(cfg.Webhooks.Endpoints) > 0 {
		dispatcher, err := webhook.New(cfg.Webhooks, webhook.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("failed to create webhook dispatcher: %w", err)
		}
		p.Attach(dispatcher.Handler())
		g.Go(func() error {
			dispatcher.Run(gctx, func(res webhook.DeliveryResult) {
				if err := store.SaveDelivery(context.WithoutCancel(gctx), res); err != nil {
					logger.Warn("failed to record delivery", slog.Any("error", err))
				}
			})
			return nil
		})
	}

	if cfg.Storage.CleanupEnabled {
		g.Go(func() error {
			store.RunCleanup(gctx, cfg.Storage.Retention(), cfg.Storage.CleanupInterval)
			return nil
		})
	}

	if serve {
		srv, err := newHTTPServer(p, store)
		if err != nil {
			return err
		}
		g.Go(func() error {
			logger.Info("serving API", slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("API server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Printf("%s %s (every %v, Ctrl+C to stop)\n\n", cyan("Watching"), projectPath, cfg.Monitoring.PollInterval)

	g.Go(func() error {
		if err := watcher.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	err = g.Wait()
	fmt.Println("\nStopped.")
	return err
}

func newHTTPServer(p *pipeline.Pipeline, store api.Store) (*http.Server, error) {
	g, err := guard.New(guard.Config{
		RateLimit: cfg.RateLimit,
		Auth:      cfg.Auth,
		CORS:      cfg.CORS,
	}, logger)
	if err != nil {
		return nil, err
	}

	srv := &api.Server{
		Pipeline:  p,
		Store:     store,
		Guard:     g,
		Logger:    logger,
		StartedAt: time.Now(),
	}
	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}
