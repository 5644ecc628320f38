package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/repl"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

var converseCmd = &cobra.Command{
	Use:   "converse",
	Short: "Start an interactive conversation shell",
	Long: `Start an interactive shell that tracks what you say about your work.

Each line is classified as conversation ("I finished the login feature",
"I'm stuck on the migration", "tests are failing") and run through the same
pipeline as repository changes. Suggestions are printed as they arise and can
be applied or dismissed from the shell.

Type '/help' in the shell for available commands.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if !cfg.Monitoring.ConversationTracking {
			fmt.Fprintf(os.Stderr, "Error: conversation tracking is disabled (monitoring.conversation_tracking: false)\n")
			os.Exit(1)
		}

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		var svc git.GitService
		if repo, err := initGit(ctx); err != nil {
			logger.Debug("no git repository, /apply disabled", slog.Any("error", err))
		} else {
			svc = repo
		}

		p, err := newPipeline(ctx, svc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p.Attach(store.Handler())

		var applier *suggestions.Applier
		if svc != nil {
			if applier, err = newApplier(p, svc); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		}

		r, err := repl.New(&repl.Config{
			Pipeline:    p,
			Applier:     applier,
			Style:       cfg.Monitoring.NotificationStyle,
			HistoryFile: filepath.Join(filepath.Dir(dbPath()), "history"),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create shell: %v\n", err)
			os.Exit(1)
		}
		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(converseCmd)
}
