package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/config"
)

var (
	cfgPath     string
	projectPath string
	verbose     bool

	cfg    *config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gitpulse",
	Short: "Watch a repository and the conversation around it, and suggest what to do next",
	Long: `gitpulse observes a git repository and the developer conversation about it.

Observations are classified into monitoring events, correlated into
milestones (feature sets shipped, releases ready, refactors done) and turned
into suggestions: commit now, branch off, cut a release, ask for help.
Everything is recorded in a local database and can be forwarded to webhooks.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		if projectPath == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: failed to get current directory: %v\n", err)
				os.Exit(1)
			}
			projectPath = cwd
		}
		abs, err := filepath.Abs(projectPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid project path: %v\n", err)
			os.Exit(1)
		}
		projectPath = abs

		if cfgPath == "" {
			cfgPath = filepath.Join(projectPath, config.DefaultPath)
		}
		cfg, err = config.Load(cfgPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default: <project>/.gitpulse.yaml)")
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "C", "", "Project directory (default: current directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
