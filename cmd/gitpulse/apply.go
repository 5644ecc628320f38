package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

var applyCmd = &cobra.Command{
	Use:   "apply [suggestion-id]",
	Short: "Apply a recorded commit, branch or pr suggestion",
	Long: `Apply a suggestion against the repository.

Commit suggestions stage everything and commit with a generated message (an
AI-written conventional commit when ai.enabled is set and ANTHROPIC_API_KEY is
available). Branch suggestions create and check out the suggested branch. PR
suggestions push the current branch.

Without an id the most recent suggestion of --type is applied.

Examples:
  gitpulse apply                       # Apply the latest commit suggestion
  gitpulse apply --type branch         # Apply the latest branch suggestion
  gitpulse apply 5d1c8e0a-...          # Apply a specific suggestion`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		typ, _ := cmd.Flags().GetString("type")
		ctx := context.Background()

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		filter := events.EventFilter{Project: projectPath, Limit: 500}
		if len(args) == 0 {
			filter.Type = typ
		}
		recorded, err := store.GetSuggestions(ctx, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load suggestions: %v\n", err)
			os.Exit(1)
		}

		target := pickSuggestion(recorded, args)
		if target == nil {
			fmt.Fprintf(os.Stderr, "Error: no matching suggestion found\n")
			os.Exit(1)
		}

		repo, err := initGit(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to initialize git: %v\n", err)
			os.Exit(1)
		}
		p, err := newPipeline(ctx, repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p.Attach(store.Handler())

		applier, err := newApplier(p, repo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		res, err := applier.Apply(ctx, target)
		switch {
		case errors.Is(err, suggestions.ErrNothingToCommit):
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s Nothing to commit, working tree clean\n", yellow("✨"))
			return
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		switch target.Type {
		case events.SuggestionCommit:
			fmt.Printf("%s Committed %s on %s\n\n%s\n", green("✓"), res.Commit, res.Branch, res.Message)
		case events.SuggestionBranch:
			fmt.Printf("%s Created branch %s\n", green("✓"), res.Branch)
		default:
			fmt.Printf("%s Pushed %s\n", green("✓"), res.Branch)
		}
	},
}

func init() {
	applyCmd.Flags().StringP("type", "t", string(events.SuggestionCommit), "Suggestion type to apply when no id is given")
	rootCmd.AddCommand(applyCmd)
}

// pickSuggestion returns the suggestion named by args[0], or the most recent
// one. recorded is oldest first.
func pickSuggestion(recorded []*events.MonitoringSuggestion, args []string) *events.MonitoringSuggestion {
	if len(args) == 0 {
		if len(recorded) == 0 {
			return nil
		}
		return recorded[len(recorded)-1]
	}
	for _, s := range recorded {
		if s.ID == args[0] {
			return s
		}
	}
	return nil
}
