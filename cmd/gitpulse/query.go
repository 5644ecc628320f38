package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/repl"
	"github.com/steveyegge/gitpulse/internal/storage/sqlite"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recorded monitoring events",
	Long: `Show the most recent monitoring events recorded for this project.

Examples:
  gitpulse events                          # Last 20 events
  gitpulse events --type commit_created    # Only commits
  gitpulse events --since 2h -n 100        # Everything from the last two hours`,
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, func(ctx context.Context, store *sqlite.Store, filter events.EventFilter) (int, interface{}, func(), error) {
			evs, err := store.GetEvents(ctx, filter)
			return len(evs), evs, func() {
				for _, ev := range evs {
					repl.PrintEvent(os.Stdout, ev)
				}
			}, err
		})
	},
}

var milestonesCmd = &cobra.Command{
	Use:   "milestones",
	Short: "Show recorded milestones",
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, func(ctx context.Context, store *sqlite.Store, filter events.EventFilter) (int, interface{}, func(), error) {
			ms, err := store.GetMilestones(ctx, filter)
			return len(ms), ms, func() {
				for _, m := range ms {
					repl.PrintMilestone(os.Stdout, m)
				}
			}, err
		})
	},
}

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "Show recorded suggestions",
	Long: `Show the most recent suggestions recorded for this project.

Examples:
  gitpulse suggestions                 # Last 20 suggestions
  gitpulse suggestions --type release  # Only release suggestions
  gitpulse suggestions --json          # Machine-readable output`,
	Run: func(cmd *cobra.Command, args []string) {
		runQuery(cmd, func(ctx context.Context, store *sqlite.Store, filter events.EventFilter) (int, interface{}, func(), error) {
			ss, err := store.GetSuggestions(ctx, filter)
			return len(ss), ss, func() {
				for _, s := range ss {
					fmt.Printf("%s ", color.New(color.FgHiBlack).Sprint(s.Timestamp.Format("01-02 15:04")))
					repl.PrintSuggestion(os.Stdout, s)
				}
			}, err
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{eventsCmd, milestonesCmd, suggestionsCmd} {
		c.Flags().StringP("type", "t", "", "Filter by type")
		c.Flags().Duration("since", 0, "Only show records newer than this (e.g. 30m, 24h)")
		c.Flags().IntP("limit", "n", 20, "Number of records to show")
		c.Flags().Bool("json", false, "Output JSON")
		rootCmd.AddCommand(c)
	}
}

type queryFunc func(ctx context.Context, store *sqlite.Store, filter events.EventFilter) (count int, records interface{}, show func(), err error)

// runQuery opens the store, builds the filter from flags and prints the result.
func runQuery(cmd *cobra.Command, query queryFunc) {
	typ, _ := cmd.Flags().GetString("type")
	since, _ := cmd.Flags().GetDuration("since")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
	store, err := openStore()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	filter := events.EventFilter{Type: typ, Project: projectPath, Limit: limit}
	if since > 0 {
		filter.Since = time.Now().Add(-since)
	}

	count, records, show, err := query(ctx, store, filter)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to query %s: %v\n", cmd.Name(), err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if count == 0 {
		yellow := color.New(color.FgYellow).SprintFunc()
		fmt.Printf("\n%s No %s found\n\n", yellow("✨"), cmd.Name())
		return
	}
	show()
}
