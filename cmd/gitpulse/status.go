package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show repository, storage and webhook status",
	Long:  `Display the repository state, recorded row counts, thresholds and webhook endpoints.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== gitpulse Status ==="))
		fmt.Printf("%s %s\n", yellow("Project:"), projectPath)
		fmt.Printf("%s %s\n\n", yellow("Config:"), cfgPath)

		fmt.Printf("%s\n", yellow("Repository:"))
		if repo, err := initGit(ctx); err != nil {
			fmt.Printf("  %s\n", gray("not a git repository"))
		} else {
			branch, _ := repo.GetCurrentBranch(ctx)
			changes, _ := repo.GetUncommittedChanges(ctx)
			fmt.Printf("  branch %s, %d uncommitted change(s)\n", green(branch), changes.Count())
			if changes != nil && changes.Upstream != "" {
				fmt.Printf("  tracking %s (ahead %d, behind %d)\n", changes.Upstream, changes.Ahead, changes.Behind)
			}
		}

		fmt.Printf("\n%s\n", yellow("Storage:"))
		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		st, err := store.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("  %s\n", dbPath())
		fmt.Printf("  %d events, %d milestones, %d suggestions, %d deliveries\n",
			st.Events, st.Milestones, st.Suggestions, st.Deliveries)
		fmt.Printf("  %s\n", gray(cfg.Storage.String()))

		m := cfg.Monitoring
		fmt.Printf("\n%s\n", yellow("Monitoring:"))
		fmt.Printf("  enabled=%t conversation=%t auto_suggestions=%t style=%s\n",
			m.Enabled, m.ConversationTracking, m.AutoSuggestions, m.NotificationStyle)
		fmt.Printf("  commit after %d files, release after %d features or %d fixes, help after %d errors\n",
			m.CommitThreshold, m.ReleaseThreshold.Features, m.ReleaseThreshold.Bugfixes, m.HelpErrorThreshold)
		fmt.Printf("  aggregation window %v\n", cfg.Aggregation.Window)

		fmt.Printf("\n%s\n", yellow("Webhooks:"))
		if len(cfg.Webhooks.Endpoints) == 0 {
			fmt.Printf("  %s\n", gray("none configured"))
		}
		for _, ep := range cfg.Webhooks.Endpoints {
			filter := "all events"
			if len(ep.Events) > 0 {
				filter = strings.Join(ep.Events, ", ")
			}
			if ep.Name == "" {
				fmt.Printf("  %s %s\n", green(ep.URL), gray("("+filter+")"))
				continue
			}
			fmt.Printf("  %s %s %s\n", green(ep.Name), ep.URL, gray("("+filter+")"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
