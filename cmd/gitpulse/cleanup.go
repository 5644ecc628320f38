package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete recorded data past the retention period",
	Long: `Delete events, milestones, suggestions and webhook deliveries older than
the retention period (storage.retention_days, default 30).

Examples:
  gitpulse cleanup                     # Apply the configured retention
  gitpulse cleanup --retention-days 7  # Keep only the last week`,
	Run: func(cmd *cobra.Command, args []string) {
		days, _ := cmd.Flags().GetInt("retention-days")
		if days <= 0 {
			days = cfg.Storage.RetentionDays
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		before, err := store.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read counts: %v\n", err)
			os.Exit(1)
		}

		cutoff := time.Now().Add(-time.Duration(days) * 24 * time.Hour)
		deleted, err := store.DeleteBefore(ctx, cutoff)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cleanup failed: %v\n", err)
			os.Exit(1)
		}

		after, err := store.Stats(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to read counts: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Deleted %d record(s) older than %d days\n\n", green("✓"), deleted, days)
		fmt.Printf("  %-12s %6s %6s\n", "", "before", "after")
		fmt.Printf("  %-12s %6d %6d\n", "events", before.Events, after.Events)
		fmt.Printf("  %-12s %6d %6d\n", "milestones", before.Milestones, after.Milestones)
		fmt.Printf("  %-12s %6d %6d\n", "suggestions", before.Suggestions, after.Suggestions)
		fmt.Printf("  %-12s %6d %6d\n", "deliveries", before.Deliveries, after.Deliveries)
	},
}

func init() {
	cleanupCmd.Flags().Int("retention-days", 0, "Override storage.retention_days")
	rootCmd.AddCommand(cleanupCmd)
}
