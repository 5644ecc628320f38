package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/webhook"
)

// pingEventType is sent by "webhooks test" and never produced by the pipeline.
const pingEventType = "gitpulse.ping"

var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Webhook delivery commands",
	Long:  `Commands for testing webhook endpoints and inspecting past deliveries.`,
}

var webhooksTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test delivery to every configured endpoint",
	Long: `Send a gitpulse.ping event to each configured endpoint, ignoring event
filters, with the endpoint's auth, signing and retry policy.

Examples:
  gitpulse webhooks test               # Ping every endpoint
  gitpulse webhooks test --endpoint ci # Ping one endpoint by name`,
	Run: func(cmd *cobra.Command, args []string) {
		only, _ := cmd.Flags().GetString("endpoint")

		if len(cfg.Webhooks.Endpoints) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s No webhook endpoints configured\n", yellow("!"))
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		d, err := webhook.New(cfg.Webhooks, webhook.WithLogger(logger))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create dispatcher: %v\n", err)
			os.Exit(1)
		}

		ping, err := events.NewDomainEvent(projectPath, pingEventType, 1, map[string]interface{}{
			"message": "gitpulse webhook test",
		}, events.WithMetadata(events.Metadata{TriggeredBy: "cli"}))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		body, err := json.Marshal(ping)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		failed := 0
		sent := 0
		for _, ep := range d.Endpoints() {
			if only != "" && ep.DisplayName() != only {
				continue
			}
			sent++
			res := d.Deliver(ctx, ep, pingEventType, body)
			if err := store.SaveDelivery(ctx, res); err != nil {
				logger.Warn("failed to record delivery", slog.Any("error", err))
			}
			printDelivery(res)
			if !res.Success {
				failed++
			}
		}

		if sent == 0 {
			fmt.Fprintf(os.Stderr, "Error: no endpoint named %q\n", only)
			os.Exit(1)
		}
		if failed > 0 {
			os.Exit(1)
		}
	},
}

var webhooksDeliveriesCmd = &cobra.Command{
	Use:   "deliveries",
	Short: "Show recent webhook deliveries",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		ctx := context.Background()

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		deliveries, err := store.GetDeliveries(ctx, limit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load deliveries: %v\n", err)
			os.Exit(1)
		}
		if len(deliveries) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No deliveries recorded\n\n", yellow("✨"))
			return
		}
		for _, res := range deliveries {
			printDelivery(res)
		}
	},
}

func init() {
	webhooksTestCmd.Flags().String("endpoint", "", "Only test the endpoint with this name")
	webhooksDeliveriesCmd.Flags().IntP("limit", "n", 20, "Number of deliveries to show")
	webhooksCmd.AddCommand(webhooksTestCmd)
	webhooksCmd.AddCommand(webhooksDeliveriesCmd)
	rootCmd.AddCommand(webhooksCmd)
}

func printDelivery(res webhook.DeliveryResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack)

	mark := green("✓")
	if !res.Success {
		mark = red("✗")
	}
	fmt.Printf("%s [%s] %s %s %s\n",
		mark,
		res.Timestamp.Format("01-02 15:04:05"),
		res.Endpoint,
		res.EventType,
		gray.Sprintf("(%s, %d attempt(s), status %d)", res.State, res.Attempts, res.StatusCode),
	)
	if res.Error != "" {
		fmt.Printf("  %s\n", gray.Sprint(res.Error))
	}
}
