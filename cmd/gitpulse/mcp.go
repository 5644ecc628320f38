package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the conversation tools over MCP (stdio)",
	Long: `Run an MCP server on stdin/stdout so an assistant can report the
conversation directly: track_conversation, list_suggestions and
dismiss_suggestion. Logs go to stderr.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store, err := openStore()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()

		var svc git.GitService
		if repo, err := initGit(ctx); err == nil {
			svc = repo
		}
		p, err := newPipeline(ctx, svc)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		p.Attach(store.Handler())

		if err := server.ServeStdio(mcptools.NewServer(p)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: MCP server failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
