// Package mcptools exposes the pipeline to AI assistants over MCP.
//
// Each tool is a struct holding its dependencies, with Definition returning
// the mcp.Tool schema and Handle processing a call. Tool failures are
// returned as error results, never as Go errors, so the assistant sees them.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/steveyegge/gitpulse/internal/pipeline"
)

// Version is set at build time via ldflags.
var Version = "dev"

// NewServer creates an MCP server with every gitpulse tool registered.
func NewServer(p *pipeline.Pipeline) *server.MCPServer {
	s := server.NewMCPServer(
		"gitpulse",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	track := NewTrackConversationTool(p)
	s.AddTool(track.Definition(), track.Handle)

	list := NewListSuggestionsTool(p.Engine())
	s.AddTool(list.Definition(), list.Handle)

	dismiss := NewDismissSuggestionTool(p.Engine())
	s.AddTool(dismiss.Definition(), dismiss.Handle)

	return s
}

const instructions = `gitpulse watches this repository and the development conversation.
Call track_conversation with what you and the developer just said or did (one
statement per line). Call list_suggestions to see what gitpulse recommends
next: commits, branches, releases, pull requests, fixes, or asking for help.`

// intArg extracts an integer argument, returning defaultVal if the key is
// missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}
