package mcptools

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// ListSuggestionsTool handles the list_suggestions MCP tool.
type ListSuggestionsTool struct {
	engine *suggestions.Engine
}

// NewListSuggestionsTool creates a ListSuggestionsTool.
func NewListSuggestionsTool(engine *suggestions.Engine) *ListSuggestionsTool {
	return &ListSuggestionsTool{engine: engine}
}

// Definition returns the MCP tool definition for list_suggestions.
func (t *ListSuggestionsTool) Definition() mcp.Tool {
	return mcp.NewTool("list_suggestions",
		mcp.WithDescription("List recent gitpulse suggestions, newest first."),
		mcp.WithString("type",
			mcp.Description("Filter by type: commit, branch, release, pr, fix, help"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 50)"),
		),
	)
}

// Handle processes the list_suggestions tool call.
func (t *ListSuggestionsTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := events.SuggestionType(req.GetString("type", ""))
	if typ != "" && !slices.Contains(events.AllSuggestionTypes(), typ) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown suggestion type %q", typ)), nil
	}
	limit := min(max(intArg(req, "limit", 10), 1), 50)

	recent := t.engine.Recent(typ, limit)
	if len(recent) == 0 {
		return mcp.NewToolResultText("No suggestions yet."), nil
	}
	slices.Reverse(recent)

	var b strings.Builder
	fmt.Fprintf(&b, "%d suggestions:\n", len(recent))
	writeSuggestions(&b, recent)
	return mcp.NewToolResultText(b.String()), nil
}

// DismissSuggestionTool handles the dismiss_suggestion MCP tool.
type DismissSuggestionTool struct {
	engine *suggestions.Engine
}

// NewDismissSuggestionTool creates a DismissSuggestionTool.
func NewDismissSuggestionTool(engine *suggestions.Engine) *DismissSuggestionTool {
	return &DismissSuggestionTool{engine: engine}
}

// Definition returns the MCP tool definition for dismiss_suggestion.
func (t *DismissSuggestionTool) Definition() mcp.Tool {
	return mcp.NewTool("dismiss_suggestion",
		mcp.WithDescription("Tell gitpulse the developer does not want a kind of suggestion right now. "+
			"In learning mode this raises the threshold for that kind."),
		mcp.WithString("type",
			mcp.Required(),
			mcp.Description("Suggestion type: commit, branch, release, pr, fix, help"),
		),
	)
}

// Handle processes the dismiss_suggestion tool call.
func (t *DismissSuggestionTool) Handle(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	typ := events.SuggestionType(req.GetString("type", ""))
	if !slices.Contains(events.AllSuggestionTypes(), typ) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown suggestion type %q", typ)), nil
	}
	th := t.engine.Dismiss(typ)
	return mcp.NewToolResultText(fmt.Sprintf(
		"Dismissed %s. Thresholds: commit %d, release %d features / %d fixes, help %d.",
		typ, th.Commit, th.ReleaseFeatures, th.ReleaseBugfixes, th.Help)), nil
}

func writeSuggestions(b *strings.Builder, list []*events.MonitoringSuggestion) {
	for _, s := range list {
		fmt.Fprintf(b, "- [%s] %s: %s\n", s.Priority, s.Type, s.Message)
		if s.Action != "" {
			fmt.Fprintf(b, "    action: %s\n", s.Action)
		}
		fmt.Fprintf(b, "    reason: %s\n", s.Reason)
	}
}
