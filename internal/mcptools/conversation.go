package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/steveyegge/gitpulse/internal/pipeline"
)

// TrackConversationTool handles the track_conversation MCP tool.
type TrackConversationTool struct {
	pipeline *pipeline.Pipeline
}

// NewTrackConversationTool creates a TrackConversationTool.
func NewTrackConversationTool(p *pipeline.Pipeline) *TrackConversationTool {
	return &TrackConversationTool{pipeline: p}
}

// Definition returns the MCP tool definition for track_conversation.
func (t *TrackConversationTool) Definition() mcp.Tool {
	return mcp.NewTool("track_conversation",
		mcp.WithDescription(
			"Report conversation text to gitpulse. Each line is classified on its own, e.g. "+
				"\"I finished the export feature\", \"tests are failing\", \"I'm stuck\". "+
				"Returns the events recognised and any suggestions they triggered.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Conversation text, one statement per line"),
		),
		mcp.WithString("project",
			mcp.Description("Project path; must match the watched project when given"),
		),
	)
}

// Handle processes the track_conversation tool call.
func (t *TrackConversationTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := req.GetString("text", "")
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	if project := req.GetString("project", ""); project != "" && project != t.pipeline.Project() {
		return mcp.NewToolResultError(fmt.Sprintf("this server watches %s, not %s", t.pipeline.Project(), project)), nil
	}

	res := t.pipeline.Conversation(ctx, text)
	if res.Empty() {
		return mcp.NewToolResultText("No events recognised."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Recognised %d events:\n", len(res.Events))
	for _, ev := range res.Events {
		fmt.Fprintf(&b, "- %s\n", ev.Type)
	}
	for _, m := range res.Milestones {
		fmt.Fprintf(&b, "\nMilestone: %s (%s)\n", m.Title, m.Description)
	}
	if len(res.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		writeSuggestions(&b, res.Suggestions)
	}
	return mcp.NewToolResultText(b.String()), nil
}
