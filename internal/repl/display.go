package repl

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/pipeline"
)

// PrintResult writes everything one pipeline step produced. Silent prints
// nothing, minimal prints suggestions and milestones, detailed adds events.
func PrintResult(w io.Writer, res *pipeline.Result, style config.NotificationStyle) {
	if res == nil || style == config.NotifySilent {
		return
	}
	if style == config.NotifyDetailed {
		for _, ev := range res.Events {
			PrintEvent(w, ev)
		}
	}
	for _, m := range res.Milestones {
		PrintMilestone(w, m)
	}
	for _, s := range res.Suggestions {
		PrintSuggestion(w, s)
	}
}

// PrintEvent formats a monitoring event on two lines: the event itself, then
// its data fields.
func PrintEvent(w io.Writer, ev *events.MonitoringEvent) {
	timestamp := ev.Timestamp.Format("15:04:05")
	typeColor := color.New(color.FgMagenta)

	fmt.Fprintf(w, "%s [%s] %s %s\n",
		eventEmoji(ev.Type),
		timestamp,
		typeColor.Sprint(ev.Type),
		color.New(color.FgHiBlack).Sprint(ev.Type.Category()),
	)

	if meta := eventMetadata(ev); meta != "" {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgHiBlack).Sprint(meta))
	} else {
		fmt.Fprintln(w)
	}
}

// PrintMilestone formats a milestone.
func PrintMilestone(w io.Writer, m *events.AggregatedMilestone) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintf(w, "🏁 [%s] %s %s\n",
		m.Timestamp.Format("15:04:05"),
		cyan.Sprint(m.Title),
		color.New(color.FgHiBlack).Sprintf("(%d events)", len(m.Events)),
	)
	if m.Description != "" {
		fmt.Fprintf(w, "  %s\n", truncateString(m.Description, 76))
	}
}

// PrintSuggestion formats a suggestion with its priority color.
func PrintSuggestion(w io.Writer, s *events.MonitoringSuggestion) {
	pc := priorityColor(s.Priority)
	fmt.Fprintf(w, "%s [%s] %s %s\n",
		suggestionEmoji(s.Type),
		pc.Sprint(strings.ToUpper(string(s.Priority))),
		color.New(color.FgMagenta).Sprint(s.Type),
		s.Message,
	)

	var parts []string
	if s.Reason != "" {
		parts = append(parts, s.Reason)
	}
	if s.Action != "" {
		parts = append(parts, "run: "+s.Action)
	}
	if len(parts) > 0 {
		fmt.Fprintf(w, "  %s\n", color.New(color.FgHiBlack).Sprint(truncateString(strings.Join(parts, " | "), 76)))
	}
}

// eventEmoji returns the emoji for an event, by type first and then by category.
func eventEmoji(t events.EventType) string {
	switch t {
	case events.EventTypeCommitCreated:
		return "📝"
	case events.EventTypeMergeCompleted:
		return "🔀"
	case events.EventTypePushCompleted:
		return "🚀"
	case events.EventTypeTagCreated:
		return "🏷️"
	case events.EventTypeBugFound, events.EventTypeTestsFailing, events.EventTypeLLMError:
		return "🐛"
	case events.EventTypeBugFixed, events.EventTypeTestsPassing:
		return "✅"
	case events.EventTypeFeatureComplete:
		return "✨"
	case events.EventTypeHelpNeeded:
		return "🆘"
	}

	switch t.Category() {
	case events.CategoryFile:
		return "📄"
	case events.CategoryGit:
		return "🌿"
	case events.CategoryProgress:
		return "📈"
	case events.CategoryMilestone:
		return "🏁"
	case events.CategoryConversation:
		return "💬"
	case events.CategoryLLM:
		return "🤖"
	default:
		return "•"
	}
}

func suggestionEmoji(t events.SuggestionType) string {
	switch t {
	case events.SuggestionCommit:
		return "💾"
	case events.SuggestionBranch:
		return "🌿"
	case events.SuggestionRelease:
		return "📦"
	case events.SuggestionPR:
		return "🔃"
	case events.SuggestionFix:
		return "🔧"
	case events.SuggestionHelp:
		return "🆘"
	default:
		return "💡"
	}
}

func priorityColor(p events.Priority) *color.Color {
	switch p {
	case events.PriorityHigh:
		return color.New(color.FgRed, color.Bold)
	case events.PriorityMedium:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

// eventMetadata renders the event data as sorted key=value pairs.
func eventMetadata(ev *events.MonitoringEvent) string {
	if len(ev.Data) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ev.Data))
	for k := range ev.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := ev.Data[k].(type) {
		case string:
			if v == "" {
				continue
			}
			parts = append(parts, fmt.Sprintf("%s=%s", k, truncateString(v, 40)))
		case []string, []interface{}:
			continue
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, " | ")
}

// truncateString truncates s to maxLen runes, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
