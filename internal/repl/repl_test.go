package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/config"
	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/milestones"
	"github.com/steveyegge/gitpulse/internal/pipeline"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

func newTestREPL(t *testing.T, style config.NotificationStyle, applier *suggestions.Applier) (*REPL, *bytes.Buffer) {
	t.Helper()
	color.NoColor = true

	p, err := pipeline.New(pipeline.Config{
		ProjectPath:          "/work/app",
		ConversationTracking: true,
		Aggregation:          milestones.DefaultConfig(),
		Suggestions:          suggestions.DefaultConfig(),
		Branch:               "main",
	})
	require.NoError(t, err)

	var out bytes.Buffer
	r, err := New(&Config{Pipeline: p, Applier: applier, Style: style, Out: &out})
	require.NoError(t, err)
	return r, &out
}

func TestNewRequiresPipeline(t *testing.T) {
	_, err := New(&Config{})
	assert.Error(t, err)
}

func TestConversationLinePrintsSuggestion(t *testing.T) {
	r, out := newTestREPL(t, config.NotifyMinimal, nil)

	require.NoError(t, r.processInput("I'm stuck on the parser and need help"))
	assert.Contains(t, out.String(), "[HIGH] help")
	assert.NotContains(t, out.String(), "help_needed", "minimal style hides events")
}

func TestDetailedStylePrintsEvents(t *testing.T) {
	r, out := newTestREPL(t, config.NotifyDetailed, nil)

	require.NoError(t, r.processInput("I finished the login feature"))
	assert.Contains(t, out.String(), "feature_complete")
	assert.Contains(t, out.String(), "pattern=feature_complete")

	out.Reset()
	require.NoError(t, r.processInput("lunch"))
	assert.Contains(t, out.String(), "nothing recognized")
}

func TestSilentStylePrintsNothing(t *testing.T) {
	r, out := newTestREPL(t, config.NotifySilent, nil)

	require.NoError(t, r.processInput("I'm stuck and need help"))
	assert.Empty(t, out.String())
	assert.Len(t, r.pipeline.Engine().Recent(events.SuggestionHelp, 0), 1)
}

func TestCommands(t *testing.T) {
	r, out := newTestREPL(t, config.NotifyMinimal, nil)

	require.NoError(t, r.processInput("/help"))
	assert.Contains(t, out.String(), "/dismiss <type>")

	out.Reset()
	require.NoError(t, r.processInput("/status"))
	assert.Contains(t, out.String(), "/work/app")
	assert.Contains(t, out.String(), "commit after 10 uncommitted files")

	out.Reset()
	require.NoError(t, r.processInput("/suggestions"))
	assert.Contains(t, out.String(), "No suggestions yet")

	require.NoError(t, r.processInput("I need help with the schema"))
	out.Reset()
	require.NoError(t, r.processInput("/suggestions help"))
	assert.Contains(t, out.String(), "You seem stuck")

	out.Reset()
	require.NoError(t, r.processInput("/dismiss help"))
	assert.Contains(t, out.String(), "Dismissed help suggestions")

	assert.ErrorContains(t, r.processInput("/dismiss"), "usage")
	assert.ErrorContains(t, r.processInput("/suggestions nope"), "unknown suggestion type")
	assert.ErrorContains(t, r.processInput("/frobnicate"), "unknown command")
	assert.ErrorIs(t, r.processInput("exit"), errExit)
	assert.ErrorIs(t, r.processInput("/quit"), errExit)
}

func TestApplyBranchSuggestion(t *testing.T) {
	fake := git.NewFakeService()
	r, out := newTestREPL(t, config.NotifyMinimal, suggestions.NewApplier(fake, nil, nil))
	r.ctx = context.Background()

	assert.ErrorContains(t, r.processInput("/apply branch"), "no branch suggestion")

	require.NoError(t, r.processInput("Starting work on the export feature"))
	require.Contains(t, out.String(), "branch")

	out.Reset()
	require.NoError(t, r.processInput("/apply branch"))
	assert.Contains(t, out.String(), "Created branch feature/")
	assert.True(t, strings.HasPrefix(fake.Branch, "feature/"))
}

func TestApplyWithoutApplier(t *testing.T) {
	r, _ := newTestREPL(t, config.NotifyMinimal, nil)
	assert.ErrorContains(t, r.processInput("/apply commit"), "unavailable")
}

func TestPrintSuggestion(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer

	PrintSuggestion(&out, &events.MonitoringSuggestion{
		Type:     events.SuggestionCommit,
		Priority: events.PriorityMedium,
		Message:  "You have 12 uncommitted changes",
		Action:   "git add -A && git commit",
		Reason:   "12 uncommitted changes (threshold 10)",
	})
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[MEDIUM] commit You have 12 uncommitted changes")
	assert.Contains(t, lines[1], "12 uncommitted changes (threshold 10) | run: git add -A && git commit")
}

func TestPrintMilestone(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer

	PrintMilestone(&out, &events.AggregatedMilestone{
		Type:      events.MilestoneFeatureShipped,
		Timestamp: time.Date(2025, 3, 1, 14, 5, 0, 0, time.UTC),
		Title:     "Feature set shipped",
		Events:    make([]*events.MonitoringEvent, 5),
	})
	assert.Contains(t, out.String(), "[14:05:00] Feature set shipped (5 events)")
}

func TestEventEmojiCoversEveryType(t *testing.T) {
	for _, et := range events.AllEventTypes() {
		assert.NotEqual(t, "•", eventEmoji(et), "event type %s has no emoji", et)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"this is a long message", 10, "this is..."},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 8, "héllo..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, truncateString(tt.input, tt.maxLen))
	}
}
