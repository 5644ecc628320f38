package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/eventbus"
	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
	"github.com/steveyegge/gitpulse/internal/milestones"
	"github.com/steveyegge/gitpulse/internal/suggestions"
)

// recorder captures the order in which domain events reach a wildcard subscriber.
type recorder struct {
	mu    sync.Mutex
	types []string
}

func (r *recorder) handler() eventbus.Handler {
	return eventbus.NewHandler("recorder", func(_ context.Context, de events.DomainEvent) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.types = append(r.types, de.EventType())
		return nil
	})
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.types...)
}

func newTestPipeline(t *testing.T, mutate func(*Config)) (*Pipeline, *recorder) {
	t.Helper()
	cfg := Config{
		ProjectPath:          "/work/app",
		ConversationTracking: true,
		Aggregation:          milestones.DefaultConfig(),
		Suggestions:          suggestions.DefaultConfig(),
		Branch:               "main",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	require.NoError(t, err)

	rec := &recorder{}
	p.Attach(rec.handler())
	return p, rec
}

func TestHelpRequestProducesSuggestion(t *testing.T) {
	p, rec := newTestPipeline(t, nil)

	res := p.Conversation(context.Background(), "I'm stuck on the parser and need help")
	require.Len(t, res.Events, 1)
	assert.Equal(t, events.EventTypeHelpNeeded, res.Events[0].Type)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, events.SuggestionHelp, res.Suggestions[0].Type)
	assert.Equal(t, events.PriorityHigh, res.Suggestions[0].Priority)

	assert.Equal(t, []string{"monitoring.help_needed", "suggestion.help"}, rec.seen())
}

func TestFeatureSetShipsAndSuggestsRelease(t *testing.T) {
	p, rec := newTestPipeline(t, nil)

	var text string
	for _, name := range []string{"login", "search", "export", "billing", "profile"} {
		text += fmt.Sprintf("I finished the %s feature\n", name)
	}
	res := p.Conversation(context.Background(), text)

	require.Len(t, res.Events, 5)
	require.Len(t, res.Milestones, 1)
	assert.Equal(t, events.MilestoneFeatureShipped, res.Milestones[0].Type)
	assert.Len(t, res.Milestones[0].Events, 5)

	require.Len(t, res.Suggestions, 1)
	s := res.Suggestions[0]
	assert.Equal(t, events.SuggestionRelease, s.Type)
	assert.Equal(t, events.PriorityHigh, s.Priority)
	assert.Len(t, s.RelatedEvents, 5)

	// milestones and suggestions follow the event that caused them
	seen := rec.seen()
	require.Len(t, seen, 7)
	for i := 0; i < 5; i++ {
		assert.Equal(t, "monitoring.feature_complete", seen[i])
	}
	assert.Equal(t, "milestone.feature_shipped", seen[5])
	assert.Equal(t, "suggestion.release", seen[6])
}

func TestOverlappingReleaseSignalsYieldOneSuggestion(t *testing.T) {
	p, _ := newTestPipeline(t, nil)

	text := "Fixed the login bug\nFixed the search bug\nall tests are passing\n"
	for _, name := range []string{"login", "search", "export", "billing", "profile"} {
		text += fmt.Sprintf("I finished the %s feature\n", name)
	}
	res := p.Conversation(context.Background(), text)

	ids := make(map[string]bool)
	for _, s := range res.Suggestions {
		if s.Type == events.SuggestionRelease {
			ids[s.ID] = true
		}
	}
	assert.Len(t, ids, 1, "threshold and milestone releases share one suggestion")

	recent := p.Engine().Recent(events.SuggestionRelease, 0)
	require.Len(t, recent, 1)
	assert.Equal(t, events.PriorityHigh, recent[0].Priority)

	work := 0
	for _, ev := range recent[0].RelatedEvents {
		if ev.Type == events.EventTypeFeatureComplete || ev.Type == events.EventTypeBugFixed {
			work++
		}
	}
	assert.Equal(t, 7, work, "every feature and fix is named exactly once")
}

func TestFailingConsumerDoesNotHaltPipeline(t *testing.T) {
	p, rec := newTestPipeline(t, nil)
	p.Attach(eventbus.NewHandler("broken-ui", func(context.Context, events.DomainEvent) error {
		panic("render failed")
	}))
	p.Attach(eventbus.NewHandler("flaky-sink", func(context.Context, events.DomainEvent) error {
		return errors.New("disk full")
	}))

	res := p.Conversation(context.Background(), "the tests are failing again")
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, events.SuggestionFix, res.Suggestions[0].Type)
	assert.Equal(t, []string{"monitoring.tests_failing", "suggestion.fix"}, rec.seen())
	assert.Equal(t, int64(4), p.Bus().Stats().Failures)
}

func TestObserveUncommittedChanges(t *testing.T) {
	p, rec := newTestPipeline(t, nil)

	prev := &git.Snapshot{Branch: "main", Branches: []string{"main"}, Changes: &git.Changes{}}
	files := make([]git.FileStatus, 12)
	for i := range files {
		files[i] = git.FileStatus{Path: fmt.Sprintf("pkg/file%d.go", i), Code: " M"}
	}
	curr := &git.Snapshot{Branch: "main", Branches: []string{"main"}, Changes: &git.Changes{Files: files}}

	p.Observe(context.Background(), prev, curr)

	seen := rec.seen()
	assert.Contains(t, seen, "monitoring.uncommitted_changes")
	assert.Contains(t, seen, "suggestion.commit")

	recent := p.Engine().Recent(events.SuggestionCommit, 5)
	require.Len(t, recent, 1)
	assert.Equal(t, events.PriorityMedium, recent[0].Priority)
}

func TestEmitterFeedsTrackedGitOperations(t *testing.T) {
	p, rec := newTestPipeline(t, nil)

	fake := git.NewFakeService()
	fake.ErrPush = errors.New("remote rejected")
	tracker, err := git.NewEventTracker(&git.EventTrackerConfig{
		Git:         fake,
		Emit:        p.Emitter(),
		ProjectPath: p.Project(),
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Error(t, tracker.Push(context.Background()))
	}

	seen := rec.seen()
	assert.Contains(t, seen, "monitoring.llm_error")
	assert.Equal(t, "suggestion.help", seen[len(seen)-1])
}

func TestAutoSuggestionsOffStillAggregates(t *testing.T) {
	p, _ := newTestPipeline(t, func(c *Config) { c.Suggestions.AutoSuggestions = false })

	var text string
	for i := 0; i < 5; i++ {
		text += fmt.Sprintf("completed the feature number %d\n", i)
	}
	res := p.Conversation(context.Background(), text)
	assert.Len(t, res.Milestones, 1)
	assert.Empty(t, res.Suggestions)
}

func TestConversationTrackingOff(t *testing.T) {
	p, rec := newTestPipeline(t, func(c *Config) { c.ConversationTracking = false })
	res := p.Conversation(context.Background(), "I'm stuck and need help")
	assert.True(t, res.Empty())
	assert.Empty(t, rec.seen())
}

func TestNewValidates(t *testing.T) {
	_, err := New(Config{Aggregation: milestones.DefaultConfig(), Suggestions: suggestions.DefaultConfig()})
	assert.Error(t, err)

	bad := milestones.DefaultConfig()
	bad.Window = 0
	_, err = New(Config{ProjectPath: "/x", Aggregation: bad, Suggestions: suggestions.DefaultConfig()})
	assert.Error(t, err)

	_, err = New(Config{ProjectPath: "/x", Aggregation: milestones.DefaultConfig()})
	assert.Error(t, err, "zero suggestion config is invalid")
}
