package classifier

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/steveyegge/gitpulse/internal/events"
)

// ConversationPattern maps a line of text to a monitoring event type.
// Patterns are tried by descending Priority, then declaration order.
type ConversationPattern struct {
	// Name identifies the pattern in event data
	Name string
	// Matcher is tested against each line; the first capture group, if any, becomes the subject
	Matcher *regexp.Regexp
	// EventType is the event produced on a match
	EventType events.EventType
	// Priority orders patterns, higher first
	Priority int
}

// DefaultConversationPatterns returns the built-in patterns in declaration order.
func DefaultConversationPatterns() []ConversationPattern {
	return []ConversationPattern{
		{
			Name:      "help_needed",
			Matcher:   regexp.MustCompile(`(?i)\b(?:i'?m\s+stuck|need\s+(?:some\s+)?help|can'?t\s+figure|help\s+me|no\s+idea\s+why)\b`),
			EventType: events.EventTypeHelpNeeded,
			Priority:  9,
		},
		{
			Name:      "tests_failing",
			Matcher:   regexp.MustCompile(`(?i)\b(?:tests?|specs?|build|ci)\s+(?:are\s+|is\s+)?(?:still\s+)?(?:fail(?:ing|ed|s)?|broken|red)\b`),
			EventType: events.EventTypeTestsFailing,
			Priority:  9,
		},
		{
			Name:      "bug_fixed",
			Matcher:   regexp.MustCompile(`(?i)\b(?:fixed|resolved|patched|squashed)\b.*?\b((?:\w+\s+)?(?:bug|issue|crash|regression|error))\b|\b(?:bug|issue|crash)\s+(?:is\s+)?(?:fixed|resolved)\b`),
			EventType: events.EventTypeBugFixed,
			Priority:  8,
		},
		{
			Name:      "feature_complete",
			Matcher:   regexp.MustCompile(`(?i)\b(?:finished|completed|implemented|shipped)\b.*?\b((?:\w+\s+)?feature)\b|\bfeature\b.*?\b(?:is\s+)?(?:done|complete|completed|finished)\b`),
			EventType: events.EventTypeFeatureComplete,
			Priority:  8,
		},
		{
			Name:      "release_ready",
			Matcher:   regexp.MustCompile(`(?i)\bready\s+(?:for|to)\s+(?:a\s+)?release\b|\brelease\s+(?:is\s+)?ready\b`),
			EventType: events.EventTypeReleaseReady,
			Priority:  8,
		},
		{
			Name:      "llm_error",
			Matcher:   regexp.MustCompile(`(?i)^\s*(?:\[(?:assistant|agent|llm)\]\s*)?i\s+(?:encountered|hit|ran\s+into)\s+an?\s+error\b|^\s*\[(?:assistant|agent|llm)\]\s+error\b`),
			EventType: events.EventTypeLLMError,
			Priority:  8,
		},
		{
			Name:      "tests_passing",
			Matcher:   regexp.MustCompile(`(?i)\b(?:all\s+)?(?:tests?|specs?|build|ci)\s+(?:are\s+|is\s+)?(?:now\s+)?(?:pass(?:ing|ed|es)?|green)\b`),
			EventType: events.EventTypeTestsPassing,
			Priority:  7,
		},
		{
			Name:      "refactor_complete",
			Matcher:   regexp.MustCompile(`(?i)\b(?:finished|completed|done\s+with)\b.*?\brefactor(?:ing)?\b|\brefactor(?:ing)?\b.*?\b(?:is\s+)?(?:done|complete|finished)\b`),
			EventType: events.EventTypeRefactorComplete,
			Priority:  7,
		},
		{
			Name:      "sprint_complete",
			Matcher:   regexp.MustCompile(`(?i)\b(?:sprint|iteration)\s+(?:is\s+)?(?:done|complete|completed|finished|over)\b`),
			EventType: events.EventTypeSprintComplete,
			Priority:  7,
		},
		{
			Name:      "llm_commit_requested",
			Matcher:   regexp.MustCompile(`(?i)\b(?:please\s+commit|ready\s+to\s+commit|commit\s+(?:these|the|my)\s+changes)\b`),
			EventType: events.EventTypeLLMCommitRequested,
			Priority:  7,
		},
		{
			Name:      "bug_found",
			Matcher:   regexp.MustCompile(`(?i)\b(?:found|there'?s|hit|discovered|noticed)\s+(?:a|an|another)?\s*((?:\w+\s+)?(?:bug|crash|regression))\b|\b(?:bug|crash)\s+in\b`),
			EventType: events.EventTypeBugFound,
			Priority:  6,
		},
		{
			Name:      "feature_started",
			Matcher:   regexp.MustCompile(`(?i)\b(?:start(?:ing|ed)?|begin(?:ning)?|working\s+on)\b.*?\b((?:\w+\s+)?feature)\b|\bnew\s+feature\b`),
			EventType: events.EventTypeFeatureStarted,
			Priority:  6,
		},
		{
			Name:      "milestone_reached",
			Matcher:   regexp.MustCompile(`(?i)\b(?:reached|hit)\s+(?:the\s+|a\s+)?milestone\b|\bmilestone\s+(?:reached|complete)\b`),
			EventType: events.EventTypeMilestoneReached,
			Priority:  6,
		},
		{
			Name:      "refactor_started",
			Matcher:   regexp.MustCompile(`(?i)\b(?:start(?:ing|ed)?|going\s+to|let'?s)\b.*?\brefactor(?:ing)?\b`),
			EventType: events.EventTypeRefactorStarted,
			Priority:  5,
		},
		{
			Name:      "docs_updated",
			Matcher:   regexp.MustCompile(`(?i)\b(?:updated|wrote|added|improved)\b.*?\b(?:docs|documentation|readme|changelog)\b`),
			EventType: events.EventTypeDocsUpdated,
			Priority:  5,
		},
		{
			Name:      "llm_task_completed",
			Matcher:   regexp.MustCompile(`(?i)\bi'?ve\s+(?:finished|completed)\b|\btask\s+(?:is\s+)?(?:complete|completed|done)\b`),
			EventType: events.EventTypeLLMTaskCompleted,
			Priority:  5,
		},
		{
			Name:      "decision_made",
			Matcher:   regexp.MustCompile(`(?i)\b(?:decided|(?:we'?ll|let'?s)\s+go\s+with|going\s+with)\b|\bdecision:`),
			EventType: events.EventTypeDecisionMade,
			Priority:  4,
		},
		{
			Name:      "llm_task_started",
			Matcher:   regexp.MustCompile(`(?i)\bi'?ll\s+start\b|\bstarting\s+(?:on\s+)?(?:the\s+)?task\b|\bi'?m\s+going\s+to\s+work\s+on\b`),
			EventType: events.EventTypeLLMTaskStarted,
			Priority:  4,
		},
		{
			Name:      "task_planned",
			Matcher:   regexp.MustCompile(`(?i)\bnext\s+(?:i'?ll|we'?ll|step)\b|\btodo:|\bplan(?:ning)?\s+to\b`),
			EventType: events.EventTypeTaskPlanned,
			Priority:  3,
		},
		{
			Name:      "question_asked",
			Matcher:   regexp.MustCompile(`\?\s*$`),
			EventType: events.EventTypeQuestionAsked,
			Priority:  2,
		},
	}
}

// CommitPattern maps a commit subject to a progress event.
type CommitPattern struct {
	Name      string
	Matcher   *regexp.Regexp
	EventType events.EventType
}

// DefaultCommitPatterns recognises conventional commit prefixes and common verbs.
// The first match wins.
func DefaultCommitPatterns() []CommitPattern {
	return []CommitPattern{
		{"feat", regexp.MustCompile(`(?i)^feat(?:\([^)]*\))?!?:`), events.EventTypeFeatureComplete},
		{"fix", regexp.MustCompile(`(?i)^fix(?:\([^)]*\))?!?:`), events.EventTypeBugFixed},
		{"refactor", regexp.MustCompile(`(?i)^refactor(?:\([^)]*\))?!?:`), events.EventTypeRefactorComplete},
		{"docs", regexp.MustCompile(`(?i)^docs(?:\([^)]*\))?!?:`), events.EventTypeDocsUpdated},
		{"add", regexp.MustCompile(`(?i)^(?:add|implement)\b`), events.EventTypeFeatureComplete},
		{"fix_verb", regexp.MustCompile(`(?i)^(?:fix|resolve)\b`), events.EventTypeBugFixed},
	}
}

// sortPatterns returns a copy ordered by priority, keeping declaration order on ties.
func sortPatterns(patterns []ConversationPattern) ([]ConversationPattern, error) {
	out := slices.Clone(patterns)
	for i, p := range out {
		if p.Matcher == nil {
			return nil, fmt.Errorf("conversation pattern %d (%q) has no matcher", i, p.Name)
		}
		if !p.EventType.IsValid() {
			return nil, fmt.Errorf("conversation pattern %q has unknown event type %q", p.Name, p.EventType)
		}
	}
	slices.SortStableFunc(out, func(a, b ConversationPattern) int {
		return b.Priority - a.Priority
	})
	return out, nil
}
