// Package classifier turns raw observations (file changes, git state
// transitions, conversation text) into typed monitoring events.
package classifier

import (
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
)

// Config configures a Classifier.
type Config struct {
	// ProjectPath is stamped on every produced event
	ProjectPath string
	// ConversationTracking enables conversation text classification
	ConversationTracking bool
	// Patterns overrides DefaultConversationPatterns when non-nil
	Patterns []ConversationPattern
	// CommitPatterns overrides DefaultCommitPatterns when non-nil
	CommitPatterns []CommitPattern
	// Now overrides the clock, for tests
	Now func() time.Time
	Logger *slog.Logger
}

// Classifier is stateless apart from its immutable pattern tables and is safe
// for concurrent use.
type Classifier struct {
	project        string
	conversation   bool
	patterns       []ConversationPattern
	commitPatterns []CommitPattern
	now            func() time.Time
	logger         *slog.Logger
}

// New creates a Classifier. It fails on patterns without a matcher or with an unknown event type.
func New(cfg Config) (*Classifier, error) {
	patterns := cfg.Patterns
	if patterns == nil {
		patterns = DefaultConversationPatterns()
	}
	sorted, err := sortPatterns(patterns)
	if err != nil {
		return nil, err
	}

	commitPatterns := cfg.CommitPatterns
	if commitPatterns == nil {
		commitPatterns = DefaultCommitPatterns()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Classifier{
		project:        cfg.ProjectPath,
		conversation:   cfg.ConversationTracking,
		patterns:       sorted,
		commitPatterns: commitPatterns,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}, nil
}

// Patterns returns the effective pattern order.
func (c *Classifier) Patterns() []ConversationPattern {
	return slices.Clone(c.patterns)
}

func (c *Classifier) newEvent(t events.EventType) *events.MonitoringEvent {
	ev := events.NewMonitoringEvent(t, c.project, nil)
	ev.Timestamp = c.now()
	return ev
}

// ClassifyConversation classifies text line by line, with no limit on line
// length. Each non-empty line yields at most one event, from the first
// matching pattern. Unmatched lines are dropped.
// Returns nil when conversation tracking is disabled.
func (c *Classifier) ClassifyConversation(text string) []*events.MonitoringEvent {
	if !c.conversation {
		return nil
	}

	var out []*events.MonitoringEvent
	for line := range strings.Lines(text) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if ev := c.classifyLine(line); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Classifier) classifyLine(line string) *events.MonitoringEvent {
	for _, p := range c.patterns {
		m := p.Matcher.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		var subject string
		for _, group := range m[1:] {
			if group != "" {
				subject = strings.TrimSpace(group)
				break
			}
		}

		ev := c.newEvent(p.EventType)
		if err := ev.SetConversationData(events.ConversationData{
			Text:     line,
			Pattern:  p.Name,
			Priority: p.Priority,
			Subject:  subject,
		}); err != nil {
			c.logger.Warn("failed to attach conversation data", slog.String("error", err.Error()))
			return nil
		}
		return ev
	}
	return nil
}

// FileChange is a single file notification.
type FileChange struct {
	Path string
	// Operation is created, modified or deleted
	Operation string
}

// ClassifyFileChange maps a file notification to exactly one file event.
// Unknown operations produce nil.
func (c *Classifier) ClassifyFileChange(change FileChange) *events.MonitoringEvent {
	var t events.EventType
	switch change.Operation {
	case "created":
		t = events.EventTypeFileCreated
	case "modified":
		t = events.EventTypeFileModified
	case "deleted":
		t = events.EventTypeFileDeleted
	default:
		return nil
	}

	ev := c.newEvent(t)
	_ = ev.SetFileChangeData(events.FileChangeData{FilePath: change.Path, Operation: change.Operation})
	return ev
}

// ClassifyCommit maps a commit subject to a progress event, or nil.
func (c *Classifier) ClassifyCommit(commit *git.CommitInfo, branch string) *events.MonitoringEvent {
	if commit == nil {
		return nil
	}
	subject := strings.TrimSpace(commit.Subject)
	for _, p := range c.commitPatterns {
		if !p.Matcher.MatchString(subject) {
			continue
		}
		ev := c.newEvent(p.EventType)
		_ = ev.SetCommitData(events.CommitData{
			CommitID: commit.Hash,
			Message:  subject,
			Author:   commit.Author,
			Branch:   branch,
		})
		ev.Data["pattern"] = p.Name
		return ev
	}
	return nil
}
