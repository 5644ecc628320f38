package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
)

// ErrNotApplicable is returned for suggestions that need a human, e.g. fix or help.
var ErrNotApplicable = errors.New("suggestion cannot be applied automatically")

// ErrNothingToCommit is returned when a commit suggestion finds a clean tree.
var ErrNothingToCommit = errors.New("nothing to commit")

// CommitRequest is the context handed to a MessageWriter.
type CommitRequest struct {
	Branch string
	Files  []string
	// Notes are the texts of the events behind the suggestion
	Notes []string
	Diff  string
}

// MessageWriter writes commit messages, typically with an LLM.
type MessageWriter interface {
	CommitMessage(ctx context.Context, req CommitRequest) (string, error)
}

// differ is implemented by git backends that can produce a diff for the writer.
type differ interface {
	GetDiff(ctx context.Context, staged bool) (string, error)
}

// ApplyResult describes what applying a suggestion did.
type ApplyResult struct {
	Suggestion *events.MonitoringSuggestion
	// Commit is the new commit hash for commit suggestions
	Commit string
	// Branch is the branch created or pushed
	Branch  string
	Message string
}

// Applier executes commit, branch and pr suggestions against a repository.
type Applier struct {
	git    git.GitService
	writer MessageWriter
	logger *slog.Logger
}

// NewApplier creates an Applier. writer may be nil, in which case commit
// messages are built from the suggestion's events.
func NewApplier(svc git.GitService, writer MessageWriter, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{git: svc, writer: writer, logger: logger}
}

// Apply executes s.
func (a *Applier) Apply(ctx context.Context, s *events.MonitoringSuggestion) (*ApplyResult, error) {
	if s == nil {
		return nil, fmt.Errorf("suggestion is nil")
	}
	switch s.Type {
	case events.SuggestionCommit:
		return a.commit(ctx, s)
	case events.SuggestionBranch:
		return a.branch(ctx, s)
	case events.SuggestionPR:
		return a.push(ctx, s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotApplicable, s.Type)
	}
}

func (a *Applier) commit(ctx context.Context, s *events.MonitoringSuggestion) (*ApplyResult, error) {
	if err := a.git.StageAll(ctx); err != nil {
		return nil, fmt.Errorf("failed to stage changes: %w", err)
	}
	changes, err := a.git.GetUncommittedChanges(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}
	if changes.Count() == 0 {
		return nil, ErrNothingToCommit
	}
	branch, err := a.git.GetCurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current branch: %w", err)
	}

	req := CommitRequest{Branch: branch, Files: changes.Paths(), Notes: notes(s)}
	message := a.message(ctx, req)

	hash, err := a.git.Commit(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return &ApplyResult{Suggestion: s, Commit: hash, Branch: branch, Message: message}, nil
}

// message asks the writer for a commit message and falls back to a
// summary of the request when there is no writer or it fails.
func (a *Applier) message(ctx context.Context, req CommitRequest) string {
	if a.writer == nil {
		return FallbackCommitMessage(req)
	}
	if d, ok := a.git.(differ); ok {
		if diff, err := d.GetDiff(ctx, true); err == nil {
			req.Diff = diff
		}
	}
	msg, err := a.writer.CommitMessage(ctx, req)
	if err != nil || strings.TrimSpace(msg) == "" {
		a.logger.Warn("commit message writer failed, using fallback",
			slog.Any("error", err))
		return FallbackCommitMessage(req)
	}
	return msg
}

func (a *Applier) branch(ctx context.Context, s *events.MonitoringSuggestion) (*ApplyResult, error) {
	name := strings.TrimSpace(strings.TrimPrefix(s.Action, "git checkout -b "))
	if name == "" || name == s.Action {
		name = "feature/" + slug(subjectOf(s))
	}
	if err := a.git.CreateBranch(ctx, name); err != nil {
		return nil, fmt.Errorf("failed to create branch %s: %w", name, err)
	}
	return &ApplyResult{Suggestion: s, Branch: name}, nil
}

func (a *Applier) push(ctx context.Context, s *events.MonitoringSuggestion) (*ApplyResult, error) {
	branch, err := a.git.GetCurrentBranch(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read current branch: %w", err)
	}
	if err := a.git.Push(ctx); err != nil {
		return nil, fmt.Errorf("failed to push %s: %w", branch, err)
	}
	return &ApplyResult{Suggestion: s, Branch: branch}, nil
}

// FallbackCommitMessage builds a conventional commit message from the request.
func FallbackCommitMessage(req CommitRequest) string {
	var b strings.Builder
	switch len(req.Files) {
	case 0:
		b.WriteString("chore: checkpoint work in progress")
	case 1:
		fmt.Fprintf(&b, "chore: update %s", req.Files[0])
	default:
		fmt.Fprintf(&b, "chore: update %d files", len(req.Files))
	}
	if len(req.Notes) > 0 {
		b.WriteString("\n\n")
		for _, n := range req.Notes {
			fmt.Fprintf(&b, "- %s\n", n)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func notes(s *events.MonitoringSuggestion) []string {
	var out []string
	for _, ev := range s.RelatedEvents {
		if text := ev.StringField("text"); text != "" {
			out = append(out, text)
		}
	}
	return out
}

func subjectOf(s *events.MonitoringSuggestion) string {
	for _, ev := range s.RelatedEvents {
		if sub := ev.StringField("subject"); sub != "" {
			return sub
		}
	}
	return ""
}
