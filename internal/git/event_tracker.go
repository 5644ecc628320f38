package git

import (
	"context"
	"fmt"

	"github.com/steveyegge/gitpulse/internal/events"
)

// Emitter receives monitoring events produced outside the classifier.
type Emitter func(ctx context.Context, ev *events.MonitoringEvent)

// EventTracker wraps a GitService and reports each mutating operation as an
// automation task (llm_task_started, then llm_task_completed or llm_error).
// Reads pass straight through. The repository state changes themselves are
// observed by the Watcher, so the tracker never emits git events.
type EventTracker struct {
	git         GitService
	emit        Emitter
	projectPath string
	agent       string
}

// EventTrackerConfig holds configuration for the event tracker
type EventTrackerConfig struct {
	Git         GitService
	Emit        Emitter
	ProjectPath string
	Agent       string
}

// NewEventTracker creates a new git event tracker
func NewEventTracker(cfg *EventTrackerConfig) (*EventTracker, error) {
	if cfg.Git == nil {
		return nil, fmt.Errorf("git service required")
	}
	if cfg.Emit == nil {
		return nil, fmt.Errorf("emitter required")
	}
	if cfg.ProjectPath == "" {
		return nil, fmt.Errorf("project path required")
	}
	agent := cfg.Agent
	if agent == "" {
		agent = "gitpulse"
	}

	return &EventTracker{
		git:         cfg.Git,
		emit:        cfg.Emit,
		projectPath: cfg.ProjectPath,
		agent:       agent,
	}, nil
}

var _ GitService = (*EventTracker)(nil)

// CreateBranch creates a branch and tracks the operation
func (et *EventTracker) CreateBranch(ctx context.Context, name string) error {
	return et.track(ctx, fmt.Sprintf("create branch %s", name), func() error {
		return et.git.CreateBranch(ctx, name)
	})
}

// CheckoutBranch switches branch and tracks the operation
func (et *EventTracker) CheckoutBranch(ctx context.Context, name string) error {
	return et.track(ctx, fmt.Sprintf("checkout %s", name), func() error {
		return et.git.CheckoutBranch(ctx, name)
	})
}

// StageAll stages all changes and tracks the operation
func (et *EventTracker) StageAll(ctx context.Context) error {
	return et.track(ctx, "stage all changes", func() error {
		return et.git.StageAll(ctx)
	})
}

// Commit creates a commit and tracks the operation.
// A commit is announced with llm_commit_requested before it is attempted.
func (et *EventTracker) Commit(ctx context.Context, message string) (string, error) {
	et.emitTask(ctx, events.EventTypeLLMCommitRequested, events.LLMTaskData{Task: message, Agent: et.agent})

	var hash string
	err := et.track(ctx, "commit changes", func() error {
		var err error
		hash, err = et.git.Commit(ctx, message)
		return err
	})
	return hash, err
}

// Push pushes the current branch and tracks the operation
func (et *EventTracker) Push(ctx context.Context) error {
	return et.track(ctx, "push current branch", func() error {
		return et.git.Push(ctx)
	})
}

// GetCurrentBranch passes through to the wrapped service.
func (et *EventTracker) GetCurrentBranch(ctx context.Context) (string, error) {
	return et.git.GetCurrentBranch(ctx)
}

// GetUncommittedChanges passes through to the wrapped service.
func (et *EventTracker) GetUncommittedChanges(ctx context.Context) (*Changes, error) {
	return et.git.GetUncommittedChanges(ctx)
}

// GetLastCommit passes through to the wrapped service.
func (et *EventTracker) GetLastCommit(ctx context.Context) (*CommitInfo, error) {
	return et.git.GetLastCommit(ctx)
}

// ListBranches passes through to the wrapped service.
func (et *EventTracker) ListBranches(ctx context.Context) ([]string, error) {
	return et.git.ListBranches(ctx)
}

// ListTags passes through to the wrapped service.
func (et *EventTracker) ListTags(ctx context.Context) ([]string, error) {
	return et.git.ListTags(ctx)
}

// GetDiff passes through when the wrapped service can produce diffs.
func (et *EventTracker) GetDiff(ctx context.Context, staged bool) (string, error) {
	d, ok := et.git.(interface {
		GetDiff(ctx context.Context, staged bool) (string, error)
	})
	if !ok {
		return "", fmt.Errorf("diff not supported")
	}
	return d.GetDiff(ctx, staged)
}

func (et *EventTracker) track(ctx context.Context, task string, fn func() error) error {
	et.emitTask(ctx, events.EventTypeLLMTaskStarted, events.LLMTaskData{Task: task, Agent: et.agent})

	if err := fn(); err != nil {
		et.emitTask(ctx, events.EventTypeLLMError, events.LLMTaskData{Task: task, Agent: et.agent, Error: err.Error()})
		return err
	}

	et.emitTask(ctx, events.EventTypeLLMTaskCompleted, events.LLMTaskData{Task: task, Agent: et.agent})
	return nil
}

// emitTask creates and emits an automation event
func (et *EventTracker) emitTask(ctx context.Context, eventType events.EventType, data events.LLMTaskData) {
	ev := events.NewMonitoringEvent(eventType, et.projectPath, nil)
	if err := ev.SetLLMTaskData(data); err != nil {
		return
	}
	et.emit(ctx, ev)
}
