package events

import (
	"time"
)

// EventType represents the type of monitoring event observed in a project.
type EventType string

const (
	// File events
	// EventTypeFileCreated indicates a new file appeared in the working tree
	EventTypeFileCreated EventType = "file_created"
	// EventTypeFileModified indicates a tracked file was modified
	EventTypeFileModified EventType = "file_modified"
	// EventTypeFileDeleted indicates a tracked file was removed
	EventTypeFileDeleted EventType = "file_deleted"

	// Git events
	// EventTypeBranchCreated indicates a new branch was created
	EventTypeBranchCreated EventType = "branch_created"
	// EventTypeBranchSwitched indicates HEAD moved to a different branch
	EventTypeBranchSwitched EventType = "branch_switched"
	// EventTypeBranchDeleted indicates a branch disappeared from the branch list
	EventTypeBranchDeleted EventType = "branch_deleted"
	// EventTypeCommitCreated indicates a new commit landed on the current branch
	EventTypeCommitCreated EventType = "commit_created"
	// EventTypeChangesStaged indicates changes were added to the index
	EventTypeChangesStaged EventType = "changes_staged"
	// EventTypeUncommittedChanges indicates the uncommitted change count moved
	EventTypeUncommittedChanges EventType = "uncommitted_changes"
	// EventTypePushCompleted indicates a branch was pushed to its remote
	EventTypePushCompleted EventType = "push_completed"
	// EventTypeMergeCompleted indicates a merge commit was created
	EventTypeMergeCompleted EventType = "merge_completed"
	// EventTypeTagCreated indicates a release tag was created
	EventTypeTagCreated EventType = "tag_created"

	// Progress events
	// EventTypeFeatureStarted indicates work on a feature began
	EventTypeFeatureStarted EventType = "feature_started"
	// EventTypeFeatureComplete indicates a feature was finished
	EventTypeFeatureComplete EventType = "feature_complete"
	// EventTypeBugFound indicates a bug was discovered
	EventTypeBugFound EventType = "bug_found"
	// EventTypeBugFixed indicates a bug was fixed
	EventTypeBugFixed EventType = "bug_fixed"
	// EventTypeTestsPassing indicates the test suite passed
	EventTypeTestsPassing EventType = "tests_passing"
	// EventTypeTestsFailing indicates the test suite failed
	EventTypeTestsFailing EventType = "tests_failing"
	// EventTypeRefactorStarted indicates a refactoring effort began
	EventTypeRefactorStarted EventType = "refactor_started"
	// EventTypeRefactorComplete indicates a refactoring effort finished
	EventTypeRefactorComplete EventType = "refactor_complete"
	// EventTypeDocsUpdated indicates documentation was updated
	EventTypeDocsUpdated EventType = "docs_updated"

	// Milestone events
	// EventTypeMilestoneReached indicates a named milestone was reached
	EventTypeMilestoneReached EventType = "milestone_reached"
	// EventTypeReleaseReady indicates the project was declared ready to release
	EventTypeReleaseReady EventType = "release_ready"
	// EventTypeSprintComplete indicates a sprint or iteration was declared done
	EventTypeSprintComplete EventType = "sprint_complete"

	// Conversation events
	// EventTypeQuestionAsked indicates a question came up in the conversation
	EventTypeQuestionAsked EventType = "question_asked"
	// EventTypeHelpNeeded indicates the developer is stuck and asked for help
	EventTypeHelpNeeded EventType = "help_needed"
	// EventTypeDecisionMade indicates a design decision was recorded
	EventTypeDecisionMade EventType = "decision_made"
	// EventTypeTaskPlanned indicates upcoming work was planned
	EventTypeTaskPlanned EventType = "task_planned"

	// LLM automation events
	// EventTypeLLMTaskStarted indicates an assistant started an automated task
	EventTypeLLMTaskStarted EventType = "llm_task_started"
	// EventTypeLLMTaskCompleted indicates an assistant finished an automated task
	EventTypeLLMTaskCompleted EventType = "llm_task_completed"
	// EventTypeLLMCommitRequested indicates an assistant asked for a commit
	EventTypeLLMCommitRequested EventType = "llm_commit_requested"
	// EventTypeLLMError indicates an assistant reported an error
	EventTypeLLMError EventType = "llm_error"
)

// Category groups event types for routing and display.
type Category string

const (
	CategoryFile         Category = "file"
	CategoryGit          Category = "git"
	CategoryProgress     Category = "progress"
	CategoryMilestone    Category = "milestone"
	CategoryConversation Category = "conversation"
	CategoryLLM          Category = "llm"
)

// AllEventTypes returns the closed set of monitoring event types in declaration order.
func AllEventTypes() []EventType {
	return []EventType{
		EventTypeFileCreated, EventTypeFileModified, EventTypeFileDeleted,
		EventTypeBranchCreated, EventTypeBranchSwitched, EventTypeBranchDeleted,
		EventTypeCommitCreated, EventTypeChangesStaged, EventTypeUncommittedChanges,
		EventTypePushCompleted, EventTypeMergeCompleted, EventTypeTagCreated,
		EventTypeFeatureStarted, EventTypeFeatureComplete, EventTypeBugFound,
		EventTypeBugFixed, EventTypeTestsPassing, EventTypeTestsFailing,
		EventTypeRefactorStarted, EventTypeRefactorComplete, EventTypeDocsUpdated,
		EventTypeMilestoneReached, EventTypeReleaseReady, EventTypeSprintComplete,
		EventTypeQuestionAsked, EventTypeHelpNeeded, EventTypeDecisionMade, EventTypeTaskPlanned,
		EventTypeLLMTaskStarted, EventTypeLLMTaskCompleted, EventTypeLLMCommitRequested, EventTypeLLMError,
	}
}

// Category returns the category of an event type, or "" for unknown types.
func (t EventType) Category() Category {
	switch t {
	case EventTypeFileCreated, EventTypeFileModified, EventTypeFileDeleted:
		return CategoryFile
	case EventTypeBranchCreated, EventTypeBranchSwitched, EventTypeBranchDeleted,
		EventTypeCommitCreated, EventTypeChangesStaged, EventTypeUncommittedChanges,
		EventTypePushCompleted, EventTypeMergeCompleted, EventTypeTagCreated:
		return CategoryGit
	case EventTypeFeatureStarted, EventTypeFeatureComplete, EventTypeBugFound, EventTypeBugFixed,
		EventTypeTestsPassing, EventTypeTestsFailing, EventTypeRefactorStarted,
		EventTypeRefactorComplete, EventTypeDocsUpdated:
		return CategoryProgress
	case EventTypeMilestoneReached, EventTypeReleaseReady, EventTypeSprintComplete:
		return CategoryMilestone
	case EventTypeQuestionAsked, EventTypeHelpNeeded, EventTypeDecisionMade, EventTypeTaskPlanned:
		return CategoryConversation
	case EventTypeLLMTaskStarted, EventTypeLLMTaskCompleted, EventTypeLLMCommitRequested, EventTypeLLMError:
		return CategoryLLM
	default:
		return ""
	}
}

// IsValid reports whether t is one of the known event types.
func (t EventType) IsValid() bool {
	return t.Category() != ""
}

// MonitoringEvent is a classified observation about a project.
// It is a stateless fact: produced by the classifier, consumed by the
// aggregator and the suggestion engine.
type MonitoringEvent struct {
	// ID is the unique identifier for this event
	ID string `json:"id"`
	// Type is the type of event
	Type EventType `json:"type"`
	// Timestamp is when the event was observed
	Timestamp time.Time `json:"timestamp"`
	// ProjectPath is the project the event belongs to
	ProjectPath string `json:"project_path"`
	// Data contains structured, type-specific data (must be JSON-serializable)
	Data map[string]interface{} `json:"data"`
}

// FileChangeData contains structured data for file events.
type FileChangeData struct {
	// FilePath is the path relative to the project root
	FilePath string `json:"file_path"`
	// Operation is "created", "modified" or "deleted"
	Operation string `json:"operation"`
}

// BranchData contains structured data for branch events.
type BranchData struct {
	// BranchName is the branch the event is about
	BranchName string `json:"branch_name"`
	// PreviousBranch is the branch HEAD pointed at before a switch
	PreviousBranch string `json:"previous_branch,omitempty"`
	// BaseBranch is the branch a new branch was created from, if known
	BaseBranch string `json:"base_branch,omitempty"`
}

// CommitData contains structured data for commit and merge events.
type CommitData struct {
	// CommitID is the full commit hash
	CommitID string `json:"commit_id"`
	// Message is the commit subject
	Message string `json:"message"`
	// Author is the commit author
	Author string `json:"author,omitempty"`
	// Branch is the branch the commit landed on
	Branch string `json:"branch,omitempty"`
}

// UncommittedChangesData contains structured data for uncommitted change events.
type UncommittedChangesData struct {
	// Count is the number of changed paths in the working tree
	Count int `json:"count"`
	// Files lists the changed paths
	Files []string `json:"files,omitempty"`
	// Staged is the number of staged paths
	Staged int `json:"staged"`
}

// PushData contains structured data for push events.
type PushData struct {
	// Branch is the branch that was pushed
	Branch string `json:"branch"`
	// Remote is the remote name
	Remote string `json:"remote,omitempty"`
}

// TagData contains structured data for tag events.
type TagData struct {
	// Tag is the tag name, e.g. v1.4.0
	Tag string `json:"tag"`
}

// ConversationData contains structured data for events classified from conversation text.
type ConversationData struct {
	// Text is the original line
	Text string `json:"text"`
	// Pattern is the name of the conversation pattern that matched
	Pattern string `json:"pattern"`
	// Priority is the priority declared by the matching pattern
	Priority int `json:"priority"`
	// Subject is the captured subject of the line, if the pattern captures one
	Subject string `json:"subject,omitempty"`
}

// LLMTaskData contains structured data for LLM automation events.
type LLMTaskData struct {
	// Task is a short description of the automated task
	Task string `json:"task"`
	// Agent names the assistant that reported the task
	Agent string `json:"agent,omitempty"`
	// Error contains the reported error for llm_error events
	Error string `json:"error,omitempty"`
}

// EventFilter defines criteria for querying stored events, milestones and suggestions.
type EventFilter struct {
	// Type filters by type string
	Type string
	// Project filters by project path
	Project string
	// Since keeps records at or after this time
	Since time.Time
	// Limit limits the number of records returned
	Limit int
}
