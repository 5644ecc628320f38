package events

import "time"

// MilestoneType names a higher-order achievement inferred from correlated events.
type MilestoneType string

const (
	MilestoneFeatureShipped MilestoneType = "feature_shipped"
	MilestoneReleaseReady   MilestoneType = "release_ready"
	MilestoneSprintComplete MilestoneType = "sprint_complete"
	MilestoneMajorRefactor  MilestoneType = "major_refactor"
)

// AllMilestoneTypes returns every milestone type in evaluation order.
func AllMilestoneTypes() []MilestoneType {
	return []MilestoneType{
		MilestoneFeatureShipped,
		MilestoneReleaseReady,
		MilestoneSprintComplete,
		MilestoneMajorRefactor,
	}
}

// AggregatedMilestone is emitted once per qualifying set of window events.
// Events is never empty and is ordered by timestamp.
type AggregatedMilestone struct {
	ID          string             `json:"id"`
	Type        MilestoneType      `json:"type"`
	Timestamp   time.Time          `json:"timestamp"`
	ProjectPath string             `json:"project_path"`
	Events      []*MonitoringEvent `json:"events"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
}

// SuggestionType is the kind of action a suggestion recommends.
type SuggestionType string

const (
	SuggestionCommit  SuggestionType = "commit"
	SuggestionBranch  SuggestionType = "branch"
	SuggestionRelease SuggestionType = "release"
	SuggestionPR      SuggestionType = "pr"
	SuggestionFix     SuggestionType = "fix"
	SuggestionHelp    SuggestionType = "help"
)

// AllSuggestionTypes returns every suggestion type.
func AllSuggestionTypes() []SuggestionType {
	return []SuggestionType{
		SuggestionCommit, SuggestionBranch, SuggestionRelease,
		SuggestionPR, SuggestionFix, SuggestionHelp,
	}
}

// Priority ranks suggestions.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns a sortable weight, higher is more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// MonitoringSuggestion is an actionable recommendation with its supporting evidence.
type MonitoringSuggestion struct {
	ID            string             `json:"id"`
	Type          SuggestionType     `json:"type"`
	Priority      Priority           `json:"priority"`
	Message       string             `json:"message"`
	Action        string             `json:"action,omitempty"`
	Reason        string             `json:"reason"`
	ProjectPath   string             `json:"project_path"`
	Timestamp     time.Time          `json:"timestamp"`
	RelatedEvents []*MonitoringEvent `json:"related_events"`
}
