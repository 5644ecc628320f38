package suggestions

import (
	"fmt"
	"time"
)

// ReleaseThreshold is the feature and bug-fix count that suggests a release.
type ReleaseThreshold struct {
	Features int `yaml:"features" json:"features"`
	Bugfixes int `yaml:"bugfixes" json:"bugfixes"`
}

// Config holds suggestion heuristics
type Config struct {
	// AutoSuggestions turns suggestion output on or off. State is tracked either way.
	// Default: true
	AutoSuggestions bool

	// CommitThreshold is the uncommitted change count that suggests a commit
	// Default: 10
	CommitThreshold int

	// ReleaseThreshold is the accumulated work that suggests a release
	// Default: 3 features, 2 bug fixes
	ReleaseThreshold ReleaseThreshold

	// HelpErrorThreshold is the number of assistant errors that suggests asking for help
	// Default: 3
	HelpErrorThreshold int

	// LearningMode widens thresholds of suggestions that are dismissed or ignored
	// Default: false
	LearningMode bool

	// IgnoreAfter is how long a suggestion may go unacted before learning mode
	// counts it as ignored
	// Default: 30 minutes
	IgnoreAfter time.Duration

	// MainBranches are branches where new feature work should not happen
	// Default: main, master
	MainBranches []string

	// HistorySize bounds the suggestions kept for Recent
	// Default: 100
	HistorySize int
}

// DefaultConfig returns the default suggestion configuration
func DefaultConfig() Config {
	return Config{
		AutoSuggestions:    true,
		CommitThreshold:    10,
		ReleaseThreshold:   ReleaseThreshold{Features: 3, Bugfixes: 2},
		HelpErrorThreshold: 3,
		IgnoreAfter:        30 * time.Minute,
		MainBranches:       []string{"main", "master"},
		HistorySize:        100,
	}
}

// Validate checks thresholds are usable
func (c Config) Validate() error {
	if c.CommitThreshold < 1 {
		return fmt.Errorf("commit_threshold must be at least 1, got %d", c.CommitThreshold)
	}
	if c.ReleaseThreshold.Features < 1 {
		return fmt.Errorf("release_threshold.features must be at least 1, got %d", c.ReleaseThreshold.Features)
	}
	if c.ReleaseThreshold.Bugfixes < 0 {
		return fmt.Errorf("release_threshold.bugfixes must not be negative, got %d", c.ReleaseThreshold.Bugfixes)
	}
	if c.HelpErrorThreshold < 1 {
		return fmt.Errorf("help_error_threshold must be at least 1, got %d", c.HelpErrorThreshold)
	}
	if c.LearningMode && c.IgnoreAfter <= 0 {
		return fmt.Errorf("ignore_after must be positive in learning mode, got %v", c.IgnoreAfter)
	}
	return nil
}
