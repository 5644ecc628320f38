package milestones

import (
	"fmt"
	"time"
)

// Config holds aggregation rules and the window they apply over
type Config struct {
	// Window is how far back events are correlated
	// Default: 4 hours
	Window time.Duration `yaml:"window" json:"window"`

	// FeatureShippedMin is the number of completed features that ship a feature set
	// Default: 5
	FeatureShippedMin int `yaml:"feature_shipped_min" json:"feature_shipped_min"`

	// ReleaseReadyFeatures and ReleaseReadyBugfixes must both be met, with passing tests,
	// for a release_ready milestone
	// Default: 3 features, 2 bug fixes
	ReleaseReadyFeatures int `yaml:"release_ready_features" json:"release_ready_features"`
	ReleaseReadyBugfixes int `yaml:"release_ready_bugfixes" json:"release_ready_bugfixes"`

	// SprintCommits is the number of commits that, with a push, complete a sprint
	// Default: 10
	SprintCommits int `yaml:"sprint_commits" json:"sprint_commits"`

	// RefactorMinFiles is the number of distinct touched files that make a refactor "major"
	// Default: 5
	RefactorMinFiles int `yaml:"refactor_min_files" json:"refactor_min_files"`
}

// DefaultConfig returns the default aggregation configuration
func DefaultConfig() Config {
	return Config{
		Window:               4 * time.Hour,
		FeatureShippedMin:    5,
		ReleaseReadyFeatures: 3,
		ReleaseReadyBugfixes: 2,
		SprintCommits:        10,
		RefactorMinFiles:     5,
	}
}

// Validate checks that every rule can fire
func (c Config) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %v", c.Window)
	}
	if c.Window > 30*24*time.Hour {
		return fmt.Errorf("window too large (maximum 720h), got %v", c.Window)
	}
	for name, v := range map[string]int{
		"feature_shipped_min":    c.FeatureShippedMin,
		"release_ready_features": c.ReleaseReadyFeatures,
		"sprint_commits":         c.SprintCommits,
		"refactor_min_files":     c.RefactorMinFiles,
	} {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if c.ReleaseReadyBugfixes < 0 {
		return fmt.Errorf("release_ready_bugfixes must not be negative, got %d", c.ReleaseReadyBugfixes)
	}
	return nil
}
