package suggestions

import (
	"math"

	"github.com/steveyegge/gitpulse/internal/events"
)

const (
	// widenFactor is applied to a threshold each time its suggestion is dismissed or ignored
	widenFactor = 1.5
	// maxWidening caps a threshold at this multiple of its configured floor
	maxWidening = 4
)

// thresholds holds the live thresholds next to their configured floors.
// Live values only ever grow.
type thresholds struct {
	commit          int
	releaseFeatures int
	releaseBugfixes int
	help            int

	floor Config
}

func newThresholds(cfg Config) *thresholds {
	return &thresholds{
		commit:          cfg.CommitThreshold,
		releaseFeatures: cfg.ReleaseThreshold.Features,
		releaseBugfixes: cfg.ReleaseThreshold.Bugfixes,
		help:            cfg.HelpErrorThreshold,
		floor:           cfg,
	}
}

// widen loosens the thresholds behind t and reports whether anything changed.
// Suggestion types without a threshold are unaffected.
func (th *thresholds) widen(t events.SuggestionType) bool {
	switch t {
	case events.SuggestionCommit:
		return widenOne(&th.commit, th.floor.CommitThreshold)
	case events.SuggestionRelease:
		a := widenOne(&th.releaseFeatures, th.floor.ReleaseThreshold.Features)
		b := widenOne(&th.releaseBugfixes, th.floor.ReleaseThreshold.Bugfixes)
		return a || b
	case events.SuggestionHelp:
		return widenOne(&th.help, th.floor.HelpErrorThreshold)
	default:
		return false
	}
}

func widenOne(v *int, floor int) bool {
	if floor <= 0 {
		return false
	}
	next := int(math.Ceil(float64(*v) * widenFactor))
	if limit := floor * maxWidening; next > limit {
		next = limit
	}
	if next < floor {
		next = floor
	}
	if next <= *v {
		return false
	}
	*v = next
	return true
}

// Thresholds is a read-only view of the live thresholds.
type Thresholds struct {
	Commit          int `json:"commit"`
	ReleaseFeatures int `json:"release_features"`
	ReleaseBugfixes int `json:"release_bugfixes"`
	Help            int `json:"help"`
}

func (th *thresholds) view() Thresholds {
	return Thresholds{
		Commit:          th.commit,
		ReleaseFeatures: th.releaseFeatures,
		ReleaseBugfixes: th.releaseBugfixes,
		Help:            th.help,
	}
}

// scalePriority is medium from threshold up to twice the threshold, high beyond.
func scalePriority(signal, threshold int) events.Priority {
	if threshold > 0 && signal > 2*threshold {
		return events.PriorityHigh
	}
	return events.PriorityMedium
}
