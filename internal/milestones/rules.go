package milestones

import (
	"fmt"
	"slices"

	"github.com/steveyegge/gitpulse/internal/events"
)

// rule is one milestone definition. match runs under the aggregator lock and
// returns the contributing events in window order, or nil.
type rule struct {
	kind     events.MilestoneType
	title    string
	match    func() []*events.MonitoringEvent
	describe func(evs []*events.MonitoringEvent) string
}

func (a *Aggregator) rules() []rule {
	return []rule{
		{
			kind:  events.MilestoneFeatureShipped,
			title: "Feature set shipped",
			match: a.matchFeatureShipped,
			describe: func(evs []*events.MonitoringEvent) string {
				return fmt.Sprintf("%d features completed with no failing tests", len(evs))
			},
		},
		{
			kind:  events.MilestoneReleaseReady,
			title: "Release ready",
			match: a.matchReleaseReady,
			describe: func(evs []*events.MonitoringEvent) string {
				return fmt.Sprintf("%d features and %d bug fixes with passing tests",
					countTypes(evs, events.EventTypeFeatureComplete),
					countTypes(evs, events.EventTypeBugFixed))
			},
		},
		{
			kind:  events.MilestoneSprintComplete,
			title: "Sprint complete",
			match: a.matchSprintComplete,
			describe: func(evs []*events.MonitoringEvent) string {
				return fmt.Sprintf("%d commits and %d pushes",
					countTypes(evs, events.EventTypeCommitCreated, events.EventTypeMergeCompleted),
					countTypes(evs, events.EventTypePushCompleted))
			},
		},
		{
			kind:  events.MilestoneMajorRefactor,
			title: "Major refactor",
			match: a.matchMajorRefactor,
			describe: func(evs []*events.MonitoringEvent) string {
				return fmt.Sprintf("refactor touching %d files", len(distinctFiles(evs)))
			},
		},
	}
}

// unconsumed returns window events of the given types not yet consumed by kind.
func (a *Aggregator) unconsumed(kind events.MilestoneType, types ...events.EventType) []*events.MonitoringEvent {
	set := a.consumed[kind]
	var out []*events.MonitoringEvent
	for _, ev := range a.window {
		if !set[ev.ID] && slices.Contains(types, ev.Type) {
			out = append(out, ev)
		}
	}
	return out
}

// count returns the number of window events of the given types, consumed or not.
func (a *Aggregator) count(types ...events.EventType) int {
	return countTypes(a.window, types...)
}

// testsGreen reports whether the most recent test signal in the window is passing.
func (a *Aggregator) testsGreen() (*events.MonitoringEvent, bool) {
	for i := len(a.window) - 1; i >= 0; i-- {
		switch a.window[i].Type {
		case events.EventTypeTestsPassing:
			return a.window[i], true
		case events.EventTypeTestsFailing:
			return nil, false
		}
	}
	return nil, false
}

// feature_shipped: enough completed features and not a single failing test run.
func (a *Aggregator) matchFeatureShipped() []*events.MonitoringEvent {
	if a.count(events.EventTypeTestsFailing) > 0 {
		return nil
	}
	features := a.unconsumed(events.MilestoneFeatureShipped, events.EventTypeFeatureComplete)
	if len(features) < a.cfg.FeatureShippedMin {
		return nil
	}
	return features
}

// release_ready: features and fixes over threshold, or an explicit declaration,
// either way with the latest test run passing.
func (a *Aggregator) matchReleaseReady() []*events.MonitoringEvent {
	passing, green := a.testsGreen()
	if !green {
		return nil
	}

	kind := events.MilestoneReleaseReady
	work := a.unconsumed(kind, events.EventTypeFeatureComplete, events.EventTypeBugFixed)
	declared := a.unconsumed(kind, events.EventTypeReleaseReady)

	thresholdMet := countTypes(work, events.EventTypeFeatureComplete) >= a.cfg.ReleaseReadyFeatures &&
		countTypes(work, events.EventTypeBugFixed) >= a.cfg.ReleaseReadyBugfixes
	if !thresholdMet && len(declared) == 0 {
		return nil
	}

	return a.ordered(append(append(work, declared...), passing))
}

// sprint_complete: enough commits plus a push, or an explicit declaration.
func (a *Aggregator) matchSprintComplete() []*events.MonitoringEvent {
	kind := events.MilestoneSprintComplete
	commits := a.unconsumed(kind, events.EventTypeCommitCreated, events.EventTypeMergeCompleted)
	pushes := a.unconsumed(kind, events.EventTypePushCompleted)
	declared := a.unconsumed(kind, events.EventTypeSprintComplete)

	thresholdMet := len(commits) >= a.cfg.SprintCommits && len(pushes) > 0
	if !thresholdMet && len(declared) == 0 {
		return nil
	}
	return a.ordered(slices.Concat(commits, pushes, declared))
}

// major_refactor: a completed refactor alongside enough distinct touched files.
func (a *Aggregator) matchMajorRefactor() []*events.MonitoringEvent {
	kind := events.MilestoneMajorRefactor
	refactors := a.unconsumed(kind, events.EventTypeRefactorComplete)
	if len(refactors) == 0 {
		return nil
	}

	touched := a.unconsumed(kind,
		events.EventTypeFileCreated, events.EventTypeFileModified, events.EventTypeFileDeleted,
		events.EventTypeUncommittedChanges, events.EventTypeChangesStaged)
	if len(distinctFiles(touched)) < a.cfg.RefactorMinFiles {
		return nil
	}
	return a.ordered(slices.Concat(refactors, touched))
}

// ordered returns the selected events in window order, without duplicates.
func (a *Aggregator) ordered(selected []*events.MonitoringEvent) []*events.MonitoringEvent {
	ids := make(map[string]bool, len(selected))
	for _, ev := range selected {
		if ev != nil {
			ids[ev.ID] = true
		}
	}
	out := make([]*events.MonitoringEvent, 0, len(ids))
	for _, ev := range a.window {
		if ids[ev.ID] {
			out = append(out, ev)
		}
	}
	return out
}

func countTypes(evs []*events.MonitoringEvent, types ...events.EventType) int {
	n := 0
	for _, ev := range evs {
		if slices.Contains(types, ev.Type) {
			n++
		}
	}
	return n
}

func distinctFiles(evs []*events.MonitoringEvent) map[string]bool {
	files := make(map[string]bool)
	for _, ev := range evs {
		for _, p := range ev.FilePaths() {
			files[p] = true
		}
	}
	return files
}
