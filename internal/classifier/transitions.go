package classifier

import (
	"slices"
	"strings"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
)

// ClassifyTransition compares two consecutive repository snapshots and returns
// the events the change implies, in a fixed order: branch, commit, push, tag,
// file, staging, then uncommitted count. prev is nil on the first observation,
// which only reports existing uncommitted changes.
func (c *Classifier) ClassifyTransition(prev, curr *git.Snapshot) []*events.MonitoringEvent {
	if curr == nil {
		return nil
	}
	if prev == nil {
		if curr.Changes.Count() > 0 {
			return []*events.MonitoringEvent{c.uncommittedEvent(events.EventTypeUncommittedChanges, curr.Changes)}
		}
		return nil
	}

	var out []*events.MonitoringEvent
	out = append(out, c.branchEvents(prev, curr)...)

	sameBranch := prev.Branch == curr.Branch
	if sameBranch {
		out = append(out, c.commitEvents(prev, curr)...)
		if ev := c.pushEvent(prev, curr); ev != nil {
			out = append(out, ev)
		}
	}

	for _, tag := range added(prev.Tags, curr.Tags) {
		ev := c.newEvent(events.EventTypeTagCreated)
		_ = ev.SetTagData(events.TagData{Tag: tag})
		out = append(out, ev)
	}

	out = append(out, c.fileEvents(prev.Changes, curr.Changes)...)

	if curr.Changes.StagedCount() > prev.Changes.StagedCount() {
		out = append(out, c.uncommittedEvent(events.EventTypeChangesStaged, curr.Changes))
	}
	if curr.Changes.Count() != prev.Changes.Count() {
		out = append(out, c.uncommittedEvent(events.EventTypeUncommittedChanges, curr.Changes))
	}
	return out
}

func (c *Classifier) branchEvents(prev, curr *git.Snapshot) []*events.MonitoringEvent {
	var out []*events.MonitoringEvent
	for _, name := range added(prev.Branches, curr.Branches) {
		ev := c.newEvent(events.EventTypeBranchCreated)
		_ = ev.SetBranchData(events.BranchData{BranchName: name, BaseBranch: prev.Branch})
		out = append(out, ev)
	}
	if prev.Branch != curr.Branch {
		ev := c.newEvent(events.EventTypeBranchSwitched)
		_ = ev.SetBranchData(events.BranchData{BranchName: curr.Branch, PreviousBranch: prev.Branch})
		out = append(out, ev)
	}
	for _, name := range added(curr.Branches, prev.Branches) {
		ev := c.newEvent(events.EventTypeBranchDeleted)
		_ = ev.SetBranchData(events.BranchData{BranchName: name})
		out = append(out, ev)
	}
	return out
}

// commitEvents reports a new HEAD on an unchanged branch, plus the progress
// event its subject implies. Merges do not imply progress.
func (c *Classifier) commitEvents(prev, curr *git.Snapshot) []*events.MonitoringEvent {
	last := curr.LastCommit
	if last == nil || (prev.LastCommit != nil && prev.LastCommit.Hash == last.Hash) {
		return nil
	}

	t := events.EventTypeCommitCreated
	if last.IsMerge() {
		t = events.EventTypeMergeCompleted
	}
	ev := c.newEvent(t)
	_ = ev.SetCommitData(events.CommitData{
		CommitID: last.Hash,
		Message:  last.Subject,
		Author:   last.Author,
		Branch:   curr.Branch,
	})
	out := []*events.MonitoringEvent{ev}

	if !last.IsMerge() {
		if progress := c.ClassifyCommit(last, curr.Branch); progress != nil {
			out = append(out, progress)
		}
	}
	return out
}

// pushEvent detects the upstream catching up with an unchanged HEAD, or a first
// push that set the upstream.
func (c *Classifier) pushEvent(prev, curr *git.Snapshot) *events.MonitoringEvent {
	if curr.Changes == nil || curr.Changes.Upstream == "" || curr.Changes.Ahead != 0 {
		return nil
	}
	if prev.LastCommit == nil || curr.LastCommit == nil || prev.LastCommit.Hash != curr.LastCommit.Hash {
		return nil
	}

	var prevUpstream string
	var prevAhead int
	if prev.Changes != nil {
		prevUpstream = prev.Changes.Upstream
		prevAhead = prev.Changes.Ahead
	}
	if prevUpstream == curr.Changes.Upstream && prevAhead == 0 {
		return nil
	}

	remote, _, _ := strings.Cut(curr.Changes.Upstream, "/")
	ev := c.newEvent(events.EventTypePushCompleted)
	_ = ev.SetPushData(events.PushData{Branch: curr.Branch, Remote: remote})
	return ev
}

// fileEvents reports paths that newly appear in the status or whose operation changed.
func (c *Classifier) fileEvents(prev, curr *git.Changes) []*events.MonitoringEvent {
	if curr == nil {
		return nil
	}
	before := make(map[string]string)
	if prev != nil {
		for _, f := range prev.Files {
			before[f.Path] = f.Operation()
		}
	}

	var out []*events.MonitoringEvent
	for _, f := range curr.Files {
		op := f.Operation()
		if prevOp, ok := before[f.Path]; ok && prevOp == op {
			continue
		}
		if ev := c.ClassifyFileChange(FileChange{Path: f.Path, Operation: op}); ev != nil {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Classifier) uncommittedEvent(t events.EventType, changes *git.Changes) *events.MonitoringEvent {
	ev := c.newEvent(t)
	_ = ev.SetUncommittedChangesData(events.UncommittedChangesData{
		Count:  changes.Count(),
		Files:  changes.Paths(),
		Staged: changes.StagedCount(),
	})
	return ev
}

// added returns the entries of curr missing from prev, sorted.
func added(prev, curr []string) []string {
	seen := make(map[string]bool, len(prev))
	for _, p := range prev {
		seen[p] = true
	}
	var out []string
	for _, c := range curr {
		if !seen[c] {
			out = append(out, c)
		}
	}
	slices.Sort(out)
	return out
}
