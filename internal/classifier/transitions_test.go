package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/gitpulse/internal/events"
	"github.com/steveyegge/gitpulse/internal/git"
)

func snapshot(branch string, branches []string, head string, changes *git.Changes) *git.Snapshot {
	var last *git.CommitInfo
	if head != "" {
		last = &git.CommitInfo{Hash: head, Subject: "chore: " + head}
	}
	if changes == nil {
		changes = &git.Changes{}
	}
	return &git.Snapshot{Branch: branch, Branches: branches, LastCommit: last, Changes: changes}
}

func types(evs []*events.MonitoringEvent) []events.EventType {
	out := make([]events.EventType, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.Type)
	}
	return out
}

func TestFirstObservation(t *testing.T) {
	c := newTestClassifier(t)

	assert.Empty(t, c.ClassifyTransition(nil, snapshot("main", []string{"main"}, "a", nil)))

	dirty := snapshot("main", []string{"main"}, "a", &git.Changes{Files: []git.FileStatus{{Path: "x.go", Code: " M"}}})
	got := c.ClassifyTransition(nil, dirty)
	assert.Equal(t, []events.EventType{events.EventTypeUncommittedChanges}, types(got))
}

func TestNewBranchYieldsExactlyOneBranchCreated(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main"}, "a", nil)
	curr := snapshot("main", []string{"main", "feature/login"}, "a", nil)

	got := c.ClassifyTransition(prev, curr)
	require.Len(t, got, 1)
	assert.Equal(t, events.EventTypeBranchCreated, got[0].Type)

	data, err := got[0].GetBranchData()
	require.NoError(t, err)
	assert.Equal(t, "feature/login", data.BranchName)
	assert.Equal(t, "main", data.BaseBranch)
}

func TestCreateAndSwitchBranch(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main", "old"}, "a", nil)
	curr := snapshot("feature/x", []string{"main", "feature/x"}, "a", nil)

	got := c.ClassifyTransition(prev, curr)
	assert.Equal(t, []events.EventType{
		events.EventTypeBranchCreated,
		events.EventTypeBranchSwitched,
		events.EventTypeBranchDeleted,
	}, types(got))
}

func TestSwitchDoesNotReportCommit(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main", "dev"}, "a", nil)
	curr := snapshot("dev", []string{"main", "dev"}, "b", nil)

	assert.Equal(t, []events.EventType{events.EventTypeBranchSwitched}, types(c.ClassifyTransition(prev, curr)))
}

func TestNewCommitWithProgress(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main"}, "a", &git.Changes{Files: []git.FileStatus{{Path: "x.go", Code: "M "}}})
	curr := snapshot("main", []string{"main"}, "", &git.Changes{})
	curr.LastCommit = &git.CommitInfo{Hash: "b", Subject: "feat: search", Parents: []string{"a"}}

	got := c.ClassifyTransition(prev, curr)
	assert.Equal(t, []events.EventType{
		events.EventTypeCommitCreated,
		events.EventTypeFeatureComplete,
		events.EventTypeUncommittedChanges,
	}, types(got))

	data, err := got[0].GetCommitData()
	require.NoError(t, err)
	assert.Equal(t, "b", data.CommitID)
	assert.Equal(t, "main", data.Branch)
}

func TestFirstCommitInEmptyRepo(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", nil, "", nil)
	curr := snapshot("main", []string{"main"}, "a", nil)

	got := c.ClassifyTransition(prev, curr)
	assert.Equal(t, []events.EventType{events.EventTypeBranchCreated, events.EventTypeCommitCreated}, types(got))
}

func TestMergeCommit(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main"}, "a", nil)
	curr := snapshot("main", []string{"main"}, "", nil)
	curr.LastCommit = &git.CommitInfo{Hash: "m", Subject: "feat: merged", Parents: []string{"a", "f"}}

	assert.Equal(t, []events.EventType{events.EventTypeMergeCompleted}, types(c.ClassifyTransition(prev, curr)))
}

func TestPushDetection(t *testing.T) {
	c := newTestClassifier(t)

	prev := snapshot("feature/x", []string{"feature/x"}, "a", &git.Changes{Upstream: "origin/feature/x", Ahead: 2})
	curr := snapshot("feature/x", []string{"feature/x"}, "a", &git.Changes{Upstream: "origin/feature/x"})
	got := c.ClassifyTransition(prev, curr)
	require.Equal(t, []events.EventType{events.EventTypePushCompleted}, types(got))

	data, err := got[0].GetPushData()
	require.NoError(t, err)
	assert.Equal(t, "origin", data.Remote)
	assert.Equal(t, "feature/x", data.Branch)

	// First push sets the upstream.
	prev = snapshot("feature/x", []string{"feature/x"}, "a", &git.Changes{})
	assert.Equal(t, []events.EventType{events.EventTypePushCompleted}, types(c.ClassifyTransition(prev, curr)))

	// Nothing changed, no push.
	assert.Empty(t, c.ClassifyTransition(curr, curr))
}

func TestTagAndFileEvents(t *testing.T) {
	c := newTestClassifier(t)
	prev := snapshot("main", []string{"main"}, "a", &git.Changes{Files: []git.FileStatus{
		{Path: "keep.go", Code: " M"},
	}})
	curr := snapshot("main", []string{"main"}, "a", &git.Changes{Files: []git.FileStatus{
		{Path: "keep.go", Code: "M "},
		{Path: "new.go", Code: "??"},
		{Path: "gone.go", Code: " D"},
	}})
	curr.Tags = []string{"v1.0.0"}

	got := c.ClassifyTransition(prev, curr)
	assert.Equal(t, []events.EventType{
		events.EventTypeTagCreated,
		events.EventTypeFileCreated,
		events.EventTypeFileDeleted,
		events.EventTypeChangesStaged,
		events.EventTypeUncommittedChanges,
	}, types(got))

	uc, err := got[4].GetUncommittedChangesData()
	require.NoError(t, err)
	assert.Equal(t, 3, uc.Count)
	assert.Equal(t, 1, uc.Staged)
}
