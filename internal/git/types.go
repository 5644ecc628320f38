package git

import (
	"context"
	"time"
)

// GitService is the git capability the pipeline consumes.
// Implementations may fail with I/O errors; callers treat a failure as
// "observation unavailable this cycle", not as fatal.
type GitService interface {
	// CreateBranch creates name from the current HEAD and checks it out.
	CreateBranch(ctx context.Context, name string) error

	// CheckoutBranch switches HEAD to an existing branch.
	CheckoutBranch(ctx context.Context, name string) error

	// StageAll stages every change in the working tree (git add -A).
	StageAll(ctx context.Context) error

	// Commit commits the index and returns the new commit hash.
	Commit(ctx context.Context, message string) (string, error)

	// GetCurrentBranch returns the branch HEAD points at.
	GetCurrentBranch(ctx context.Context) (string, error)

	// GetUncommittedChanges returns the working tree status.
	GetUncommittedChanges(ctx context.Context) (*Changes, error)

	// GetLastCommit returns the HEAD commit, or nil for a repository without commits.
	GetLastCommit(ctx context.Context) (*CommitInfo, error)

	// ListBranches returns local branch names.
	ListBranches(ctx context.Context) ([]string, error)

	// ListTags returns tag names.
	ListTags(ctx context.Context) ([]string, error)

	// Push pushes the current branch to its upstream, setting it if missing.
	Push(ctx context.Context) error
}

// FileStatus is a single path from git status.
type FileStatus struct {
	// Path is relative to the repository root
	Path string `json:"path"`
	// Code is the two-letter porcelain status, e.g. "??", " M", "A "
	Code string `json:"code"`
}

// Staged reports whether the index side of the status records a change.
func (f FileStatus) Staged() bool {
	return len(f.Code) == 2 && f.Code[0] != ' ' && f.Code[0] != '?'
}

// Operation maps the status code to created, modified or deleted.
func (f FileStatus) Operation() string {
	switch {
	case f.Code == "??", len(f.Code) > 0 && f.Code[0] == 'A':
		return "created"
	case len(f.Code) == 2 && (f.Code[0] == 'D' || f.Code[1] == 'D'):
		return "deleted"
	default:
		return "modified"
	}
}

// Changes is the working tree status of a repository.
type Changes struct {
	// Files lists every changed path in porcelain order
	Files []FileStatus `json:"files"`
	// Upstream is the tracking branch, e.g. origin/main, or "" when none is set
	Upstream string `json:"upstream,omitempty"`
	// Ahead is the number of local commits not on the upstream
	Ahead int `json:"ahead"`
	// Behind is the number of upstream commits not yet local
	Behind int `json:"behind"`
}

// Count returns the number of changed paths.
func (c *Changes) Count() int {
	if c == nil {
		return 0
	}
	return len(c.Files)
}

// StagedCount returns the number of paths with staged changes.
func (c *Changes) StagedCount() int {
	if c == nil {
		return 0
	}
	n := 0
	for _, f := range c.Files {
		if f.Staged() {
			n++
		}
	}
	return n
}

// Paths returns the changed paths.
func (c *Changes) Paths() []string {
	if c == nil {
		return nil
	}
	paths := make([]string, 0, len(c.Files))
	for _, f := range c.Files {
		paths = append(paths, f.Path)
	}
	return paths
}

// CommitInfo describes a single commit.
type CommitInfo struct {
	Hash      string    `json:"hash"`
	Subject   string    `json:"subject"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
	// Parents lists parent hashes; more than one means a merge commit
	Parents []string `json:"parents,omitempty"`
}

// IsMerge reports whether the commit has more than one parent.
func (c *CommitInfo) IsMerge() bool {
	return c != nil && len(c.Parents) > 1
}

// Snapshot is one observation of repository state taken by the Watcher.
type Snapshot struct {
	Branch     string
	Branches   []string
	Tags       []string
	LastCommit *CommitInfo
	Changes    *Changes
	TakenAt    time.Time
}
