package git

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// FakeService is an in-memory GitService for tests and dry runs.
// Set the Err* fields to make the matching call fail.
type FakeService struct {
	mu sync.Mutex

	Branch   string
	Branches []string
	Tags     []string
	Last     *CommitInfo
	Changes  *Changes

	ErrStatus error
	ErrCommit error
	ErrPush   error

	// Calls records mutating operations in order, e.g. "commit:feat: x"
	Calls []string

	commits int
}

// NewFakeService returns a fake repository on main with no commits.
func NewFakeService() *FakeService {
	return &FakeService{
		Branch:   "main",
		Branches: []string{"main"},
		Changes:  &Changes{Files: []FileStatus{}},
	}
}

var _ GitService = (*FakeService)(nil)

func (f *FakeService) CreateBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slices.Contains(f.Branches, name) {
		return fmt.Errorf("branch %s already exists", name)
	}
	f.Branches = append(f.Branches, name)
	f.Branch = name
	f.Calls = append(f.Calls, "create:"+name)
	return nil
}

func (f *FakeService) CheckoutBranch(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !slices.Contains(f.Branches, name) {
		return fmt.Errorf("branch %s not found", name)
	}
	f.Branch = name
	f.Calls = append(f.Calls, "checkout:"+name)
	return nil
}

func (f *FakeService) StageAll(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Changes.Files {
		code := f.Changes.Files[i].Code
		switch code {
		case "??":
			f.Changes.Files[i].Code = "A "
		default:
			if len(code) == 2 && code[0] == ' ' {
				f.Changes.Files[i].Code = string(code[1]) + " "
			}
		}
	}
	f.Calls = append(f.Calls, "stage")
	return nil
}

func (f *FakeService) Commit(_ context.Context, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrCommit != nil {
		return "", f.ErrCommit
	}
	f.commits++
	hash := fmt.Sprintf("%040d", f.commits)
	var parents []string
	if f.Last != nil {
		parents = []string{f.Last.Hash}
	}
	f.Last = &CommitInfo{Hash: hash, Subject: message, Author: "Test User", Timestamp: time.Now(), Parents: parents}
	f.Changes = &Changes{Files: []FileStatus{}, Upstream: f.Changes.Upstream, Ahead: f.Changes.Ahead + 1}
	f.Calls = append(f.Calls, "commit:"+message)
	return hash, nil
}

func (f *FakeService) GetCurrentBranch(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStatus != nil {
		return "", f.ErrStatus
	}
	return f.Branch, nil
}

func (f *FakeService) GetUncommittedChanges(context.Context) (*Changes, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStatus != nil {
		return nil, f.ErrStatus
	}
	cp := *f.Changes
	cp.Files = slices.Clone(f.Changes.Files)
	return &cp, nil
}

func (f *FakeService) GetLastCommit(context.Context) (*CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStatus != nil {
		return nil, f.ErrStatus
	}
	if f.Last == nil {
		return nil, nil
	}
	cp := *f.Last
	return &cp, nil
}

func (f *FakeService) ListBranches(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStatus != nil {
		return nil, f.ErrStatus
	}
	return slices.Clone(f.Branches), nil
}

func (f *FakeService) ListTags(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrStatus != nil {
		return nil, f.ErrStatus
	}
	return slices.Clone(f.Tags), nil
}

func (f *FakeService) Push(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ErrPush != nil {
		return f.ErrPush
	}
	if f.Changes.Upstream == "" {
		f.Changes.Upstream = "origin/" + f.Branch
	}
	f.Changes.Ahead = 0
	f.Calls = append(f.Calls, "push")
	return nil
}

// SetChanges replaces the working tree status with the given porcelain entries.
func (f *FakeService) SetChanges(files ...FileStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Changes.Files = files
}

// RecordedCalls returns a copy of Calls.
func (f *FakeService) RecordedCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.Calls)
}

// SetStatusError makes every read fail with err until cleared with nil.
func (f *FakeService) SetStatusError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ErrStatus = err
}
