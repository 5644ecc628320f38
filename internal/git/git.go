package git

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Git implements GitService using the git CLI against one repository.
type Git struct {
	// gitPath is the path to the git executable
	gitPath string
	// repoPath is the repository working tree
	repoPath string
}

// NewGit creates a new Git instance bound to repoPath.
// It verifies that git is available and that repoPath is a work tree.
// SECURITY: repoPath must be a validated, trusted path.
func NewGit(ctx context.Context, repoPath string) (*Git, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git not found in PATH: %w", err)
	}

	g := &Git{gitPath: gitPath, repoPath: repoPath}
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return nil, fmt.Errorf("%s is not a git repository: %w", repoPath, err)
	}
	if strings.TrimSpace(out) != "true" {
		return nil, fmt.Errorf("%s is not a git work tree", repoPath)
	}
	return g, nil
}

// RepoPath returns the repository the instance operates on.
func (g *Git) RepoPath() string { return g.repoPath }

// run executes git -C repoPath args... and returns stdout.
// The error carries stderr so callers can log something useful.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-C", g.repoPath}, args...)
	cmd := exec.CommandContext(ctx, g.gitPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("git %s failed in %s: %w", args[0], g.repoPath, err)
		}
		return "", fmt.Errorf("git %s failed in %s: %w: %s", args[0], g.repoPath, err, msg)
	}
	return string(out), nil
}

// CreateBranch creates a new branch from HEAD and checks it out.
func (g *Git) CreateBranch(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name is required")
	}
	_, err := g.run(ctx, "checkout", "-b", name)
	return err
}

// CheckoutBranch switches to an existing branch.
func (g *Git) CheckoutBranch(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("branch name is required")
	}
	_, err := g.run(ctx, "checkout", name)
	return err
}

// StageAll stages every change (git add -A).
func (g *Git) StageAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// Commit commits the index and returns the new HEAD hash.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("commit message is required")
	}
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	out, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get commit hash: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// GetCurrentBranch returns the current branch, or "HEAD" when detached.
// Works in a repository without commits.
func (g *Git) GetCurrentBranch(ctx context.Context) (string, error) {
	out, err := g.run(ctx, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return "HEAD", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// GetUncommittedChanges returns the working tree status including upstream tracking.
func (g *Git) GetUncommittedChanges(ctx context.Context) (*Changes, error) {
	out, err := g.run(ctx, "status", "--porcelain=v1", "-b")
	if err != nil {
		return nil, err
	}
	return ParseStatus(out)
}

var trackingRe = regexp.MustCompile(`^## (?:\S+?)\.\.\.(\S+)(?: \[(.+)\])?$`)

// ParseStatus parses `git status --porcelain=v1 -b` output.
func ParseStatus(output string) (*Changes, error) {
	changes := &Changes{Files: []FileStatus{}}

	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "## ") {
			parseTracking(line, changes)
			continue
		}
		if len(line) < 4 {
			continue
		}

		code := line[0:2]
		path := line[3:]
		// Renames are reported as "old -> new"
		if idx := strings.Index(path, " -> "); idx >= 0 {
			path = path[idx+4:]
		}
		changes.Files = append(changes.Files, FileStatus{Path: strings.Trim(path, `"`), Code: code})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse git status: %w", err)
	}
	return changes, nil
}

func parseTracking(line string, changes *Changes) {
	m := trackingRe.FindStringSubmatch(line)
	if m == nil {
		return
	}
	changes.Upstream = m[1]
	for _, part := range strings.Split(m[2], ",") {
		fields := strings.Fields(part)
		if len(fields) != 2 {
			continue
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		switch fields[0] {
		case "ahead":
			changes.Ahead = n
		case "behind":
			changes.Behind = n
		}
	}
}

// GetLastCommit returns HEAD, or nil when the repository has no commits.
func (g *Git) GetLastCommit(ctx context.Context) (*CommitInfo, error) {
	if _, err := g.run(ctx, "rev-parse", "--verify", "-q", "HEAD"); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return nil, nil
		}
		return nil, err
	}

	out, err := g.run(ctx, "log", "-1", "--format=%H%x1f%s%x1f%an%x1f%ct%x1f%P")
	if err != nil {
		return nil, err
	}
	return parseCommitLine(strings.TrimRight(out, "\n"))
}

func parseCommitLine(line string) (*CommitInfo, error) {
	parts := strings.Split(line, "\x1f")
	if len(parts) != 5 {
		return nil, fmt.Errorf("unexpected git log output: %q", line)
	}
	secs, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid commit timestamp %q: %w", parts[3], err)
	}
	return &CommitInfo{
		Hash:      parts[0],
		Subject:   parts[1],
		Author:    parts[2],
		Timestamp: time.Unix(secs, 0),
		Parents:   strings.Fields(parts[4]),
	}, nil
}

// ListBranches returns local branch names.
func (g *Git) ListBranches(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// ListTags returns tag names.
func (g *Git) ListTags(ctx context.Context) ([]string, error) {
	out, err := g.run(ctx, "tag", "--list")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// Push pushes the current branch. Without an upstream it pushes to origin and sets it.
func (g *Git) Push(ctx context.Context) error {
	branch, err := g.GetCurrentBranch(ctx)
	if err != nil {
		return err
	}
	if branch == "HEAD" {
		return fmt.Errorf("cannot push a detached HEAD")
	}

	if _, err := g.run(ctx, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}"); err != nil {
		_, err = g.run(ctx, "push", "-u", "origin", branch)
		return err
	}
	_, err = g.run(ctx, "push")
	return err
}

// GetDiff returns the diff of the working tree, or of the index when staged.
// Used to give the commit message writer context.
func (g *Git) GetDiff(ctx context.Context, staged bool) (string, error) {
	args := []string{"diff"}
	if staged {
		args = append(args, "--staged")
	}
	return g.run(ctx, args...)
}

func splitLines(out string) []string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
