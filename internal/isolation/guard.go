// Package isolation keeps the engine's bookkeeping invisible to the
// user's git repository. The guard owns the workspace-local metadata
// directory, keeps it git-ignored, and vets every path the engine is
// asked to touch.
package isolation

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrUnsafePath is returned when a path would expose bookkeeping to, or
// lies inside, the user's git control directory.
var ErrUnsafePath = errors.New("git isolation violation")

// DefaultDirName is the bookkeeping directory created under the
// workspace root.
const DefaultDirName = ".rewind"

// ignoreFileContent makes git ignore everything inside the bookkeeping
// directory, including the ignore file itself.
const ignoreFileContent = "*\n"

// GitRunner executes a git command and returns its output.
// This abstraction allows mocking in tests.
type GitRunner func(workDir string, args ...string) (string, error)

// defaultGitRunner runs git as a real subprocess.
func defaultGitRunner(workDir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// Guard verifies path safety for a single workspace.
type Guard struct {
	Workspace string
	DirName   string    // bookkeeping directory name; DefaultDirName if empty
	Runner    GitRunner // if nil, uses the real git subprocess

	gitDir string // resolved git control directory, empty outside a repo
}

// NewGuard returns a guard for the given workspace root.
func NewGuard(workspace string) *Guard {
	return &Guard{Workspace: workspace, DirName: DefaultDirName}
}

// Dir returns the absolute bookkeeping directory path.
func (g *Guard) Dir() string {
	name := g.DirName
	if name == "" {
		name = DefaultDirName
	}
	return filepath.Join(g.Workspace, name)
}

// Setup creates the bookkeeping directory and writes a scoped
// .gitignore so nothing under it ever reaches the user's repository.
// Setup is idempotent and safe to call on every engine initialization.
func (g *Guard) Setup() error {
	dir := g.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating bookkeeping directory: %w", err)
	}

	ignorePath := filepath.Join(dir, ".gitignore")
	if existing, err := os.ReadFile(ignorePath); err == nil && string(existing) == ignoreFileContent {
		// Already in place; don't rewrite.
	} else if err := os.WriteFile(ignorePath, []byte(ignoreFileContent), 0o644); err != nil {
		return fmt.Errorf("writing bookkeeping .gitignore: %w", err)
	}

	g.gitDir = g.resolveGitDir()
	return nil
}

// resolveGitDir asks git for the control directory of the workspace.
// Returns the empty string when the workspace is not inside a repo;
// handles worktrees, where .git is a file pointing elsewhere.
func (g *Guard) resolveGitDir() string {
	runner := g.Runner
	if runner == nil {
		runner = defaultGitRunner
	}
	out, err := runner(g.Workspace, "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "" // not a repository, or git unavailable
	}
	return strings.TrimSpace(out)
}

// IsPathSafe reports whether path may be snapshotted, locked, or
// restored without touching git's control data or the engine's own
// bookkeeping. The check is lexical plus the resolved git dir.
func (g *Guard) IsPathSafe(path string) bool {
	return g.CheckPath(path) == nil
}

// CheckPath returns a wrapped ErrUnsafePath explaining why path is
// rejected, or nil when it is safe.
func (g *Guard) CheckPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: unresolvable path %q", ErrUnsafePath, path)
	}
	abs = filepath.Clean(abs)

	for _, seg := range strings.Split(abs, string(filepath.Separator)) {
		if seg == ".git" {
			return fmt.Errorf("%w: %s is inside a git control directory", ErrUnsafePath, path)
		}
	}
	if g.gitDir != "" && within(abs, g.gitDir) {
		return fmt.Errorf("%w: %s is inside the git control directory", ErrUnsafePath, path)
	}
	if absDir, err := filepath.Abs(g.Dir()); err == nil && within(abs, absDir) {
		return fmt.Errorf("%w: %s is inside the bookkeeping directory", ErrUnsafePath, path)
	}
	return nil
}

// within reports whether path is dir or a descendant of dir.
func within(path, dir string) bool {
	dir = filepath.Clean(dir)
	if path == dir {
		return true
	}
	return strings.HasPrefix(path, dir+string(filepath.Separator))
}

// Cleanup removes per-operation records and snapshot blobs whose files
// are older than keepRecentDays, returning the number removed. Session
// metadata files are kept. Invoked by the external retention service
// and the purge command.
func (g *Guard) Cleanup(keepRecentDays int) (int, error) {
	if keepRecentDays < 0 {
		keepRecentDays = 0
	}
	cutoff := time.Now().AddDate(0, 0, -keepRecentDays)

	removed := 0
	for _, sub := range []string{"blobs", "ops"} {
		root := filepath.Join(g.Dir(), sub)
		if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil // skip unreadable entries
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.ModTime().Before(cutoff) {
				if os.Remove(path) == nil {
					removed++
				}
			}
			return nil
		})
		if err != nil {
			return removed, fmt.Errorf("sweeping %s: %w", sub, err)
		}
	}
	return removed, nil
}
