// Package watch observes the workspace for out-of-band modifications:
// writes that happen to tracked or locked paths outside a
// begin/complete window. It raises events only; the engine's
// bookkeeping is never mutated from here.
package watch

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/fakeyudi/rewind/internal/event"
	"github.com/fakeyudi/rewind/internal/track"
)

// Watcher reports external modifications to paths the engine cares
// about.
type Watcher struct {
	Engine         *track.Engine
	Emitter        event.Emitter
	IgnorePatterns []string
}

// Run starts a recursive fsnotify watcher on the engine's workspace and
// emits DiffStateUpdated events for out-of-band writes until ctx is
// cancelled. Watcher errors are non-fatal.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	workDir := w.Engine.Workspace()
	bookkeeping := w.Engine.Dir()

	// Walk the directory tree and add a watcher for every subdirectory,
	// skipping git control data and the engine's own bookkeeping.
	if err := filepath.WalkDir(workDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || path == bookkeeping {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	}); err != nil {
		return err
	}

	patterns := w.loadIgnorePatterns(workDir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) {
				w.handle(ev.Name, workDir, patterns)

				// If a new directory was created, watch it too.
				if ev.Has(fsnotify.Create) {
					if info, err := os.Stat(ev.Name); err == nil && info.IsDir() && ev.Name != bookkeeping {
						_ = watcher.Add(ev.Name)
					}
				}
			}

		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			// Watcher errors are non-fatal; continue watching.
		}
	}
}

// handle classifies one filesystem event and emits a notification when
// it looks like an out-of-band edit to an engine-tracked path.
func (w *Watcher) handle(path, workDir string, patterns []string) {
	if isIgnored(path, workDir, patterns) {
		return
	}

	// A pending operation means a tool is mutating this path through
	// the engine right now; that write is expected.
	if pending, err := w.Engine.HasPendingOperation(path); err != nil || pending {
		return
	}

	held, locked, err := w.Engine.FileLockStatus(path)
	if err != nil {
		return
	}
	if !locked && !w.isTracked(path) {
		return
	}

	ev := event.New(event.DiffStateUpdated, held.SessionID)
	ev.Path = path
	ev.Message = "external modification detected"
	w.emitter().Emit(ev)
}

// isTracked reports whether any live session has completed operations
// on path.
func (w *Watcher) isTracked(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	changes, err := w.Engine.GetAllModifiedFiles()
	if err != nil {
		return false
	}
	for _, change := range changes {
		if change.Path == abs {
			return true
		}
	}
	return false
}

func (w *Watcher) emitter() event.Emitter {
	if w.Emitter != nil {
		return w.Emitter
	}
	return event.NopEmitter{}
}

// isIgnored reports whether path matches any of the given glob patterns.
func isIgnored(path, workDir string, patterns []string) bool {
	rel := path
	if workDir != "" {
		if r, err := filepath.Rel(workDir, path); err == nil {
			rel = r
		}
	}
	base := filepath.Base(path)

	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, rel); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
	}
	return false
}

// loadIgnorePatterns merges the configured patterns with those from
// .gitignore and .rewindignore files found in the workspace.
func (w *Watcher) loadIgnorePatterns(workDir string) []string {
	patterns := make([]string, len(w.IgnorePatterns))
	copy(patterns, w.IgnorePatterns)

	for _, name := range []string{".gitignore", ".rewindignore"} {
		extra, err := readPatternFile(filepath.Join(workDir, name))
		if err != nil {
			continue
		}
		patterns = append(patterns, extra...)
	}
	return patterns
}

// readPatternFile reads a gitignore-style file and returns non-empty,
// non-comment lines.
func readPatternFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	return patterns, scanner.Err()
}
