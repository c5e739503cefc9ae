package track

import (
	"fmt"

	"github.com/fakeyudi/rewind/internal/diff"
	"github.com/fakeyudi/rewind/internal/index"
	"github.com/fakeyudi/rewind/internal/snapshot"
)

// Query operations are read-only projections over the operation index.
// They share the reader side of the engine lock and may run
// concurrently with each other.

// FileDiff is the result of a diff query: the line counts plus the
// unified text rendered on demand.
type FileDiff struct {
	Path    string       `json:"path"`
	Summary diff.Summary `json:"summary"`
	Unified string       `json:"unified"`
}

// GetSessionFiles returns the latest completed change per path in a
// session. Empty after the session was rolled back or accepted.
func (e *Engine) GetSessionFiles(sessionID string) ([]index.FileChange, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.index.SessionFiles(sessionID), nil
}

// GetTurnFiles returns the latest completed change per path within one
// turn of a session.
func (e *Engine) GetTurnFiles(sessionID string, turn int) ([]index.FileChange, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.index.TurnFiles(sessionID, turn), nil
}

// GetFileDiff diffs a path against the session's earliest recorded
// before-state.
func (e *Engine) GetFileDiff(sessionID, path string) (FileDiff, error) {
	return e.GetFileDiffWithAnchor(sessionID, path, "")
}

// GetFileDiffWithAnchor diffs a path's latest completed content against
// the before-state of an explicit prior operation, answering "what
// changed since operation X". With an empty anchor it falls back to the
// session's earliest record for the path.
func (e *Engine) GetFileDiffWithAnchor(sessionID, path, anchorOpID string) (FileDiff, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return FileDiff{}, ErrNotInitialized
	}
	resolved, err := e.checkPath(path)
	if err != nil {
		return FileDiff{}, err
	}

	var completed []*index.Operation
	for _, op := range e.index.History(sessionID, resolved) {
		if op.Status == index.StatusCompleted {
			completed = append(completed, op)
		}
	}
	if len(completed) == 0 {
		return FileDiff{}, fmt.Errorf("no completed operations for %s: %w", path, index.ErrNotFound)
	}

	anchor := completed[0]
	if anchorOpID != "" {
		anchor = nil
		for _, op := range completed {
			if op.ID == anchorOpID {
				anchor = op
				break
			}
		}
		if anchor == nil {
			return FileDiff{}, fmt.Errorf("anchor operation %s: %w", anchorOpID, index.ErrNotFound)
		}
	}

	oldText, err := e.snapshotText(anchor.Before)
	if err != nil {
		return FileDiff{}, err
	}
	newText, err := e.snapshotText(completed[len(completed)-1].After)
	if err != nil {
		return FileDiff{}, err
	}

	return FileDiff{
		Path:    resolved,
		Summary: diff.Compute(oldText, newText),
		Unified: diff.Unified(oldText, newText, "a/"+resolved, "b/"+resolved, e.contextLines),
	}, nil
}

// GetSessionStats summarizes a session's tracked activity.
func (e *Engine) GetSessionStats(sessionID string) (index.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return index.Stats{}, ErrNotInitialized
	}
	st, ok := e.index.Stats(sessionID)
	if !ok {
		return index.Stats{}, fmt.Errorf("session %s: %w", sessionID, index.ErrNotFound)
	}
	return st, nil
}

// GetFileChangeHistory returns every operation recorded for a path in a
// session, oldest first, pending included.
func (e *Engine) GetFileChangeHistory(sessionID, path string) ([]index.Operation, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	resolved, err := e.checkPath(path)
	if err != nil {
		return nil, err
	}
	ops := e.index.History(sessionID, resolved)
	out := make([]index.Operation, len(ops))
	for i, op := range ops {
		out[i] = *op
	}
	return out, nil
}

// GetAllModifiedFiles returns the latest completed change per
// (session, path) pair across all live sessions.
func (e *Engine) GetAllModifiedFiles() ([]index.FileChange, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	return e.index.AllModifiedFiles(), nil
}

// ListSessions returns stats for every live session, ordered by
// creation time.
func (e *Engine) ListSessions() ([]index.Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	sessions := e.index.Sessions()
	stats := make([]index.Stats, 0, len(sessions))
	for _, sess := range sessions {
		if st, ok := e.index.Stats(sess.ID); ok {
			stats = append(stats, st)
		}
	}
	return stats, nil
}

// HasPendingOperation reports whether any live session has a Pending
// operation open on path. Used by the external-change watcher to tell
// in-flight tool writes apart from out-of-band edits.
func (e *Engine) HasPendingOperation(path string) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return false, ErrNotInitialized
	}
	resolved, err := e.checkPath(path)
	if err != nil {
		return false, err
	}
	for _, sess := range e.index.Sessions() {
		for _, op := range sess.Operations() {
			if op.Path == resolved && op.Status == index.StatusPending {
				return true, nil
			}
		}
	}
	return false, nil
}

// snapshotText loads a snapshot as a string; an absent id reads as the
// empty string (file did not exist on that side).
func (e *Engine) snapshotText(id snapshot.ID) (string, error) {
	if id == "" {
		return "", nil
	}
	data, err := e.store.Get(id)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
