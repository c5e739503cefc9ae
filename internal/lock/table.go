// Package lock implements a per-path advisory lock registry. Locks are
// cooperative claims used to detect conflicting concurrent tool
// executions; nothing at the OS level is enforced.
package lock

import (
	"sort"
	"sync"
	"time"
)

// Lock records the current holder of a path.
type Lock struct {
	Path       string    `json:"path"`
	SessionID  string    `json:"session_id"`
	Tool       string    `json:"tool"`
	Kind       string    `json:"kind,omitempty"` // operation kind at acquisition
	AcquiredAt time.Time `json:"acquired_at"`
}

// Conflict describes a lock held by another session, for the caller to
// surface to the agent or user instead of silently overwriting.
type Conflict struct {
	Path       string    `json:"path"`
	SessionID  string    `json:"session_id"` // the blocking session
	Tool       string    `json:"tool"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// Table is an in-memory advisory lock map, guarded independently from
// the operation index so lock traffic never contends with index traffic.
type Table struct {
	mu    sync.RWMutex
	locks map[string]Lock
}

// NewTable returns an empty lock table.
func NewTable() *Table {
	return &Table{locks: make(map[string]Lock)}
}

// TryAcquire claims path for session. It succeeds when no lock exists
// or the existing lock is already held by the same session (the tool
// and kind are refreshed). It never blocks and never queues.
func (t *Table) TryAcquire(path, sessionID, tool, kind string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if held, ok := t.locks[path]; ok && held.SessionID != sessionID {
		return false
	}
	t.locks[path] = Lock{
		Path:       path,
		SessionID:  sessionID,
		Tool:       tool,
		Kind:       kind,
		AcquiredAt: time.Now(),
	}
	return true
}

// Release drops the lock on path if held by session. Releasing an
// absent lock or another session's lock is a no-op.
func (t *Table) Release(path, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if held, ok := t.locks[path]; ok && held.SessionID == sessionID {
		delete(t.locks, path)
	}
}

// ReleaseSession drops every lock held by session and returns the
// released paths, sorted.
func (t *Table) ReleaseSession(sessionID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	var paths []string
	for path, held := range t.locks {
		if held.SessionID == sessionID {
			delete(t.locks, path)
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// Status returns the current lock on path, if any.
func (t *Table) Status(path string) (Lock, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	held, ok := t.locks[path]
	return held, ok
}

// DetectConflict reports whether path is locked by a session other than
// sessionID. Returns nil when the path is free or held by sessionID.
func (t *Table) DetectConflict(sessionID, path string) *Conflict {
	t.mu.RLock()
	defer t.mu.RUnlock()

	held, ok := t.locks[path]
	if !ok || held.SessionID == sessionID {
		return nil
	}
	return &Conflict{
		Path:       path,
		SessionID:  held.SessionID,
		Tool:       held.Tool,
		AcquiredAt: held.AcquiredAt,
	}
}

// Held returns the paths currently locked by session, sorted.
func (t *Table) Held(sessionID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var paths []string
	for path, held := range t.locks {
		if held.SessionID == sessionID {
			paths = append(paths, path)
		}
	}
	sort.Strings(paths)
	return paths
}

// All returns every active lock, sorted by path. Used by status
// displays.
func (t *Table) All() []Lock {
	t.mu.RLock()
	defer t.mu.RUnlock()

	locks := make([]Lock, 0, len(t.locks))
	for _, held := range t.locks {
		locks = append(locks, held)
	}
	sort.Slice(locks, func(i, j int) bool { return locks[i].Path < locks[j].Path })
	return locks
}
