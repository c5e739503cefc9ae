package track

import "github.com/fakeyudi/rewind/internal/lock"

// Lock pass-throughs: thin wrappers over the lock table, gated by
// initialization and path-safety checks. The table has its own guard so
// these never contend with operation index traffic.

// TryAcquireFileLock claims an advisory lock on path for a session.
// Returns false without blocking when another session holds it.
func (e *Engine) TryAcquireFileLock(sessionID, path, tool string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	resolved, err := e.safePath(path)
	if err != nil {
		return false, err
	}
	return e.locks.TryAcquire(resolved, sessionID, tool, ""), nil
}

// ReleaseFileLock drops the session's lock on path. Releasing an absent
// or foreign lock is a no-op; another session's lock is never forced.
func (e *Engine) ReleaseFileLock(sessionID, path string) error {
	if err := e.ready(); err != nil {
		return err
	}
	resolved, err := e.safePath(path)
	if err != nil {
		return err
	}
	e.locks.Release(resolved, sessionID)
	return nil
}

// FileLockStatus returns the current lock on path, if any.
func (e *Engine) FileLockStatus(path string) (lock.Lock, bool, error) {
	if err := e.ready(); err != nil {
		return lock.Lock{}, false, err
	}
	resolved, err := e.safePath(path)
	if err != nil {
		return lock.Lock{}, false, err
	}
	held, ok := e.locks.Status(resolved)
	return held, ok, nil
}

// DetectFileConflict reports the blocking holder when path is locked by
// a different session, for the caller to surface rather than silently
// overwrite. Returns nil when the path is free or held by sessionID.
func (e *Engine) DetectFileConflict(sessionID, path string) (*lock.Conflict, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	resolved, err := e.safePath(path)
	if err != nil {
		return nil, err
	}
	return e.locks.DetectConflict(sessionID, resolved), nil
}

// ActiveLocks returns every advisory lock currently held.
func (e *Engine) ActiveLocks() ([]lock.Lock, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.locks.All(), nil
}

// ready checks initialization under the read lock. Lock-table calls
// never take the index writer lock.
func (e *Engine) ready() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.initialized {
		return ErrNotInitialized
	}
	return nil
}

// safePath resolves and vets a path without holding the index lock.
func (e *Engine) safePath(path string) (string, error) {
	return e.checkPath(path)
}
