// Package track is the single entry point to the change-tracking and
// rollback engine. The Engine composes the content store, operation
// index, lock table, and isolation guard, and fans lifecycle events out
// to an injected emitter.
//
// Tool executors must call BeginOperation strictly before mutating a
// path and CompleteOperation with the returned id afterward. Rollback,
// accept, and query calls may arrive at any time between operations.
package track

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/rewind/internal/diff"
	"github.com/fakeyudi/rewind/internal/event"
	"github.com/fakeyudi/rewind/internal/index"
	"github.com/fakeyudi/rewind/internal/isolation"
	"github.com/fakeyudi/rewind/internal/lock"
	"github.com/fakeyudi/rewind/internal/snapshot"
)

// Errors returned by the engine. Path-safety violations surface as
// isolation.ErrUnsafePath and missing ids as index.ErrNotFound or
// snapshot.ErrNotFound; everything else wraps the underlying I/O error.
var (
	ErrNotInitialized = errors.New("engine not initialized")
	ErrEmptyOperation = errors.New("operation has neither before nor after content")
)

// Engine orchestrates change tracking for one workspace. A single
// reader/writer lock serializes mutations against each other and
// against concurrent queries; the lock table is guarded independently
// so lock checks never contend with index traffic.
type Engine struct {
	mu sync.RWMutex

	workspace    string
	dirName      string
	contextLines int
	emitter      event.Emitter
	gitRunner    isolation.GitRunner

	guard *isolation.Guard
	store *snapshot.Store
	index *index.Index
	locks *lock.Table

	initialized bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithEmitter wires an event sink. The default discards all events.
func WithEmitter(em event.Emitter) Option {
	return func(e *Engine) {
		if em != nil {
			e.emitter = em
		}
	}
}

// WithBookkeepingDir overrides the metadata directory name created
// under the workspace root.
func WithBookkeepingDir(name string) Option {
	return func(e *Engine) {
		if name != "" {
			e.dirName = name
		}
	}
}

// WithDiffContextLines sets the context shown in unified diff output.
func WithDiffContextLines(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.contextLines = n
		}
	}
}

// WithGitRunner substitutes the git subprocess runner, for tests.
func WithGitRunner(r isolation.GitRunner) Option {
	return func(e *Engine) { e.gitRunner = r }
}

// New creates an engine for the given workspace root. Call Initialize
// before anything else.
func New(workspace string, opts ...Option) *Engine {
	e := &Engine{
		workspace:    workspace,
		dirName:      isolation.DefaultDirName,
		contextLines: diff.DefaultContextLines,
		emitter:      event.NopEmitter{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Initialize sets up isolation, opens the operation index, and creates
// the lock table. It is idempotent; every other method fails with
// ErrNotInitialized until it has run.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	guard := isolation.NewGuard(e.workspace)
	guard.DirName = e.dirName
	guard.Runner = e.gitRunner
	if err := guard.Setup(); err != nil {
		return fmt.Errorf("isolation setup: %w", err)
	}

	store, err := snapshot.NewStore(filepath.Join(guard.Dir(), "blobs"))
	if err != nil {
		return err
	}
	ix, err := index.Open(guard.Dir())
	if err != nil {
		return err
	}

	e.guard = guard
	e.store = store
	e.index = ix
	e.locks = lock.NewTable()
	e.initialized = true
	return nil
}

// Workspace returns the workspace root this engine tracks.
func (e *Engine) Workspace() string {
	return e.workspace
}

// Dir returns the bookkeeping directory, valid after Initialize.
func (e *Engine) Dir() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.guard == nil {
		return filepath.Join(e.workspace, e.dirName)
	}
	return e.guard.Dir()
}

// BeginParams describes a mutation about to happen.
type BeginParams struct {
	SessionID   string
	Turn        int
	Path        string
	Kind        index.Kind
	Tool        string
	ToolInput   string
	OperationID string // engine-generated when empty
}

// BeginOperation must be called strictly before the tool touches the
// filesystem. It validates path safety, snapshots the current content
// as the before-state, registers a Pending operation, records the
// path's baseline on first touch, and claims the advisory lock.
func (e *Engine) BeginOperation(p BeginParams) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return "", ErrNotInitialized
	}
	path, err := e.checkPath(p.Path)
	if err != nil {
		return "", err
	}

	var before snapshot.ID
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		before, err = e.store.Put(data)
		if err != nil {
			return "", err
		}
	case errors.Is(err, os.ErrNotExist):
		// No before-state: the tool is creating this file.
	default:
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	_, created, err := e.index.EnsureSession(p.SessionID)
	if err != nil {
		return "", err
	}
	if created {
		e.emit(event.New(event.SessionCreated, p.SessionID))
	}

	opID := p.OperationID
	if opID == "" {
		opID = uuid.New().String()
	}
	op := &index.Operation{
		ID:        opID,
		SessionID: p.SessionID,
		Turn:      p.Turn,
		Path:      path,
		Kind:      p.Kind,
		Tool:      p.Tool,
		ToolInput: p.ToolInput,
		Before:    before,
		StartedAt: time.Now(),
	}
	if err := e.index.AddPending(op); err != nil {
		return "", err
	}
	if err := e.index.RecordBaseline(path, before); err != nil {
		return "", err
	}

	// Advisory claim; a conflicting holder is surfaced to callers via
	// DetectFileConflict, never enforced here.
	e.locks.TryAcquire(path, p.SessionID, p.Tool, string(p.Kind))

	ev := event.New(event.FileModificationStarted, p.SessionID)
	ev.Path = path
	ev.OperationID = opID
	ev.Turn = p.Turn
	e.emit(ev)
	return opID, nil
}

// CompleteOperation must be called after the tool finished mutating the
// path, with the exact id BeginOperation returned. It snapshots the
// resulting content, computes the diff summary, and marks the operation
// Completed. A storage failure leaves the operation Pending so the
// caller can retry.
func (e *Engine) CompleteOperation(sessionID, opID string, elapsedMs int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	op, err := e.index.FindOperation(sessionID, opID)
	if err != nil {
		return err
	}

	var after snapshot.ID
	afterText := ""
	data, err := os.ReadFile(op.Path)
	switch {
	case err == nil:
		afterText = string(data)
		after, err = e.store.Put(data)
		if err != nil {
			return err
		}
	case errors.Is(err, os.ErrNotExist):
		// File no longer exists: the tool deleted it.
	default:
		return fmt.Errorf("reading %s: %w", op.Path, err)
	}

	if op.Before == "" && after == "" {
		return fmt.Errorf("%s: %w", opID, ErrEmptyOperation)
	}

	beforeText := ""
	if op.Before != "" {
		beforeData, err := e.store.Get(op.Before)
		if err != nil {
			return err
		}
		beforeText = string(beforeData)
	}

	completed, err := e.index.Complete(sessionID, opID, after, diff.Compute(beforeText, afterText), elapsedMs)
	if err != nil {
		return err
	}

	ev := event.New(event.FileModificationCompleted, sessionID)
	ev.Path = op.Path
	ev.OperationID = opID
	ev.Turn = op.Turn
	e.emit(ev)

	state := event.New(event.FileStateUpdated, sessionID)
	state.Path = op.Path
	state.OperationID = opID
	state.FileState = completed.FileState()
	e.emit(state)
	return nil
}

// CompleteTurn notifies listeners that a dialog turn finished. Called
// by the session manager at turn boundaries; pure notification.
func (e *Engine) CompleteTurn(sessionID string, turn int) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	ev := event.New(event.DialogTurnCompleted, sessionID)
	ev.Turn = turn
	e.emit(ev)
	return nil
}

// RollbackSession restores every path the session touched to its
// pre-session state, deletes files the session created, discards the
// session's bookkeeping, and releases its locks. Returns the restored
// paths. Rolling back an unknown (or already rolled back) session is a
// no-op reporting zero paths.
func (e *Engine) RollbackSession(sessionID string) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if _, ok := e.index.Session(sessionID); !ok {
		return nil, nil
	}

	plan := e.index.PlanSessionRollback(sessionID)
	restored, err := e.applyPlan(plan)
	if err != nil {
		return restored, err
	}
	if err := e.index.RemoveSession(sessionID); err != nil {
		return restored, err
	}
	e.locks.ReleaseSession(sessionID)

	e.emit(event.New(event.SessionRolledBack, sessionID))
	e.emit(event.New(event.SessionStateChanged, sessionID))
	return restored, nil
}

// RollbackToTurn restores every path whose most recent operation is
// later than turn to the state captured immediately after turn's last
// operation on it (or to baseline when the file was never touched at or
// before turn), then truncates the later turns from the index. The
// session stays alive and keeps its locks.
func (e *Engine) RollbackToTurn(sessionID string, turn int) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return nil, ErrNotInitialized
	}
	if _, ok := e.index.Session(sessionID); !ok {
		return nil, nil
	}

	plan := e.index.PlanTurnRollback(sessionID, turn)
	restored, err := e.applyPlan(plan)
	if err != nil {
		return restored, err
	}
	if err := e.index.TruncateAfterTurn(sessionID, turn); err != nil {
		return restored, err
	}

	ev := event.New(event.SessionRolledBack, sessionID)
	ev.Turn = turn
	e.emit(ev)
	e.emit(event.New(event.DiffStateUpdated, sessionID))
	return restored, nil
}

// AcceptSession keeps the session's results on disk and discards its
// tracked history and locks. A no-op on file content.
func (e *Engine) AcceptSession(sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	if err := e.index.RemoveSession(sessionID); err != nil {
		return err
	}
	e.locks.ReleaseSession(sessionID)
	e.emit(event.New(event.SessionStateChanged, sessionID))
	return nil
}

// AcceptFile keeps one path's current content and discards its tracked
// history within the session, releasing the path's lock.
func (e *Engine) AcceptFile(sessionID, path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return ErrNotInitialized
	}
	resolved, err := e.checkPath(path)
	if err != nil {
		return err
	}
	if err := e.index.RemoveFileOps(sessionID, resolved); err != nil {
		return err
	}
	e.locks.Release(resolved, sessionID)
	e.emit(event.New(event.SessionStateChanged, sessionID))
	return nil
}

// AbandonPending drops Pending operations in a session started more
// than olderThan ago. No automatic sweep runs; this is the explicit
// extension point for callers that crashed between begin and complete.
func (e *Engine) AbandonPending(sessionID string, olderThan time.Duration) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, ErrNotInitialized
	}
	return e.index.RemovePending(sessionID, time.Now().Add(-olderThan)), nil
}

// Purge removes operation records and snapshot blobs older than
// keepRecentDays. Exposed for the external retention service and the
// purge command; live session metadata is kept.
func (e *Engine) Purge(keepRecentDays int) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return 0, ErrNotInitialized
	}
	return e.guard.Cleanup(keepRecentDays)
}

// applyPlan executes restore steps against the filesystem, returning
// the paths written or deleted. Restore is idempotent: deleting an
// absent file succeeds.
func (e *Engine) applyPlan(plan []index.RestoreStep) ([]string, error) {
	restored := make([]string, 0, len(plan))
	for _, step := range plan {
		switch step.Action {
		case index.RestoreWrite:
			data, err := e.store.Get(step.Snapshot)
			if err != nil {
				return restored, err
			}
			if err := os.MkdirAll(filepath.Dir(step.Path), 0o755); err != nil {
				return restored, fmt.Errorf("restoring %s: %w", step.Path, err)
			}
			if err := os.WriteFile(step.Path, data, 0o644); err != nil {
				return restored, fmt.Errorf("restoring %s: %w", step.Path, err)
			}
		case index.RestoreDelete:
			if err := os.Remove(step.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return restored, fmt.Errorf("removing %s: %w", step.Path, err)
			}
		}
		restored = append(restored, step.Path)
	}
	return restored, nil
}

// checkPath resolves path to its absolute form and verifies it is safe
// to touch. All façade entry points key the index by resolved paths.
func (e *Engine) checkPath(path string) (string, error) {
	if err := e.guard.CheckPath(path); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// emit fires an event at the configured sink. Fire-and-forget; a
// missing listener must never block or fail the originating call.
func (e *Engine) emit(ev event.Event) {
	e.emitter.Emit(ev)
}
