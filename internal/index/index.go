// Package index maintains the session → turn → operation tree and the
// per-path baseline table. State is persisted incrementally, as one
// metadata file per session plus one record per completed operation,
// so the index survives process restarts.
//
// The index performs no locking of its own; the orchestration engine
// serializes access behind a single reader/writer lock per workspace.
package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fakeyudi/rewind/internal/diff"
	"github.com/fakeyudi/rewind/internal/snapshot"
)

// Errors returned by index operations.
var (
	ErrNotFound         = errors.New("not found")
	ErrDuplicateID      = errors.New("duplicate operation id")
	ErrAlreadyCompleted = errors.New("operation already completed")
)

// Kind is the category of a tracked file mutation.
type Kind string

const (
	KindCreate Kind = "create"
	KindModify Kind = "modify"
	KindDelete Kind = "delete"
)

// Status tracks an operation's lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// Operation is the unit of bookkeeping: one tracked file mutation with
// its before/after snapshot pair. At least one of Before/After is
// always present on a completed operation.
type Operation struct {
	ID          string       `json:"id"`
	Seq         int64        `json:"seq"` // monotonic ordering across restarts
	SessionID   string       `json:"session_id"`
	Turn        int          `json:"turn"`
	Path        string       `json:"path"`
	Kind        Kind         `json:"kind"`
	Tool        string       `json:"tool"`
	ToolInput   string       `json:"tool_input,omitempty"`
	Before      snapshot.ID  `json:"before_snapshot_id,omitempty"`
	After       snapshot.ID  `json:"after_snapshot_id,omitempty"`
	Diff        diff.Summary `json:"diff"`
	Status      Status       `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	ElapsedMs   int64        `json:"elapsed_ms,omitempty"`
}

// FileState derives created/modified/deleted from which snapshots are
// present.
func (o *Operation) FileState() string {
	switch {
	case o.Before == "" && o.After != "":
		return "created"
	case o.Before != "" && o.After == "":
		return "deleted"
	default:
		return "modified"
	}
}

// Session scopes one agent conversation. Operations are kept in
// chronological order; turns are a grouping key on each operation.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	ops []*Operation
}

// Operations returns the session's operations in chronological order.
func (s *Session) Operations() []*Operation {
	return s.ops
}

// Baseline is the snapshot of a path the first time it was ever
// touched, for the life of the store. An empty Snapshot means the file
// did not exist at first touch.
type Baseline struct {
	Snapshot   snapshot.ID `json:"snapshot_id,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Exists reports whether the file existed when the baseline was taken.
func (b Baseline) Exists() bool {
	return b.Snapshot != ""
}

// Index is the persistent operation tree for one workspace.
type Index struct {
	dir       string
	sessions  map[string]*Session
	baselines map[string]Baseline
	seq       int64
}

// Open loads (or creates) the index stored under dir.
func Open(dir string) (*Index, error) {
	ix := &Index{
		dir:       dir,
		sessions:  make(map[string]*Session),
		baselines: make(map[string]Baseline),
	}
	for _, sub := range []string{"sessions", "ops"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating index directory: %w", err)
		}
	}

	if err := ix.loadBaselines(); err != nil {
		return nil, err
	}
	if err := ix.loadSessions(); err != nil {
		return nil, err
	}
	return ix, nil
}

func (ix *Index) loadBaselines() error {
	err := loadJSON(ix.baselinePath(), &ix.baselines)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (ix *Index) loadSessions() error {
	entries, err := os.ReadDir(filepath.Join(ix.dir, "sessions"))
	if err != nil {
		return fmt.Errorf("reading session directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var sess Session
		if err := loadJSON(filepath.Join(ix.dir, "sessions", entry.Name()), &sess); err != nil {
			return err
		}
		if err := ix.loadOperations(&sess); err != nil {
			return err
		}
		ix.sessions[sess.ID] = &sess
	}
	return nil
}

// loadOperations reads the per-operation record files for a session and
// restores chronological order from the persisted sequence numbers.
func (ix *Index) loadOperations(sess *Session) error {
	opsDir := ix.opsDir(sess.ID)
	entries, err := os.ReadDir(opsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading operation records: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		var op Operation
		if err := loadJSON(filepath.Join(opsDir, entry.Name()), &op); err != nil {
			return err
		}
		sess.ops = append(sess.ops, &op)
		if op.Seq >= ix.seq {
			ix.seq = op.Seq + 1
		}
	}
	sort.Slice(sess.ops, func(i, j int) bool { return sess.ops[i].Seq < sess.ops[j].Seq })
	return nil
}

// Session returns the session with the given id.
func (ix *Index) Session(id string) (*Session, bool) {
	sess, ok := ix.sessions[id]
	return sess, ok
}

// Sessions returns all sessions ordered by creation time.
func (ix *Index) Sessions() []*Session {
	sessions := make([]*Session, 0, len(ix.sessions))
	for _, sess := range ix.sessions {
		sessions = append(sessions, sess)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	return sessions
}

// EnsureSession returns the session with the given id, creating and
// persisting it on first use. The second return reports creation.
func (ix *Index) EnsureSession(id string) (*Session, bool, error) {
	if sess, ok := ix.sessions[id]; ok {
		return sess, false, nil
	}
	sess := &Session{ID: id, CreatedAt: time.Now()}
	if err := saveJSON(ix.sessionPath(id), sess); err != nil {
		return nil, false, err
	}
	ix.sessions[id] = sess
	return sess, true, nil
}

// AddPending registers a new Pending operation. The operation id must
// be unique within its session. Pending operations are held in memory
// only; a record file is written at completion.
func (ix *Index) AddPending(op *Operation) error {
	sess, ok := ix.sessions[op.SessionID]
	if !ok {
		return fmt.Errorf("session %s: %w", op.SessionID, ErrNotFound)
	}
	for _, existing := range sess.ops {
		if existing.ID == op.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateID, op.ID)
		}
	}
	op.Seq = ix.seq
	ix.seq++
	op.Status = StatusPending
	sess.ops = append(sess.ops, op)
	return nil
}

// FindOperation returns the operation with the given id in a session.
func (ix *Index) FindOperation(sessionID, opID string) (*Operation, error) {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	for _, op := range sess.ops {
		if op.ID == opID {
			return op, nil
		}
	}
	return nil, fmt.Errorf("operation %s: %w", opID, ErrNotFound)
}

// Complete marks a pending operation Completed and persists its record.
// The in-memory operation is only mutated after the record is safely on
// disk; a storage failure leaves it Pending for the caller to retry.
func (ix *Index) Complete(sessionID, opID string, after snapshot.ID, sum diff.Summary, elapsedMs int64) (*Operation, error) {
	op, err := ix.FindOperation(sessionID, opID)
	if err != nil {
		return nil, err
	}
	if op.Status == StatusCompleted {
		return nil, fmt.Errorf("operation %s: %w", opID, ErrAlreadyCompleted)
	}

	completed := *op
	now := time.Now()
	completed.After = after
	completed.Diff = sum
	completed.Status = StatusCompleted
	completed.CompletedAt = &now
	completed.ElapsedMs = elapsedMs

	if err := saveJSON(ix.opPath(sessionID, opID), &completed); err != nil {
		return nil, err
	}
	*op = completed
	return op, nil
}

// Baseline returns the recorded baseline for a path.
func (ix *Index) Baseline(path string) (Baseline, bool) {
	b, ok := ix.baselines[path]
	return b, ok
}

// RecordBaseline stores the first-touch snapshot for a path. It is a
// no-op when a baseline already exists: baselines live for the life of
// the store, not per session.
func (ix *Index) RecordBaseline(path string, snap snapshot.ID) error {
	if _, ok := ix.baselines[path]; ok {
		return nil
	}
	ix.baselines[path] = Baseline{Snapshot: snap, RecordedAt: time.Now()}
	if err := saveJSON(ix.baselinePath(), ix.baselines); err != nil {
		delete(ix.baselines, path)
		return err
	}
	return nil
}

// RemoveSession discards all bookkeeping for a session: its metadata
// file, its operation records, and its in-memory state. File content on
// disk is untouched.
func (ix *Index) RemoveSession(id string) error {
	if _, ok := ix.sessions[id]; !ok {
		return nil
	}
	if err := os.RemoveAll(ix.opsDir(id)); err != nil {
		return fmt.Errorf("removing operation records: %w", err)
	}
	if err := os.Remove(ix.sessionPath(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing session metadata: %w", err)
	}
	delete(ix.sessions, id)
	return nil
}

// RemoveFileOps discards a single path's operations from a session,
// removing their record files. Used by accept-file.
func (ix *Index) RemoveFileOps(sessionID, path string) error {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}
	kept := sess.ops[:0]
	for _, op := range sess.ops {
		if op.Path != path {
			kept = append(kept, op)
			continue
		}
		if err := ix.removeOpRecord(op); err != nil {
			return err
		}
	}
	sess.ops = kept
	return nil
}

// TruncateAfterTurn drops every operation with a turn index greater
// than turn, removing their record files.
func (ix *Index) TruncateAfterTurn(sessionID string, turn int) error {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}
	kept := sess.ops[:0]
	for _, op := range sess.ops {
		if op.Turn <= turn {
			kept = append(kept, op)
			continue
		}
		if err := ix.removeOpRecord(op); err != nil {
			return err
		}
	}
	sess.ops = kept
	return nil
}

// RemovePending drops pending operations in a session started before
// cutoff, returning how many were removed. Extension point for callers
// that abandoned a begin without ever completing it.
func (ix *Index) RemovePending(sessionID string, cutoff time.Time) int {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return 0
	}
	removed := 0
	kept := sess.ops[:0]
	for _, op := range sess.ops {
		if op.Status == StatusPending && op.StartedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, op)
	}
	sess.ops = kept
	return removed
}

func (ix *Index) removeOpRecord(op *Operation) error {
	if op.Status != StatusCompleted {
		return nil // pending operations have no record file
	}
	path := ix.opPath(op.SessionID, op.ID)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing operation record: %w", err)
	}
	return nil
}

func (ix *Index) sessionPath(id string) string {
	return filepath.Join(ix.dir, "sessions", fileSafe(id)+".json")
}

func (ix *Index) opsDir(sessionID string) string {
	return filepath.Join(ix.dir, "ops", fileSafe(sessionID))
}

func (ix *Index) opPath(sessionID, opID string) string {
	return filepath.Join(ix.opsDir(sessionID), fileSafe(opID)+".json")
}

func (ix *Index) baselinePath() string {
	return filepath.Join(ix.dir, "baselines.json")
}
