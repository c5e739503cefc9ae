package track_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fakeyudi/rewind/internal/event"
	"github.com/fakeyudi/rewind/internal/index"
	"github.com/fakeyudi/rewind/internal/isolation"
	"github.com/fakeyudi/rewind/internal/track"
)

// recorder captures emitted events for assertions.
type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Emit(ev event.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func noRepo(workDir string, args ...string) (string, error) {
	return "", errors.New("fatal: not a git repository")
}

func newEngine(t *testing.T, opts ...track.Option) (*track.Engine, string) {
	t.Helper()
	ws := t.TempDir()
	opts = append([]track.Option{track.WithGitRunner(noRepo)}, opts...)
	eng := track.New(ws, opts...)
	if err := eng.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return eng, ws
}

// mutate runs one full begin/write/complete cycle. content == "" deletes
// the file.
func mutate(t *testing.T, eng *track.Engine, sessionID string, turn int, path, content string, kind index.Kind) string {
	t.Helper()
	opID, err := eng.BeginOperation(track.BeginParams{
		SessionID: sessionID,
		Turn:      turn,
		Path:      path,
		Kind:      kind,
		Tool:      "edit_file",
	})
	if err != nil {
		t.Fatalf("BeginOperation(%s): %v", path, err)
	}

	if content == "" {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.Fatalf("remove: %v", err)
		}
	} else {
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if err := eng.CompleteOperation(sessionID, opID, 10); err != nil {
		t.Fatalf("CompleteOperation(%s): %v", path, err)
	}
	return opID
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestNotInitialized(t *testing.T) {
	eng := track.New(t.TempDir(), track.WithGitRunner(noRepo))

	if _, err := eng.BeginOperation(track.BeginParams{SessionID: "s1", Path: "/tmp/x"}); !errors.Is(err, track.ErrNotInitialized) {
		t.Errorf("BeginOperation = %v, want ErrNotInitialized", err)
	}
	if _, err := eng.RollbackSession("s1"); !errors.Is(err, track.ErrNotInitialized) {
		t.Errorf("RollbackSession = %v, want ErrNotInitialized", err)
	}
	if _, err := eng.GetSessionFiles("s1"); !errors.Is(err, track.ErrNotInitialized) {
		t.Errorf("GetSessionFiles = %v, want ErrNotInitialized", err)
	}
	if _, err := eng.ActiveLocks(); !errors.Is(err, track.ErrNotInitialized) {
		t.Errorf("ActiveLocks = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeIdempotent(t *testing.T) {
	eng, _ := newEngine(t)
	if err := eng.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
}

func TestTrackAndQueryLifecycle(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	mutate(t, eng, "s1", 0, path, "one\ntwo\n", index.KindCreate)
	editID := mutate(t, eng, "s1", 1, path, "one\nTWO\nthree\n", index.KindModify)

	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	fc := files[0]
	if fc.OperationID != editID {
		t.Errorf("latest op = %s, want the edit %s", fc.OperationID, editID)
	}
	if fc.State != "modified" {
		t.Errorf("state = %q, want modified", fc.State)
	}
	if fc.Diff.Added != 2 || fc.Diff.Removed != 1 {
		t.Errorf("edit diff = +%d/-%d, want +2/-1", fc.Diff.Added, fc.Diff.Removed)
	}

	st, err := eng.GetSessionStats("s1")
	if err != nil {
		t.Fatalf("GetSessionStats: %v", err)
	}
	if st.Operations != 2 || st.Turns != 2 || st.FilesTouched != 1 {
		t.Errorf("stats = %+v, want 2 ops over 2 turns on 1 file", st)
	}

	history, err := eng.GetFileChangeHistory("s1", path)
	if err != nil {
		t.Fatalf("GetFileChangeHistory: %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history has %d entries, want 2", len(history))
	}
}

func TestGetFileDiff(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	createID := mutate(t, eng, "s1", 0, path, "one\ntwo\n", index.KindCreate)
	mutate(t, eng, "s1", 1, path, "one\nTWO\nthree\n", index.KindModify)

	// Against the session's earliest record: the file did not exist.
	fd, err := eng.GetFileDiff("s1", path)
	if err != nil {
		t.Fatalf("GetFileDiff: %v", err)
	}
	if fd.Summary.Added != 3 || fd.Summary.Removed != 0 {
		t.Errorf("session diff = +%d/-%d, want +3/-0", fd.Summary.Added, fd.Summary.Removed)
	}
	if !strings.Contains(fd.Unified, "+TWO") {
		t.Errorf("unified diff missing added line:\n%s", fd.Unified)
	}

	// Anchored at the create: only the edit shows.
	anchored, err := eng.GetFileDiffWithAnchor("s1", path, createID)
	if err != nil {
		t.Fatalf("GetFileDiffWithAnchor: %v", err)
	}
	if anchored.Summary.Added != 3 {
		// The create's before-state is also empty, so the anchored diff
		// matches the session diff here.
		t.Errorf("anchored diff = +%d/-%d", anchored.Summary.Added, anchored.Summary.Removed)
	}

	if _, err := eng.GetFileDiffWithAnchor("s1", path, "no-such-op"); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("unknown anchor = %v, want ErrNotFound", err)
	}
	if _, err := eng.GetFileDiff("s1", filepath.Join(ws, "untouched.txt")); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("untouched path = %v, want ErrNotFound", err)
	}
}

func TestRollbackSessionRestoresAndForgets(t *testing.T) {
	eng, ws := newEngine(t)

	// existing.txt predates the session; created.txt does not.
	existing := filepath.Join(ws, "existing.txt")
	created := filepath.Join(ws, "created.txt")
	if err := os.WriteFile(existing, []byte("original\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mutate(t, eng, "s1", 0, existing, "changed\n", index.KindModify)
	mutate(t, eng, "s1", 0, created, "new file\n", index.KindCreate)
	mutate(t, eng, "s1", 1, existing, "changed again\n", index.KindModify)

	restored, err := eng.RollbackSession("s1")
	if err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d paths, want 2", len(restored))
	}

	if got := readFile(t, existing); got != "original\n" {
		t.Errorf("existing.txt = %q, want pre-session content", got)
	}
	if _, err := os.Stat(created); !errors.Is(err, os.ErrNotExist) {
		t.Error("created.txt survived rollback")
	}

	// The session is gone: queries observe emptiness, locks are free.
	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("GetSessionFiles after rollback = %v, want empty", files)
	}
	locks, err := eng.ActiveLocks()
	if err != nil {
		t.Fatalf("ActiveLocks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("locks after rollback = %v, want none", locks)
	}

	// Rolling back again is a no-op reporting zero paths.
	again, err := eng.RollbackSession("s1")
	if err != nil {
		t.Fatalf("second RollbackSession: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second rollback restored %d paths, want 0", len(again))
	}
}

func TestRollbackToTurn(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	mutate(t, eng, "s1", 0, path, "turn zero\n", index.KindCreate)
	mutate(t, eng, "s1", 1, path, "turn one\n", index.KindModify)
	other := filepath.Join(ws, "b.txt")
	mutate(t, eng, "s1", 1, other, "b\n", index.KindCreate)

	restored, err := eng.RollbackToTurn("s1", 0)
	if err != nil {
		t.Fatalf("RollbackToTurn: %v", err)
	}
	if len(restored) != 2 {
		t.Fatalf("restored %d paths, want 2", len(restored))
	}

	if got := readFile(t, path); got != "turn zero\n" {
		t.Errorf("a.txt = %q, want the turn-0 content", got)
	}
	if _, err := os.Stat(other); !errors.Is(err, os.ErrNotExist) {
		t.Error("b.txt survived turn rollback; it was created after the target turn")
	}

	// The session survives with its earlier history intact.
	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 1 || files[0].Turn != 0 {
		t.Errorf("files after turn rollback = %+v, want only the turn-0 change", files)
	}

	// Further edits continue in the same session.
	mutate(t, eng, "s1", 1, path, "redo\n", index.KindModify)
}

func TestAcceptSessionKeepsContent(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	mutate(t, eng, "s1", 0, path, "keep me\n", index.KindCreate)

	if err := eng.AcceptSession("s1"); err != nil {
		t.Fatalf("AcceptSession: %v", err)
	}
	if got := readFile(t, path); got != "keep me\n" {
		t.Errorf("accepted content = %q, want untouched", got)
	}

	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("history after accept = %v, want empty", files)
	}

	// Accept already discarded everything: rollback has nothing to undo.
	restored, err := eng.RollbackSession("s1")
	if err != nil {
		t.Fatalf("RollbackSession after accept: %v", err)
	}
	if len(restored) != 0 {
		t.Errorf("rollback after accept restored %d paths, want 0", len(restored))
	}
	if got := readFile(t, path); got != "keep me\n" {
		t.Errorf("content after accept+rollback = %q, want untouched", got)
	}
}

func TestAcceptFile(t *testing.T) {
	eng, ws := newEngine(t)
	a := filepath.Join(ws, "a.txt")
	b := filepath.Join(ws, "b.txt")

	mutate(t, eng, "s1", 0, a, "a\n", index.KindCreate)
	mutate(t, eng, "s1", 0, b, "b\n", index.KindCreate)

	if err := eng.AcceptFile("s1", a); err != nil {
		t.Fatalf("AcceptFile: %v", err)
	}

	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 1 || files[0].Path != b {
		t.Errorf("files after AcceptFile = %+v, want only b.txt", files)
	}

	// a.txt is out of scope now: session rollback leaves it alone.
	restored, err := eng.RollbackSession("s1")
	if err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if len(restored) != 1 {
		t.Fatalf("restored %d paths, want 1", len(restored))
	}
	if got := readFile(t, a); got != "a\n" {
		t.Errorf("accepted a.txt = %q, want untouched", got)
	}
	if _, err := os.Stat(b); !errors.Is(err, os.ErrNotExist) {
		t.Error("b.txt survived rollback")
	}
}

func TestDeleteTracked(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")
	if err := os.WriteFile(path, []byte("doomed\n"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	mutate(t, eng, "s1", 0, path, "", index.KindDelete)

	files, err := eng.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 1 || files[0].State != "deleted" {
		t.Fatalf("files = %+v, want one deleted entry", files)
	}
	if files[0].Diff.Removed != 1 {
		t.Errorf("delete diff = -%d, want -1", files[0].Diff.Removed)
	}

	if _, err := eng.RollbackSession("s1"); err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if got := readFile(t, path); got != "doomed\n" {
		t.Errorf("restored content = %q, want the pre-delete content", got)
	}
}

func TestBeginRejectsUnsafePaths(t *testing.T) {
	eng, ws := newEngine(t)

	for _, path := range []string{
		filepath.Join(ws, ".git", "config"),
		filepath.Join(eng.Dir(), "blobs", "x"),
	} {
		_, err := eng.BeginOperation(track.BeginParams{
			SessionID: "s1", Path: path, Kind: index.KindModify, Tool: "edit_file",
		})
		if !errors.Is(err, isolation.ErrUnsafePath) {
			t.Errorf("BeginOperation(%q) = %v, want ErrUnsafePath", path, err)
		}
	}

	// The rejected begin left no trace: no session, no locks.
	sessions, err := eng.ListSessions()
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("rejected begin created a session: %+v", sessions)
	}
	locks, err := eng.ActiveLocks()
	if err != nil {
		t.Fatalf("ActiveLocks: %v", err)
	}
	if len(locks) != 0 {
		t.Errorf("rejected begin acquired a lock: %+v", locks)
	}
}

func TestCompleteEmptyOperation(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "never-created.txt")

	opID, err := eng.BeginOperation(track.BeginParams{
		SessionID: "s1", Path: path, Kind: index.KindCreate, Tool: "write_file",
	})
	if err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}

	// The tool never wrote the file.
	err = eng.CompleteOperation("s1", opID, 5)
	if !errors.Is(err, track.ErrEmptyOperation) {
		t.Errorf("CompleteOperation = %v, want ErrEmptyOperation", err)
	}
}

func TestCompleteUnknownOperation(t *testing.T) {
	eng, _ := newEngine(t)
	if err := eng.CompleteOperation("s1", "ghost", 0); !errors.Is(err, index.ErrNotFound) {
		t.Errorf("CompleteOperation = %v, want ErrNotFound", err)
	}
}

func TestAdvisoryLocksAcrossSessions(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	mutate(t, eng, "s1", 0, path, "held\n", index.KindCreate)

	// Another session sees the conflict and cannot acquire.
	conflict, err := eng.DetectFileConflict("s2", path)
	if err != nil {
		t.Fatalf("DetectFileConflict: %v", err)
	}
	if conflict == nil || conflict.SessionID != "s1" {
		t.Fatalf("conflict = %+v, want holder s1", conflict)
	}
	ok, err := eng.TryAcquireFileLock("s2", path, "edit_file")
	if err != nil {
		t.Fatalf("TryAcquireFileLock: %v", err)
	}
	if ok {
		t.Error("s2 acquired a lock held by s1")
	}

	// The holder can release explicitly; then s2 gets through.
	if err := eng.ReleaseFileLock("s1", path); err != nil {
		t.Fatalf("ReleaseFileLock: %v", err)
	}
	ok, err = eng.TryAcquireFileLock("s2", path, "edit_file")
	if err != nil {
		t.Fatalf("TryAcquireFileLock: %v", err)
	}
	if !ok {
		t.Error("s2 blocked after s1 released")
	}
}

func TestHasPendingOperation(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	opID, err := eng.BeginOperation(track.BeginParams{
		SessionID: "s1", Path: path, Kind: index.KindCreate, Tool: "write_file",
	})
	if err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}

	pending, err := eng.HasPendingOperation(path)
	if err != nil {
		t.Fatalf("HasPendingOperation: %v", err)
	}
	if !pending {
		t.Error("open operation not reported as pending")
	}

	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := eng.CompleteOperation("s1", opID, 1); err != nil {
		t.Fatalf("CompleteOperation: %v", err)
	}

	pending, err = eng.HasPendingOperation(path)
	if err != nil {
		t.Fatalf("HasPendingOperation: %v", err)
	}
	if pending {
		t.Error("completed operation still reported as pending")
	}
}

func TestAbandonPending(t *testing.T) {
	eng, ws := newEngine(t)
	path := filepath.Join(ws, "a.txt")

	if _, err := eng.BeginOperation(track.BeginParams{
		SessionID: "s1", Path: path, Kind: index.KindCreate, Tool: "write_file",
	}); err != nil {
		t.Fatalf("BeginOperation: %v", err)
	}

	// Too young to abandon.
	removed, err := eng.AbandonPending("s1", time.Hour)
	if err != nil {
		t.Fatalf("AbandonPending: %v", err)
	}
	if removed != 0 {
		t.Errorf("abandoned %d young operations, want 0", removed)
	}

	removed, err = eng.AbandonPending("s1", 0)
	if err != nil {
		t.Fatalf("AbandonPending: %v", err)
	}
	if removed != 1 {
		t.Errorf("abandoned %d operations, want 1", removed)
	}
}

func TestEngineSurvivesRestart(t *testing.T) {
	ws := t.TempDir()
	eng := track.New(ws, track.WithGitRunner(noRepo))
	if err := eng.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	path := filepath.Join(ws, "a.txt")
	mutate(t, eng, "s1", 0, path, "persisted\n", index.KindCreate)

	// A fresh engine over the same workspace sees the history and can
	// still roll it back.
	eng2 := track.New(ws, track.WithGitRunner(noRepo))
	if err := eng2.Initialize(); err != nil {
		t.Fatalf("second Initialize: %v", err)
	}
	files, err := eng2.GetSessionFiles("s1")
	if err != nil {
		t.Fatalf("GetSessionFiles: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("restarted engine sees %d files, want 1", len(files))
	}

	restored, err := eng2.RollbackSession("s1")
	if err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}
	if len(restored) != 1 {
		t.Fatalf("restored %d paths, want 1", len(restored))
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("created file survived rollback after restart")
	}
}

func TestLifecycleEvents(t *testing.T) {
	rec := &recorder{}
	eng, ws := newEngine(t, track.WithEmitter(rec))
	path := filepath.Join(ws, "a.txt")

	mutate(t, eng, "s1", 0, path, "x\n", index.KindCreate)
	if err := eng.CompleteTurn("s1", 0); err != nil {
		t.Fatalf("CompleteTurn: %v", err)
	}
	if _, err := eng.RollbackSession("s1"); err != nil {
		t.Fatalf("RollbackSession: %v", err)
	}

	want := []event.Type{
		event.SessionCreated,
		event.FileModificationStarted,
		event.FileModificationCompleted,
		event.FileStateUpdated,
		event.DialogTurnCompleted,
		event.SessionRolledBack,
		event.SessionStateChanged,
	}
	got := rec.types()
	if len(got) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	rec.mu.Lock()
	created := rec.events[3]
	rec.mu.Unlock()
	if created.FileState != "created" {
		t.Errorf("file_state_updated carried state %q, want created", created.FileState)
	}
}
