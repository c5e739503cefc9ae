package lock_test

import (
	"testing"

	"github.com/fakeyudi/rewind/internal/lock"
)

func TestTryAcquireBlocksOtherSession(t *testing.T) {
	table := lock.NewTable()

	if !table.TryAcquire("/ws/a.txt", "session-a", "edit_file", "modify") {
		t.Fatal("first acquire should succeed")
	}
	if table.TryAcquire("/ws/a.txt", "session-b", "edit_file", "modify") {
		t.Fatal("second session acquired a held lock")
	}

	// The blocked session can see who holds the path.
	conflict := table.DetectConflict("session-b", "/ws/a.txt")
	if conflict == nil {
		t.Fatal("DetectConflict returned nil for a held path")
	}
	if conflict.SessionID != "session-a" {
		t.Errorf("conflict.SessionID = %q, want session-a", conflict.SessionID)
	}
	if conflict.Tool != "edit_file" {
		t.Errorf("conflict.Tool = %q, want edit_file", conflict.Tool)
	}

	// After release the other session gets through.
	table.Release("/ws/a.txt", "session-a")
	if !table.TryAcquire("/ws/a.txt", "session-b", "edit_file", "modify") {
		t.Fatal("acquire after release should succeed")
	}
}

func TestTryAcquireReentrant(t *testing.T) {
	table := lock.NewTable()

	if !table.TryAcquire("/ws/a.txt", "session-a", "edit_file", "modify") {
		t.Fatal("first acquire should succeed")
	}
	if !table.TryAcquire("/ws/a.txt", "session-a", "write_file", "create") {
		t.Fatal("re-acquire by the holder should succeed")
	}

	held, ok := table.Status("/ws/a.txt")
	if !ok {
		t.Fatal("Status reported no lock")
	}
	if held.Tool != "write_file" {
		t.Errorf("re-acquire did not refresh tool: got %q", held.Tool)
	}
}

func TestReleaseIsScopedToHolder(t *testing.T) {
	table := lock.NewTable()
	table.TryAcquire("/ws/a.txt", "session-a", "edit_file", "modify")

	// Foreign release is a no-op.
	table.Release("/ws/a.txt", "session-b")
	if _, ok := table.Status("/ws/a.txt"); !ok {
		t.Fatal("foreign release dropped the lock")
	}

	// Releasing an absent path is a no-op too.
	table.Release("/ws/missing.txt", "session-a")
}

func TestReleaseSession(t *testing.T) {
	table := lock.NewTable()
	table.TryAcquire("/ws/b.txt", "session-a", "edit_file", "modify")
	table.TryAcquire("/ws/a.txt", "session-a", "edit_file", "modify")
	table.TryAcquire("/ws/c.txt", "session-b", "edit_file", "modify")

	released := table.ReleaseSession("session-a")
	want := []string{"/ws/a.txt", "/ws/b.txt"}
	if len(released) != len(want) {
		t.Fatalf("released %d paths, want %d", len(released), len(want))
	}
	for i := range want {
		if released[i] != want[i] {
			t.Errorf("released[%d] = %q, want %q", i, released[i], want[i])
		}
	}

	// session-b's lock survives.
	if _, ok := table.Status("/ws/c.txt"); !ok {
		t.Error("ReleaseSession removed another session's lock")
	}
	if paths := table.Held("session-a"); len(paths) != 0 {
		t.Errorf("Held after ReleaseSession = %v, want empty", paths)
	}
}

func TestDetectConflictOwnLock(t *testing.T) {
	table := lock.NewTable()
	table.TryAcquire("/ws/a.txt", "session-a", "edit_file", "modify")

	if c := table.DetectConflict("session-a", "/ws/a.txt"); c != nil {
		t.Errorf("own lock reported as conflict: %+v", c)
	}
	if c := table.DetectConflict("session-a", "/ws/free.txt"); c != nil {
		t.Errorf("free path reported as conflict: %+v", c)
	}
}

func TestAllSortedByPath(t *testing.T) {
	table := lock.NewTable()
	table.TryAcquire("/ws/z.txt", "session-a", "edit_file", "modify")
	table.TryAcquire("/ws/a.txt", "session-b", "edit_file", "modify")

	all := table.All()
	if len(all) != 2 {
		t.Fatalf("All returned %d locks, want 2", len(all))
	}
	if all[0].Path != "/ws/a.txt" || all[1].Path != "/ws/z.txt" {
		t.Errorf("All not sorted by path: %q, %q", all[0].Path, all[1].Path)
	}
}
