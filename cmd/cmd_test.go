package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/rewind/internal/index"
	"github.com/fakeyudi/rewind/internal/track"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// seedWorkspace tracks one create plus one edit of a.txt in session s1
// and returns the workspace root and file path.
func seedWorkspace(t *testing.T) (string, string) {
	t.Helper()
	t.Setenv("HOME", t.TempDir()) // keep the user's real config out of the test

	ws := t.TempDir()
	eng := track.New(ws)
	if err := eng.Initialize(); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	path := filepath.Join(ws, "a.txt")
	for i, step := range []struct {
		turn    int
		content string
		kind    index.Kind
	}{
		{0, "one\ntwo\n", index.KindCreate},
		{1, "one\nTWO\nthree\n", index.KindModify},
	} {
		opID, err := eng.BeginOperation(track.BeginParams{
			SessionID: "s1", Turn: step.turn, Path: path, Kind: step.kind, Tool: "edit_file",
		})
		if err != nil {
			t.Fatalf("BeginOperation %d: %v", i, err)
		}
		if err := os.WriteFile(path, []byte(step.content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if err := eng.CompleteOperation("s1", opID, 5); err != nil {
			t.Fatalf("CompleteOperation %d: %v", i, err)
		}
	}
	return ws, path
}

func TestSessionsCommandEmpty(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	ws := t.TempDir()

	out, err := executeCommand(rootCmd, "sessions", "-w", ws)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No tracked sessions.") {
		t.Errorf("output = %q, want the empty-list message", out)
	}
}

func TestSessionsCommandListsSession(t *testing.T) {
	ws, _ := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "sessions", "-w", ws)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "s1") {
		t.Errorf("output missing session id:\n%s", out)
	}
	if !strings.Contains(out, "ops 2") {
		t.Errorf("output missing op count:\n%s", out)
	}
}

func TestSessionsCommandReport(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "sessions", "s1", "-w", ws, "--format", "markdown")
	if err != nil {
		t.Fatalf("sessions s1: %v", err)
	}
	if !strings.Contains(out, "# Session s1") {
		t.Errorf("report missing header:\n%s", out)
	}
	if !strings.Contains(out, path) {
		t.Errorf("report missing the tracked path:\n%s", out)
	}
}

func TestDiffCommand(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "diff", "s1", path, "-w", ws)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "+3/-0") {
		t.Errorf("diff summary missing:\n%s", out)
	}
	if !strings.Contains(out, "+TWO") {
		t.Errorf("unified diff missing added line:\n%s", out)
	}
}

func TestHistoryCommand(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "history", "s1", path, "-w", ws)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	lines := strings.Count(strings.TrimSpace(out), "\n") + 1
	if lines != 2 {
		t.Errorf("history printed %d lines, want 2:\n%s", lines, out)
	}
	if !strings.Contains(out, "turn 1") {
		t.Errorf("history missing the second turn:\n%s", out)
	}
}

func TestRollbackCommand(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "rollback", "s1", "-w", ws)
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if !strings.Contains(out, "1 file(s) restored.") {
		t.Errorf("output = %q, want one restored file", out)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("created file survived the rollback command")
	}

	// A second rollback of the forgotten session has nothing to do.
	out, err = executeCommand(rootCmd, "rollback", "s1", "-w", ws)
	if err != nil {
		t.Fatalf("second rollback: %v", err)
	}
	if !strings.Contains(out, "Nothing to restore.") {
		t.Errorf("second rollback output = %q", out)
	}
}

func TestRollbackCommandTurn(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "rollback", "s1", "-w", ws, "--turn", "0")
	if err != nil {
		t.Fatalf("rollback --turn: %v", err)
	}
	if !strings.Contains(out, "1 file(s) restored.") {
		t.Errorf("output = %q, want one restored file", out)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\ntwo\n" {
		t.Errorf("content after turn rollback = %q, want the turn-0 content", data)
	}
}

func TestAcceptCommand(t *testing.T) {
	ws, path := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "accept", "s1", "-w", ws)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !strings.Contains(out, "Session accepted") {
		t.Errorf("output = %q", out)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "one\nTWO\nthree\n" {
		t.Errorf("accept changed file content: %q", data)
	}

	out, err = executeCommand(rootCmd, "sessions", "-w", ws)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if !strings.Contains(out, "No tracked sessions.") {
		t.Errorf("session still listed after accept:\n%s", out)
	}
}

func TestPurgeCommand(t *testing.T) {
	ws, _ := seedWorkspace(t)

	out, err := executeCommand(rootCmd, "purge", "-w", ws, "--keep-days", "0")
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if !strings.Contains(out, "older than 0 day(s)") {
		t.Errorf("output = %q", out)
	}
}
