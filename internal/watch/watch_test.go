package watch

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsIgnored(t *testing.T) {
	workDir := "/ws"
	patterns := []string{"*.log", "node_modules", "build/*"}

	tests := []struct {
		path string
		want bool
	}{
		{"/ws/app.log", true},
		{"/ws/deep/nested/trace.log", true},
		{"/ws/node_modules", true},
		{"/ws/build/out.bin", true},
		{"/ws/main.go", false},
		{"/ws/logs.go", false},
		{"/ws/src/build.go", false},
	}
	for _, tt := range tests {
		if got := isIgnored(tt.path, workDir, patterns); got != tt.want {
			t.Errorf("isIgnored(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestIsIgnoredNoPatterns(t *testing.T) {
	if isIgnored("/ws/anything.txt", "/ws", nil) {
		t.Error("nothing should be ignored without patterns")
	}
}

func TestReadPatternFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".gitignore")
	content := "# build output\n*.o\n\nvendor\n  dist  \n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	patterns, err := readPatternFile(path)
	if err != nil {
		t.Fatalf("readPatternFile: %v", err)
	}
	want := []string{"*.o", "vendor", "dist"}
	if len(patterns) != len(want) {
		t.Fatalf("got %d patterns %v, want %d", len(patterns), patterns, len(want))
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("patterns[%d] = %q, want %q", i, patterns[i], want[i])
		}
	}
}

func TestReadPatternFileMissing(t *testing.T) {
	if _, err := readPatternFile(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadIgnorePatternsMergesFiles(t *testing.T) {
	ws := t.TempDir()
	if err := os.WriteFile(filepath.Join(ws, ".gitignore"), []byte("*.tmp\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws, ".rewindignore"), []byte("*.bak\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	w := &Watcher{IgnorePatterns: []string{"*.log"}}
	patterns := w.loadIgnorePatterns(ws)

	want := []string{"*.log", "*.tmp", "*.bak"}
	if len(patterns) != len(want) {
		t.Fatalf("got %d patterns %v, want %d", len(patterns), patterns, len(want))
	}
	for i := range want {
		if patterns[i] != want[i] {
			t.Errorf("patterns[%d] = %q, want %q", i, patterns[i], want[i])
		}
	}
}
