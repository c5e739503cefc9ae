package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Renderer serializes a SessionReport to bytes.
type Renderer interface {
	Render(r *SessionReport) ([]byte, error)
}

// JSONRenderer renders a SessionReport as indented JSON.
type JSONRenderer struct{}

func (JSONRenderer) Render(r *SessionReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// MarkdownRenderer renders a SessionReport as human-readable Markdown.
type MarkdownRenderer struct{}

func (MarkdownRenderer) Render(r *SessionReport) ([]byte, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Session %s — %s\n\n",
		r.Stats.SessionID,
		r.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
	)

	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Started: %s\n", r.Stats.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- Turns: %d\n", r.Stats.Turns)
	fmt.Fprintf(&sb, "- Operations: %d completed, %d pending\n", r.Stats.Operations, r.Stats.Pending)
	fmt.Fprintf(&sb, "- Files touched: %d\n", r.Stats.FilesTouched)
	fmt.Fprintf(&sb, "- Lines: +%d / -%d\n", r.Stats.Totals.Added, r.Stats.Totals.Removed)
	sb.WriteString("\n")

	sb.WriteString("## Files\n\n")
	if len(r.Files) == 0 {
		sb.WriteString("_No completed changes._\n")
	} else {
		sb.WriteString("| Path | State | Turn | +/- | Tool |\n")
		sb.WriteString("|------|-------|------|-----|------|\n")
		for _, fc := range r.Files {
			fmt.Fprintf(&sb, "| %s | %s | %d | +%d/-%d | %s |\n",
				fc.Path, fc.State, fc.Turn, fc.Diff.Added, fc.Diff.Removed, fc.Tool)
		}
	}
	sb.WriteString("\n")

	sb.WriteString("## Locks\n\n")
	if len(r.Locks) == 0 {
		sb.WriteString("_No locks held._\n")
	} else {
		for _, l := range r.Locks {
			fmt.Fprintf(&sb, "- %s (%s, acquired %s)\n",
				l.Path, l.Tool, l.AcquiredAt.Format("15:04:05"))
		}
	}
	sb.WriteString("\n")

	if len(r.Diffs) > 0 {
		sb.WriteString("## Diffs\n\n")
		for _, fd := range r.Diffs {
			fmt.Fprintf(&sb, "### %s (+%d/-%d)\n\n", fd.Path, fd.Summary.Added, fd.Summary.Removed)
			if fd.Unified == "" {
				sb.WriteString("_No changes._\n\n")
				continue
			}
			sb.WriteString("```diff\n")
			sb.WriteString(fd.Unified)
			if !strings.HasSuffix(fd.Unified, "\n") {
				sb.WriteString("\n")
			}
			sb.WriteString("```\n\n")
		}
	}

	return []byte(sb.String()), nil
}
