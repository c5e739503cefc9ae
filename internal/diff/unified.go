package diff

import (
	"fmt"
	"strings"
)

// DefaultContextLines is the number of unchanged lines shown around
// each hunk in unified output.
const DefaultContextLines = 3

// Unified renders the diff from oldText to newText in unified format.
// Returns the empty string when the contents are identical.
func Unified(oldText, newText, oldName, newName string, contextLines int) string {
	if oldText == newText {
		return ""
	}
	if contextLines < 0 {
		contextLines = DefaultContextLines
	}

	oldLines := splitLines(oldText)
	newLines := splitLines(newText)
	ops := editScript(oldLines, newLines)

	include := markContext(ops, contextLines)

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldName, newName)

	i := 0
	for i < len(ops) {
		if !include[i] {
			i++
			continue
		}
		// Extend the hunk across consecutive included ops.
		j := i
		for j < len(ops) && include[j] {
			j++
		}
		writeHunk(&sb, ops[i:j], oldLines, newLines)
		i = j
	}
	return sb.String()
}

// markContext flags every change op plus up to contextLines equal ops
// on either side of each change.
func markContext(ops []op, contextLines int) []bool {
	include := make([]bool, len(ops))
	for i, o := range ops {
		if o.kind == opEqual {
			continue
		}
		lo := i - contextLines
		if lo < 0 {
			lo = 0
		}
		hi := i + contextLines
		if hi > len(ops)-1 {
			hi = len(ops) - 1
		}
		for k := lo; k <= hi; k++ {
			include[k] = true
		}
	}
	return include
}

// writeHunk renders one hunk of consecutive ops.
func writeHunk(sb *strings.Builder, hunk []op, oldLines, newLines []string) {
	oldStart, newStart := -1, -1
	oldCount, newCount := 0, 0
	for _, o := range hunk {
		switch o.kind {
		case opEqual:
			if oldStart < 0 {
				oldStart, newStart = o.oldIdx, o.newIdx
			}
			oldCount++
			newCount++
		case opDelete:
			if oldStart < 0 {
				oldStart, newStart = o.oldIdx, o.newIdx
			}
			oldCount++
		case opInsert:
			if oldStart < 0 {
				oldStart, newStart = o.oldIdx, o.newIdx
			}
			newCount++
		}
	}

	fmt.Fprintf(sb, "@@ -%d,%d +%d,%d @@\n", hunkStart(oldStart, oldCount), oldCount, hunkStart(newStart, newCount), newCount)
	for _, o := range hunk {
		switch o.kind {
		case opEqual:
			sb.WriteString(" " + oldLines[o.oldIdx] + "\n")
		case opDelete:
			sb.WriteString("-" + oldLines[o.oldIdx] + "\n")
		case opInsert:
			sb.WriteString("+" + newLines[o.newIdx] + "\n")
		}
	}
}

// hunkStart converts a 0-based line index to the 1-based unified diff
// convention, where an empty side keeps the preceding line number.
func hunkStart(idx, count int) int {
	if count == 0 {
		return idx
	}
	return idx + 1
}
