// Package diff computes line-based diffs between two file contents.
// The engine stores only the added/removed counts with each operation;
// full unified diff text is produced on demand for display.
package diff

import "strings"

// Summary holds the line counts of a diff.
type Summary struct {
	Added   int `json:"lines_added"`
	Removed int `json:"lines_removed"`
}

// IsZero reports whether the diff contains no changes.
func (s Summary) IsZero() bool {
	return s.Added == 0 && s.Removed == 0
}

// opKind classifies a single line-level edit.
type opKind uint8

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// op is one entry in an edit script.
type op struct {
	kind   opKind
	oldIdx int
	newIdx int
}

// maxExactCells bounds the LCS table size. Inputs whose line-count
// product exceeds this fall back to a linear-memory heuristic.
const maxExactCells = 4_000_000

// Compute returns the line counts of the diff from oldText to newText.
// An absent file side is passed as the empty string.
func Compute(oldText, newText string) Summary {
	if oldText == newText {
		return Summary{}
	}
	var s Summary
	for _, o := range editScript(splitLines(oldText), splitLines(newText)) {
		switch o.kind {
		case opInsert:
			s.Added++
		case opDelete:
			s.Removed++
		}
	}
	return s
}

// splitLines breaks content into lines without a trailing phantom line.
// Empty content yields no lines.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}

// editScript produces a minimal edit script from oldLines to newLines,
// in order, covering every line of both inputs exactly once.
func editScript(oldLines, newLines []string) []op {
	n, m := len(oldLines), len(newLines)
	if n == 0 && m == 0 {
		return nil
	}
	if n == 0 {
		ops := make([]op, m)
		for j := range ops {
			ops[j] = op{kind: opInsert, newIdx: j}
		}
		return ops
	}
	if m == 0 {
		ops := make([]op, n)
		for i := range ops {
			ops[i] = op{kind: opDelete, oldIdx: i, newIdx: 0}
		}
		return ops
	}

	// Trim the common prefix and suffix before running the quadratic
	// core; typical edits touch a small region of the file.
	prefix := 0
	for prefix < n && prefix < m && oldLines[prefix] == newLines[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < n-prefix && suffix < m-prefix &&
		oldLines[n-1-suffix] == newLines[m-1-suffix] {
		suffix++
	}

	midOld := oldLines[prefix : n-suffix]
	midNew := newLines[prefix : m-suffix]

	var mid []op
	if len(midOld)*len(midNew) > maxExactCells {
		mid = heuristicScript(midOld, midNew)
	} else {
		mid = lcsScript(midOld, midNew)
	}

	ops := make([]op, 0, prefix+len(mid)+suffix)
	for i := 0; i < prefix; i++ {
		ops = append(ops, op{kind: opEqual, oldIdx: i, newIdx: i})
	}
	for _, o := range mid {
		o.oldIdx += prefix
		o.newIdx += prefix
		ops = append(ops, o)
	}
	for i := 0; i < suffix; i++ {
		ops = append(ops, op{kind: opEqual, oldIdx: n - suffix + i, newIdx: m - suffix + i})
	}
	return ops
}

// lcsScript computes an exact edit script via a longest-common-subsequence
// table. Memory is O(n*m); callers bound the input size.
func lcsScript(oldLines, newLines []string) []op {
	n, m := len(oldLines), len(newLines)
	table := make([]int, (n+1)*(m+1))
	at := func(i, j int) int { return table[i*(m+1)+j] }

	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if oldLines[i] == newLines[j] {
				table[i*(m+1)+j] = at(i+1, j+1) + 1
			} else if at(i+1, j) >= at(i, j+1) {
				table[i*(m+1)+j] = at(i+1, j)
			} else {
				table[i*(m+1)+j] = at(i, j+1)
			}
		}
	}

	var ops []op
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case oldLines[i] == newLines[j]:
			ops = append(ops, op{kind: opEqual, oldIdx: i, newIdx: j})
			i++
			j++
		case at(i+1, j) >= at(i, j+1):
			ops = append(ops, op{kind: opDelete, oldIdx: i, newIdx: j})
			i++
		default:
			ops = append(ops, op{kind: opInsert, oldIdx: i, newIdx: j})
			j++
		}
	}
	for ; i < n; i++ {
		ops = append(ops, op{kind: opDelete, oldIdx: i, newIdx: m})
	}
	for ; j < m; j++ {
		ops = append(ops, op{kind: opInsert, oldIdx: n, newIdx: j})
	}
	return ops
}

// heuristicScript matches identical lines greedily in O(n+m) memory.
// Less precise than lcsScript but safe for very large files.
func heuristicScript(oldLines, newLines []string) []op {
	positions := make(map[string][]int, len(oldLines))
	for i, line := range oldLines {
		positions[line] = append(positions[line], i)
	}

	matchedOld := make([]bool, len(oldLines))
	matchedNew := make([]int, len(newLines)) // old index + 1, or 0 for no match
	next := make(map[string]int, len(positions))
	for j, line := range newLines {
		idxs := positions[line]
		for k := next[line]; k < len(idxs); k++ {
			if !matchedOld[idxs[k]] {
				matchedOld[idxs[k]] = true
				matchedNew[j] = idxs[k] + 1
				next[line] = k + 1
				break
			}
		}
	}

	var ops []op
	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && !matchedOld[i]:
			ops = append(ops, op{kind: opDelete, oldIdx: i, newIdx: j})
			i++
		case j < len(newLines) && matchedNew[j] == 0:
			ops = append(ops, op{kind: opInsert, oldIdx: i, newIdx: j})
			j++
		case i < len(oldLines) && j < len(newLines) && matchedNew[j] == i+1:
			ops = append(ops, op{kind: opEqual, oldIdx: i, newIdx: j})
			i++
			j++
		case i < len(oldLines):
			// Matched out of order; degrade to delete + later insert.
			ops = append(ops, op{kind: opDelete, oldIdx: i, newIdx: j})
			i++
		default:
			ops = append(ops, op{kind: opInsert, oldIdx: i, newIdx: j})
			j++
		}
	}
	return ops
}
