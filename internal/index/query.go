package index

import (
	"sort"
	"time"

	"github.com/fakeyudi/rewind/internal/diff"
)

// FileChange is the read-only projection of a path's latest state
// within a session.
type FileChange struct {
	Path        string       `json:"path"`
	SessionID   string       `json:"session_id"`
	Turn        int          `json:"turn"`
	OperationID string       `json:"operation_id"`
	State       string       `json:"state"` // created | modified | deleted
	Diff        diff.Summary `json:"diff"`
	Tool        string       `json:"tool"`
	ChangedAt   time.Time    `json:"changed_at"`
}

// Stats summarizes a session's tracked activity. Pending operations
// are counted separately and excluded from the diff totals.
type Stats struct {
	SessionID    string       `json:"session_id"`
	CreatedAt    time.Time    `json:"created_at"`
	Operations   int          `json:"operations"`
	Pending      int          `json:"pending"`
	FilesTouched int          `json:"files_touched"`
	Turns        int          `json:"turns"`
	Totals       diff.Summary `json:"totals"`
}

// SessionFiles returns the latest completed change per path in a
// session, sorted by path. An unknown session yields an empty slice:
// accept and rollback destroy sessions, and querying a destroyed
// session is a valid way to observe that.
func (ix *Index) SessionFiles(sessionID string) []FileChange {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}
	return latestPerPath(completedOps(sess.ops))
}

// TurnFiles returns the latest completed change per path considering
// only operations in the given turn.
func (ix *Index) TurnFiles(sessionID string, turn int) []FileChange {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}
	var ops []*Operation
	for _, op := range completedOps(sess.ops) {
		if op.Turn == turn {
			ops = append(ops, op)
		}
	}
	return latestPerPath(ops)
}

// History returns every operation recorded for a path in a session, in
// chronological order, pending included.
func (ix *Index) History(sessionID, path string) []*Operation {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}
	var ops []*Operation
	for _, op := range sess.ops {
		if op.Path == path {
			ops = append(ops, op)
		}
	}
	return ops
}

// AllModifiedFiles returns the latest completed change per (session,
// path) pair across every live session, sorted by path then session.
func (ix *Index) AllModifiedFiles() []FileChange {
	var changes []FileChange
	for _, sess := range ix.sessions {
		changes = append(changes, latestPerPath(completedOps(sess.ops))...)
	}
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Path != changes[j].Path {
			return changes[i].Path < changes[j].Path
		}
		return changes[i].SessionID < changes[j].SessionID
	})
	return changes
}

// Stats computes summary statistics for a session.
func (ix *Index) Stats(sessionID string) (Stats, bool) {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return Stats{}, false
	}
	st := Stats{SessionID: sessionID, CreatedAt: sess.CreatedAt}
	paths := make(map[string]struct{})
	maxTurn := -1
	for _, op := range sess.ops {
		paths[op.Path] = struct{}{}
		if op.Turn > maxTurn {
			maxTurn = op.Turn
		}
		if op.Status == StatusPending {
			st.Pending++
			continue
		}
		st.Operations++
		st.Totals.Added += op.Diff.Added
		st.Totals.Removed += op.Diff.Removed
	}
	st.FilesTouched = len(paths)
	st.Turns = maxTurn + 1
	return st, true
}

// completedOps filters out pending operations, preserving order.
func completedOps(ops []*Operation) []*Operation {
	var out []*Operation
	for _, op := range ops {
		if op.Status == StatusCompleted {
			out = append(out, op)
		}
	}
	return out
}

// latestPerPath reduces an ordered operation list to the most recent
// change per path, sorted by path.
func latestPerPath(ops []*Operation) []FileChange {
	latest := make(map[string]*Operation)
	for _, op := range ops {
		latest[op.Path] = op
	}
	changes := make([]FileChange, 0, len(latest))
	for _, op := range latest {
		changedAt := op.StartedAt
		if op.CompletedAt != nil {
			changedAt = *op.CompletedAt
		}
		changes = append(changes, FileChange{
			Path:        op.Path,
			SessionID:   op.SessionID,
			Turn:        op.Turn,
			OperationID: op.ID,
			State:       op.FileState(),
			Diff:        op.Diff,
			Tool:        op.Tool,
			ChangedAt:   changedAt,
		})
	}
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
	return changes
}
