package index

import (
	"sort"

	"github.com/fakeyudi/rewind/internal/snapshot"
)

// RestoreAction tags one step of a restore plan.
type RestoreAction uint8

const (
	// RestoreWrite writes a snapshot's content back to the path.
	RestoreWrite RestoreAction = iota

	// RestoreDelete removes the path (it did not exist at the target
	// point in time).
	RestoreDelete
)

// RestoreStep is one path's entry in a restore plan. Plans are computed
// first and applied second, so no disk I/O happens while the plan is
// being derived from the index.
type RestoreStep struct {
	Path     string
	Action   RestoreAction
	Snapshot snapshot.ID // set when Action == RestoreWrite
}

// PlanSessionRollback derives the restore plan that returns every path
// touched by the session to its pre-session state: the before-snapshot
// of the first operation that touched it, or deletion when the session
// created the file. An unknown session yields an empty plan, which
// makes rollback idempotent.
func (ix *Index) PlanSessionRollback(sessionID string) []RestoreStep {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}

	firstTouch := make(map[string]*Operation)
	for _, op := range sess.ops {
		if _, seen := firstTouch[op.Path]; !seen {
			firstTouch[op.Path] = op
		}
	}

	steps := make([]RestoreStep, 0, len(firstTouch))
	for path, op := range firstTouch {
		if op.Before != "" {
			steps = append(steps, RestoreStep{Path: path, Action: RestoreWrite, Snapshot: op.Before})
		} else {
			steps = append(steps, RestoreStep{Path: path, Action: RestoreDelete})
		}
	}
	sortSteps(steps)
	return steps
}

// PlanTurnRollback derives the restore plan that returns every path
// whose most recent operation is later than turn to the state captured
// immediately after turn's last operation on it, or to its baseline
// when the session never touched it at or before turn.
func (ix *Index) PlanTurnRollback(sessionID string, turn int) []RestoreStep {
	sess, ok := ix.sessions[sessionID]
	if !ok {
		return nil
	}

	// Latest op per path (any status) decides whether the path needs
	// restoring; latest completed op at or before the turn decides the
	// target state.
	lastTouch := make(map[string]*Operation)
	lastAtTurn := make(map[string]*Operation)
	for _, op := range sess.ops {
		lastTouch[op.Path] = op
		if op.Status == StatusCompleted && op.Turn <= turn {
			lastAtTurn[op.Path] = op
		}
	}

	var steps []RestoreStep
	for path, last := range lastTouch {
		if last.Turn <= turn {
			continue // untouched after the target turn
		}
		if target, ok := lastAtTurn[path]; ok {
			if target.After != "" {
				steps = append(steps, RestoreStep{Path: path, Action: RestoreWrite, Snapshot: target.After})
			} else {
				steps = append(steps, RestoreStep{Path: path, Action: RestoreDelete})
			}
			continue
		}
		steps = append(steps, ix.baselineStep(path, sess))
	}
	sortSteps(steps)
	return steps
}

// baselineStep restores a path to its recorded baseline. When no
// baseline exists (which should not happen for a tracked path), the
// first operation's before-snapshot serves as the fallback.
func (ix *Index) baselineStep(path string, sess *Session) RestoreStep {
	if b, ok := ix.baselines[path]; ok {
		if b.Exists() {
			return RestoreStep{Path: path, Action: RestoreWrite, Snapshot: b.Snapshot}
		}
		return RestoreStep{Path: path, Action: RestoreDelete}
	}
	for _, op := range sess.ops {
		if op.Path == path {
			if op.Before != "" {
				return RestoreStep{Path: path, Action: RestoreWrite, Snapshot: op.Before}
			}
			break
		}
	}
	return RestoreStep{Path: path, Action: RestoreDelete}
}

func sortSteps(steps []RestoreStep) {
	sort.Slice(steps, func(i, j int) bool { return steps[i].Path < steps[j].Path })
}
