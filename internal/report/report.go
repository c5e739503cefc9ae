// Package report renders a session's tracked changes for humans: a
// summary, the per-file states, and optional unified diffs.
package report

import (
	"time"

	"github.com/fakeyudi/rewind/internal/index"
	"github.com/fakeyudi/rewind/internal/lock"
	"github.com/fakeyudi/rewind/internal/track"
)

// SessionReport is the complete, renderable representation of one
// session's tracked activity.
type SessionReport struct {
	Stats       index.Stats        `json:"stats"`
	Files       []index.FileChange `json:"files"`
	Diffs       []track.FileDiff   `json:"diffs,omitempty"`
	Locks       []lock.Lock        `json:"locks"`
	GeneratedAt time.Time          `json:"generated_at"`
}

// Build assembles a report for a session from façade queries.
// includeDiffs adds the unified diff text for every changed file.
func Build(eng *track.Engine, sessionID string, includeDiffs bool) (*SessionReport, error) {
	stats, err := eng.GetSessionStats(sessionID)
	if err != nil {
		return nil, err
	}
	files, err := eng.GetSessionFiles(sessionID)
	if err != nil {
		return nil, err
	}

	var diffs []track.FileDiff
	if includeDiffs {
		for _, fc := range files {
			fd, err := eng.GetFileDiff(sessionID, fc.Path)
			if err != nil {
				continue // file may have only pending operations
			}
			diffs = append(diffs, fd)
		}
	}

	locks, err := eng.ActiveLocks()
	if err != nil {
		return nil, err
	}
	var held []lock.Lock
	for _, l := range locks {
		if l.SessionID == sessionID {
			held = append(held, l)
		}
	}

	return &SessionReport{
		Stats:       stats,
		Files:       files,
		Diffs:       diffs,
		Locks:       held,
		GeneratedAt: time.Now(),
	}, nil
}
