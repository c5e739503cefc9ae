// Package event defines the engine's lifecycle notifications and the
// fan-out bus that delivers them to external listeners. Delivery is
// best-effort and at-most-once: a missing or failing listener never
// blocks or fails the call that produced the event.
package event

import "time"

// Type identifies a lifecycle notification.
type Type string

const (
	SessionCreated            Type = "session_created"
	SessionStateChanged       Type = "session_state_changed"
	FileModificationStarted   Type = "file_modification_started"
	FileModificationCompleted Type = "file_modification_completed"
	FileStateUpdated          Type = "file_state_updated"
	DialogTurnCompleted       Type = "dialog_turn_completed"
	SessionRolledBack         Type = "session_rolled_back"
	DiffStateUpdated          Type = "diff_state_updated"
	Error                     Type = "error"
)

// Event is a single lifecycle notification.
type Event struct {
	Type      Type   `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds

	// Optional context, populated depending on Type.
	Path        string `json:"path,omitempty"`
	OperationID string `json:"operation_id,omitempty"`
	Turn        int    `json:"turn,omitempty"`
	FileState   string `json:"file_state,omitempty"` // created | modified | deleted
	Message     string `json:"message,omitempty"`    // human-readable detail, or error text
}

// New returns an Event of the given type stamped with the current time.
func New(t Type, sessionID string) Event {
	return Event{
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Emitter receives lifecycle events. Implementations must not block;
// the engine fires and forgets.
type Emitter interface {
	Emit(Event)
}

// NopEmitter discards all events. It is the default sink when no
// listener is wired up.
type NopEmitter struct{}

func (NopEmitter) Emit(Event) {}
