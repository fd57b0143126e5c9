package events

import "time"

// Event types flowing over the bus. Subjects derive from these, so they
// must stay stable across deployments.
const (
	TypeRoundCompleted  = "ROUND_COMPLETED"
	TypeSecurityFlagged = "SECURITY_FLAGGED"
	TypeCaseAccepted    = "CASE_ACCEPTED"
	TypeSessionClosed   = "SESSION_CLOSED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "ROUND_COMPLETED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used at publish sites.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}
