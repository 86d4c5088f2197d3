package events

import "time"

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "VERIFICATION_ENQUEUED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is a plain implementation used when no dedicated event type exists.
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

// VerificationEnqueued signals that a background verification task was
// created and workers should poll ahead of their next tick.
type VerificationEnqueued struct {
	TaskId     string
	HistoryId  string
	OccurredAt time.Time
}

func (e VerificationEnqueued) EventType() string {
	return "verification.enqueued"
}

func (e VerificationEnqueued) Payload() map[string]interface{} {
	return map[string]interface{}{
		"task_id":    e.TaskId,
		"history_id": e.HistoryId,
	}
}

func (e VerificationEnqueued) Timestamp() time.Time {
	return e.OccurredAt
}
