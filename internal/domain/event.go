package domain

import "time"

// EventKind identifies which trigger produced an event.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventCall    EventKind = "call"
)

// RawEvent is a create-event as delivered by the event source: a container
// id plus the loosely-typed document fields of the new message or call.
type RawEvent struct {
	ID          string         `json:"event_id"`
	Kind        EventKind      `json:"kind"`
	ContainerID string         `json:"container_id" validate:"required"`
	Fields      map[string]any `json:"fields" validate:"required"`
}

// CallMedia distinguishes voice from video calls.
type CallMedia string

const (
	CallVoice CallMedia = "voice"
	CallVideo CallMedia = "video"
)

// Event is the canonical form of a RawEvent after normalization.
type Event struct {
	ID          string
	Kind        EventKind
	ContainerID string
	SenderID    string
	SenderName  string
	Type        MessageType
	Body        string
	Encrypted   bool
	CallMedia   CallMedia
	CreatedAt   time.Time
	Metadata    map[string]string
}

// Priority returns the coarse delivery priority of the event.
func (e *Event) Priority() Priority {
	if e.Kind == EventCall {
		return PriorityHigh
	}
	return PriorityNormal
}
