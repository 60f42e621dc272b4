package domain

// EventType is the kind of change observed on the message collection
type EventType int

const (
	EventAdded EventType = iota
	EventModified
	EventRemoved
)

// String returns the event type name
func (t EventType) String() string {
	switch t {
	case EventAdded:
		return "added"
	case EventModified:
		return "modified"
	case EventRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ChangeEvent is one observed change on the message collection
type ChangeEvent struct {
	Type    EventType
	Message Message
}
