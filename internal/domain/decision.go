package domain

import "time"

// DecisionEntry is an immutable journal row describing one operator command.
type DecisionEntry struct {
	ID        string
	EventType string
	DraftID   *string
	Operator  string
	Outcome   string
	Error     *string
	Payload   map[string]any
	CreatedAt time.Time
}
