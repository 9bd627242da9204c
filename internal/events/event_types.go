package events

import (
	"time"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventDraftApproved         EventType = "draft_approved"
	EventDraftRejected         EventType = "draft_rejected"
	EventDraftEdited           EventType = "draft_edited"
	EventDraftRegenerated      EventType = "draft_regenerated"
	EventDraftsRefreshed       EventType = "drafts_refreshed"
	EventChatMessageSent       EventType = "chat_message_sent"
	EventChatAutomationToggled EventType = "chat_automation_toggled"
)

// AllEventTypes lists every type, for subscribers that want everything.
var AllEventTypes = []EventType{
	EventDraftApproved,
	EventDraftRejected,
	EventDraftEdited,
	EventDraftRegenerated,
	EventDraftsRefreshed,
	EventChatMessageSent,
	EventChatAutomationToggled,
}

// Event represents a command executed by an operator session.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	DraftID   string      `json:"draft_id,omitempty"`
	Operator  string      `json:"operator"`
	Outcome   Outcome     `json:"outcome"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Outcome records how the remote half of a command ended.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeLocal     Outcome = "local"
)

// DecisionPayload payload for approve and reject.
type DecisionPayload struct {
	Status       domain.DraftStatus `json:"status"`
	FinalMessage *string            `json:"final_message,omitempty"`
}

// EditPayload payload for local draft edits.
type EditPayload struct {
	MessagePreview string `json:"message_preview"`
}

// RegenerationPayload payload.
type RegenerationPayload struct {
	Target domain.RegenerationTarget `json:"target"`
}

// RefreshPayload payload.
type RefreshPayload struct {
	Count int `json:"count"`
}

// ChatPayload payload for chat commands.
type ChatPayload struct {
	ConversationRef string `json:"conversation_ref"`
	TextPreview     string `json:"text_preview,omitempty"`
	Enabled         *bool  `json:"enabled,omitempty"`
}
