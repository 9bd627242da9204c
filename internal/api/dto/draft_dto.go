package dto

import (
	"time"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// DraftResponse is one draft as shown to the view, with its running operations.
type DraftResponse struct {
	ID                string                 `json:"id"`
	CustomerName      string                 `json:"customer_name"`
	ContextSummary    string                 `json:"context_summary"`
	DraftMessage      string                 `json:"draft_message"`
	FinalMessage      *string                `json:"final_message,omitempty"`
	Status            domain.DraftStatus     `json:"status"`
	ProcessedAt       *time.Time             `json:"processed_at,omitempty"`
	ReceivedOn        *string                `json:"received_on,omitempty"`
	SatisfactionScore *int                   `json:"satisfaction_score,omitempty"`
	ConversationRef   *string                `json:"conversation_ref,omitempty"`
	InFlight          []domain.OperationKind `json:"in_flight"`
}

// DraftsSnapshotResponse is the full draft panel.
type DraftsSnapshotResponse struct {
	Drafts    []DraftResponse `json:"drafts"`
	Pending   []DraftResponse `json:"pending"`
	History   []DraftResponse `json:"history"`
	Loading   bool            `json:"loading"`
	LastError string          `json:"last_error,omitempty"`
	Revision  uint64          `json:"revision"`
}

// ApproveRequest payload. Without a final message the current draft text is sent.
type ApproveRequest struct {
	FinalMessage *string `json:"final_message"`
}

// UpdateMessageRequest payload.
type UpdateMessageRequest struct {
	DraftMessage *string `json:"draft_message"`
}

// RegenerateRequest payload.
type RegenerateRequest struct {
	Target domain.RegenerationTarget `json:"target"`
}

// RegenerateResponse returns the new text and the draft after patching.
type RegenerateResponse struct {
	Target     domain.RegenerationTarget `json:"target"`
	NewContent string                    `json:"new_content"`
	Draft      *DraftResponse            `json:"draft,omitempty"`
}

// DecisionEntryResponse is one journal entry.
type DecisionEntryResponse struct {
	ID        string         `json:"id"`
	EventType string         `json:"event_type"`
	DraftID   *string        `json:"draft_id,omitempty"`
	Operator  string         `json:"operator"`
	Outcome   string         `json:"outcome"`
	Error     *string        `json:"error,omitempty"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// RevisionResponse lets the view poll for changes cheaply.
type RevisionResponse struct {
	Revision       uint64 `json:"revision"`
	DraftsRevision uint64 `json:"drafts_revision"`
	ChatRevision   uint64 `json:"chat_revision"`
}
