package dto

import "github.com/reviewdesk/draft-review-console/internal/domain"

// ChatMessageResponse is one transcript line.
type ChatMessageResponse struct {
	Sender    domain.ChatSender `json:"sender"`
	Text      string            `json:"text"`
	Timestamp string            `json:"timestamp"`
}

// ChatStateResponse is the chat panel.
type ChatStateResponse struct {
	Active     *DraftResponse        `json:"active"`
	Transcript []ChatMessageResponse `json:"transcript"`
	Loading    bool                  `json:"loading"`
	Error      string                `json:"error,omitempty"`
	Revision   uint64                `json:"revision"`
}

// SendChatMessageRequest payload.
type SendChatMessageRequest struct {
	Text string `json:"text"`
}

// AutomationRequest payload.
type AutomationRequest struct {
	Enabled *bool `json:"enabled"`
}
