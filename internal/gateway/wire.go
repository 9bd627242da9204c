package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// flexString accepts JSON strings and numbers; chat ids and record ids arrive as either.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(data))
	}
	*f = flexString(n.String())
	return nil
}

type wireDraft struct {
	ID                flexString `json:"ID"`
	Cliente           string     `json:"Cliente"`
	Contexto          string     `json:"Contexto"`
	DraftMessage      string     `json:"DraftMessage"`
	FinalMessage      *string    `json:"FinalMessage"`
	Status            string     `json:"Status"`
	ProcessedAt       *string    `json:"ProcessedAt"`
	Data              *string    `json:"Data"`
	SatisfactionScore *int       `json:"SatisfactionScore"`
	CSAT              *int       `json:"CSAT"`
	TelegramChatID    flexString `json:"TelegramChatID"`
}

type wireChatMessage struct {
	Sender    string     `json:"sender"`
	Text      string     `json:"text"`
	Timestamp flexString `json:"timestamp"`
}

type actionRequest struct {
	ID           string              `json:"id"`
	Action       domain.ReviewAction `json:"action"`
	FinalMessage *string             `json:"finalMessage,omitempty"`
}

type regenerateRequest struct {
	ID      string                    `json:"id"`
	Action  string                    `json:"action"`
	Target  domain.RegenerationTarget `json:"target"`
	Context string                    `json:"context"`
	Client  string                    `json:"client"`
}

type regenerateResponse struct {
	NewDraft string `json:"newDraft"`
}

type chatSendRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type automationRequest struct {
	ChatID string `json:"chat_id"`
	Status bool   `json:"status"`
}

// errorEnvelope matches failure bodies such as {"error": "..."} or {"success": false, "message": "..."}.
type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
	Success *bool           `json:"success"`
}

// remoteFailure extracts a server-reported failure from a response body, if any.
func remoteFailure(body []byte) (string, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env errorEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	if len(env.Error) > 0 && !bytes.Equal(env.Error, []byte("null")) && !bytes.Equal(env.Error, []byte("false")) {
		var msg string
		if err := json.Unmarshal(env.Error, &msg); err != nil {
			msg = string(env.Error)
		}
		if msg == "" {
			msg = env.Message
		}
		if msg == "" {
			msg = "request rejected"
		}
		return msg, true
	}
	if env.Success != nil && !*env.Success {
		if env.Message == "" {
			return "request rejected", true
		}
		return env.Message, true
	}
	return "", false
}

// decodeArray rejects anything that is not a JSON array (null is treated as empty).
func decodeArray(body []byte, out any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return errors.New("empty response body")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if trimmed[0] != '[' {
		return errors.New("expected a JSON array")
	}
	return json.Unmarshal(trimmed, out)
}

func toDraftRecords(items []wireDraft) ([]domain.DraftRecord, error) {
	records := make([]domain.DraftRecord, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, item := range items {
		record, err := item.toDomain()
		if err != nil {
			return nil, fmt.Errorf("draft %d: %w", i, err)
		}
		if _, dup := seen[record.ID]; dup {
			return nil, fmt.Errorf("draft %d: duplicate id %q", i, record.ID)
		}
		seen[record.ID] = struct{}{}
		records = append(records, record)
	}
	return records, nil
}

func (w wireDraft) toDomain() (domain.DraftRecord, error) {
	id := strings.TrimSpace(string(w.ID))
	if id == "" {
		return domain.DraftRecord{}, errors.New("missing ID")
	}
	status := domain.DraftStatus(strings.ToUpper(strings.TrimSpace(w.Status)))
	if status == "" {
		status = domain.DraftStatusPending
	}
	if !status.Valid() {
		return domain.DraftRecord{}, fmt.Errorf("unknown status %q", w.Status)
	}

	record := domain.DraftRecord{
		ID:             id,
		CustomerName:   w.Cliente,
		ContextSummary: w.Contexto,
		DraftMessage:   w.DraftMessage,
		FinalMessage:   w.FinalMessage,
		Status:         status,
		ReceivedOn:     w.Data,
	}

	if status != domain.DraftStatusPending && w.ProcessedAt != nil && strings.TrimSpace(*w.ProcessedAt) != "" {
		ts, err := parseTimestamp(*w.ProcessedAt)
		if err != nil {
			return domain.DraftRecord{}, fmt.Errorf("invalid ProcessedAt: %w", err)
		}
		record.ProcessedAt = &ts
	}

	score := w.SatisfactionScore
	if score == nil {
		score = w.CSAT
	}
	if score != nil && *score >= 1 && *score <= 5 {
		v := *score
		record.SatisfactionScore = &v
	}

	if ref := strings.TrimSpace(string(w.TelegramChatID)); ref != "" {
		record.ConversationRef = &ref
	}
	return record, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse("2006-01-02 15:04:05", raw)
}

func toChatMessages(items []wireChatMessage) []domain.ChatMessage {
	out := make([]domain.ChatMessage, 0, len(items))
	for _, item := range items {
		out = append(out, domain.ChatMessage{
			Sender:    parseSender(item.Sender),
			Text:      item.Text,
			Timestamp: string(item.Timestamp),
		})
	}
	return out
}

func parseSender(raw string) domain.ChatSender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "bot", "ai", "agent", "assistant", "automatedagent":
		return domain.SenderAutomatedAgent
	case "human", "operator", "humanoperator", "staff":
		return domain.SenderHumanOperator
	default:
		return domain.SenderCustomer
	}
}
