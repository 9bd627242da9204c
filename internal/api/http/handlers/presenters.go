package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/api/dto"
	"github.com/reviewdesk/draft-review-console/internal/auth"
	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/service"
	"github.com/reviewdesk/draft-review-console/internal/store"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// sessionFor resolves the calling operator's session, creating it on first use.
func sessionFor(c *fiber.Ctx, sessions *service.SessionRegistry) (*service.Session, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("operator required")
	}
	return sessions.Get(c.UserContext(), principal.Username), nil
}

func draftResponse(d domain.DraftRecord, inFlight map[string][]domain.OperationKind) dto.DraftResponse {
	ops := inFlight[d.ID]
	if ops == nil {
		ops = []domain.OperationKind{}
	}
	return dto.DraftResponse{
		ID:                d.ID,
		CustomerName:      d.CustomerName,
		ContextSummary:    d.ContextSummary,
		DraftMessage:      d.DraftMessage,
		FinalMessage:      d.FinalMessage,
		Status:            d.Status,
		ProcessedAt:       d.ProcessedAt,
		ReceivedOn:        d.ReceivedOn,
		SatisfactionScore: d.SatisfactionScore,
		ConversationRef:   d.ConversationRef,
		InFlight:          ops,
	}
}

func draftList(records []domain.DraftRecord, inFlight map[string][]domain.OperationKind) []dto.DraftResponse {
	out := make([]dto.DraftResponse, 0, len(records))
	for _, r := range records {
		out = append(out, draftResponse(r, inFlight))
	}
	return out
}

func snapshotResponse(snap store.Snapshot) dto.DraftsSnapshotResponse {
	return dto.DraftsSnapshotResponse{
		Drafts:    draftList(snap.Drafts, snap.InFlight),
		Pending:   draftList(snap.Pending, snap.InFlight),
		History:   draftList(snap.History, snap.InFlight),
		Loading:   snap.Loading,
		LastError: snap.LastError,
		Revision:  snap.Revision,
	}
}

func chatStateResponse(state service.ChatState) dto.ChatStateResponse {
	resp := dto.ChatStateResponse{
		Transcript: make([]dto.ChatMessageResponse, 0, len(state.Transcript)),
		Loading:    state.Loading,
		Error:      state.Error,
		Revision:   state.Revision,
	}
	if state.Active != nil {
		active := draftResponse(*state.Active, nil)
		resp.Active = &active
	}
	for _, m := range state.Transcript {
		resp.Transcript = append(resp.Transcript, dto.ChatMessageResponse{
			Sender:    m.Sender,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		})
	}
	return resp
}

func decisionResponse(e domain.DecisionEntry) dto.DecisionEntryResponse {
	return dto.DecisionEntryResponse{
		ID:        e.ID,
		EventType: e.EventType,
		DraftID:   e.DraftID,
		Operator:  e.Operator,
		Outcome:   e.Outcome,
		Error:     e.Error,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
	}
}
