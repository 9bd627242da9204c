package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/api/dto"
	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/service"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// DraftsHandler exposes the draft panel of the caller's session.
type DraftsHandler struct {
	sessions *service.SessionRegistry
	journal  *service.JournalService
}

// NewDraftsHandler constructs handler.
func NewDraftsHandler(sessions *service.SessionRegistry, journal *service.JournalService) *DraftsHandler {
	return &DraftsHandler{sessions: sessions, journal: journal}
}

// Snapshot GET /drafts.
func (h *DraftsHandler) Snapshot(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(session.Store.Snapshot())})
}

// Pending GET /drafts/pending.
func (h *DraftsHandler) Pending(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	snap := session.Store.Snapshot()
	return c.JSON(fiber.Map{"data": draftList(snap.Pending, snap.InFlight)})
}

// History GET /drafts/history.
func (h *DraftsHandler) History(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	snap := session.Store.Snapshot()
	return c.JSON(fiber.Map{"data": draftList(snap.History, snap.InFlight)})
}

// Refresh POST /drafts/refresh.
func (h *DraftsHandler) Refresh(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	if err := session.Pipeline.Refresh(c.UserContext()); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(session.Store.Snapshot())})
}

// Approve POST /drafts/:id/approve.
func (h *DraftsHandler) Approve(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	id := c.Params("id")

	var req dto.ApproveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	finalMessage := ""
	if req.FinalMessage != nil {
		finalMessage = *req.FinalMessage
	} else if current, ok := session.Store.Get(id); ok {
		finalMessage = current.DraftMessage
	}
	if strings.TrimSpace(finalMessage) == "" {
		return apperrors.NewValidationError("final_message required", map[string]any{"id": id})
	}

	if err := session.Pipeline.Approve(c.UserContext(), id, finalMessage); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(session.Store.Snapshot())})
}

// Reject POST /drafts/:id/reject.
func (h *DraftsHandler) Reject(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	if err := session.Pipeline.Reject(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": snapshotResponse(session.Store.Snapshot())})
}

// UpdateMessage PUT /drafts/:id/message.
func (h *DraftsHandler) UpdateMessage(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.UpdateMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.DraftMessage == nil {
		return apperrors.NewValidationError("draft_message required", nil)
	}

	id := c.Params("id")
	if err := session.Pipeline.UpdateDraftContent(c.UserContext(), id, *req.DraftMessage); err != nil {
		return err
	}
	updated, ok := session.Store.Get(id)
	if !ok {
		return apperrors.NewNotFound("draft", map[string]any{"id": id})
	}
	return c.JSON(fiber.Map{"data": draftResponse(updated, session.Store.Snapshot().InFlight)})
}

// Regenerate POST /drafts/:id/regenerate.
func (h *DraftsHandler) Regenerate(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.RegenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	target := domain.RegenerationTarget(strings.ToUpper(strings.TrimSpace(string(req.Target))))

	id := c.Params("id")
	content, err := session.Pipeline.Regenerate(c.UserContext(), id, target)
	if err != nil {
		return err
	}
	resp := dto.RegenerateResponse{Target: target, NewContent: content}
	if updated, ok := session.Store.Get(id); ok {
		d := draftResponse(updated, session.Store.Snapshot().InFlight)
		resp.Draft = &d
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Decisions GET /drafts/:id/decisions.
func (h *DraftsHandler) Decisions(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		return apperrors.NewValidationError("limit must be between 1 and 500", nil)
	}
	entries, err := h.journal.Entries(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return err
	}
	items := make([]dto.DecisionEntryResponse, 0, len(entries))
	for _, e := range entries {
		items = append(items, decisionResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"data": items})
}

// Revision GET /state/revision.
func (h *DraftsHandler) Revision(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	drafts := session.Store.Revision()
	chat := session.Chat.Revision()
	return c.JSON(fiber.Map{"data": dto.RevisionResponse{
		Revision:       drafts + chat,
		DraftsRevision: drafts,
		ChatRevision:   chat,
	}})
}
