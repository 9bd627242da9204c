package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/api/dto"
	"github.com/reviewdesk/draft-review-console/internal/service"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// ChatHandler exposes the chat panel of the caller's session.
type ChatHandler struct {
	sessions *service.SessionRegistry
}

// NewChatHandler constructs handler.
func NewChatHandler(sessions *service.SessionRegistry) *ChatHandler {
	return &ChatHandler{sessions: sessions}
}

// State GET /chat.
func (h *ChatHandler) State(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": chatStateResponse(session.Chat.State())})
}

// Open POST /chat/open/:id. A failed transcript load is reported inside the chat state.
func (h *ChatHandler) Open(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	id := c.Params("id")
	record, ok := session.Store.Get(id)
	if !ok {
		return apperrors.NewNotFound("draft", map[string]any{"id": id})
	}
	_ = session.Chat.Open(c.UserContext(), record)
	return c.JSON(fiber.Map{"data": chatStateResponse(session.Chat.State())})
}

// Close POST /chat/close.
func (h *ChatHandler) Close(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	session.Chat.Close()
	return c.JSON(fiber.Map{"data": chatStateResponse(session.Chat.State())})
}

// SendMessage POST /chat/messages. Delivery continues after the response.
func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.SendChatMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := session.Chat.SendHumanMessage(c.UserContext(), req.Text); err != nil {
		return err
	}
	return c.Status(http.StatusAccepted).JSON(fiber.Map{"data": chatStateResponse(session.Chat.State())})
}

// ToggleAutomation POST /chat/automation.
func (h *ChatHandler) ToggleAutomation(c *fiber.Ctx) error {
	session, err := sessionFor(c, h.sessions)
	if err != nil {
		return err
	}
	var req dto.AutomationRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Enabled == nil {
		return apperrors.NewValidationError("enabled required", nil)
	}
	if err := session.Chat.ToggleAutomation(c.UserContext(), *req.Enabled); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"enabled": *req.Enabled}})
}
