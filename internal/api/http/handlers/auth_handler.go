package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/api/dto"
	"github.com/reviewdesk/draft-review-console/internal/service"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// AuthHandler issues operator tokens.
type AuthHandler struct {
	service *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{service: authService}
}

// Login POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	operator, token, exp, err := h.service.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   exp,
		Operator:    dto.OperatorResponse{Username: operator.Username, Role: operator.Role},
	}})
}
