package dto

import (
	"time"

	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// OperatorResponse describes the authenticated operator.
type OperatorResponse struct {
	Username string              `json:"username"`
	Role     domain.OperatorRole `json:"role"`
}

// LoginResponse carries the issued access token.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	TokenType   string           `json:"token_type"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Operator    OperatorResponse `json:"operator"`
}
