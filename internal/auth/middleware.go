package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/domain"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

const principalKey = "auth_principal"

// Principal represents the authenticated operator.
type Principal struct {
	Username string
	Role     domain.OperatorRole
}

// OperatorDirectory resolves configured operators.
type OperatorDirectory interface {
	Lookup(username string) (domain.Operator, bool)
}

// AuthMiddleware validates bearer tokens and loads principals.
type AuthMiddleware struct {
	tokens    *TokenManager
	operators OperatorDirectory
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens *TokenManager, operators OperatorDirectory) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, operators: operators}
}

// Handle enforces authentication for protected routes. The role is taken from
// the current configuration so a demoted operator loses rights immediately.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	claims, err := m.tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}

	operator, ok := m.operators.Lookup(claims.Subject)
	if !ok {
		return apperrors.NewUnauthorized("operator not found")
	}

	c.Locals(principalKey, &Principal{Username: operator.Username, Role: operator.Role})
	return c.Next()
}

// PrincipalFromContext retrieves the authenticated operator.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
