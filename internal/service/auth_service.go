package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reviewdesk/draft-review-console/internal/auth"
	"github.com/reviewdesk/draft-review-console/internal/config"
	"github.com/reviewdesk/draft-review-console/internal/domain"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

// AuthService authenticates operators configured through AUTH_OPERATORS.
type AuthService struct {
	operators map[string]domain.Operator
	tokenMgr  *auth.TokenManager
	logger    *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	operators := make(map[string]domain.Operator, len(cfg.Operators))
	for _, op := range cfg.Operators {
		operators[op.Username] = op
	}
	if len(operators) == 0 {
		logger.Warn("AUTH_OPERATORS is empty; nobody can log in")
	}
	return &AuthService{
		operators: operators,
		tokenMgr:  auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
		logger:    logger,
	}
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(_ context.Context, username, password string) (domain.Operator, string, time.Time, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.Operator{}, "", time.Time{}, apperrors.NewValidationError("username and password are required", nil)
	}
	operator, ok := s.operators[username]
	if !ok || !auth.VerifyOperator(operator, password) {
		s.logger.Info("operator login rejected", zap.String("username", username))
		return domain.Operator{}, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(operator.Username, operator.Role)
	if err != nil {
		return domain.Operator{}, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return operator, token, exp, nil
}

// Lookup resolves a configured operator by username.
func (s *AuthService) Lookup(username string) (domain.Operator, bool) {
	op, ok := s.operators[username]
	return op, ok
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
