package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reviewdesk/draft-review-console/internal/config"
	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/observability"
	apperrors "github.com/reviewdesk/draft-review-console/pkg/util"
)

const maxResponseBytes = 8 << 20

// Operation names used in errors, logs and metrics.
const (
	OpFetchDrafts      = "fetch_drafts"
	OpSubmitAction     = "submit_action"
	OpRegenerate       = "regenerate"
	OpFetchTranscript  = "fetch_transcript"
	OpSendChatMessage  = "send_chat_message"
	OpToggleAutomation = "toggle_automation"
)

// RegenerationRequest asks the backend for a fresh value of one draft field.
type RegenerationRequest struct {
	ID              string
	Target          domain.RegenerationTarget
	ContextSnapshot string
	CustomerName    string
}

// RegenerationResult carries the regenerated text.
type RegenerationResult struct {
	NewContent string
}

// Gateway is the stateless I/O boundary to the review backend. Implementations never retry.
type Gateway interface {
	FetchDrafts(ctx context.Context) ([]domain.DraftRecord, error)
	SubmitAction(ctx context.Context, id string, action domain.ReviewAction, finalMessage *string) error
	SubmitRegeneration(ctx context.Context, req RegenerationRequest) (RegenerationResult, error)
	FetchTranscript(ctx context.Context, conversationRef string) ([]domain.ChatMessage, error)
	SendChatMessage(ctx context.Context, conversationRef, text string) error
	ToggleAutomation(ctx context.Context, conversationRef string, enabled bool) error
}

// HTTPGateway talks JSON over HTTP to the backend webhooks.
type HTTPGateway struct {
	client  *http.Client
	cfg     config.BackendConfig
	limiter *rate.Limiter
	logger  *zap.Logger
	metrics *observability.Metrics
}

// Option customizes an HTTPGateway.
type Option func(*HTTPGateway)

// WithHTTPClient replaces the default client.
func WithHTTPClient(client *http.Client) Option {
	return func(g *HTTPGateway) { g.client = client }
}

// WithMetrics records per-call counters.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(g *HTTPGateway) { g.metrics = metrics }
}

// NewHTTPGateway builds a gateway for the configured backend.
func NewHTTPGateway(cfg config.BackendConfig, logger *zap.Logger, opts ...Option) *HTTPGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &HTTPGateway{
		client: &http.Client{Timeout: cfg.Timeout()},
		cfg:    cfg,
		logger: logger.Named("gateway"),
	}
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst)
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FetchDrafts lists every draft known to the backend.
func (g *HTTPGateway) FetchDrafts(ctx context.Context) ([]domain.DraftRecord, error) {
	var records []domain.DraftRecord
	err := g.do(ctx, OpFetchDrafts, http.MethodGet, g.cfg.DraftsPath, nil, nil, func(body []byte) error {
		var items []wireDraft
		if err := decodeArray(body, &items); err != nil {
			return err
		}
		var err error
		records, err = toDraftRecords(items)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// SubmitAction sends an approve or reject decision.
func (g *HTTPGateway) SubmitAction(ctx context.Context, id string, action domain.ReviewAction, finalMessage *string) error {
	payload := actionRequest{ID: id, Action: action}
	if action == domain.ReviewActionApprove {
		payload.FinalMessage = finalMessage
	}
	return g.do(ctx, OpSubmitAction, http.MethodPost, g.cfg.ActionPath, nil, payload, nil)
}

// SubmitRegeneration requests new content for the context summary or the draft message.
func (g *HTTPGateway) SubmitRegeneration(ctx context.Context, req RegenerationRequest) (RegenerationResult, error) {
	payload := regenerateRequest{
		ID:      req.ID,
		Action:  "REGENERATE",
		Target:  req.Target,
		Context: req.ContextSnapshot,
		Client:  req.CustomerName,
	}
	var result RegenerationResult
	err := g.do(ctx, OpRegenerate, http.MethodPost, g.cfg.RegeneratePath, nil, payload, func(body []byte) error {
		var resp regenerateResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return err
		}
		if strings.TrimSpace(resp.NewDraft) == "" {
			return fmt.Errorf("missing newDraft")
		}
		result.NewContent = resp.NewDraft
		return nil
	})
	return result, err
}

// FetchTranscript loads the message history of a conversation.
func (g *HTTPGateway) FetchTranscript(ctx context.Context, conversationRef string) ([]domain.ChatMessage, error) {
	query := url.Values{"chat_id": []string{conversationRef}}
	var messages []domain.ChatMessage
	err := g.do(ctx, OpFetchTranscript, http.MethodGet, g.cfg.ChatHistoryPath, query, nil, func(body []byte) error {
		var items []wireChatMessage
		if err := decodeArray(body, &items); err != nil {
			return err
		}
		messages = toChatMessages(items)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendChatMessage posts an operator message into a conversation.
func (g *HTTPGateway) SendChatMessage(ctx context.Context, conversationRef, text string) error {
	return g.do(ctx, OpSendChatMessage, http.MethodPost, g.cfg.ChatSendPath, nil, chatSendRequest{ChatID: conversationRef, Text: text}, nil)
}

// ToggleAutomation switches the automated agent on or off for a conversation.
func (g *HTTPGateway) ToggleAutomation(ctx context.Context, conversationRef string, enabled bool) error {
	return g.do(ctx, OpToggleAutomation, http.MethodPost, g.cfg.ChatAutomationPath, nil, automationRequest{ChatID: conversationRef, Status: enabled}, nil)
}

// do performs one request; decode is nil for acknowledgement-only calls.
func (g *HTTPGateway) do(ctx context.Context, op, method, path string, query url.Values, payload any, decode func([]byte) error) (err error) {
	start := time.Now()
	requestID := uuid.NewString()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = apperrors.ToDomainError(err).Code
			g.logger.Warn("backend call failed",
				zap.String("operation", op),
				zap.String("request_id", requestID),
				zap.Error(err))
		}
		g.metrics.RecordGatewayCall(op, outcome, time.Since(start))
	}()

	if g.limiter != nil {
		if werr := g.limiter.Wait(ctx); werr != nil {
			return apperrors.NewNetworkError(op, werr)
		}
	}

	var body io.Reader
	if payload != nil {
		data, merr := json.Marshal(payload)
		if merr != nil {
			return apperrors.NewInternalError(merr)
		}
		body = bytes.NewReader(data)
	}

	target := g.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, rerr := http.NewRequestWithContext(ctx, method, target, body)
	if rerr != nil {
		return apperrors.NewInternalError(rerr)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(observability.RequestIDHeader, requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)
	}

	g.logger.Debug("backend call", zap.String("operation", op), zap.String("method", method), zap.String("request_id", requestID))
	resp, derr := g.client.Do(req)
	if derr != nil {
		return apperrors.NewNetworkError(op, derr)
	}
	defer resp.Body.Close()

	respBody, rerr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if rerr != nil {
		return apperrors.NewNetworkError(op, rerr)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := remoteFailure(respBody)
		return apperrors.NewRemoteError(op, resp.StatusCode, msg)
	}
	if msg, failed := remoteFailure(respBody); failed {
		return apperrors.NewRemoteError(op, resp.StatusCode, msg)
	}
	if decode == nil {
		return nil
	}
	if derr := decode(respBody); derr != nil {
		return apperrors.NewFormatError(op, derr)
	}
	return nil
}
