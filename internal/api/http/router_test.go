package http

import (
	"bytes"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/reviewdesk/draft-review-console/internal/api/http/handlers"
	"github.com/reviewdesk/draft-review-console/internal/auth"
	"github.com/reviewdesk/draft-review-console/internal/config"
	"github.com/reviewdesk/draft-review-console/internal/domain"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	"github.com/reviewdesk/draft-review-console/internal/observability"
	"github.com/reviewdesk/draft-review-console/internal/persistence"
	"github.com/reviewdesk/draft-review-console/internal/service"
)

// fakeBackend imitates the review webhooks with an in-memory draft list.
type fakeBackend struct {
	mu      sync.Mutex
	drafts  []map[string]any
	actions []map[string]any
	sent    []map[string]any
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{drafts: []map[string]any{
		{"ID": "1", "Cliente": "Alice", "Contexto": "Late parcel", "DraftMessage": "Sorry Alice", "Status": "PENDING", "TelegramChatID": 42},
		{"ID": "2", "Cliente": "Bob", "Contexto": "Refund", "DraftMessage": "Refund sent", "Status": "PENDING"},
	}}
}

func (b *fakeBackend) recordedActions() []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]map[string]any{}, b.actions...)
}

func (b *fakeBackend) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var body map[string]any
	if r.Method == nethttp.MethodPost {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	switch r.URL.Path {
	case "/drafts":
		_ = json.NewEncoder(w).Encode(b.drafts)
	case "/drafts/action":
		b.actions = append(b.actions, body)
		for _, d := range b.drafts {
			if d["ID"] == body["id"] {
				if body["action"] == "APPROVE" {
					d["Status"] = "APPROVED"
				} else {
					d["Status"] = "REJECTED"
				}
				d["ProcessedAt"] = "2026-10-15T10:00:00Z"
			}
		}
		_, _ = io.WriteString(w, `{"message": "Workflow was started"}`)
	case "/drafts/regenerate":
		_, _ = io.WriteString(w, `{"newDraft": "regenerated `+strings.ToLower(body["target"].(string))+`"}`)
	case "/chat/history":
		_, _ = io.WriteString(w, `[{"sender": "customer", "text": "where is it?", "timestamp": "09:00"}]`)
	case "/chat/send":
		b.sent = append(b.sent, body)
	case "/chat/automation":
	default:
		w.WriteHeader(nethttp.StatusNotFound)
	}
}

type testServer struct {
	app      *fiber.App
	backend  *fakeBackend
	sessions *service.SessionRegistry
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	reviewerHash, err := auth.HashPassword("review-pw", bcrypt.MinCost)
	require.NoError(t, err)
	viewerHash, err := auth.HashPassword("view-pw", bcrypt.MinCost)
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	journal := service.NewJournalService(service.JournalDependencies{Dispatcher: dispatcher})
	journal.RegisterHandlers()

	gw := gateway.NewHTTPGateway(config.BackendConfig{
		BaseURL:            srv.URL,
		TimeoutSeconds:     5,
		DraftsPath:         "/drafts",
		ActionPath:         "/drafts/action",
		RegeneratePath:     "/drafts/regenerate",
		ChatHistoryPath:    "/chat/history",
		ChatSendPath:       "/chat/send",
		ChatAutomationPath: "/chat/automation",
	}, nil, gateway.WithMetrics(metrics))
	sessions := service.NewSessionRegistry(service.RegistryDependencies{Gateway: gw, Dispatcher: dispatcher})
	t.Cleanup(sessions.Shutdown)

	authSvc := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 5,
		Operators: []domain.Operator{
			{Username: "ana", PasswordHash: reviewerHash, Role: domain.OperatorRoleReviewer},
			{Username: "vic", PasswordHash: viewerHash, Role: domain.OperatorRoleViewer},
		},
	}, nil)

	app := fiber.New()
	RegisterMiddlewares(app, nil, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("draft-review-console", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authSvc),
		Drafts:         handlers.NewDraftsHandler(sessions, journal),
		Chat:           handlers.NewChatHandler(sessions),
		AuthMiddleware: auth.NewAuthMiddleware(authSvc.TokenManager(), authSvc),
	})
	return &testServer{app: app, backend: backend, sessions: sessions}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	status, body := s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(t, nethttp.StatusOK, status, body)
	return body["data"].(map[string]any)["access_token"].(string)
}

func errorCode(body map[string]any) string {
	errBody, ok := body["error"].(map[string]any)
	if !ok {
		return ""
	}
	code, _ := errBody["code"].(string)
	return code
}

func draftIDs(list any) []string {
	var ids []string
	for _, item := range list.([]any) {
		ids = append(ids, item.(map[string]any)["id"].(string))
	}
	return ids
}

func TestLoginAndAuthentication(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodPost, "/auth/login", "", map[string]string{"username": "ana", "password": "wrong"})
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, body = s.do(t, nethttp.MethodGet, "/drafts", "", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodGet, "/drafts", "not-a-token", nil)
	assert.Equal(t, nethttp.StatusUnauthorized, status)
}

func TestViewerCanReadButNotDecide(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "vic", "view-pw")

	status, body := s.do(t, nethttp.MethodGet, "/drafts/pending", token, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, []string{"1", "2"}, draftIDs(body["data"]))

	status, body = s.do(t, nethttp.MethodPost, "/drafts/1/approve", token, map[string]string{"final_message": "x"})
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(body))
	assert.Empty(t, s.backend.recordedActions())
}

func TestApproveFlowMovesDraftToHistory(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ana", "review-pw")

	status, body := s.do(t, nethttp.MethodPut, "/drafts/1/message", token, map[string]string{"draft_message": "Sorry Alice, it ships today"})
	require.Equal(t, nethttp.StatusOK, status, body)
	assert.Equal(t, "Sorry Alice, it ships today", body["data"].(map[string]any)["draft_message"])

	status, body = s.do(t, nethttp.MethodPost, "/drafts/1/approve", token, nil)
	require.Equal(t, nethttp.StatusOK, status, body)

	data := body["data"].(map[string]any)
	assert.Equal(t, []string{"2"}, draftIDs(data["pending"]))
	assert.Equal(t, []string{"1"}, draftIDs(data["history"]))

	actions := s.backend.recordedActions()
	require.Len(t, actions, 1)
	assert.Equal(t, "APPROVE", actions[0]["action"])
	assert.Equal(t, "Sorry Alice, it ships today", actions[0]["finalMessage"])

	status, body = s.do(t, nethttp.MethodPost, "/drafts/1/reject", token, nil)
	assert.Equal(t, nethttp.StatusConflict, status)
	assert.Equal(t, "CONFLICT", errorCode(body))
}

func TestRegenerateReturnsPatchedDraft(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ana", "review-pw")

	status, body := s.do(t, nethttp.MethodPost, "/drafts/2/regenerate", token, map[string]string{"target": "context"})
	require.Equal(t, nethttp.StatusOK, status, body)
	data := body["data"].(map[string]any)
	assert.Equal(t, "regenerated context", data["new_content"])
	assert.Equal(t, "regenerated context", data["draft"].(map[string]any)["context_summary"])
	assert.Empty(t, data["draft"].(map[string]any)["in_flight"])

	status, body = s.do(t, nethttp.MethodPost, "/drafts/2/regenerate", token, map[string]string{"target": "title"})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))

	status, _ = s.do(t, nethttp.MethodPost, "/drafts/99/regenerate", token, map[string]string{"target": "MESSAGE"})
	assert.Equal(t, nethttp.StatusNotFound, status)
}

func TestChatOpenSendAndClose(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ana", "review-pw")

	status, body := s.do(t, nethttp.MethodPost, "/chat/open/1", token, nil)
	require.Equal(t, nethttp.StatusOK, status, body)
	transcript := body["data"].(map[string]any)["transcript"].([]any)
	require.Len(t, transcript, 1)
	assert.Equal(t, "customer", transcript[0].(map[string]any)["sender"])

	status, body = s.do(t, nethttp.MethodPost, "/chat/messages", token, map[string]string{"text": "It ships today"})
	require.Equal(t, nethttp.StatusAccepted, status, body)
	transcript = body["data"].(map[string]any)["transcript"].([]any)
	require.Len(t, transcript, 2)
	assert.Equal(t, "humanOperator", transcript[1].(map[string]any)["sender"])

	status, _ = s.do(t, nethttp.MethodPost, "/chat/automation", token, map[string]bool{"enabled": false})
	assert.Equal(t, nethttp.StatusOK, status)

	status, body = s.do(t, nethttp.MethodPost, "/chat/close", token, nil)
	require.Equal(t, nethttp.StatusOK, status)
	assert.Nil(t, body["data"].(map[string]any)["active"])

	s.sessions.Shutdown()
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	require.Len(t, s.backend.sent, 1)
	assert.Equal(t, "42", s.backend.sent[0]["chat_id"])
}

func TestChatWithoutConversation(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ana", "review-pw")

	status, body := s.do(t, nethttp.MethodPost, "/chat/open/2", token, nil)
	require.Equal(t, nethttp.StatusOK, status)
	transcript := body["data"].(map[string]any)["transcript"].([]any)
	require.Len(t, transcript, 1)
	assert.Equal(t, service.NoConversationText, transcript[0].(map[string]any)["text"])

	status, body = s.do(t, nethttp.MethodPost, "/chat/messages", token, map[string]string{"text": "hello"})
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(body))
}

func TestRevisionAdvancesWithChanges(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "ana", "review-pw")

	_, body := s.do(t, nethttp.MethodGet, "/state/revision", token, nil)
	before := body["data"].(map[string]any)["revision"].(float64)

	s.do(t, nethttp.MethodPut, "/drafts/2/message", token, map[string]string{"draft_message": "changed"})

	_, body = s.do(t, nethttp.MethodGet, "/state/revision", token, nil)
	assert.Greater(t, body["data"].(map[string]any)["revision"].(float64), before)
}

func TestDecisionsRequireJournal(t *testing.T) {
	s := newTestServer(t)
	token := s.login(t, "vic", "view-pw")

	status, body := s.do(t, nethttp.MethodGet, "/drafts/1/decisions", token, nil)
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "JOURNAL_DISABLED", errorCode(body))
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	status, body := s.do(t, nethttp.MethodGet, "/health/live", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = s.do(t, nethttp.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "disabled", body["dependencies"].(map[string]any)["postgres"])

	status, body = s.do(t, nethttp.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(body))

	status, body = s.do(t, nethttp.MethodGet, "/metrics", "", nil)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, body["data"].(map[string]any), "requests")
}
