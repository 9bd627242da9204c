package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/reviewdesk/draft-review-console/internal/api/http/handlers"
	"github.com/reviewdesk/draft-review-console/internal/auth"
	"github.com/reviewdesk/draft-review-console/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Metrics        *handlers.MetricsHandler
	Auth           *handlers.AuthHandler
	Drafts         *handlers.DraftsHandler
	Chat           *handlers.ChatHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Reads need any operator; commands need a reviewer.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Metrics.Get)

	app.Post("/auth/login", cfg.Auth.Login)

	read := chain(cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	app.Get("/drafts", read(cfg.Drafts.Snapshot)...)
	app.Get("/drafts/pending", read(cfg.Drafts.Pending)...)
	app.Get("/drafts/history", read(cfg.Drafts.History)...)
	app.Get("/drafts/:id/decisions", read(cfg.Drafts.Decisions)...)
	app.Get("/state/revision", read(cfg.Drafts.Revision)...)
	app.Get("/chat", read(cfg.Chat.State)...)

	write := chain(cfg.AuthMiddleware.Handle, auth.RequireRole(domain.OperatorRoleReviewer))
	app.Post("/drafts/refresh", write(cfg.Drafts.Refresh)...)
	app.Post("/drafts/:id/approve", write(cfg.Drafts.Approve)...)
	app.Post("/drafts/:id/reject", write(cfg.Drafts.Reject)...)
	app.Put("/drafts/:id/message", write(cfg.Drafts.UpdateMessage)...)
	app.Post("/drafts/:id/regenerate", write(cfg.Drafts.Regenerate)...)
	app.Post("/chat/open/:id", write(cfg.Chat.Open)...)
	app.Post("/chat/close", write(cfg.Chat.Close)...)
	app.Post("/chat/messages", write(cfg.Chat.SendMessage)...)
	app.Post("/chat/automation", write(cfg.Chat.ToggleAutomation)...)
}

// chain prefixes route handlers with guards. Guards are attached per route
// rather than through a prefix-less group so unknown paths still 404.
func chain(guards ...fiber.Handler) func(fiber.Handler) []fiber.Handler {
	return func(h fiber.Handler) []fiber.Handler {
		out := make([]fiber.Handler, 0, len(guards)+1)
		out = append(out, guards...)
		return append(out, h)
	}
}
