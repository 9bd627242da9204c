package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/reviewdesk/draft-review-console/internal/api/http"
	"github.com/reviewdesk/draft-review-console/internal/api/http/handlers"
	"github.com/reviewdesk/draft-review-console/internal/auth"
	"github.com/reviewdesk/draft-review-console/internal/config"
	"github.com/reviewdesk/draft-review-console/internal/events"
	"github.com/reviewdesk/draft-review-console/internal/gateway"
	"github.com/reviewdesk/draft-review-console/internal/observability"
	"github.com/reviewdesk/draft-review-console/internal/persistence"
	"github.com/reviewdesk/draft-review-console/internal/repository"
	"github.com/reviewdesk/draft-review-console/internal/service"
	"github.com/reviewdesk/draft-review-console/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// `console hash-password <plain>` prints a hash for AUTH_OPERATORS.
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2], cfg.Auth.BcryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.Pool, persistence.DefaultMigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	journalDeps := service.JournalDependencies{
		Dispatcher: dispatcher,
		Channel:    cfg.Redis.EventsChannel,
		Logger:     logger,
	}
	if pg.Enabled() {
		journalDeps.Decisions = repository.NewDecisionRepository(pg.Pool)
	}
	if redis.Enabled() {
		journalDeps.Publisher = redis
	}
	journal := service.NewJournalService(journalDeps)
	worker.StartJournalWorker(journal)

	backend := gateway.NewHTTPGateway(cfg.Backend, logger, gateway.WithMetrics(metrics))
	sessions := service.NewSessionRegistry(service.RegistryDependencies{
		Gateway:    backend,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	authService := service.NewAuthService(cfg.Auth, logger)
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), authService)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.App.RequestTimeout() + 5*time.Second,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Metrics:        handlers.NewMetricsHandler(metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Drafts:         handlers.NewDraftsHandler(sessions, journal),
		Chat:           handlers.NewChatHandler(sessions),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		logger.Info("console listening", zap.String("addr", cfg.App.Addr()), zap.String("backend", cfg.Backend.BaseURL))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.ShutdownWithTimeout(10 * time.Second)
	sessions.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
