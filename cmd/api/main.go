package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/course-platform/internal/api/http"
	"github.com/spec-kit/course-platform/internal/api/http/handlers"
	"github.com/spec-kit/course-platform/internal/auth"
	"github.com/spec-kit/course-platform/internal/authz"
	"github.com/spec-kit/course-platform/internal/config"
	"github.com/spec-kit/course-platform/internal/content"
	"github.com/spec-kit/course-platform/internal/events"
	"github.com/spec-kit/course-platform/internal/observability"
	"github.com/spec-kit/course-platform/internal/persistence"
	"github.com/spec-kit/course-platform/internal/repository"
	"github.com/spec-kit/course-platform/internal/service"
	"github.com/spec-kit/course-platform/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file merged into the environment")
	migrationsDir := pflag.String("migrations-dir", persistence.DefaultMigrationsDir, "directory holding *.sql migrations")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Fatal("postgres is required to resolve identities and content")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, *migrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.String("event_id", event.ID), zap.Error(err))
	})
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, logger, cfg.Notification))

	userRepo := repository.NewUserRepository(pool)
	contentRepo := repository.NewContentRepository(pool)
	enrollmentRepo := repository.NewEnrollmentRepository(pool)

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL())
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	sessions := service.NewSessionRegistry(redis.Store(cfg.App.Name))

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		Users:      userRepo,
		Tokens:     tokens,
		Sessions:   sessions,
		OTPs:       redis.Store(cfg.App.Name),
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	contentService := service.NewContentService(service.ContentDependencies{
		Content:    contentRepo,
		Policy:     authz.NewPolicy(enrollmentRepo),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	proxy := content.NewProxy(content.Config{
		UserAgent:             cfg.Content.UserAgent,
		ResponseHeaderTimeout: cfg.Content.ResponseHeaderTimeout(),
		DocumentTimeout:       cfg.Content.DocumentTimeout(),
		VideoTimeout:          cfg.Content.VideoTimeout(),
		MaxDocumentBytes:      cfg.Content.MaxDocumentBytes,
	})

	gateOpts := []auth.MiddlewareOption{
		auth.WithBypassPaths(cfg.Auth.BypassPaths...),
		auth.WithLogger(logger),
	}
	if cfg.Auth.RequireActiveSession {
		gateOpts = append(gateOpts, auth.WithSessionChecker(sessions))
	}
	authMiddleware := auth.NewAuthMiddleware(tokens, auth.NewUserIdentityResolver(userRepo), gateOpts...)

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ErrorHandler:          httptransport.ErrorHandler(logger),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, metrics),
		Auth:               handlers.NewAuthHandler(authService),
		Content:            handlers.NewContentHandler(contentService, proxy, logger),
		AuthMiddleware:     authMiddleware,
		RateLimitPerMinute: cfg.Auth.RateLimitPerMinute,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return app.Listen(cfg.App.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return app.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped with error", zap.Error(err))
	}
}
