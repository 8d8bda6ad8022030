package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/permit-lifecycle/internal/api/http"
	"github.com/spec-kit/permit-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/permit-lifecycle/internal/auth"
	"github.com/spec-kit/permit-lifecycle/internal/config"
	"github.com/spec-kit/permit-lifecycle/internal/events"
	"github.com/spec-kit/permit-lifecycle/internal/lifecycle"
	"github.com/spec-kit/permit-lifecycle/internal/observability"
	"github.com/spec-kit/permit-lifecycle/internal/persistence"
	"github.com/spec-kit/permit-lifecycle/internal/repository"
	"github.com/spec-kit/permit-lifecycle/internal/service"
	"github.com/spec-kit/permit-lifecycle/internal/sla"
	"github.com/spec-kit/permit-lifecycle/internal/worker"
)

func serveCmd() *cobra.Command {
	var migrationsDir string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the SLA sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(migrationsDir)
		},
	}
	cmd.Flags().StringVar(&migrationsDir, "migrations", persistence.DefaultMigrationsDir, "directory of SQL migrations applied at startup")
	return cmd
}

func serve(migrationsDir string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Error("failed to connect postgres", zap.Error(err))
		return err
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), migrationsDir, logger); err != nil {
			logger.Error("failed to run migrations", zap.Error(err))
			return err
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	machine := lifecycle.New()
	var store repository.Store
	if pool := pg.PoolHandle(); pool != nil {
		store = repository.NewPostgresStore(pool, machine.NonTerminalStates)
	} else {
		logger.Warn("using in-memory entity store")
		store = repository.NewMemoryStore(machine.IsTerminal)
	}

	metrics := observability.NewMetrics()
	router := events.NewRouter(logger)
	workflow := service.NewWorkflowService(service.WorkflowDependencies{
		Store:   store,
		Machine: machine,
		Tracker: sla.NewTracker(sla.DefaultPolicy(), machine.IsTerminal),
		Router:  router,
		Metrics: metrics,
		Logger:  logger,
	})

	var relay *events.RedisRelay
	if redis.Enabled() {
		relay = events.NewRedisRelay(redis.Client, cfg.Redis.EventStream, cfg.Redis.StreamMaxLen, logger)
	}
	stopNotifications := worker.StartNotificationWorker(
		service.NewNotificationService(router, relay, logger, cfg.Notification))
	defer stopNotifications()

	sweeper := worker.NewSLASweeper(workflow, cfg.Workflow.SweepInterval(), cfg.Workflow.ExpireRenewals, logger)
	go sweeper.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	eventsHandler := handlers.NewEventsHandler(workflow, 64, 15*time.Second, logger)
	defer eventsHandler.Close()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Entities:       handlers.NewEntitiesHandler(workflow),
		Events:         eventsHandler,
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Error("fiber listen", zap.Error(err))
			cancel()
		}
	}()

	waitForShutdown(ctx, logger)

	cancel()
	eventsHandler.Close()
	return app.ShutdownWithTimeout(10 * time.Second)
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.String("reason", "listener stopped"))
	}
}
