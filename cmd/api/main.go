package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/fleetline/dispatch-backend/api/routes"
	"github.com/fleetline/dispatch-backend/internal/assignments"
	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/internal/health"
	"github.com/fleetline/dispatch-backend/internal/notifications"
	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/fleetline/dispatch-backend/pkg/migrate"
	"github.com/fleetline/dispatch-backend/pkg/redis"
	"github.com/joho/godotenv"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	clk, err := clock.NewSystem(cfg.App.Timezone)
	if err != nil {
		logg.Error(context.Background(), "failed to load timezone", err)
		os.Exit(1)
	}

	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:   notifications.NewRepository(dbClient.DB()),
		Sender: &notifications.LogSender{Logg: logg},
		Clock:  clk,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification dispatcher", err)
		os.Exit(1)
	}

	healthService, err := health.NewService(health.ServiceParams{
		Repo:   health.NewRepository(dbClient.DB()),
		Tx:     dbClient,
		Notify: dispatcher,
		Policy: cfg.Health,
		Clock:  clk,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create health service", err)
		os.Exit(1)
	}

	bidsService, err := bids.NewService(bids.ServiceParams{
		Repo:         bids.NewRepository(dbClient.DB()),
		Tx:           dbClient,
		Health:       healthService,
		Notifier:     dispatcher,
		Policy:       cfg.Bidding,
		HealthPolicy: cfg.Health,
		Clock:        clk,
		Logger:       logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create bids service", err)
		os.Exit(1)
	}

	assignmentsService, err := assignments.NewService(assignments.ServiceParams{
		Repo:    assignments.NewRepository(dbClient.DB()),
		Tx:      dbClient,
		Windows: bidsService,
		Notify:  dispatcher,
		Policy:  cfg.Lifecycle,
		Clock:   clk,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create assignments service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, assignmentsService, bidsService, healthService),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shut down gracefully")
}
