package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/fleetline/dispatch-backend/internal/assignments"
	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/internal/cron"
	"github.com/fleetline/dispatch-backend/internal/health"
	"github.com/fleetline/dispatch-backend/internal/notifications"
	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/fleetline/dispatch-backend/pkg/metrics"
	"github.com/fleetline/dispatch-backend/pkg/migrate"
	"github.com/fleetline/dispatch-backend/pkg/redis"
)

const lockKeyFormat = "fleetline:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	jobs, err := buildJobs(logg, cfg, assignmentsService, bidsService, healthService, dispatcher)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	recorder, err := cron.NewDBRecorder(dbClient.DB(), clk, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create run recorder", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(jobs...),
		Lock:     lock,
		Metrics:  metricsCollector,
		Recorder: recorder,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(
	logg *logger.Logger,
	cfg *config.Config,
	assignmentsService *assignments.Service,
	bidsService *bids.Service,
	healthService *health.Service,
	dispatcher *notifications.Dispatcher,
) ([]cron.Job, error) {
	reminders, err := cron.NewReminderJob(cron.ReminderJobParams{
		Logger:      logg,
		Assignments: assignmentsService,
		Dispatcher:  dispatcher,
		Lead:        cfg.Lifecycle.ReminderLead,
	})
	if err != nil {
		return nil, err
	}
	autoDrop, err := cron.NewAutoDropJob(cron.AutoDropJobParams{
		Logger:      logg,
		Assignments: assignmentsService,
	})
	if err != nil {
		return nil, err
	}
	noShow, err := cron.NewNoShowJob(cron.NoShowJobParams{
		Logger:      logg,
		Assignments: assignmentsService,
	})
	if err != nil {
		return nil, err
	}
	closeWindows, err := cron.NewCloseWindowsJob(cron.CloseWindowsJobParams{
		Logger: logg,
		Bids:   bidsService,
	})
	if err != nil {
		return nil, err
	}
	healthDaily, err := cron.NewHealthDailyJob(cron.HealthJobParams{
		Logger: logg,
		Health: healthService,
	})
	if err != nil {
		return nil, err
	}
	healthWeekly, err := cron.NewHealthWeeklyJob(cron.HealthJobParams{
		Logger: logg,
		Health: healthService,
	})
	if err != nil {
		return nil, err
	}
	return []cron.Job{reminders, autoDrop, noShow, closeWindows, healthDaily, healthWeekly}, nil
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
