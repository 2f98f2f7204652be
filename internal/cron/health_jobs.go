package cron

import (
	"context"
	"fmt"

	"github.com/fleetline/dispatch-backend/pkg/logger"
)

// HealthJobParams configure the daily and weekly health rollups.
type HealthJobParams struct {
	Logger *logger.Logger
	Health healthRoller
}

type healthRoller interface {
	RunDaily(ctx context.Context) error
	RunWeekly(ctx context.Context) error
}

// NewHealthDailyJob builds the job that snapshots every active driver's
// rolling health score. Snapshots are keyed per driver and day, so reruns
// within the same day are no-ops.
func NewHealthDailyJob(params HealthJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health service required")
	}
	return &healthDailyJob{logg: params.Logger, health: params.Health}, nil
}

type healthDailyJob struct {
	logg   *logger.Logger
	health healthRoller
}

func (j *healthDailyJob) Name() string { return "health-daily" }

func (j *healthDailyJob) Run(ctx context.Context) error {
	if err := j.health.RunDaily(ctx); err != nil {
		return fmt.Errorf("daily health rollup: %w", err)
	}
	j.logg.Info(ctx, "daily health rollup complete")
	return nil
}

// NewHealthWeeklyJob builds the job that folds completed weeks into streaks
// and stars. The fold is derived from assignment history, so repeated runs
// converge on the same state.
func NewHealthWeeklyJob(params HealthJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health service required")
	}
	return &healthWeeklyJob{logg: params.Logger, health: params.Health}, nil
}

type healthWeeklyJob struct {
	logg   *logger.Logger
	health healthRoller
}

func (j *healthWeeklyJob) Name() string { return "health-weekly" }

func (j *healthWeeklyJob) Run(ctx context.Context) error {
	if err := j.health.RunWeekly(ctx); err != nil {
		return fmt.Errorf("weekly health rollup: %w", err)
	}
	j.logg.Info(ctx, "weekly health rollup complete")
	return nil
}
