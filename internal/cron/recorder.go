package cron

import (
	"context"
	"errors"

	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"gorm.io/gorm"
)

// RunRecorder persists the lifecycle of each job execution so failed runs
// stay visible to operators. A failed run is never retried automatically;
// its error text carries the entity that broke.
type RunRecorder interface {
	Begin(ctx context.Context, jobName string) (*models.JobRun, error)
	Finish(ctx context.Context, run *models.JobRun, runErr error)
}

// DBRecorder stores job runs in the relational store.
type DBRecorder struct {
	db    *gorm.DB
	clock clock.Clock
	logg  *logger.Logger
}

// NewDBRecorder builds a run recorder.
func NewDBRecorder(db *gorm.DB, clk clock.Clock, logg *logger.Logger) (*DBRecorder, error) {
	if db == nil {
		return nil, errors.New("db required for run recorder")
	}
	if clk == nil {
		return nil, errors.New("clock required for run recorder")
	}
	if logg == nil {
		return nil, errors.New("logger required for run recorder")
	}
	return &DBRecorder{db: db, clock: clk, logg: logg}, nil
}

// Begin creates a pending run and immediately promotes it to running.
func (r *DBRecorder) Begin(ctx context.Context, jobName string) (*models.JobRun, error) {
	run := &models.JobRun{
		JobName: jobName,
		Status:  enums.JobRunStatusPending,
	}
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}

	startedAt := r.clock.Now()
	run.Status = enums.JobRunStatusRunning
	run.StartedAt = &startedAt
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Finish marks the run succeeded or failed. Recorder failures are logged,
// never propagated: the job result already happened.
func (r *DBRecorder) Finish(ctx context.Context, run *models.JobRun, runErr error) {
	if run == nil {
		return
	}
	finishedAt := r.clock.Now()
	run.FinishedAt = &finishedAt
	if runErr != nil {
		run.Status = enums.JobRunStatusFailed
		msg := runErr.Error()
		run.Error = &msg
	} else {
		run.Status = enums.JobRunStatusSucceeded
	}
	if err := r.db.WithContext(ctx).Save(run).Error; err != nil {
		r.logg.Error(r.logg.WithField(ctx, "job", run.JobName), "persist job run", err)
	}
}
