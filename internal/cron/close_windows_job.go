package cron

import (
	"context"
	"fmt"

	"github.com/fleetline/dispatch-backend/pkg/logger"
)

// CloseWindowsJobParams configure the expired-window sweep.
type CloseWindowsJobParams struct {
	Logger *logger.Logger
	Bids   windowResolver
}

type windowResolver interface {
	ResolveExpiredWindows(ctx context.Context) (int, error)
}

// NewCloseWindowsJob builds the job that settles competitive windows past
// their close time.
func NewCloseWindowsJob(params CloseWindowsJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Bids == nil {
		return nil, fmt.Errorf("bids service required")
	}
	return &closeWindowsJob{
		logg: params.Logger,
		bids: params.Bids,
	}, nil
}

type closeWindowsJob struct {
	logg *logger.Logger
	bids windowResolver
}

func (j *closeWindowsJob) Name() string { return "close-bid-windows" }

func (j *closeWindowsJob) Run(ctx context.Context) error {
	settled, err := j.bids.ResolveExpiredWindows(ctx)
	if err != nil {
		return fmt.Errorf("resolve expired windows: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"settled": settled})
	j.logg.Info(logCtx, "expired window sweep complete")
	return nil
}
