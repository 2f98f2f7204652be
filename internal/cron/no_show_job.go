package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// NoShowJobParams configure the no-show sweep.
type NoShowJobParams struct {
	Logger      *logger.Logger
	Assignments noShowMarker
}

type noShowMarker interface {
	ListNoShowCandidates(ctx context.Context, before time.Time) ([]models.Assignment, error)
	MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewNoShowJob builds the job that records no-shows for confirmed shifts
// whose day has passed without an arrival. MarkNoShow re-checks state inside
// its own transaction, so a rerun over the same candidates is a no-op.
func NewNoShowJob(params NoShowJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments service required")
	}
	return &noShowJob{
		logg:        params.Logger,
		assignments: params.Assignments,
		now:         time.Now,
	}, nil
}

type noShowJob struct {
	logg        *logger.Logger
	assignments noShowMarker
	now         func() time.Time
}

func (j *noShowJob) Name() string { return "no-show-sweep" }

func (j *noShowJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	candidates, err := j.assignments.ListNoShowCandidates(ctx, today)
	if err != nil {
		return fmt.Errorf("query no-show candidates: %w", err)
	}

	var errs []error
	marked := 0
	for _, assignment := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := j.assignments.MarkNoShow(ctx, assignment.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("assignment %s: %w", assignment.ID, err))
			continue
		}
		if ok {
			marked++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"marked":     marked,
	})
	j.logg.Info(logCtx, "no-show sweep complete")
	return multierr.Combine(errs...)
}
