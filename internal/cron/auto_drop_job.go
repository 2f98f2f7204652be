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

// Candidate horizon for the unconfirmed query. Deadlines sit hours before the
// shift start, so anything further out cannot have lapsed yet.
const autoDropLookahead = 48 * time.Hour

// AutoDropJobParams configure the auto-drop sweep.
type AutoDropJobParams struct {
	Logger      *logger.Logger
	Assignments autoDropper
}

type autoDropper interface {
	ListUnconfirmed(ctx context.Context, through time.Time) ([]models.Assignment, error)
	AutoDrop(ctx context.Context, id uuid.UUID) (bool, error)
}

// NewAutoDropJob builds the job that drops assignments whose confirmation
// deadline has lapsed. AutoDrop re-checks state inside its own transaction,
// so a rerun over the same candidates is a no-op.
func NewAutoDropJob(params AutoDropJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments service required")
	}
	return &autoDropJob{
		logg:        params.Logger,
		assignments: params.Assignments,
		now:         time.Now,
	}, nil
}

type autoDropJob struct {
	logg        *logger.Logger
	assignments autoDropper
	now         func() time.Time
}

func (j *autoDropJob) Name() string { return "auto-drop" }

func (j *autoDropJob) Run(ctx context.Context) error {
	through := j.now().UTC().Add(autoDropLookahead)
	candidates, err := j.assignments.ListUnconfirmed(ctx, through)
	if err != nil {
		return fmt.Errorf("query unconfirmed assignments: %w", err)
	}

	var errs []error
	dropped := 0
	for _, assignment := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := j.assignments.AutoDrop(ctx, assignment.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("assignment %s: %w", assignment.ID, err))
			continue
		}
		if ok {
			dropped++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(candidates),
		"dropped":    dropped,
	})
	j.logg.Info(logCtx, "auto-drop sweep complete")
	return multierr.Combine(errs...)
}
