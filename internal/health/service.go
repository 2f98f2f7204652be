package health

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	pkgerrors "github.com/fleetline/dispatch-backend/pkg/errors"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// notifier flags drivers for manager follow-up, best-effort.
type notifier interface {
	ManagerReviewRequired(ctx context.Context, driverID uuid.UUID)
}

// Service is the driver health engine. Scores and streaks are always
// recomputed from immutable assignment/shift history, never patched
// incrementally, which is what makes the evaluation jobs idempotent.
type Service struct {
	repo   Repository
	tx     txRunner
	notify notifier
	policy config.HealthPolicy
	clock  clock.Clock
	logg   *logger.Logger
}

// ServiceParams configure the health engine.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Notify notifier
	Policy config.HealthPolicy
	Clock  clock.Clock
	Logger *logger.Logger
}

// NewService builds the health engine.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("health repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Notify == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:   params.Repo,
		tx:     params.Tx,
		notify: params.Notify,
		policy: params.Policy,
		clock:  params.Clock,
		logg:   params.Logger,
	}, nil
}

// Evaluate computes a driver's health snapshot as of the given date. A driver
// with no evaluable history yields (nil, nil): onboarding, not a zero score.
func (s *Service) Evaluate(ctx context.Context, driverID uuid.UUID, asOf time.Time) (*models.HealthSnapshot, error) {
	history, err := s.repo.ListAssignmentsThrough(ctx, driverID, dayOf(asOf))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}
	evaluable := 0
	for _, a := range history {
		if a.Status != enums.AssignmentStatusUnfilled {
			evaluable++
		}
	}
	if evaluable == 0 {
		return nil, nil
	}

	t := tallyHistory(history, asOf, s.policy)
	score, breakdown := t.score(s.policy)
	hardStop := t.hardStop(s.policy)
	if hardStop && score > s.policy.PoolMinScore-1 {
		score = s.policy.PoolMinScore - 1
	}

	return &models.HealthSnapshot{
		DriverID:       driverID,
		EvaluatedOn:    dayOf(asOf),
		Score:          score,
		AttendanceRate: t.attendanceRate(),
		CompletionRate: t.completionRate(),
		LateCancels30d: t.lateCancels30d,
		NoShows30d:     t.noShows30d,
		HardStop:       hardStop,
		PointBreakdown: breakdown,
	}, nil
}

// EvaluateWeeks folds the driver's completed weeks into streak/star
// progression as of the given date.
func (s *Service) EvaluateWeeks(ctx context.Context, driverID uuid.UUID, asOf time.Time) (WeeklyResult, error) {
	history, err := s.repo.ListAssignmentsThrough(ctx, driverID, dayOf(asOf))
	if err != nil {
		return WeeklyResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment history")
	}
	return evaluateWeeks(history, asOf, s.policy), nil
}

// RunDaily appends today's snapshot for every active driver and regenerates
// the HealthState projection. Rerunning is a no-op for drivers already
// evaluated today.
func (s *Service) RunDaily(ctx context.Context) error {
	drivers, err := s.repo.ListActiveDrivers(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active drivers")
	}

	asOf := s.clock.Now()
	var errs []error
	evaluated := 0
	for _, driver := range drivers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.evaluateDriver(ctx, driver.ID, asOf); err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", driver.ID, err))
			continue
		}
		evaluated++
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{"drivers": len(drivers), "evaluated": evaluated})
	s.logg.Info(logCtx, "daily health evaluation complete")
	return multierr.Combine(errs...)
}

// RunWeekly regenerates streak/star progression for every active driver.
func (s *Service) RunWeekly(ctx context.Context) error {
	drivers, err := s.repo.ListActiveDrivers(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active drivers")
	}

	asOf := s.clock.Now()
	var errs []error
	for _, driver := range drivers {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.evaluateDriver(ctx, driver.ID, asOf); err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", driver.ID, err))
		}
	}

	s.logg.Info(s.logg.WithField(ctx, "drivers", len(drivers)), "weekly health evaluation complete")
	return multierr.Combine(errs...)
}

// evaluateDriver writes the snapshot (if absent for the day) and regenerates
// the state projection in one transaction.
func (s *Service) evaluateDriver(ctx context.Context, driverID uuid.UUID, asOf time.Time) error {
	snapshot, err := s.Evaluate(ctx, driverID, asOf)
	if err != nil {
		return err
	}
	if snapshot == nil {
		return nil
	}
	weekly, err := s.EvaluateWeeks(ctx, driverID, asOf)
	if err != nil {
		return err
	}

	reviewRaised := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		exists, err := repo.SnapshotExists(ctx, driverID, snapshot.EvaluatedOn)
		if err != nil {
			return err
		}
		if !exists {
			if err := repo.CreateSnapshot(ctx, snapshot); err != nil {
				return err
			}
		}

		prev, err := repo.FindState(ctx, driverID)
		if err != nil {
			return err
		}
		reviewRaised = snapshot.HardStop && (prev == nil || !prev.NeedsManagerReview)

		state := &models.HealthState{
			DriverID:           driverID,
			CurrentScore:       snapshot.Score,
			StreakWeeks:        weekly.StreakWeeks,
			Stars:              weekly.Stars,
			LastQualifiedWeek:  weekly.LastQualifiedWeek,
			PoolEligible:       !snapshot.HardStop,
			NeedsManagerReview: snapshot.HardStop,
			LastResetAt:        weekly.LastResetAt,
		}
		return repo.SaveState(ctx, state)
	})
	if err != nil {
		return err
	}

	if reviewRaised {
		s.notify.ManagerReviewRequired(ctx, driverID)
	}
	return nil
}

// CurrentScore returns the driver's current health score; known is false for
// drivers without any evaluation yet.
func (s *Service) CurrentScore(ctx context.Context, driverID uuid.UUID) (int, bool, error) {
	state, err := s.repo.FindState(ctx, driverID)
	if err != nil {
		return 0, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health state")
	}
	if state == nil {
		return 0, false, nil
	}
	return state.CurrentScore, true, nil
}

// PoolEligible reports whether the driver may bid. Onboarding drivers with no
// state yet are eligible.
func (s *Service) PoolEligible(ctx context.Context, driverID uuid.UUID) (bool, error) {
	state, err := s.repo.FindState(ctx, driverID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health state")
	}
	if state == nil {
		return true, nil
	}
	return state.PoolEligible, nil
}

// StateFor exposes the current state projection for read APIs.
func (s *Service) StateFor(ctx context.Context, driverID uuid.UUID) (*models.HealthState, error) {
	state, err := s.repo.FindState(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health state")
	}
	return state, nil
}

// LatestSnapshotFor exposes the newest snapshot for read APIs.
func (s *Service) LatestSnapshotFor(ctx context.Context, driverID uuid.UUID) (*models.HealthSnapshot, error) {
	snapshot, err := s.repo.LatestSnapshot(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load health snapshot")
	}
	return snapshot, nil
}
