package assignments

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	pkgerrors "github.com/fleetline/dispatch-backend/pkg/errors"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// windowOpener opens replacement bid windows inside the caller's transaction
// so a drop and its window become visible together.
type windowOpener interface {
	OpenWindowInTx(ctx context.Context, tx *gorm.DB, params bids.OpenWindowParams) (*models.BidWindow, error)
}

// notifier fans out best-effort notifications after commit.
type notifier interface {
	WindowOpened(ctx context.Context, window *models.BidWindow)
	AutoDropped(ctx context.Context, driverID, assignmentID uuid.UUID)
}

// Service drives the assignment lifecycle. Every transition re-checks the
// entity's state inside its transaction, so concurrent callers and rerunning
// jobs converge instead of double-applying.
type Service struct {
	repo    Repository
	tx      txRunner
	windows windowOpener
	notify  notifier
	policy  config.LifecyclePolicy
	clock   clock.Clock
	logg    *logger.Logger
}

// ServiceParams configure the lifecycle service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Windows windowOpener
	Notify  notifier
	Policy  config.LifecyclePolicy
	Clock   clock.Clock
	Logger  *logger.Logger
}

// NewService builds the lifecycle service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("assignments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Windows == nil {
		return nil, fmt.Errorf("window opener required")
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
		repo:    params.Repo,
		tx:      params.Tx,
		windows: params.Windows,
		notify:  params.Notify,
		policy:  params.Policy,
		clock:   params.Clock,
		logg:    params.Logger,
	}, nil
}

// Find returns an assignment with its shift for read APIs.
func (s *Service) Find(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	assignment, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return assignment, nil
}

// Confirm records the driver's intent to work the shift. Valid only from
// scheduled, inside the confirmation window.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	now := s.clock.Now()

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeValidation, "only scheduled assignments can be confirmed")
		}
		if assignment.ConfirmedAt != nil {
			return pkgerrors.New(pkgerrors.CodeConflict, "assignment already confirmed")
		}

		shiftStart, err := s.shiftStart(ctx, repo, assignment, now)
		if err != nil {
			return err
		}
		opensAt := dayStart(assignment.ShiftDate).AddDate(0, 0, -s.policy.ConfirmationOpensDays)
		deadline := shiftStart.Add(-time.Duration(s.policy.ConfirmationDeadlineHours) * time.Hour)
		if now.Before(opensAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "confirmation window has not opened yet")
		}
		if !now.Before(deadline) {
			return pkgerrors.New(pkgerrors.CodeValidation, "confirmation deadline has passed")
		}

		confirmedAt := now
		assignment.ConfirmedAt = &confirmedAt
		if err := repo.Save(ctx, assignment); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Arrive records the driver at the warehouse and activates the shift. Valid
// only from scheduled and confirmed, inside the arrival window.
func (s *Service) Arrive(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	now := s.clock.Now()

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusScheduled {
			return pkgerrors.New(pkgerrors.CodeValidation, "only scheduled assignments can record arrival")
		}
		if s.policy.RequireConfirmForArrival && assignment.ConfirmedAt == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "assignment must be confirmed before arrival")
		}

		shiftStart, err := s.shiftStart(ctx, repo, assignment, now)
		if err != nil {
			return err
		}
		if now.Before(shiftStart.Add(-s.policy.ArrivalEarliest)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "too early to record arrival")
		}
		if now.After(shiftStart.Add(s.policy.ArrivalGrace)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "arrival cutoff has passed")
		}

		shift := assignment.Shift
		if shift == nil {
			shift = &models.DeliveryShift{AssignmentID: assignment.ID}
		}
		arrivedAt := now
		shift.ArrivedAt = &arrivedAt
		shift.StartedAt = &arrivedAt
		if err := repo.SaveShift(ctx, shift); err != nil {
			return err
		}

		assignment.Status = enums.AssignmentStatusActive
		if err := repo.Save(ctx, assignment); err != nil {
			return err
		}
		assignment.Shift = shift
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RecordInventory sets the parcel count loaded for an active shift.
func (s *Service) RecordInventory(ctx context.Context, id uuid.UUID, params InventoryParams) (*models.Assignment, error) {
	if params.ParcelsStart <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parcels_start must be positive")
	}

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "inventory can only be recorded on an active shift")
		}
		if assignment.Shift == nil || assignment.Shift.ArrivedAt == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "arrival must be recorded before inventory")
		}

		start := params.ParcelsStart
		assignment.Shift.ParcelsStart = &start
		if err := repo.SaveShift(ctx, assignment.Shift); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Complete closes out an active shift and opens the edit window.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, params CompletionParams) (*models.Assignment, error) {
	now := s.clock.Now()

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "only active shifts can be completed")
		}
		shift := assignment.Shift
		if shift == nil || shift.ParcelsStart == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "inventory must be recorded before completion")
		}
		if err := validateCompletion(params, *shift.ParcelsStart); err != nil {
			return err
		}

		applyCompletion(shift, params)
		completedAt := now
		editableUntil := now.Add(s.policy.EditWindow)
		shift.CompletedAt = &completedAt
		shift.EditableUntil = &editableUntil
		if err := repo.SaveShift(ctx, shift); err != nil {
			return err
		}

		assignment.Status = enums.AssignmentStatusCompleted
		if err := repo.Save(ctx, assignment); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Edit amends a completed shift while the edit window is open, under the same
// invariants as Complete.
func (s *Service) Edit(ctx context.Context, id uuid.UUID, params CompletionParams) (*models.Assignment, error) {
	now := s.clock.Now()

	var updated *models.Assignment
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusCompleted {
			return pkgerrors.New(pkgerrors.CodeValidation, "only completed shifts can be edited")
		}
		shift := assignment.Shift
		if shift == nil || shift.ParcelsStart == nil || shift.EditableUntil == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "shift has no completion to edit")
		}
		if !now.Before(*shift.EditableUntil) {
			return pkgerrors.New(pkgerrors.CodeValidation, "edit window has closed")
		}
		if err := validateCompletion(params, *shift.ParcelsStart); err != nil {
			return err
		}

		applyCompletion(shift, params)
		if err := repo.SaveShift(ctx, shift); err != nil {
			return err
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Cancel withdraws a driver from a scheduled or active assignment. A
// confirmed cancellation counts as late and opens a replacement window for
// future shifts.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, params CancelParams) (*models.Assignment, error) {
	now := s.clock.Now()

	var updated *models.Assignment
	var opened *models.BidWindow
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusScheduled && assignment.Status != enums.AssignmentStatusActive {
			return pkgerrors.New(pkgerrors.CodeValidation, "only scheduled or active assignments can be cancelled")
		}

		cancelType := enums.CancelTypeDriver
		if assignment.ConfirmedAt != nil {
			cancelType = enums.CancelTypeLate
		}
		if err := s.applyCancel(ctx, repo, assignment, cancelType, params.Reason, now); err != nil {
			return err
		}

		// a late cancel leaves a vacancy worth rebidding while the shift
		// is still ahead
		shiftStart, err := s.shiftStart(ctx, repo, assignment, now)
		if err != nil {
			return err
		}
		if cancelType == enums.CancelTypeLate && shiftStart.After(now) {
			window, err := s.openReplacement(ctx, tx, repo, assignment, false, "late_cancellation")
			if err != nil {
				return err
			}
			opened = window
		}
		updated = assignment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if opened != nil {
		s.notify.WindowOpened(ctx, opened)
	}
	return updated, nil
}

// AutoDrop cancels an assignment whose driver missed the confirmation
// deadline and opens a replacement window. Rerunning against an
// already-dropped assignment reports false and changes nothing.
func (s *Service) AutoDrop(ctx context.Context, id uuid.UUID) (bool, error) {
	now := s.clock.Now()

	dropped := false
	var opened *models.BidWindow
	var droppedDriver *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusScheduled || assignment.ConfirmedAt != nil {
			return nil
		}

		shiftStart, err := s.shiftStart(ctx, repo, assignment, now)
		if err != nil {
			return err
		}
		deadline := shiftStart.Add(-time.Duration(s.policy.ConfirmationDeadlineHours) * time.Hour)
		if now.Before(deadline) {
			return nil
		}

		droppedDriver = assignment.DriverID
		if err := s.applyCancel(ctx, repo, assignment, enums.CancelTypeAutoDrop, "missed confirmation deadline", now); err != nil {
			return err
		}

		window, err := s.openReplacement(ctx, tx, repo, assignment, false, "auto_drop")
		if err != nil {
			return err
		}
		opened = window
		dropped = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if dropped {
		if droppedDriver != nil {
			s.notify.AutoDropped(ctx, *droppedDriver, id)
		}
		if opened != nil {
			s.notify.WindowOpened(ctx, opened)
		}
	}
	return dropped, nil
}

// MarkNoShow timestamps a confirmed assignment whose driver never arrived and
// opens an emergency replacement window. The recorded timestamp is the
// idempotency marker for reruns.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (bool, error) {
	now := s.clock.Now()

	marked := false
	var opened *models.BidWindow
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		assignment, err := s.loadForTransition(ctx, repo, id)
		if err != nil {
			return err
		}
		if assignment.Status != enums.AssignmentStatusScheduled || assignment.ConfirmedAt == nil {
			return nil
		}
		if !dayStart(assignment.ShiftDate).Before(dayStart(now)) {
			return nil
		}
		shift := assignment.Shift
		if shift != nil && (shift.ArrivedAt != nil || shift.NoShowRecordedAt != nil) {
			return nil
		}

		if shift == nil {
			shift = &models.DeliveryShift{AssignmentID: assignment.ID}
		}
		recordedAt := now
		shift.NoShowRecordedAt = &recordedAt
		if err := repo.SaveShift(ctx, shift); err != nil {
			return err
		}
		assignment.Shift = shift

		window, err := s.openReplacement(ctx, tx, repo, assignment, true, "no_show")
		if err != nil {
			return err
		}
		opened = window
		marked = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if opened != nil {
		s.notify.WindowOpened(ctx, opened)
	}
	return marked, nil
}

// ListUnconfirmed exposes auto-drop candidates to the periodic jobs.
func (s *Service) ListUnconfirmed(ctx context.Context, through time.Time) ([]models.Assignment, error) {
	assignments, err := s.repo.ListUnconfirmed(ctx, through)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unconfirmed assignments")
	}
	return assignments, nil
}

// ListNoShowCandidates exposes no-show candidates to the periodic jobs.
func (s *Service) ListNoShowCandidates(ctx context.Context, before time.Time) ([]models.Assignment, error) {
	assignments, err := s.repo.ListNoShowCandidates(ctx, before)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list no-show candidates")
	}
	return assignments, nil
}

// ListConfirmationsDue exposes reminder candidates to the periodic jobs.
func (s *Service) ListConfirmationsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	assignments, err := s.repo.ListConfirmationsDue(ctx, from, to)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list confirmations due")
	}
	return assignments, nil
}

func (s *Service) loadForTransition(ctx context.Context, repo Repository, id uuid.UUID) (*models.Assignment, error) {
	assignment, err := repo.Find(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	return assignment, nil
}

func (s *Service) shiftStart(ctx context.Context, repo Repository, assignment *models.Assignment, now time.Time) (time.Time, error) {
	route, err := repo.FindRoute(ctx, assignment.RouteID)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load route")
	}
	if route == nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
	}
	return route.StartOn(assignment.ShiftDate, now.Location()), nil
}

func (s *Service) applyCancel(ctx context.Context, repo Repository, assignment *models.Assignment, cancelType enums.CancelType, reason string, now time.Time) error {
	assignment.Status = enums.AssignmentStatusCancelled
	assignment.CancelType = &cancelType
	cancelledAt := now
	assignment.CancelledAt = &cancelledAt
	if err := repo.Save(ctx, assignment); err != nil {
		return err
	}

	if reason != "" {
		shift := assignment.Shift
		if shift == nil {
			shift = &models.DeliveryShift{AssignmentID: assignment.ID}
		}
		trimmed := reason
		shift.CancelReason = &trimmed
		if err := repo.SaveShift(ctx, shift); err != nil {
			return err
		}
		assignment.Shift = shift
	}
	return nil
}

// openReplacement creates a fresh unfilled assignment for the vacated slot
// and opens bidding on it. The original row keeps its cancellation or no-show
// evidence.
func (s *Service) openReplacement(ctx context.Context, tx *gorm.DB, repo Repository, original *models.Assignment, emergency bool, trigger string) (*models.BidWindow, error) {
	replacement := &models.Assignment{
		RouteID:     original.RouteID,
		WarehouseID: original.WarehouseID,
		ShiftDate:   original.ShiftDate,
		Status:      enums.AssignmentStatusUnfilled,
	}
	if err := repo.Create(ctx, replacement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create replacement assignment")
	}

	window, err := s.windows.OpenWindowInTx(ctx, tx, bids.OpenWindowParams{
		AssignmentID: replacement.ID,
		Trigger:      trigger,
		Emergency:    emergency,
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"assignment_id":  original.ID.String(),
		"replacement_id": replacement.ID.String(),
		"trigger":        trigger,
	})
	s.logg.Info(logCtx, "replacement bid window opened")
	return window, nil
}

func validateCompletion(params CompletionParams, parcelsStart int) error {
	if params.ParcelsDelivered < 0 || params.ParcelsReturned < 0 || params.ParcelsExcepted < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "parcel counts cannot be negative")
	}
	if params.ParcelsReturned > parcelsStart {
		return pkgerrors.New(pkgerrors.CodeValidation, "parcels_returned cannot exceed parcels_start")
	}
	if params.ParcelsExcepted > 0 && strings.TrimSpace(params.ExceptionNotes) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "excepted parcels require exception notes")
	}
	return nil
}

func applyCompletion(shift *models.DeliveryShift, params CompletionParams) {
	delivered := params.ParcelsDelivered
	returned := params.ParcelsReturned
	excepted := params.ParcelsExcepted
	shift.ParcelsDelivered = &delivered
	shift.ParcelsReturned = &returned
	shift.ParcelsExcepted = &excepted
	if params.ExceptionNotes != "" {
		notes := params.ExceptionNotes
		shift.ExceptionNotes = &notes
	} else {
		shift.ExceptionNotes = nil
	}
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
