package notifications

import (
	"context"
	"fmt"

	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/db"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
)

// Sender delivers one notification to its channel (push, SMS, email). The
// dispatcher records first and sends after, so delivery failures never undo
// the durable log.
type Sender interface {
	Send(ctx context.Context, driverID uuid.UUID, kind enums.NotificationType, payload map[string]any) error
}

// LogSender is the default sender: it writes the notification to the service
// log. Real channels plug in behind the same interface.
type LogSender struct {
	Logg *logger.Logger
}

func (s *LogSender) Send(ctx context.Context, driverID uuid.UUID, kind enums.NotificationType, payload map[string]any) error {
	logCtx := s.Logg.WithFields(ctx, map[string]any{
		"driver_id": driverID.String(),
		"kind":      string(kind),
		"payload":   payload,
	})
	s.Logg.Info(logCtx, "notification dispatched")
	return nil
}

// Dispatcher fans out best-effort notifications. Every method is
// fire-and-forget from the caller's perspective: failures are logged, never
// returned into a state transition.
type Dispatcher struct {
	repo   Repository
	sender Sender
	clock  clock.Clock
	logg   *logger.Logger
}

// DispatcherParams configure the dispatcher.
type DispatcherParams struct {
	Repo   Repository
	Sender Sender
	Clock  clock.Clock
	Logger *logger.Logger
}

// NewDispatcher builds the dispatcher.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("sender required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Dispatcher{
		repo:   params.Repo,
		sender: params.Sender,
		clock:  params.Clock,
		logg:   params.Logger,
	}, nil
}

// ConfirmationReminder nudges a driver about an unconfirmed shift. Returns
// whether a reminder actually went out; one reminder per (driver,
// assignment) is enforced by the durable log.
func (d *Dispatcher) ConfirmationReminder(ctx context.Context, driverID, assignmentID uuid.UUID, payload map[string]any) (bool, error) {
	return d.deliver(ctx, driverID, &assignmentID, enums.NotificationConfirmationReminder, assignmentID.String(), payload)
}

// WindowOpened announces a new bid window to every active driver.
func (d *Dispatcher) WindowOpened(ctx context.Context, window *models.BidWindow) {
	if window == nil {
		return
	}
	driverIDs, err := d.repo.ListActiveDriverIDs(ctx)
	if err != nil {
		d.logg.Error(ctx, "list drivers for window broadcast", err)
		return
	}
	payload := map[string]any{
		"window_id": window.ID.String(),
		"mode":      string(window.Mode),
		"closes_at": window.ClosesAt,
	}
	if window.PayBonusPercent > 0 {
		payload["pay_bonus_percent"] = window.PayBonusPercent
	}
	// keyed on the window, not the assignment, so a reopened window for
	// the same vacancy is announced again
	assignmentID := window.AssignmentID
	for _, driverID := range driverIDs {
		d.best(ctx, driverID, &assignmentID, enums.NotificationBidWindowOpened, window.ID.String(), payload)
	}
}

// BidWon tells the winning driver the shift is theirs.
func (d *Dispatcher) BidWon(ctx context.Context, window *models.BidWindow, bid models.Bid) {
	d.best(ctx, bid.DriverID, &window.AssignmentID, enums.NotificationBidWon, window.ID.String(), map[string]any{
		"window_id":  window.ID.String(),
		"shift_date": bid.ShiftDate,
	})
}

// BidLost tells a losing driver the window settled without them.
func (d *Dispatcher) BidLost(ctx context.Context, window *models.BidWindow, bid models.Bid) {
	d.best(ctx, bid.DriverID, &window.AssignmentID, enums.NotificationBidLost, window.ID.String(), map[string]any{
		"window_id":  window.ID.String(),
		"shift_date": bid.ShiftDate,
	})
}

// AutoDropped tells a driver their unconfirmed shift was released.
func (d *Dispatcher) AutoDropped(ctx context.Context, driverID, assignmentID uuid.UUID) {
	d.best(ctx, driverID, &assignmentID, enums.NotificationAutoDropped, assignmentID.String(), nil)
}

// ManagerReviewRequired flags a hard-stopped driver for manager follow-up.
// The empty dedup key means every escalation is logged anew.
func (d *Dispatcher) ManagerReviewRequired(ctx context.Context, driverID uuid.UUID) {
	d.best(ctx, driverID, nil, enums.NotificationManagerReview, "", nil)
}

// best is deliver with the error swallowed into the log.
func (d *Dispatcher) best(ctx context.Context, driverID uuid.UUID, assignmentID *uuid.UUID, kind enums.NotificationType, dedupKey string, payload map[string]any) {
	if _, err := d.deliver(ctx, driverID, assignmentID, kind, dedupKey, payload); err != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"driver_id": driverID.String(),
			"kind":      string(kind),
		})
		d.logg.Error(logCtx, "notification delivery failed", err)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, driverID uuid.UUID, assignmentID *uuid.UUID, kind enums.NotificationType, dedupKey string, payload map[string]any) (bool, error) {
	record := &models.DriverNotification{
		DriverID:     driverID,
		AssignmentID: assignmentID,
		Type:         kind,
		DedupKey:     dedupKey,
		Payload:      dbtypes.JSONMap{},
		SentAt:       d.clock.Now(),
	}
	for k, v := range payload {
		record.Payload[k] = v
	}
	if err := d.repo.Record(ctx, record); err != nil {
		if db.IsUniqueViolation(err, "uniq_notification_key") {
			return false, nil
		}
		return false, err
	}
	return true, d.sender.Send(ctx, driverID, kind, payload)
}
