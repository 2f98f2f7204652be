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

const defaultReminderLead = 48 * time.Hour

// ReminderJobParams configure the confirmation reminder sweep.
type ReminderJobParams struct {
	Logger      *logger.Logger
	Assignments reminderLister
	Dispatcher  reminderSender
	Lead        time.Duration
}

type reminderLister interface {
	ListConfirmationsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
}

type reminderSender interface {
	ConfirmationReminder(ctx context.Context, driverID, assignmentID uuid.UUID, payload map[string]any) (bool, error)
}

// NewReminderJob builds the job that reminds drivers about unconfirmed
// upcoming shifts. Delivery is deduplicated per assignment by the dispatcher,
// so rerunning the sweep never double-sends.
func NewReminderJob(params ReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Assignments == nil {
		return nil, fmt.Errorf("assignments reader required")
	}
	if params.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher required")
	}
	lead := params.Lead
	if lead <= 0 {
		lead = defaultReminderLead
	}
	return &reminderJob{
		logg:        params.Logger,
		assignments: params.Assignments,
		dispatcher:  params.Dispatcher,
		lead:        lead,
		now:         time.Now,
	}, nil
}

type reminderJob struct {
	logg        *logger.Logger
	assignments reminderLister
	dispatcher  reminderSender
	lead        time.Duration
	now         func() time.Time
}

func (j *reminderJob) Name() string { return "confirmation-reminders" }

func (j *reminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.assignments.ListConfirmationsDue(ctx, now, now.Add(j.lead))
	if err != nil {
		return fmt.Errorf("query confirmations due: %w", err)
	}

	var errs []error
	sent := 0
	for _, assignment := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if assignment.DriverID == nil {
			continue
		}
		payload := map[string]any{
			"assignment_id": assignment.ID,
			"route_id":      assignment.RouteID,
			"shift_date":    assignment.ShiftDate.Format("2006-01-02"),
		}
		delivered, err := j.dispatcher.ConfirmationReminder(ctx, *assignment.DriverID, assignment.ID, payload)
		if err != nil {
			errs = append(errs, fmt.Errorf("assignment %s: %w", assignment.ID, err))
			continue
		}
		if delivered {
			sent++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(due),
		"sent":       sent,
	})
	j.logg.Info(logCtx, "confirmation reminder sweep complete")
	return multierr.Combine(errs...)
}
