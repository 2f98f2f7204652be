package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/google/uuid"
)

type fakeReminderLister struct {
	assignments []models.Assignment
	lastFrom    time.Time
	lastTo      time.Time
	err         error
}

func (f *fakeReminderLister) ListConfirmationsDue(_ context.Context, from, to time.Time) ([]models.Assignment, error) {
	f.lastFrom = from
	f.lastTo = to
	return f.assignments, f.err
}

type fakeReminderSender struct {
	delivered map[uuid.UUID]bool
	sent      int
	err       error
}

func (f *fakeReminderSender) ConfirmationReminder(_ context.Context, _, assignmentID uuid.UUID, _ map[string]any) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	if f.delivered[assignmentID] {
		return false, nil
	}
	if f.delivered == nil {
		f.delivered = map[uuid.UUID]bool{}
	}
	f.delivered[assignmentID] = true
	f.sent++
	return true, nil
}

func unconfirmedAssignment(shiftDate time.Time) models.Assignment {
	driverID := uuid.New()
	return models.Assignment{
		ID:        uuid.New(),
		DriverID:  &driverID,
		RouteID:   uuid.New(),
		ShiftDate: shiftDate,
	}
}

func newReminderJob(t *testing.T, lister *fakeReminderLister, sender *fakeReminderSender) *reminderJob {
	t.Helper()
	jobIface, err := NewReminderJob(ReminderJobParams{
		Logger:      newTestLogger(),
		Assignments: lister,
		Dispatcher:  sender,
	})
	if err != nil {
		t.Fatalf("NewReminderJob: %v", err)
	}
	return jobIface.(*reminderJob)
}

func TestReminderJobSendsWithinLeadWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	lister := &fakeReminderLister{assignments: []models.Assignment{
		unconfirmedAssignment(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)),
		unconfirmedAssignment(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)),
	}}
	sender := &fakeReminderSender{}
	job := newReminderJob(t, lister, sender)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !lister.lastFrom.Equal(now) {
		t.Fatalf("expected query from %s, got %s", now, lister.lastFrom)
	}
	if !lister.lastTo.Equal(now.Add(defaultReminderLead)) {
		t.Fatalf("expected query to %s, got %s", now.Add(defaultReminderLead), lister.lastTo)
	}
	if sender.sent != 2 {
		t.Fatalf("expected 2 reminders, sent %d", sender.sent)
	}
}

func TestReminderJobRerunDoesNotResend(t *testing.T) {
	lister := &fakeReminderLister{assignments: []models.Assignment{
		unconfirmedAssignment(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)),
	}}
	sender := &fakeReminderSender{}
	job := newReminderJob(t, lister, sender)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if sender.sent != 1 {
		t.Fatalf("expected a single delivery across reruns, got %d", sender.sent)
	}
}

func TestReminderJobCollectsPerAssignmentErrors(t *testing.T) {
	lister := &fakeReminderLister{assignments: []models.Assignment{
		unconfirmedAssignment(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)),
	}}
	sender := &fakeReminderSender{err: errors.New("push gateway down")}
	job := newReminderJob(t, lister, sender)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
