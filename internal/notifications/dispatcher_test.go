package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
)

type notifKey struct {
	driverID uuid.UUID
	kind     enums.NotificationType
	dedupKey string
}

type fakeNotifRepo struct {
	records map[notifKey]bool
	drivers []uuid.UUID
}

func newFakeNotifRepo() *fakeNotifRepo {
	return &fakeNotifRepo{records: map[notifKey]bool{}}
}

func (f *fakeNotifRepo) Record(_ context.Context, n *models.DriverNotification) error {
	// the unique index is partial: empty dedup keys never collide
	if n.DedupKey == "" {
		return nil
	}
	key := notifKey{driverID: n.DriverID, kind: n.Type, dedupKey: n.DedupKey}
	if f.records[key] {
		return errors.New(`duplicate key value violates unique constraint "uniq_notification_key"`)
	}
	f.records[key] = true
	return nil
}

func (f *fakeNotifRepo) ListActiveDriverIDs(context.Context) ([]uuid.UUID, error) {
	return f.drivers, nil
}

type recordingSender struct {
	sent []enums.NotificationType
	err  error
}

func (s *recordingSender) Send(_ context.Context, _ uuid.UUID, kind enums.NotificationType, _ map[string]any) error {
	s.sent = append(s.sent, kind)
	return s.err
}

func newTestDispatcher(t *testing.T, repo Repository, sender Sender) *Dispatcher {
	t.Helper()
	dispatcher, err := NewDispatcher(DispatcherParams{
		Repo:   repo,
		Sender: sender,
		Clock:  clock.FixedAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)),
		Logger: logger.New(logger.Options{ServiceName: "notifications-test"}),
	})
	if err != nil {
		t.Fatalf("construct dispatcher: %v", err)
	}
	return dispatcher
}

func TestConfirmationReminderSendsOnce(t *testing.T) {
	repo := newFakeNotifRepo()
	sender := &recordingSender{}
	dispatcher := newTestDispatcher(t, repo, sender)
	ctx := context.Background()
	driverID, assignmentID := uuid.New(), uuid.New()

	sent, err := dispatcher.ConfirmationReminder(ctx, driverID, assignmentID, nil)
	if err != nil {
		t.Fatalf("first reminder: %v", err)
	}
	if !sent {
		t.Fatal("expected first reminder to send")
	}

	sent, err = dispatcher.ConfirmationReminder(ctx, driverID, assignmentID, nil)
	if err != nil {
		t.Fatalf("second reminder: %v", err)
	}
	if sent {
		t.Fatal("second reminder should be suppressed by the durable log")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1", len(sender.sent))
	}
}

func TestWindowOpenedBroadcastsToActiveDrivers(t *testing.T) {
	repo := newFakeNotifRepo()
	repo.drivers = []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	sender := &recordingSender{}
	dispatcher := newTestDispatcher(t, repo, sender)

	window := &models.BidWindow{
		ID:           uuid.New(),
		AssignmentID: uuid.New(),
		Mode:         enums.BidWindowModeEmergency,
		ClosesAt:     time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
	}
	dispatcher.WindowOpened(context.Background(), window)

	if len(sender.sent) != 3 {
		t.Fatalf("sends = %d, want one per driver", len(sender.sent))
	}

	// rebroadcast for the same window reaches nobody twice
	dispatcher.WindowOpened(context.Background(), window)
	if len(sender.sent) != 3 {
		t.Fatalf("sends after rebroadcast = %d, want still 3", len(sender.sent))
	}
}

func TestWindowOpenedAnnouncesReopenedWindow(t *testing.T) {
	repo := newFakeNotifRepo()
	repo.drivers = []uuid.UUID{uuid.New()}
	sender := &recordingSender{}
	dispatcher := newTestDispatcher(t, repo, sender)
	assignmentID := uuid.New()

	first := &models.BidWindow{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Mode:         enums.BidWindowModeCompetitive,
		ClosesAt:     time.Date(2026, 3, 10, 13, 0, 0, 0, time.UTC),
	}
	dispatcher.WindowOpened(context.Background(), first)

	// same vacancy, new window after a zero-bid close
	reopened := &models.BidWindow{
		ID:           uuid.New(),
		AssignmentID: assignmentID,
		Mode:         enums.BidWindowModeCompetitive,
		ClosesAt:     time.Date(2026, 3, 10, 17, 0, 0, 0, time.UTC),
	}
	dispatcher.WindowOpened(context.Background(), reopened)

	if len(sender.sent) != 2 {
		t.Fatalf("sends = %d, want both windows announced", len(sender.sent))
	}
}

func TestSenderFailureIsSwallowed(t *testing.T) {
	repo := newFakeNotifRepo()
	sender := &recordingSender{err: errors.New("push gateway down")}
	dispatcher := newTestDispatcher(t, repo, sender)

	// must not panic or surface the error
	dispatcher.AutoDropped(context.Background(), uuid.New(), uuid.New())
	if len(sender.sent) != 1 {
		t.Fatalf("sends = %d, want 1 attempt", len(sender.sent))
	}
}
