package assignments

import (
	"context"
	"testing"
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

type fakeAssignRepo struct {
	assignments map[uuid.UUID]*models.Assignment
	shifts      map[uuid.UUID]*models.DeliveryShift
	routes      map[uuid.UUID]*models.Route
}

func newFakeAssignRepo() *fakeAssignRepo {
	return &fakeAssignRepo{
		assignments: map[uuid.UUID]*models.Assignment{},
		shifts:      map[uuid.UUID]*models.DeliveryShift{},
		routes:      map[uuid.UUID]*models.Route{},
	}
}

func (f *fakeAssignRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakeAssignRepo) Find(_ context.Context, id uuid.UUID) (*models.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	if shift, ok := f.shifts[id]; ok {
		shiftCopy := *shift
		copied.Shift = &shiftCopy
	} else {
		copied.Shift = nil
	}
	return &copied, nil
}

func (f *fakeAssignRepo) Create(_ context.Context, assignment *models.Assignment) error {
	if assignment.ID == uuid.Nil {
		assignment.ID = uuid.New()
	}
	copied := *assignment
	copied.Shift = nil
	f.assignments[assignment.ID] = &copied
	return nil
}

func (f *fakeAssignRepo) Save(_ context.Context, assignment *models.Assignment) error {
	copied := *assignment
	copied.Shift = nil
	f.assignments[assignment.ID] = &copied
	return nil
}

func (f *fakeAssignRepo) SaveShift(_ context.Context, shift *models.DeliveryShift) error {
	if shift.ID == uuid.Nil {
		shift.ID = uuid.New()
	}
	copied := *shift
	f.shifts[shift.AssignmentID] = &copied
	return nil
}

func (f *fakeAssignRepo) FindRoute(_ context.Context, id uuid.UUID) (*models.Route, error) {
	if r, ok := f.routes[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeAssignRepo) ListConfirmationsDue(_ context.Context, from, to time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.assignments {
		if a.Status == enums.AssignmentStatusScheduled && a.ConfirmedAt == nil && a.DriverID != nil &&
			!a.ShiftDate.Before(from) && !a.ShiftDate.After(to) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssignRepo) ListUnconfirmed(_ context.Context, through time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.assignments {
		if a.Status == enums.AssignmentStatusScheduled && a.ConfirmedAt == nil && a.DriverID != nil &&
			!a.ShiftDate.After(through) {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (f *fakeAssignRepo) ListNoShowCandidates(_ context.Context, before time.Time) ([]models.Assignment, error) {
	var out []models.Assignment
	for id, a := range f.assignments {
		if a.Status == enums.AssignmentStatusScheduled && a.ConfirmedAt != nil && a.ShiftDate.Before(before) {
			copied := *a
			if shift, ok := f.shifts[id]; ok {
				shiftCopy := *shift
				copied.Shift = &shiftCopy
			}
			out = append(out, copied)
		}
	}
	return out, nil
}

type fakeOpener struct {
	opened []bids.OpenWindowParams
}

func (f *fakeOpener) OpenWindowInTx(_ context.Context, _ *gorm.DB, params bids.OpenWindowParams) (*models.BidWindow, error) {
	f.opened = append(f.opened, params)
	window := &models.BidWindow{
		ID:           uuid.New(),
		AssignmentID: params.AssignmentID,
		Status:       enums.BidWindowStatusOpen,
		Mode:         enums.BidWindowModeCompetitive,
	}
	if params.Emergency {
		window.Mode = enums.BidWindowModeEmergency
		window.PayBonusPercent = 15
	}
	return window, nil
}

type fakeLifecycleNotifier struct {
	windowsOpened int
	autoDropped   []uuid.UUID
}

func (f *fakeLifecycleNotifier) WindowOpened(context.Context, *models.BidWindow) { f.windowsOpened++ }

func (f *fakeLifecycleNotifier) AutoDropped(_ context.Context, driverID, _ uuid.UUID) {
	f.autoDropped = append(f.autoDropped, driverID)
}

type assignPassthroughTx struct{}

func (assignPassthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type lifecycleFixture struct {
	repo     *fakeAssignRepo
	opener   *fakeOpener
	notifier *fakeLifecycleNotifier
	service  *Service
	now      time.Time
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	repo := newFakeAssignRepo()
	opener := &fakeOpener{}
	notifier := &fakeLifecycleNotifier{}
	service, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      assignPassthroughTx{},
		Windows: opener,
		Notify:  notifier,
		Policy: config.LifecyclePolicy{
			ConfirmationOpensDays:     3,
			ConfirmationDeadlineHours: 12,
			RequireConfirmForArrival:  true,
			ArrivalEarliest:           2 * time.Hour,
			ArrivalGrace:              30 * time.Minute,
			EditWindow:                24 * time.Hour,
			ReminderLead:              48 * time.Hour,
		},
		Clock:  clock.FixedAt(now),
		Logger: logger.New(logger.Options{ServiceName: "assignments-test"}),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return &lifecycleFixture{repo: repo, opener: opener, notifier: notifier, service: service, now: now}
}

// seedScheduled installs a scheduled assignment whose route starts at the
// given hour on the given date.
func (f *lifecycleFixture) seedScheduled(shiftDate time.Time, startHour int, confirmed bool) *models.Assignment {
	route := &models.Route{
		ID:              uuid.New(),
		WarehouseID:     uuid.New(),
		Name:            "east loop",
		StartHour:       startHour,
		DurationMinutes: 480,
	}
	f.repo.routes[route.ID] = route

	driverID := uuid.New()
	assignment := &models.Assignment{
		ID:          uuid.New(),
		DriverID:    &driverID,
		RouteID:     route.ID,
		WarehouseID: route.WarehouseID,
		ShiftDate:   shiftDate,
		Status:      enums.AssignmentStatusScheduled,
	}
	if confirmed {
		confirmedAt := f.now.Add(-24 * time.Hour)
		assignment.ConfirmedAt = &confirmedAt
	}
	f.repo.assignments[assignment.ID] = assignment
	return assignment
}

func (f *lifecycleFixture) seedActive(t *testing.T, parcelsStart int) *models.Assignment {
	t.Helper()
	assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 8, true)
	assignment.Status = enums.AssignmentStatusActive
	arrivedAt := f.now.Add(-time.Hour)
	shift := &models.DeliveryShift{
		ID:           uuid.New(),
		AssignmentID: assignment.ID,
		ArrivedAt:    &arrivedAt,
		StartedAt:    &arrivedAt,
	}
	if parcelsStart > 0 {
		shift.ParcelsStart = &parcelsStart
	}
	f.repo.shifts[assignment.ID] = shift
	return assignment
}

func TestConfirmInsideWindow(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedScheduled(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), 15, false)

	updated, err := f.service.Confirm(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if updated.ConfirmedAt == nil || !updated.ConfirmedAt.Equal(f.now) {
		t.Fatalf("confirmed at = %v, want %v", updated.ConfirmedAt, f.now)
	}
}

func TestConfirmGuards(t *testing.T) {
	tests := []struct {
		name      string
		shiftDate time.Time
		startHour int
		confirmed bool
		wantCode  pkgerrors.Code
	}{
		{
			name:      "window not open yet",
			shiftDate: time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC),
			startHour: 15,
			wantCode:  pkgerrors.CodeValidation,
		},
		{
			name:      "deadline passed",
			shiftDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			startHour: 15,
			wantCode:  pkgerrors.CodeValidation,
		},
		{
			name:      "already confirmed",
			shiftDate: time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			startHour: 15,
			confirmed: true,
			wantCode:  pkgerrors.CodeConflict,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newLifecycleFixture(t)
			assignment := f.seedScheduled(tc.shiftDate, tc.startHour, tc.confirmed)

			_, err := f.service.Confirm(context.Background(), assignment.ID)
			if !pkgerrors.IsCode(err, tc.wantCode) {
				t.Fatalf("error = %v, want code %s", err, tc.wantCode)
			}
		})
	}
}

func TestArriveActivatesShift(t *testing.T) {
	f := newLifecycleFixture(t)
	// route starts at 10:00 today; 09:00 is inside the arrival window
	assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 10, true)

	updated, err := f.service.Arrive(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("arrive: %v", err)
	}
	if updated.Status != enums.AssignmentStatusActive {
		t.Fatalf("status = %s, want active", updated.Status)
	}
	if updated.Shift == nil || updated.Shift.ArrivedAt == nil {
		t.Fatal("expected arrival timestamp on shift")
	}
}

func TestArriveGuards(t *testing.T) {
	t.Run("too early", func(t *testing.T) {
		f := newLifecycleFixture(t)
		assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 15, true)
		_, err := f.service.Arrive(context.Background(), assignment.ID)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
	})
	t.Run("past cutoff", func(t *testing.T) {
		f := newLifecycleFixture(t)
		assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 6, true)
		_, err := f.service.Arrive(context.Background(), assignment.ID)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
	})
	t.Run("unconfirmed", func(t *testing.T) {
		f := newLifecycleFixture(t)
		assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 10, false)
		_, err := f.service.Arrive(context.Background(), assignment.ID)
		if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			t.Fatalf("error = %v, want validation", err)
		}
	})
}

func TestRecordInventoryRequiresActiveArrivedShift(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedActive(t, 0)

	updated, err := f.service.RecordInventory(context.Background(), assignment.ID, InventoryParams{ParcelsStart: 120})
	if err != nil {
		t.Fatalf("record inventory: %v", err)
	}
	if updated.Shift.ParcelsStart == nil || *updated.Shift.ParcelsStart != 120 {
		t.Fatalf("parcels start = %v, want 120", updated.Shift.ParcelsStart)
	}

	_, err = f.service.RecordInventory(context.Background(), assignment.ID, InventoryParams{ParcelsStart: 0})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation for zero count", err)
	}
}

func TestCompleteThenEditRoundTrip(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedActive(t, 100)
	ctx := context.Background()

	completed, err := f.service.Complete(ctx, assignment.ID, CompletionParams{
		ParcelsDelivered: 90,
		ParcelsReturned:  10,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != enums.AssignmentStatusCompleted {
		t.Fatalf("status = %s, want completed", completed.Status)
	}
	if completed.Shift.EditableUntil == nil || !completed.Shift.EditableUntil.Equal(f.now.Add(24*time.Hour)) {
		t.Fatalf("editable until = %v, want now+24h", completed.Shift.EditableUntil)
	}

	// returns may move both down and up while the edit window is open
	edited, err := f.service.Edit(ctx, assignment.ID, CompletionParams{
		ParcelsDelivered: 95,
		ParcelsReturned:  5,
	})
	if err != nil {
		t.Fatalf("edit down: %v", err)
	}
	if *edited.Shift.ParcelsReturned != 5 {
		t.Fatalf("returned = %d, want 5", *edited.Shift.ParcelsReturned)
	}
	if _, err := f.service.Edit(ctx, assignment.ID, CompletionParams{
		ParcelsDelivered: 80,
		ParcelsReturned:  20,
	}); err != nil {
		t.Fatalf("edit up: %v", err)
	}

	_, err = f.service.Edit(ctx, assignment.ID, CompletionParams{
		ParcelsDelivered: 0,
		ParcelsReturned:  120,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation for returns above start", err)
	}
}

func TestEditOutsideWindowFails(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedActive(t, 100)
	ctx := context.Background()

	if _, err := f.service.Complete(ctx, assignment.ID, CompletionParams{ParcelsDelivered: 100}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	expired := f.now.Add(-time.Minute)
	f.repo.shifts[assignment.ID].EditableUntil = &expired

	_, err := f.service.Edit(ctx, assignment.ID, CompletionParams{ParcelsDelivered: 99, ParcelsReturned: 1})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation", err)
	}
}

func TestCompleteExceptionsRequireNotes(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedActive(t, 100)

	_, err := f.service.Complete(context.Background(), assignment.ID, CompletionParams{
		ParcelsDelivered: 90,
		ParcelsReturned:  10,
		ParcelsExcepted:  4,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("error = %v, want validation without notes", err)
	}

	if _, err := f.service.Complete(context.Background(), assignment.ID, CompletionParams{
		ParcelsDelivered: 90,
		ParcelsReturned:  10,
		ParcelsExcepted:  4,
		ExceptionNotes:   "two crushed boxes, two refused",
	}); err != nil {
		t.Fatalf("complete with notes: %v", err)
	}
}

func TestCancelUnconfirmedIsDriverCancel(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedScheduled(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), 15, false)

	updated, err := f.service.Cancel(context.Background(), assignment.ID, CancelParams{Reason: "sick"})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.CancelType == nil || *updated.CancelType != enums.CancelTypeDriver {
		t.Fatalf("cancel type = %v, want driver", updated.CancelType)
	}
	if len(f.opener.opened) != 0 {
		t.Fatalf("windows opened = %d, want none for an early cancel", len(f.opener.opened))
	}
}

func TestCancelConfirmedIsLateAndOpensReplacement(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedScheduled(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), 15, true)

	updated, err := f.service.Cancel(context.Background(), assignment.ID, CancelParams{})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if updated.CancelType == nil || *updated.CancelType != enums.CancelTypeLate {
		t.Fatalf("cancel type = %v, want late", updated.CancelType)
	}
	if len(f.opener.opened) != 1 {
		t.Fatalf("windows opened = %d, want 1", len(f.opener.opened))
	}
	if f.opener.opened[0].Emergency {
		t.Fatal("late cancel replacement should not be an emergency window")
	}

	// the replacement is a fresh unfilled assignment for the same slot
	replacementID := f.opener.opened[0].AssignmentID
	replacement := f.repo.assignments[replacementID]
	if replacement == nil || replacement.Status != enums.AssignmentStatusUnfilled {
		t.Fatalf("replacement = %+v, want unfilled assignment", replacement)
	}
	if replacement.RouteID != assignment.RouteID || !replacement.ShiftDate.Equal(assignment.ShiftDate) {
		t.Fatal("replacement should cover the same route and date")
	}
	if f.notifier.windowsOpened != 1 {
		t.Fatalf("window notifications = %d, want 1", f.notifier.windowsOpened)
	}
}

func TestAutoDropPastDeadlineAndRerunNoOp(t *testing.T) {
	f := newLifecycleFixture(t)
	// route starts 15:00 today; the 12h confirmation deadline was 03:00
	assignment := f.seedScheduled(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), 15, false)
	ctx := context.Background()

	dropped, err := f.service.AutoDrop(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("auto drop: %v", err)
	}
	if !dropped {
		t.Fatal("expected drop")
	}
	stored := f.repo.assignments[assignment.ID]
	if stored.Status != enums.AssignmentStatusCancelled || *stored.CancelType != enums.CancelTypeAutoDrop {
		t.Fatalf("assignment = %s/%v, want cancelled/auto_drop", stored.Status, stored.CancelType)
	}
	if len(f.opener.opened) != 1 {
		t.Fatalf("windows opened = %d, want 1", len(f.opener.opened))
	}
	if len(f.notifier.autoDropped) != 1 {
		t.Fatalf("drop notifications = %d, want 1", len(f.notifier.autoDropped))
	}

	again, err := f.service.AutoDrop(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again {
		t.Fatal("rerun should be a no-op")
	}
	if len(f.opener.opened) != 1 {
		t.Fatalf("windows after rerun = %d, want still 1", len(f.opener.opened))
	}
}

func TestAutoDropBeforeDeadlineDoesNothing(t *testing.T) {
	f := newLifecycleFixture(t)
	assignment := f.seedScheduled(time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), 15, false)

	dropped, err := f.service.AutoDrop(context.Background(), assignment.ID)
	if err != nil {
		t.Fatalf("auto drop: %v", err)
	}
	if dropped {
		t.Fatal("deadline not reached, expected no-op")
	}
	if f.repo.assignments[assignment.ID].Status != enums.AssignmentStatusScheduled {
		t.Fatal("assignment should stay scheduled")
	}
}

func TestMarkNoShowOpensEmergencyWindowOnce(t *testing.T) {
	f := newLifecycleFixture(t)
	// confirmed shift dated yesterday, no arrival recorded
	assignment := f.seedScheduled(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), 15, true)
	ctx := context.Background()

	marked, err := f.service.MarkNoShow(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("mark no-show: %v", err)
	}
	if !marked {
		t.Fatal("expected no-show mark")
	}
	shift := f.repo.shifts[assignment.ID]
	if shift == nil || shift.NoShowRecordedAt == nil {
		t.Fatal("expected no-show timestamp on shift")
	}
	// the assignment keeps its scheduled status as evidence
	if f.repo.assignments[assignment.ID].Status != enums.AssignmentStatusScheduled {
		t.Fatal("no-show assignment should stay scheduled")
	}
	if len(f.opener.opened) != 1 || !f.opener.opened[0].Emergency {
		t.Fatalf("opened = %+v, want one emergency window", f.opener.opened)
	}

	again, err := f.service.MarkNoShow(ctx, assignment.ID)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if again {
		t.Fatal("rerun should be a no-op")
	}
	if len(f.opener.opened) != 1 {
		t.Fatalf("windows after rerun = %d, want still 1", len(f.opener.opened))
	}
}
