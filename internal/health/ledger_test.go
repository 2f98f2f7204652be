package health

import (
	"testing"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
)

func testPolicy() config.HealthPolicy {
	return config.HealthPolicy{
		PointsOnTimeConfirmation: 2,
		PointsOnTimeArrival:      2,
		PointsCompletedShift:     5,
		PointsHighDeliveryShift:  3,
		PointsBidPickup:          4,
		PointsAutoDrop:           -8,
		PointsLateCancellation:   -10,
		MaxScore:                 100,
		PoolMinScore:             40,
		HighDeliveryRate:         0.98,
		RollingWindowDays:        30,
		HardStopLateCancels:      3,
		WeekMinAttendance:        0.9,
		WeekMinCompletion:        0.95,
		WeekMaxNoShows:           0,
		WeekMaxLateCancels:       1,
		MaxStars:                 4,
	}
}

func datePtr(t time.Time) *time.Time { return &t }

func intPtr(v int) *int { return &v }

// completedAssignment builds a fully worked shift: confirmed, arrived,
// completed, every parcel delivered.
func completedAssignment(shiftDate time.Time) models.Assignment {
	confirmed := shiftDate.Add(-48 * time.Hour)
	arrived := shiftDate.Add(8 * time.Hour)
	return models.Assignment{
		ShiftDate:   shiftDate,
		Status:      enums.AssignmentStatusCompleted,
		ConfirmedAt: &confirmed,
		Shift: &models.DeliveryShift{
			ArrivedAt:        &arrived,
			ParcelsStart:     intPtr(100),
			ParcelsDelivered: intPtr(100),
		},
	}
}

func lateCancelledAssignment(shiftDate time.Time) models.Assignment {
	confirmed := shiftDate.Add(-48 * time.Hour)
	cancelType := enums.CancelTypeLate
	cancelled := shiftDate.Add(-3 * time.Hour)
	return models.Assignment{
		ShiftDate:   shiftDate,
		Status:      enums.AssignmentStatusCancelled,
		ConfirmedAt: &confirmed,
		CancelType:  &cancelType,
		CancelledAt: &cancelled,
	}
}

func noShowAssignment(shiftDate time.Time) models.Assignment {
	confirmed := shiftDate.Add(-48 * time.Hour)
	return models.Assignment{
		ShiftDate:   shiftDate,
		Status:      enums.AssignmentStatusScheduled,
		ConfirmedAt: &confirmed,
	}
}

func TestIsNoShow(t *testing.T) {
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	yesterday := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	arrived := yesterday.Add(8 * time.Hour)

	tests := []struct {
		name       string
		assignment models.Assignment
		want       bool
	}{
		{
			name:       "confirmed past shift with no arrival",
			assignment: noShowAssignment(yesterday),
			want:       true,
		},
		{
			name: "unconfirmed shift is an auto-drop concern, not a no-show",
			assignment: models.Assignment{
				ShiftDate: yesterday,
				Status:    enums.AssignmentStatusScheduled,
			},
			want: false,
		},
		{
			name: "driver arrived",
			assignment: models.Assignment{
				ShiftDate:   yesterday,
				Status:      enums.AssignmentStatusScheduled,
				ConfirmedAt: datePtr(yesterday.Add(-24 * time.Hour)),
				Shift:       &models.DeliveryShift{ArrivedAt: &arrived},
			},
			want: false,
		},
		{
			name:       "shift date is today",
			assignment: noShowAssignment(dayOf(asOf)),
			want:       false,
		},
		{
			name:       "completed shifts never count",
			assignment: completedAssignment(yesterday),
			want:       false,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsNoShow(tc.assignment, asOf); got != tc.want {
				t.Fatalf("IsNoShow = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTallyHistoryScoresCompletedShift(t *testing.T) {
	policy := testPolicy()
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	history := []models.Assignment{
		completedAssignment(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)),
	}

	tally := tallyHistory(history, asOf, policy)
	score, breakdown := tally.score(policy)

	// confirmation 2, arrival 2, completed 5, high delivery 3
	if score != 12 {
		t.Fatalf("score = %d, want 12", score)
	}
	if breakdown[categoryCompleted] != 5 {
		t.Fatalf("completed contribution = %v, want 5", breakdown[categoryCompleted])
	}
	if breakdown[categoryHighDelivery] != 3 {
		t.Fatalf("high delivery contribution = %v, want 3", breakdown[categoryHighDelivery])
	}
	if tally.attendanceRate() != 1 {
		t.Fatalf("attendance = %v, want 1", tally.attendanceRate())
	}
}

func TestTallyHistoryScoreFloorsAtZero(t *testing.T) {
	policy := testPolicy()
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	history := []models.Assignment{
		lateCancelledAssignment(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)),
	}

	tally := tallyHistory(history, asOf, policy)
	score, _ := tally.score(policy)
	// confirmed +2, late cancel -10
	if score != 0 {
		t.Fatalf("score = %d, want floor at 0", score)
	}
}

func TestTallyHistoryScoreCapsAtMax(t *testing.T) {
	policy := testPolicy()
	asOf := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	var history []models.Assignment
	for i := 0; i < 20; i++ {
		history = append(history, completedAssignment(asOf.AddDate(0, 0, -(i+1))))
	}

	tally := tallyHistory(history, asOf, policy)
	score, _ := tally.score(policy)
	if score != policy.MaxScore {
		t.Fatalf("score = %d, want cap at %d", score, policy.MaxScore)
	}
}

func TestHardStopTriggers(t *testing.T) {
	policy := testPolicy()
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("single recent no-show", func(t *testing.T) {
		history := []models.Assignment{
			noShowAssignment(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)),
		}
		if !tallyHistory(history, asOf, policy).hardStop(policy) {
			t.Fatal("expected hard stop")
		}
	})

	t.Run("late cancels at threshold", func(t *testing.T) {
		history := []models.Assignment{
			lateCancelledAssignment(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)),
			lateCancelledAssignment(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)),
			lateCancelledAssignment(time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)),
		}
		if !tallyHistory(history, asOf, policy).hardStop(policy) {
			t.Fatal("expected hard stop")
		}
	})

	t.Run("late cancels outside rolling window do not count", func(t *testing.T) {
		history := []models.Assignment{
			lateCancelledAssignment(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)),
			lateCancelledAssignment(time.Date(2025, 12, 5, 0, 0, 0, 0, time.UTC)),
			lateCancelledAssignment(time.Date(2025, 12, 9, 0, 0, 0, 0, time.UTC)),
		}
		if tallyHistory(history, asOf, policy).hardStop(policy) {
			t.Fatal("expected no hard stop for stale cancellations")
		}
	})
}

func TestAttendanceExcusesEarlyDriverCancellation(t *testing.T) {
	policy := testPolicy()
	asOf := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	cancelType := enums.CancelTypeDriver
	history := []models.Assignment{
		completedAssignment(time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)),
		{
			ShiftDate:  time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
			Status:     enums.AssignmentStatusCancelled,
			CancelType: &cancelType,
		},
	}

	tally := tallyHistory(history, asOf, policy)
	if tally.expected != 1 {
		t.Fatalf("expected shifts = %d, want 1", tally.expected)
	}
	if tally.attendanceRate() != 1 {
		t.Fatalf("attendance = %v, want 1", tally.attendanceRate())
	}
}
