package health

import (
	"time"

	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/fleetline/dispatch-backend/pkg/enums"
)

// Point category labels used in snapshot breakdowns.
const (
	categoryConfirmation = "on_time_confirmation"
	categoryArrival      = "on_time_arrival"
	categoryCompleted    = "completed_shift"
	categoryHighDelivery = "high_delivery_rate"
	categoryBidPickup    = "bid_pickup"
	categoryAutoDrop     = "auto_drop"
	categoryLateCancel   = "late_cancellation"
)

// IsNoShow reports whether the assignment meets the no-show criterion as of
// the given instant: shift date in the past, still scheduled, confirmed, and
// no recorded arrival.
func IsNoShow(a models.Assignment, asOf time.Time) bool {
	if a.Status != enums.AssignmentStatusScheduled {
		return false
	}
	if a.ConfirmedAt == nil {
		return false
	}
	if !dayOf(a.ShiftDate).Before(dayOf(asOf)) {
		return false
	}
	return a.Shift == nil || a.Shift.ArrivedAt == nil
}

// dayOf truncates an instant to its calendar date, preserving location.
func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

type tally struct {
	confirmations int
	arrivals      int
	completed     int
	highDelivery  int
	bidPickups    int
	autoDrops     int
	lateCancels   int
	noShows       int

	lateCancels30d int
	noShows30d     int

	expected         int
	attended         int
	parcelsStart     int
	parcelsDelivered int
}

func tallyHistory(history []models.Assignment, asOf time.Time, policy config.HealthPolicy) tally {
	var t tally
	today := dayOf(asOf)
	windowStart := today.AddDate(0, 0, -policy.RollingWindowDays)

	for _, a := range history {
		if a.Status == enums.AssignmentStatusUnfilled {
			continue
		}
		inWindow := !dayOf(a.ShiftDate).Before(windowStart)

		if a.ConfirmedAt != nil {
			t.confirmations++
		}
		if a.Shift != nil && a.Shift.ArrivedAt != nil {
			t.arrivals++
		}
		if a.AssignedBy != nil && *a.AssignedBy == enums.AssignedByBid {
			t.bidPickups++
		}

		if a.Status == enums.AssignmentStatusCompleted && a.Shift != nil {
			t.completed++
			if a.Shift.ParcelsStart != nil && *a.Shift.ParcelsStart > 0 {
				start := *a.Shift.ParcelsStart
				delivered := 0
				if a.Shift.ParcelsDelivered != nil {
					delivered = *a.Shift.ParcelsDelivered
				}
				t.parcelsStart += start
				t.parcelsDelivered += delivered
				if float64(delivered)/float64(start) >= policy.HighDeliveryRate {
					t.highDelivery++
				}
			}
		}

		if a.CancelType != nil {
			switch *a.CancelType {
			case enums.CancelTypeAutoDrop:
				t.autoDrops++
			case enums.CancelTypeLate:
				t.lateCancels++
				if inWindow {
					t.lateCancels30d++
				}
			}
		}

		if IsNoShow(a, asOf) {
			t.noShows++
			if inWindow {
				t.noShows30d++
			}
		}

		// Attendance: past shifts the driver was expected to work. Early
		// driver cancellations are excused; late cancels, auto drops and
		// no-shows are not.
		past := dayOf(a.ShiftDate).Before(today)
		excused := a.CancelType != nil && *a.CancelType == enums.CancelTypeDriver
		if (past || a.Status == enums.AssignmentStatusCompleted) && !excused {
			t.expected++
			if a.Shift != nil && a.Shift.ArrivedAt != nil {
				t.attended++
			}
		}
	}
	return t
}

func (t tally) score(policy config.HealthPolicy) (int, dbtypes.JSONMap) {
	breakdown := dbtypes.JSONMap{}
	total := 0
	add := func(category string, points, count int) {
		if count == 0 {
			return
		}
		contribution := points * count
		breakdown[category] = contribution
		total += contribution
	}

	add(categoryConfirmation, policy.PointsOnTimeConfirmation, t.confirmations)
	add(categoryArrival, policy.PointsOnTimeArrival, t.arrivals)
	add(categoryCompleted, policy.PointsCompletedShift, t.completed)
	add(categoryHighDelivery, policy.PointsHighDeliveryShift, t.highDelivery)
	add(categoryBidPickup, policy.PointsBidPickup, t.bidPickups)
	add(categoryAutoDrop, policy.PointsAutoDrop, t.autoDrops)
	add(categoryLateCancel, policy.PointsLateCancellation, t.lateCancels)

	if total < 0 {
		total = 0
	}
	if policy.MaxScore > 0 && total > policy.MaxScore {
		total = policy.MaxScore
	}
	return total, breakdown
}

func (t tally) hardStop(policy config.HealthPolicy) bool {
	return t.noShows30d > 0 || t.lateCancels30d >= policy.HardStopLateCancels
}

func (t tally) attendanceRate() float64 {
	if t.expected == 0 {
		return 1
	}
	return float64(t.attended) / float64(t.expected)
}

func (t tally) completionRate() float64 {
	if t.parcelsStart == 0 {
		return 1
	}
	return float64(t.parcelsDelivered) / float64(t.parcelsStart)
}
