package health

import (
	"sort"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
)

// WeeklyResult is the outcome of folding a driver's completed weeks into
// streak and star progression.
type WeeklyResult struct {
	StreakWeeks       int
	Stars             int
	LastQualifiedWeek *time.Time
	LastResetAt       *time.Time
}

// weekStart returns the Monday 00:00 of the week containing t.
func weekStart(t time.Time) time.Time {
	day := dayOf(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

type weekBucket struct {
	start       time.Time
	assignments []models.Assignment
}

// evaluateWeeks walks completed Monday-start weeks in chronological order.
// Qualifying weeks advance streak and stars; a hard-stop week zeroes both
// immediately, and later weeks are still evaluated independently so the
// streak can restart. Weeks without assignments are skipped, not failed.
func evaluateWeeks(history []models.Assignment, asOf time.Time, policy config.HealthPolicy) WeeklyResult {
	buckets := map[time.Time]*weekBucket{}
	for _, a := range history {
		if a.Status == enums.AssignmentStatusUnfilled {
			continue
		}
		start := weekStart(a.ShiftDate)
		bucket, ok := buckets[start]
		if !ok {
			bucket = &weekBucket{start: start}
			buckets[start] = bucket
		}
		bucket.assignments = append(bucket.assignments, a)
	}

	ordered := make([]*weekBucket, 0, len(buckets))
	currentWeek := weekStart(asOf)
	for _, bucket := range buckets {
		// only fully completed weeks count
		if bucket.start.Before(currentWeek) {
			ordered = append(ordered, bucket)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].start.Before(ordered[j].start)
	})

	var result WeeklyResult
	for _, bucket := range ordered {
		weekEnd := bucket.start.AddDate(0, 0, 7)
		t := tallyHistory(bucket.assignments, weekEnd, policy)

		if t.noShows > 0 || t.lateCancels >= policy.HardStopLateCancels {
			result.StreakWeeks = 0
			result.Stars = 0
			reset := weekEnd
			result.LastResetAt = &reset
			continue
		}

		qualifies := t.attendanceRate() >= policy.WeekMinAttendance &&
			t.completionRate() >= policy.WeekMinCompletion &&
			t.noShows <= policy.WeekMaxNoShows &&
			t.lateCancels <= policy.WeekMaxLateCancels
		if qualifies {
			result.StreakWeeks++
			if result.Stars < policy.MaxStars {
				result.Stars++
			}
			qualified := bucket.start
			result.LastQualifiedWeek = &qualified
		} else {
			result.StreakWeeks = 0
		}
	}
	return result
}
