package controllers

import (
	"net/http"
	"time"

	"github.com/fleetline/dispatch-backend/api/responses"
	"github.com/fleetline/dispatch-backend/api/validators"
	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/internal/health"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/logger"
)

type healthStateResponse struct {
	CurrentScore       int        `json:"current_score"`
	StreakWeeks        int        `json:"streak_weeks"`
	Stars              int        `json:"stars"`
	LastQualifiedWeek  *string    `json:"last_qualified_week,omitempty"`
	PoolEligible       bool       `json:"pool_eligible"`
	NeedsManagerReview bool       `json:"needs_manager_review"`
	LastResetAt        *time.Time `json:"last_reset_at,omitempty"`
}

type healthSnapshotResponse struct {
	EvaluatedOn    string         `json:"evaluated_on"`
	Score          int            `json:"score"`
	AttendanceRate float64        `json:"attendance_rate"`
	CompletionRate float64        `json:"completion_rate"`
	LateCancels30d int            `json:"late_cancels_30d"`
	NoShows30d     int            `json:"no_shows_30d"`
	HardStop       bool           `json:"hard_stop"`
	PointBreakdown map[string]any `json:"point_breakdown,omitempty"`
}

type driverHealthResponse struct {
	State    *healthStateResponse    `json:"state,omitempty"`
	Snapshot *healthSnapshotResponse `json:"latest_snapshot,omitempty"`
}

func newHealthStateResponse(state *models.HealthState) *healthStateResponse {
	if state == nil {
		return nil
	}
	resp := &healthStateResponse{
		CurrentScore:       state.CurrentScore,
		StreakWeeks:        state.StreakWeeks,
		Stars:              state.Stars,
		PoolEligible:       state.PoolEligible,
		NeedsManagerReview: state.NeedsManagerReview,
		LastResetAt:        state.LastResetAt,
	}
	if state.LastQualifiedWeek != nil {
		week := state.LastQualifiedWeek.Format(dateLayout)
		resp.LastQualifiedWeek = &week
	}
	return resp
}

func newHealthSnapshotResponse(snapshot *models.HealthSnapshot) *healthSnapshotResponse {
	if snapshot == nil {
		return nil
	}
	return &healthSnapshotResponse{
		EvaluatedOn:    snapshot.EvaluatedOn.Format(dateLayout),
		Score:          snapshot.Score,
		AttendanceRate: snapshot.AttendanceRate,
		CompletionRate: snapshot.CompletionRate,
		LateCancels30d: snapshot.LateCancels30d,
		NoShows30d:     snapshot.NoShows30d,
		HardStop:       snapshot.HardStop,
		PointBreakdown: snapshot.PointBreakdown,
	}
}

// DriverHealth returns a driver's persisted health state and its latest
// daily snapshot. Both are absent for drivers with no shift history yet.
func DriverHealth(svc *health.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state, err := svc.StateFor(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		snapshot, err := svc.LatestSnapshotFor(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, driverHealthResponse{
			State:    newHealthStateResponse(state),
			Snapshot: newHealthSnapshotResponse(snapshot),
		})
	}
}

// DriverBids returns a driver's bid history, newest first.
func DriverBids(svc *bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		driverID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		driverBids, err := svc.DriverBids(r.Context(), driverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBidResponses(driverBids))
	}
}
