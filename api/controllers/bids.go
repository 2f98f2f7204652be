package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/fleetline/dispatch-backend/api/responses"
	"github.com/fleetline/dispatch-backend/api/validators"
	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/pkg/logger"
)

type openWindowBody struct {
	AssignmentID uuid.UUID `json:"assignment_id" validate:"required"`
	Trigger      string    `json:"trigger" validate:"omitempty,max=64"`
	Emergency    bool      `json:"emergency"`
}

// OpenBidWindow opens a bid window for an unfilled assignment. Reposting for
// the same assignment returns the already-open window.
func OpenBidWindow(svc *bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body openWindowBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		window, err := svc.OpenWindow(r.Context(), bids.OpenWindowParams{
			AssignmentID: body.AssignmentID,
			Trigger:      body.Trigger,
			Emergency:    body.Emergency,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBidWindowResponse(window))
	}
}

type placeBidBody struct {
	DriverID uuid.UUID `json:"driver_id" validate:"required"`
}

// PlaceBid records a driver's bid. Instant and emergency windows resolve on
// the first bid.
func PlaceBid(svc *bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windowID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body placeBidBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bid, err := svc.PlaceBid(r.Context(), windowID, body.DriverID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newBidResponse(*bid))
	}
}

// ResolveBidWindow settles a window immediately. Re-resolving a settled
// window returns it unchanged.
func ResolveBidWindow(svc *bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windowID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		window, err := svc.ResolveWindow(r.Context(), windowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBidWindowResponse(window))
	}
}

type windowDetailResponse struct {
	Window bidWindowResponse `json:"window"`
	Bids   []bidResponse     `json:"bids"`
}

// GetBidWindow returns a window with its bids.
func GetBidWindow(svc *bids.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		windowID, err := validators.ParsePathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		window, windowBids, err := svc.Window(r.Context(), windowID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, windowDetailResponse{
			Window: newBidWindowResponse(window),
			Bids:   newBidResponses(windowBids),
		})
	}
}
