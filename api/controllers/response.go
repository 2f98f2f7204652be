package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
)

const dateLayout = "2006-01-02"

type shiftResponse struct {
	ArrivedAt        *time.Time `json:"arrived_at,omitempty"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	EditableUntil    *time.Time `json:"editable_until,omitempty"`
	ParcelsStart     *int       `json:"parcels_start,omitempty"`
	ParcelsDelivered *int       `json:"parcels_delivered,omitempty"`
	ParcelsReturned  *int       `json:"parcels_returned,omitempty"`
	ParcelsExcepted  *int       `json:"parcels_excepted,omitempty"`
	ExceptionNotes   *string    `json:"exception_notes,omitempty"`
	NoShowRecordedAt *time.Time `json:"no_show_recorded_at,omitempty"`
}

type assignmentResponse struct {
	ID          uuid.UUID      `json:"id"`
	DriverID    *uuid.UUID     `json:"driver_id,omitempty"`
	RouteID     uuid.UUID      `json:"route_id"`
	WarehouseID uuid.UUID      `json:"warehouse_id"`
	ShiftDate   string         `json:"shift_date"`
	Status      string         `json:"status"`
	ConfirmedAt *time.Time     `json:"confirmed_at,omitempty"`
	CancelType  *string        `json:"cancel_type,omitempty"`
	CancelledAt *time.Time     `json:"cancelled_at,omitempty"`
	Shift       *shiftResponse `json:"shift,omitempty"`
}

func newAssignmentResponse(assignment *models.Assignment) assignmentResponse {
	resp := assignmentResponse{
		ID:          assignment.ID,
		DriverID:    assignment.DriverID,
		RouteID:     assignment.RouteID,
		WarehouseID: assignment.WarehouseID,
		ShiftDate:   assignment.ShiftDate.Format(dateLayout),
		Status:      string(assignment.Status),
		ConfirmedAt: assignment.ConfirmedAt,
		CancelledAt: assignment.CancelledAt,
	}
	if assignment.CancelType != nil {
		cancelType := string(*assignment.CancelType)
		resp.CancelType = &cancelType
	}
	if shift := assignment.Shift; shift != nil {
		resp.Shift = &shiftResponse{
			ArrivedAt:        shift.ArrivedAt,
			CompletedAt:      shift.CompletedAt,
			EditableUntil:    shift.EditableUntil,
			ParcelsStart:     shift.ParcelsStart,
			ParcelsDelivered: shift.ParcelsDelivered,
			ParcelsReturned:  shift.ParcelsReturned,
			ParcelsExcepted:  shift.ParcelsExcepted,
			ExceptionNotes:   shift.ExceptionNotes,
			NoShowRecordedAt: shift.NoShowRecordedAt,
		}
	}
	return resp
}

type bidWindowResponse struct {
	ID              uuid.UUID  `json:"id"`
	AssignmentID    uuid.UUID  `json:"assignment_id"`
	OpensAt         time.Time  `json:"opens_at"`
	ClosesAt        time.Time  `json:"closes_at"`
	Status          string     `json:"status"`
	Mode            string     `json:"mode"`
	Trigger         *string    `json:"trigger,omitempty"`
	PayBonusPercent float64    `json:"pay_bonus_percent"`
	WinningBidID    *uuid.UUID `json:"winning_bid_id,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
}

func newBidWindowResponse(window *models.BidWindow) bidWindowResponse {
	return bidWindowResponse{
		ID:              window.ID,
		AssignmentID:    window.AssignmentID,
		OpensAt:         window.OpensAt,
		ClosesAt:        window.ClosesAt,
		Status:          string(window.Status),
		Mode:            string(window.Mode),
		Trigger:         window.Trigger,
		PayBonusPercent: window.PayBonusPercent,
		WinningBidID:    window.WinningBidID,
		ResolvedAt:      window.ResolvedAt,
	}
}

type bidResponse struct {
	ID         uuid.UUID       `json:"id"`
	WindowID   uuid.UUID       `json:"window_id"`
	DriverID   uuid.UUID       `json:"driver_id"`
	ShiftDate  string          `json:"shift_date"`
	Score      decimal.Decimal `json:"score"`
	Status     string          `json:"status"`
	BidAt      time.Time       `json:"bid_at"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

func newBidResponse(bid models.Bid) bidResponse {
	return bidResponse{
		ID:         bid.ID,
		WindowID:   bid.WindowID,
		DriverID:   bid.DriverID,
		ShiftDate:  bid.ShiftDate.Format(dateLayout),
		Score:      bid.Score,
		Status:     string(bid.Status),
		BidAt:      bid.BidAt,
		ResolvedAt: bid.ResolvedAt,
	}
}

func newBidResponses(bids []models.Bid) []bidResponse {
	out := make([]bidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, newBidResponse(bid))
	}
	return out
}
