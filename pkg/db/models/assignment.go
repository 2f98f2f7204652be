package models

import (
	"time"

	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
)

// Assignment is one driver-route-date triple, or an unfilled placeholder
// awaiting a bid winner. Rows are never deleted, only transitioned to a
// terminal status. A partial unique index guarantees at most one
// non-cancelled assignment per (driver, shift date).
type Assignment struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID    *uuid.UUID             `gorm:"column:driver_id;type:uuid"`
	RouteID     uuid.UUID              `gorm:"column:route_id;type:uuid;not null"`
	WarehouseID uuid.UUID              `gorm:"column:warehouse_id;type:uuid;not null"`
	ShiftDate   time.Time              `gorm:"column:shift_date;type:date;not null"`
	Status      enums.AssignmentStatus `gorm:"column:status;not null;default:'scheduled'"`
	AssignedBy  *enums.AssignedBy      `gorm:"column:assigned_by"`
	AssignedAt  *time.Time             `gorm:"column:assigned_at"`
	ConfirmedAt *time.Time             `gorm:"column:confirmed_at"`
	CancelType  *enums.CancelType      `gorm:"column:cancel_type"`
	CancelledAt *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Shift *DeliveryShift `gorm:"foreignKey:AssignmentID"`
}
