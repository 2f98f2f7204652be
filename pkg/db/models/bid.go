package models

import (
	"time"

	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is one driver's offer inside a bid window. Unique per (window, driver);
// a partial unique index allows a single pending bid per (driver, shift date)
// across all open windows.
type Bid struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WindowID       uuid.UUID       `gorm:"column:window_id;type:uuid;not null"`
	DriverID       uuid.UUID       `gorm:"column:driver_id;type:uuid;not null"`
	ShiftDate      time.Time       `gorm:"column:shift_date;type:date;not null"`
	Score          decimal.Decimal `gorm:"column:score;type:numeric(6,2);not null"`
	Status         enums.BidStatus `gorm:"column:status;not null;default:'pending'"`
	BidAt          time.Time       `gorm:"column:bid_at;not null"`
	WindowClosesAt time.Time       `gorm:"column:window_closes_at;not null"`
	ResolvedAt     *time.Time      `gorm:"column:resolved_at"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
