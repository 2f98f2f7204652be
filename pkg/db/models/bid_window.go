package models

import (
	"time"

	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
)

// BidWindow is one time-boxed bidding episode for a vacant assignment. A
// partial unique index allows a single open window per assignment; a resolved
// window has exactly one winning bid.
type BidWindow struct {
	ID              uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssignmentID    uuid.UUID             `gorm:"column:assignment_id;type:uuid;not null"`
	OpensAt         time.Time             `gorm:"column:opens_at;not null"`
	ClosesAt        time.Time             `gorm:"column:closes_at;not null"`
	Status          enums.BidWindowStatus `gorm:"column:status;not null;default:'open'"`
	Mode            enums.BidWindowMode   `gorm:"column:mode;not null"`
	Trigger         *string               `gorm:"column:trigger"`
	PayBonusPercent float64               `gorm:"column:pay_bonus_percent;not null;default:0"`
	WinningBidID    *uuid.UUID            `gorm:"column:winning_bid_id;type:uuid"`
	ResolvedAt      *time.Time            `gorm:"column:resolved_at"`
	CreatedAt       time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
