package models

import (
	"time"

	"github.com/google/uuid"
)

// HealthState is the current health summary per driver. It is a derived
// projection: the evaluation jobs regenerate it wholesale from assignment and
// shift history instead of patching it incrementally, so reruns converge.
type HealthState struct {
	ID                 uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID           uuid.UUID  `gorm:"column:driver_id;type:uuid;not null;uniqueIndex"`
	CurrentScore       int        `gorm:"column:current_score;not null"`
	StreakWeeks        int        `gorm:"column:streak_weeks;not null;default:0"`
	Stars              int        `gorm:"column:stars;not null;default:0"`
	LastQualifiedWeek  *time.Time `gorm:"column:last_qualified_week;type:date"`
	PoolEligible       bool       `gorm:"column:pool_eligible;not null;default:true"`
	NeedsManagerReview bool       `gorm:"column:needs_manager_review;not null;default:false"`
	LastResetAt        *time.Time `gorm:"column:last_reset_at"`
	UpdatedAt          time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
