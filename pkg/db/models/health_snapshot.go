package models

import (
	"time"

	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/google/uuid"
)

// HealthSnapshot is one append-only daily evaluation of a driver. Never
// mutated after creation; one per (driver, evaluated-on).
type HealthSnapshot struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID       uuid.UUID       `gorm:"column:driver_id;type:uuid;not null;uniqueIndex:uniq_health_snapshot_day,priority:1"`
	EvaluatedOn    time.Time       `gorm:"column:evaluated_on;type:date;not null;uniqueIndex:uniq_health_snapshot_day,priority:2"`
	Score          int             `gorm:"column:score;not null"`
	AttendanceRate float64         `gorm:"column:attendance_rate;not null"`
	CompletionRate float64         `gorm:"column:completion_rate;not null"`
	LateCancels30d int             `gorm:"column:late_cancels_30d;not null"`
	NoShows30d     int             `gorm:"column:no_shows_30d;not null"`
	HardStop       bool            `gorm:"column:hard_stop;not null;default:false"`
	PointBreakdown dbtypes.JSONMap `gorm:"column:point_breakdown;type:jsonb"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
