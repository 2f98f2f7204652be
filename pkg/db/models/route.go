package models

import (
	"time"

	"github.com/google/uuid"
)

// Route is a recurring delivery route out of a warehouse.
type Route struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WarehouseID     uuid.UUID `gorm:"column:warehouse_id;type:uuid;not null"`
	Name            string    `gorm:"column:name;not null"`
	StartHour       int       `gorm:"column:start_hour;not null"`
	StartMinute     int       `gorm:"column:start_minute;not null;default:0"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}

// StartOn returns the route's start instant on the given shift date.
func (r Route) StartOn(date time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = date.Location()
	}
	return time.Date(date.Year(), date.Month(), date.Day(), r.StartHour, r.StartMinute, 0, 0, loc)
}
