package models

import (
	"time"

	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
)

// DriverNotification is the durable record of a dispatched notification. The
// unique (driver, type, dedup_key) index is what makes reminder jobs and
// window broadcasts safe to rerun: a second send attempt with the same dedup
// key hits the index and is skipped. An empty dedup key opts the record out
// of dedup entirely.
type DriverNotification struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID     uuid.UUID              `gorm:"column:driver_id;type:uuid;not null;uniqueIndex:uniq_notification_key,priority:1,where:dedup_key <> ''"`
	AssignmentID *uuid.UUID             `gorm:"column:assignment_id;type:uuid"`
	Type         enums.NotificationType `gorm:"column:type;not null;uniqueIndex:uniq_notification_key,priority:2,where:dedup_key <> ''"`
	DedupKey     string                 `gorm:"column:dedup_key;not null;default:'';uniqueIndex:uniq_notification_key,priority:3,where:dedup_key <> ''"`
	Payload      dbtypes.JSONMap        `gorm:"column:payload;type:jsonb"`
	SentAt       time.Time              `gorm:"column:sent_at;not null"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
}
