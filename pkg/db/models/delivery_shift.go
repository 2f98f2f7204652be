package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryShift captures the operational evidence for an assignment: arrival,
// parcel counts and completion. At most one per assignment; created lazily
// when the assignment first needs operational detail.
type DeliveryShift struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AssignmentID     uuid.UUID  `gorm:"column:assignment_id;type:uuid;not null;uniqueIndex"`
	ArrivedAt        *time.Time `gorm:"column:arrived_at"`
	StartedAt        *time.Time `gorm:"column:started_at"`
	CompletedAt      *time.Time `gorm:"column:completed_at"`
	EditableUntil    *time.Time `gorm:"column:editable_until"`
	ParcelsStart     *int       `gorm:"column:parcels_start"`
	ParcelsDelivered *int       `gorm:"column:parcels_delivered"`
	ParcelsReturned  *int       `gorm:"column:parcels_returned"`
	ParcelsExcepted  *int       `gorm:"column:parcels_excepted"`
	ExceptionNotes   *string    `gorm:"column:exception_notes"`
	CancelReason     *string    `gorm:"column:cancel_reason"`
	NoShowRecordedAt *time.Time `gorm:"column:no_show_recorded_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
