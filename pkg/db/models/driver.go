package models

import (
	"time"

	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/google/uuid"
)

// Driver is a delivery driver eligible for shift assignments and bids.
type Driver struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string            `gorm:"column:name;not null"`
	Email             string            `gorm:"column:email;not null;uniqueIndex"`
	HiredAt           time.Time         `gorm:"column:hired_at;not null"`
	Active            bool              `gorm:"column:active;not null;default:true"`
	PreferredRouteIDs dbtypes.UUIDArray `gorm:"column:preferred_route_ids;type:uuid[]"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
