package models

import (
	"time"

	dbtypes "github.com/fleetline/dispatch-backend/pkg/db/types"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
)

// JobRun records one execution of a periodic job for operator triage. Failed
// runs carry the error text and enough detail to pinpoint the entity that
// failed; they are never retried automatically.
type JobRun struct {
	ID         uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	JobName    string             `gorm:"column:job_name;not null;index"`
	Status     enums.JobRunStatus `gorm:"column:status;not null;default:'pending'"`
	StartedAt  *time.Time         `gorm:"column:started_at"`
	FinishedAt *time.Time         `gorm:"column:finished_at"`
	Error      *string            `gorm:"column:error"`
	Detail     dbtypes.JSONMap    `gorm:"column:detail;type:jsonb"`
	CreatedAt  time.Time          `gorm:"column:created_at;autoCreateTime"`
}
