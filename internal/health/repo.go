package health

import (
	"context"
	"errors"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository exposes the persistence surface of the health engine. Reads are
// over immutable assignment/shift history; writes are the snapshot append and
// the state projection refresh.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListActiveDrivers(ctx context.Context) ([]models.Driver, error)
	ListAssignmentsThrough(ctx context.Context, driverID uuid.UUID, through time.Time) ([]models.Assignment, error)
	SnapshotExists(ctx context.Context, driverID uuid.UUID, day time.Time) (bool, error)
	CreateSnapshot(ctx context.Context, snapshot *models.HealthSnapshot) error
	LatestSnapshot(ctx context.Context, driverID uuid.UUID) (*models.HealthSnapshot, error)
	FindState(ctx context.Context, driverID uuid.UUID) (*models.HealthState, error)
	SaveState(ctx context.Context, state *models.HealthState) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a health repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListActiveDrivers(ctx context.Context) ([]models.Driver, error) {
	var drivers []models.Driver
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&drivers).Error
	if err != nil {
		return nil, err
	}
	return drivers, nil
}

func (r *repository) ListAssignmentsThrough(ctx context.Context, driverID uuid.UUID, through time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").
		Where("driver_id = ? AND shift_date <= ?", driverID, through).
		Order("shift_date ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

func (r *repository) SnapshotExists(ctx context.Context, driverID uuid.UUID, day time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.HealthSnapshot{}).
		Where("driver_id = ? AND evaluated_on = ?", driverID, day).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateSnapshot(ctx context.Context, snapshot *models.HealthSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *repository) LatestSnapshot(ctx context.Context, driverID uuid.UUID) (*models.HealthSnapshot, error) {
	var snapshot models.HealthSnapshot
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("evaluated_on DESC").
		First(&snapshot).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

func (r *repository) FindState(ctx context.Context, driverID uuid.UUID) (*models.HealthState, error) {
	var state models.HealthState
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state, nil
}

func (r *repository) SaveState(ctx context.Context, state *models.HealthState) error {
	if state.ID == uuid.Nil {
		existing, err := r.FindState(ctx, state.DriverID)
		if err != nil {
			return err
		}
		if existing != nil {
			state.ID = existing.ID
		}
	}
	return r.db.WithContext(ctx).Save(state).Error
}
