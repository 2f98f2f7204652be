package assignments

import (
	"context"
	"errors"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the persistence surface of the assignment lifecycle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Find(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Save(ctx context.Context, assignment *models.Assignment) error
	SaveShift(ctx context.Context, shift *models.DeliveryShift) error
	FindRoute(ctx context.Context, id uuid.UUID) (*models.Route, error)

	ListConfirmationsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error)
	ListUnconfirmed(ctx context.Context, through time.Time) ([]models.Assignment, error)
	ListNoShowCandidates(ctx context.Context, before time.Time) ([]models.Assignment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an assignments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

func (r *repository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

func (r *repository) Save(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit("Shift").Save(assignment).Error
}

func (r *repository) SaveShift(ctx context.Context, shift *models.DeliveryShift) error {
	return r.db.WithContext(ctx).Save(shift).Error
}

func (r *repository) FindRoute(ctx context.Context, id uuid.UUID) (*models.Route, error) {
	var route models.Route
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&route).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &route, nil
}

// ListConfirmationsDue returns scheduled, unconfirmed assignments with shift
// dates inside [from, to].
func (r *repository) ListConfirmationsDue(ctx context.Context, from, to time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND confirmed_at IS NULL AND driver_id IS NOT NULL AND shift_date BETWEEN ? AND ?",
			enums.AssignmentStatusScheduled, from, to).
		Order("shift_date ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListUnconfirmed returns scheduled, unconfirmed assignments with shift dates
// up to the horizon. Deadline filtering against the route start happens in
// the caller.
func (r *repository) ListUnconfirmed(ctx context.Context, through time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Where("status = ? AND confirmed_at IS NULL AND driver_id IS NOT NULL AND shift_date <= ?",
			enums.AssignmentStatusScheduled, through).
		Order("shift_date ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}

// ListNoShowCandidates returns confirmed, still-scheduled assignments dated
// before the given day.
func (r *repository) ListNoShowCandidates(ctx context.Context, before time.Time) ([]models.Assignment, error) {
	var assignments []models.Assignment
	err := r.db.WithContext(ctx).
		Preload("Shift").
		Where("status = ? AND confirmed_at IS NOT NULL AND shift_date < ?",
			enums.AssignmentStatusScheduled, before).
		Order("shift_date ASC").
		Find(&assignments).Error
	if err != nil {
		return nil, err
	}
	return assignments, nil
}
