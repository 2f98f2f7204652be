package bids

import (
	"context"
	"errors"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository is the persistence surface of the bid window manager. The
// guarded updates return whether the calling transition claimed the row, which
// is how the exactly-one-winner guarantee is enforced at the data layer.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindWindow(ctx context.Context, id uuid.UUID) (*models.BidWindow, error)
	FindWindowForUpdate(ctx context.Context, id uuid.UUID) (*models.BidWindow, error)
	FindOpenWindowForAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.BidWindow, error)
	ListExpiredOpenWindows(ctx context.Context, asOf time.Time) ([]models.BidWindow, error)
	CreateWindow(ctx context.Context, window *models.BidWindow) error
	ClaimWindowResolved(ctx context.Context, windowID, winningBidID uuid.UUID, at time.Time) (bool, error)
	ClaimWindowClosed(ctx context.Context, windowID uuid.UUID, at time.Time) (bool, error)

	CreateBid(ctx context.Context, bid *models.Bid) error
	UpdateBidScore(ctx context.Context, bidID uuid.UUID, score decimal.Decimal) error
	ListPendingBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error)
	ListBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error)
	ListBidsForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Bid, error)
	MarkBidWon(ctx context.Context, bidID uuid.UUID, at time.Time) error
	MarkRemainingBidsLost(ctx context.Context, windowID, winningBidID uuid.UUID, at time.Time) error

	FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	ClaimUnfilledAssignment(ctx context.Context, assignmentID, driverID uuid.UUID, at time.Time) (bool, error)
	FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error)
	FindRoute(ctx context.Context, id uuid.UUID) (*models.Route, error)
	CountRouteCompletions(ctx context.Context, driverID, routeID uuid.UUID) (int, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a bids repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindWindow(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &window, nil
}

// FindWindowForUpdate reads the window under a row lock so a concurrent
// resolve and a late bid serialize against each other.
func (r *repository) FindWindowForUpdate(ctx context.Context, id uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &window, nil
}

func (r *repository) FindOpenWindowForAssignment(ctx context.Context, assignmentID uuid.UUID) (*models.BidWindow, error) {
	var window models.BidWindow
	err := r.db.WithContext(ctx).
		Where("assignment_id = ? AND status = ?", assignmentID, enums.BidWindowStatusOpen).
		First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &window, nil
}

func (r *repository) ListExpiredOpenWindows(ctx context.Context, asOf time.Time) ([]models.BidWindow, error) {
	var windows []models.BidWindow
	err := r.db.WithContext(ctx).
		Where("status = ? AND closes_at <= ?", enums.BidWindowStatusOpen, asOf).
		Order("closes_at ASC").
		Find(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

func (r *repository) CreateWindow(ctx context.Context, window *models.BidWindow) error {
	return r.db.WithContext(ctx).Create(window).Error
}

func (r *repository) ClaimWindowResolved(ctx context.Context, windowID, winningBidID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BidWindow{}).
		Where("id = ? AND status = ?", windowID, enums.BidWindowStatusOpen).
		Updates(map[string]any{
			"status":         enums.BidWindowStatusResolved,
			"winning_bid_id": winningBidID,
			"resolved_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) ClaimWindowClosed(ctx context.Context, windowID uuid.UUID, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.BidWindow{}).
		Where("id = ? AND status = ?", windowID, enums.BidWindowStatusOpen).
		Updates(map[string]any{
			"status":      enums.BidWindowStatusClosed,
			"resolved_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) CreateBid(ctx context.Context, bid *models.Bid) error {
	return r.db.WithContext(ctx).Create(bid).Error
}

func (r *repository) UpdateBidScore(ctx context.Context, bidID uuid.UUID, score decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ?", bidID).
		Update("score", score).Error
}

func (r *repository) ListPendingBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("window_id = ? AND status = ?", windowID, enums.BidStatusPending).
		Order("bid_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) ListBids(ctx context.Context, windowID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("window_id = ?", windowID).
		Order("bid_at ASC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) ListBidsForDriver(ctx context.Context, driverID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("bid_at DESC").
		Find(&bids).Error
	if err != nil {
		return nil, err
	}
	return bids, nil
}

func (r *repository) MarkBidWon(ctx context.Context, bidID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("id = ? AND status = ?", bidID, enums.BidStatusPending).
		Updates(map[string]any{
			"status":      enums.BidStatusWon,
			"resolved_at": at,
		}).Error
}

func (r *repository) MarkRemainingBidsLost(ctx context.Context, windowID, winningBidID uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Bid{}).
		Where("window_id = ? AND id <> ? AND status = ?", windowID, winningBidID, enums.BidStatusPending).
		Updates(map[string]any{
			"status":      enums.BidStatusLost,
			"resolved_at": at,
		}).Error
}

func (r *repository) FindAssignment(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// ClaimUnfilledAssignment hands the vacancy to the winner. The status guard
// means a concurrent claim loses cleanly instead of producing two drivers.
func (r *repository) ClaimUnfilledAssignment(ctx context.Context, assignmentID, driverID uuid.UUID, at time.Time) (bool, error) {
	assignedBy := enums.AssignedByBid
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND status = ?", assignmentID, enums.AssignmentStatusUnfilled).
		Updates(map[string]any{
			"driver_id":    driverID,
			"status":       enums.AssignmentStatusScheduled,
			"assigned_by":  assignedBy,
			"assigned_at":  at,
			"confirmed_at": at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) FindDriver(ctx context.Context, id uuid.UUID) (*models.Driver, error) {
	var driver models.Driver
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&driver).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &driver, nil
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

func (r *repository) CountRouteCompletions(ctx context.Context, driverID, routeID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("driver_id = ? AND route_id = ? AND status = ?", driverID, routeID, enums.AssignmentStatusCompleted).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}
