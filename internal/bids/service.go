package bids

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/fleetline/dispatch-backend/pkg/clock"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db"
	"github.com/fleetline/dispatch-backend/pkg/db/models"
	"github.com/fleetline/dispatch-backend/pkg/enums"
	pkgerrors "github.com/fleetline/dispatch-backend/pkg/errors"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// healthReader is the slice of the health engine the bid manager needs.
type healthReader interface {
	CurrentScore(ctx context.Context, driverID uuid.UUID) (int, bool, error)
	PoolEligible(ctx context.Context, driverID uuid.UUID) (bool, error)
}

// notifier fans out best-effort notifications after commit. Implementations
// must never return an error into a state transition.
type notifier interface {
	WindowOpened(ctx context.Context, window *models.BidWindow)
	BidWon(ctx context.Context, window *models.BidWindow, bid models.Bid)
	BidLost(ctx context.Context, window *models.BidWindow, bid models.Bid)
}

// Service is the bid window manager: opening windows for vacancies, taking
// bids, and resolving windows with an exactly-one-winner guarantee.
type Service struct {
	repo           Repository
	tx             txRunner
	scorer         *Scorer
	health         healthReader
	notify         notifier
	policy         config.BidPolicy
	maxHealthScore int
	clock          clock.Clock
	logg           *logger.Logger
}

// ServiceParams configure the bid window manager.
type ServiceParams struct {
	Repo         Repository
	Tx           txRunner
	Health       healthReader
	Notifier     notifier
	Policy       config.BidPolicy
	HealthPolicy config.HealthPolicy
	Clock        clock.Clock
	Logger       *logger.Logger
}

// NewService builds the bid window manager.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("bids repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Health == nil {
		return nil, fmt.Errorf("health reader required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	if params.Clock == nil {
		return nil, fmt.Errorf("clock required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:           params.Repo,
		tx:             params.Tx,
		scorer:         NewScorer(params.Policy),
		health:         params.Health,
		notify:         params.Notifier,
		policy:         params.Policy,
		maxHealthScore: params.HealthPolicy.MaxScore,
		clock:          params.Clock,
		logg:           params.Logger,
	}, nil
}

// OpenWindowParams describe a vacancy to open bidding for. Emergency windows
// are reserved for no-show replacements and carry the configured pay bonus.
type OpenWindowParams struct {
	AssignmentID uuid.UUID
	Trigger      string
	Emergency    bool
}

// OpenWindow opens a bid window for an unfilled assignment. Opening is
// idempotent per assignment: if an open window already exists it is returned
// as-is.
func (s *Service) OpenWindow(ctx context.Context, params OpenWindowParams) (*models.BidWindow, error) {
	window, err := s.OpenWindowWith(ctx, s.repo, params)
	if err != nil {
		return nil, err
	}
	s.notify.WindowOpened(ctx, window)
	return window, nil
}

// OpenWindowInTx opens a window inside a caller-managed transaction. The
// caller is responsible for dispatching notifications after commit.
func (s *Service) OpenWindowInTx(ctx context.Context, tx *gorm.DB, params OpenWindowParams) (*models.BidWindow, error) {
	return s.OpenWindowWith(ctx, s.repo.WithTx(tx), params)
}

// OpenWindowWith runs the open against the given repository binding so other
// transitions (late cancel, auto drop) can open the replacement window inside
// their own transaction. Callers notify after their transaction commits.
func (s *Service) OpenWindowWith(ctx context.Context, repo Repository, params OpenWindowParams) (*models.BidWindow, error) {
	assignment, err := repo.FindAssignment(ctx, params.AssignmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}
	if assignment.Status != enums.AssignmentStatusUnfilled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is not awaiting a driver")
	}

	existing, err := repo.FindOpenWindowForAssignment(ctx, params.AssignmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load open window")
	}
	if existing != nil {
		return existing, nil
	}

	route, err := repo.FindRoute(ctx, assignment.RouteID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load route")
	}
	if route == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "route not found")
	}

	now := s.clock.Now()
	shiftStart := route.StartOn(assignment.ShiftDate, now.Location())

	window := &models.BidWindow{
		AssignmentID: params.AssignmentID,
		Status:       enums.BidWindowStatusOpen,
		OpensAt:      now,
		ClosesAt:     now.Add(time.Duration(s.policy.WindowDurationHours) * time.Hour),
	}
	if params.Trigger != "" {
		trigger := params.Trigger
		window.Trigger = &trigger
	}

	switch {
	case params.Emergency:
		window.Mode = enums.BidWindowModeEmergency
		window.PayBonusPercent = s.policy.EmergencyPayBonusPercent
	case shiftStart.Sub(now) > time.Duration(s.policy.InstantCutoffHours)*time.Hour:
		window.Mode = enums.BidWindowModeCompetitive
	default:
		window.Mode = enums.BidWindowModeInstant
	}
	if !params.Emergency {
		if !shiftStart.After(now) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "shift has already started")
		}
		if window.ClosesAt.After(shiftStart) {
			window.ClosesAt = shiftStart
		}
	}

	if err := repo.CreateWindow(ctx, window); err != nil {
		if db.IsUniqueViolation(err, "uniq_open_window_per_assignment") {
			// lost the race to a concurrent open
			existing, findErr := repo.FindOpenWindowForAssignment(ctx, params.AssignmentID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "window already open")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create window")
	}
	return window, nil
}

// PlaceBid records a driver's bid on an open window. Instant and emergency
// windows resolve immediately on the first accepted bid.
func (s *Service) PlaceBid(ctx context.Context, windowID, driverID uuid.UUID) (*models.Bid, error) {
	now := s.clock.Now()

	window, err := s.repo.FindWindow(ctx, windowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load window")
	}
	if window == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid window not found")
	}
	if window.Status != enums.BidWindowStatusOpen {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "bid window already resolved")
	}
	if !now.Before(window.ClosesAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bid window has closed")
	}

	driver, err := s.repo.FindDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if driver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
	}
	if !driver.Active {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver is not active")
	}

	eligible, err := s.health.PoolEligible(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver is not eligible to bid")
	}

	assignment, err := s.repo.FindAssignment(ctx, window.AssignmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}

	score, err := s.scoreFor(ctx, s.repo, driver, assignment.RouteID, now)
	if err != nil {
		return nil, err
	}

	bid := &models.Bid{
		WindowID:       windowID,
		DriverID:       driverID,
		ShiftDate:      assignment.ShiftDate,
		Score:          score,
		Status:         enums.BidStatusPending,
		BidAt:          now,
		WindowClosesAt: window.ClosesAt,
	}

	var outcome *resolution
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// re-check under a row lock: a resolve that commits after the
		// read above must not leave a pending bid on a settled window
		current, err := repo.FindWindowForUpdate(ctx, windowID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock window")
		}
		if current == nil || current.Status != enums.BidWindowStatusOpen {
			return pkgerrors.New(pkgerrors.CodeConflict, "bid window already resolved")
		}
		if !now.Before(current.ClosesAt) {
			return pkgerrors.New(pkgerrors.CodeValidation, "bid window has closed")
		}
		if err := repo.CreateBid(ctx, bid); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "driver already has a pending bid for this shift")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bid")
		}
		if window.Mode.ResolvesOnFirstBid() {
			res, err := s.resolveWith(ctx, repo, windowID, now)
			if err != nil {
				return err
			}
			outcome = res
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.dispatchResolution(ctx, outcome)
		if outcome.winner != nil && outcome.winner.ID == bid.ID {
			bid.Status = enums.BidStatusWon
			bid.ResolvedAt = &now
		}
	}
	return bid, nil
}

// ResolveWindow closes out bidding: the top-scored pending bid wins, every
// other bid loses, and the vacancy is handed to the winner. Invoking it on an
// already-resolved window is a no-op returning the settled window.
func (s *Service) ResolveWindow(ctx context.Context, windowID uuid.UUID) (*models.BidWindow, error) {
	now := s.clock.Now()

	var outcome *resolution
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.resolveWith(ctx, s.repo.WithTx(tx), windowID, now)
		if err != nil {
			return err
		}
		outcome = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.dispatchResolution(ctx, outcome)
	return outcome.window, nil
}

// ResolveExpiredWindows settles every open window past its close time.
// Returns how many windows were settled.
func (s *Service) ResolveExpiredWindows(ctx context.Context) (int, error) {
	windows, err := s.repo.ListExpiredOpenWindows(ctx, s.clock.Now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired windows")
	}

	settled := 0
	for _, window := range windows {
		if err := ctx.Err(); err != nil {
			return settled, err
		}
		if _, err := s.ResolveWindow(ctx, window.ID); err != nil {
			// conflicts mean a concurrent worker settled it first
			if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
				continue
			}
			return settled, err
		}
		settled++
	}
	if settled > 0 {
		s.logg.Info(s.logg.WithField(ctx, "settled", settled), "expired bid windows settled")
	}
	return settled, nil
}

// Window returns a window with its bids for read APIs.
func (s *Service) Window(ctx context.Context, windowID uuid.UUID) (*models.BidWindow, []models.Bid, error) {
	window, err := s.repo.FindWindow(ctx, windowID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load window")
	}
	if window == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid window not found")
	}
	bids, err := s.repo.ListBids(ctx, windowID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bids")
	}
	return window, bids, nil
}

// DriverBids returns a driver's bid history, newest first.
func (s *Service) DriverBids(ctx context.Context, driverID uuid.UUID) ([]models.Bid, error) {
	driver, err := s.repo.FindDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load driver")
	}
	if driver == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "driver not found")
	}
	bids, err := s.repo.ListBidsForDriver(ctx, driverID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list driver bids")
	}
	return bids, nil
}

// resolution captures a settled window so notifications can go out after the
// transaction commits.
type resolution struct {
	window *models.BidWindow
	winner *models.Bid
	losers []models.Bid
}

func (s *Service) resolveWith(ctx context.Context, repo Repository, windowID uuid.UUID, now time.Time) (*resolution, error) {
	window, err := repo.FindWindow(ctx, windowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load window")
	}
	if window == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bid window not found")
	}
	if window.Status != enums.BidWindowStatusOpen {
		return &resolution{window: window}, nil
	}

	pending, err := repo.ListPendingBids(ctx, windowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending bids")
	}

	if len(pending) == 0 {
		claimed, err := repo.ClaimWindowClosed(ctx, windowID, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "close window")
		}
		if !claimed {
			return s.reloadSettled(ctx, repo, windowID)
		}
		window.Status = enums.BidWindowStatusClosed
		window.ResolvedAt = &now
		return &resolution{window: window}, nil
	}

	assignment, err := repo.FindAssignment(ctx, window.AssignmentID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load assignment")
	}
	if assignment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "assignment not found")
	}

	// scores are re-derived at settlement so health changes since bid
	// time count; a vanished driver keeps the bid-time score
	for i := range pending {
		driver, err := repo.FindDriver(ctx, pending[i].DriverID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bidder")
		}
		if driver == nil {
			continue
		}
		score, err := s.scoreFor(ctx, repo, driver, assignment.RouteID, now)
		if err != nil {
			return nil, err
		}
		if score.Equal(pending[i].Score) {
			continue
		}
		pending[i].Score = score
		if err := repo.UpdateBidScore(ctx, pending[i].ID, score); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh bid score")
		}
	}

	// pending arrives ordered by bid time; stable sort keeps the earlier
	// bid ahead on equal scores
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Score.GreaterThan(pending[j].Score)
	})
	winner := pending[0]

	claimed, err := repo.ClaimWindowResolved(ctx, windowID, winner.ID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve window")
	}
	if !claimed {
		return s.reloadSettled(ctx, repo, windowID)
	}

	if err := repo.MarkBidWon(ctx, winner.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark winning bid")
	}
	if err := repo.MarkRemainingBidsLost(ctx, windowID, winner.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark losing bids")
	}

	granted, err := repo.ClaimUnfilledAssignment(ctx, window.AssignmentID, winner.DriverID, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "assign winner")
	}
	if !granted {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "assignment is no longer available")
	}

	window.Status = enums.BidWindowStatusResolved
	window.WinningBidID = &winner.ID
	window.ResolvedAt = &now
	winner.Status = enums.BidStatusWon
	winner.ResolvedAt = &now

	losers := make([]models.Bid, 0, len(pending)-1)
	for _, bid := range pending[1:] {
		bid.Status = enums.BidStatusLost
		bid.ResolvedAt = &now
		losers = append(losers, bid)
	}
	return &resolution{window: window, winner: &winner, losers: losers}, nil
}

// reloadSettled handles losing the claim race: if the concurrent transition
// already settled the window, return it as a no-op instead of an error.
func (s *Service) reloadSettled(ctx context.Context, repo Repository, windowID uuid.UUID) (*resolution, error) {
	window, err := repo.FindWindow(ctx, windowID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload window")
	}
	if window != nil && window.Status != enums.BidWindowStatusOpen {
		return &resolution{window: window}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "window is being resolved concurrently")
}

func (s *Service) dispatchResolution(ctx context.Context, res *resolution) {
	if res == nil || res.winner == nil {
		return
	}
	s.notify.BidWon(ctx, res.window, *res.winner)
	for _, bid := range res.losers {
		s.notify.BidLost(ctx, res.window, bid)
	}
}

func (s *Service) scoreFor(ctx context.Context, repo Repository, driver *models.Driver, routeID uuid.UUID, now time.Time) (decimal.Decimal, error) {
	completions, err := repo.CountRouteCompletions(ctx, driver.ID, routeID)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count route completions")
	}

	input := ScoreInput{
		MaxHealthScore:   s.maxHealthScore,
		RouteCompletions: completions,
		HiredAt:          driver.HiredAt,
		Preferred:        driver.PreferredRouteIDs.Contains(routeID),
		AsOf:             now,
	}
	score, known, err := s.health.CurrentScore(ctx, driver.ID)
	if err != nil {
		return decimal.Zero, err
	}
	if known {
		input.HealthScore = &score
	}
	return s.scorer.Score(input), nil
}
