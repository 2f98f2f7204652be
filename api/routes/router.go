package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetline/dispatch-backend/api/controllers"
	"github.com/fleetline/dispatch-backend/api/middleware"
	"github.com/fleetline/dispatch-backend/internal/assignments"
	"github.com/fleetline/dispatch-backend/internal/bids"
	"github.com/fleetline/dispatch-backend/internal/health"
	"github.com/fleetline/dispatch-backend/pkg/config"
	"github.com/fleetline/dispatch-backend/pkg/db"
	"github.com/fleetline/dispatch-backend/pkg/logger"
	"github.com/fleetline/dispatch-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	assignmentsService *assignments.Service,
	bidsService *bids.Service,
	healthService *health.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Get("/healthz", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg, dbP, redisP))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/assignments/{id}", func(r chi.Router) {
			r.Get("/", controllers.GetAssignment(assignmentsService, logg))
			r.Post("/confirm", controllers.ConfirmAssignment(assignmentsService, logg))
			r.Post("/arrive", controllers.ArriveAssignment(assignmentsService, logg))
			r.Post("/inventory", controllers.RecordInventory(assignmentsService, logg))
			r.Post("/complete", controllers.CompleteAssignment(assignmentsService, logg))
			r.Post("/edit", controllers.EditAssignment(assignmentsService, logg))
			r.Post("/cancel", controllers.CancelAssignment(assignmentsService, logg))
		})

		r.Route("/bid-windows", func(r chi.Router) {
			r.Post("/", controllers.OpenBidWindow(bidsService, logg))
			r.Get("/{id}", controllers.GetBidWindow(bidsService, logg))
			r.Post("/{id}/bids", controllers.PlaceBid(bidsService, logg))
			r.Post("/{id}/resolve", controllers.ResolveBidWindow(bidsService, logg))
		})

		r.Route("/drivers/{id}", func(r chi.Router) {
			r.Get("/health", controllers.DriverHealth(healthService, logg))
			r.Get("/bids", controllers.DriverBids(bidsService, logg))
		})
	})

	return r
}
