package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schoolstock/stockroom-backend/api/controllers"
	"github.com/schoolstock/stockroom-backend/api/middleware"
	"github.com/schoolstock/stockroom-backend/internal/allocations"
	authsvc "github.com/schoolstock/stockroom-backend/internal/auth"
	"github.com/schoolstock/stockroom-backend/internal/inventory"
	"github.com/schoolstock/stockroom-backend/internal/notifications"
	requestsvc "github.com/schoolstock/stockroom-backend/internal/requests"
	"github.com/schoolstock/stockroom-backend/pkg/auth/session"
	"github.com/schoolstock/stockroom-backend/pkg/config"
	"github.com/schoolstock/stockroom-backend/pkg/db"
	"github.com/schoolstock/stockroom-backend/pkg/enums"
	"github.com/schoolstock/stockroom-backend/pkg/logger"
	"github.com/schoolstock/stockroom-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         redis.Pinger
	Idempotency   redis.IdempotencyStore
	RateLimit     middleware.RateLimiterStore
	Sessions      session.AccessSessionChecker
	Metrics       *prometheus.Registry
	Auth          authsvc.Service
	Inventory     inventory.Service
	Requests      requestsvc.Service
	Notifications notifications.Service
	Allocations   allocations.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.RateLimit, logg)).Post("/login", controllers.AuthLogin(deps.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.Auth, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Post("/logout", controllers.AuthLogout(deps.Auth, logg))
		})
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
			r.Use(middleware.RequireRole(enums.RoleAdmin, logg))
			r.Use(middleware.Idempotency(deps.Idempotency, logg))
			r.With(middleware.AuthRateLimit(registerPolicy, deps.RateLimit, logg)).Post("/register", controllers.AuthRegister(deps.Auth, logg))
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(deps.Idempotency, logg))

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(deps.Inventory, logg))
			r.Get("/{itemId}", controllers.GetItem(deps.Inventory, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireApprover(logg))
				r.Post("/", controllers.CreateItem(deps.Inventory, logg))
				r.Delete("/{itemId}", controllers.DeleteItem(deps.Inventory, logg))
				r.Post("/{itemId}/adjust", controllers.AdjustStock(deps.Inventory, logg))
				r.Get("/{itemId}/ledger", controllers.ItemLedger(deps.Inventory, logg))
			})
		})

		r.Route("/requests", func(r chi.Router) {
			r.Post("/", controllers.CreateRequest(deps.Requests, logg))
			r.Post("/batch", controllers.CreateRequestBatch(deps.Requests, logg))
			r.Get("/", controllers.ListMyRequests(deps.Requests, logg))
			r.Get("/{requestId}", controllers.GetRequest(deps.Requests, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireApprover(logg))
				r.Get("/pending", controllers.ListPendingRequests(deps.Requests, logg))
				r.Post("/{requestId}/decision", controllers.DecideRequest(deps.Requests, logg))
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationCount(deps.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})

		r.Route("/allocations", func(r chi.Router) {
			r.Get("/", controllers.ListAllocations(deps.Allocations, logg))
			r.With(middleware.RequireApprover(logg)).Post("/", controllers.AssignAllocation(deps.Allocations, logg))
		})
	})

	return r
}
