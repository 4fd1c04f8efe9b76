package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockroomhq/stockroom-backend/api/controllers"
	"github.com/stockroomhq/stockroom-backend/api/middleware"
	"github.com/stockroomhq/stockroom-backend/internal/auth"
	"github.com/stockroomhq/stockroom-backend/internal/inventory"
	"github.com/stockroomhq/stockroom-backend/internal/ledger"
	"github.com/stockroomhq/stockroom-backend/internal/notifications"
	"github.com/stockroomhq/stockroom-backend/internal/products"
	"github.com/stockroomhq/stockroom-backend/internal/reports"
	"github.com/stockroomhq/stockroom-backend/internal/users"
	"github.com/stockroomhq/stockroom-backend/pkg/auth/session"
	"github.com/stockroomhq/stockroom-backend/pkg/config"
	"github.com/stockroomhq/stockroom-backend/pkg/db"
	"github.com/stockroomhq/stockroom-backend/pkg/enums"
	"github.com/stockroomhq/stockroom-backend/pkg/logger"
	pkgredis "github.com/stockroomhq/stockroom-backend/pkg/redis"
)

// Deps bundles everything the HTTP surface needs. Optional fields may be nil;
// the affected routes then degrade or disappear.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *pkgredis.Client
	Sessions        session.AccessSessionChecker
	MetricsRegistry *prometheus.Registry

	Auth          auth.Service
	Products      products.Service
	Inventory     inventory.Service
	Ledger        ledger.Service
	Exporter      reports.Exporter
	Notifications notifications.Service
	Users         users.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// Typed-nil guard: optional deps stay nil interfaces downstream.
	var cache pkgredis.Pinger
	var idemStore pkgredis.IdempotencyStore
	var limiter middleware.RateLimiterStore
	if deps.Redis != nil {
		cache = deps.Redis
		idemStore = deps.Redis
		limiter = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	verifyPolicy := middleware.NewAuthRateLimitPolicy(
		"verify",
		cfg.AuthRateLimit.VerifyWindow,
		cfg.AuthRateLimit.VerifyIPLimit,
		cfg.AuthRateLimit.VerifyEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, cache, logg))
	})

	if deps.MetricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.MetricsRegistry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, limiter, logg)).Post("/login", controllers.Login(deps.Auth, logg))
		r.With(middleware.AuthRateLimit(verifyPolicy, limiter, logg)).Post("/verify", controllers.VerifyCode(deps.Auth, logg))
		r.Post("/refresh", controllers.Refresh(deps.Auth, logg))
		r.Post("/logout", controllers.Logout(deps.Auth, logg))
	})

	manageCatalog := middleware.RequireRole(logg, string(enums.UserRoleManager), string(enums.UserRoleAdmin))
	adminOnly := middleware.RequireRole(logg, string(enums.UserRoleAdmin))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(deps.Products, logg))
			r.With(manageCatalog).Post("/", controllers.CreateProduct(deps.Products, logg))
			r.Get("/{productID}", controllers.GetProduct(deps.Products, logg))
			r.Get("/{productID}/availability", controllers.ProductAvailability(deps.Inventory, logg))
			r.With(manageCatalog).Patch("/{productID}", controllers.UpdateProduct(deps.Products, logg))
			r.With(manageCatalog).Delete("/{productID}", controllers.DeleteProduct(deps.Products, logg))
		})

		r.Route("/items", func(r chi.Router) {
			r.Get("/", controllers.ListItems(deps.Inventory, logg))
			r.Post("/", controllers.CreateItem(deps.Inventory, logg))
			r.Get("/{itemID}", controllers.GetItem(deps.Inventory, logg))
			r.Patch("/{itemID}", controllers.UpdateItem(deps.Inventory, logg))
			r.With(manageCatalog).Delete("/{itemID}", controllers.DeleteItem(deps.Inventory, logg))
			r.With(manageCatalog).Post("/{itemID}/transfer", controllers.TransferItem(deps.Inventory, logg))
		})

		r.Route("/operations", func(r chi.Router) {
			r.Post("/", controllers.ApplyOperation(deps.Inventory, logg))
			r.Get("/", controllers.ListOperations(deps.Ledger, logg))
			r.With(manageCatalog).Get("/export", controllers.ExportOperations(deps.Exporter, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.Sessions, logg))
		r.Use(adminOnly)
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/users", func(r chi.Router) {
			r.Get("/", controllers.ListUsers(deps.Users, logg))
			r.Post("/", controllers.CreateUser(deps.Users, logg))
			r.Get("/{userID}", controllers.GetUser(deps.Users, logg))
			r.Patch("/{userID}/active", controllers.SetUserActive(deps.Users, logg))
			r.Patch("/{userID}/role", controllers.ChangeUserRole(deps.Users, logg))
		})
	})

	return r
}
