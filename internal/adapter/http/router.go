package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/coinflip/exchange-ledger/internal/adapter/http/handler"
	"github.com/coinflip/exchange-ledger/internal/adapter/http/middleware"
	"github.com/coinflip/exchange-ledger/internal/domain"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/auth"
	"github.com/coinflip/exchange-ledger/internal/infrastructure/metrics"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	AuthHandler      *handler.AuthHandler
	TransferHandler  *handler.TransferHandler
	TradeHandler     *handler.TradeHandler
	PortfolioHandler *handler.PortfolioHandler
	RateHandler      *handler.RateHandler
	AdminHandler     *handler.AdminHandler
	HealthHandler    *handler.HealthHandler
	JWTManager       *auth.JWTManager
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggingMiddleware(cfg.Logger).Wrap)
	r.Use(middleware.Recovery(cfg.Logger))

	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	// Health and operational endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	requireAuth := middleware.AuthMiddleware(cfg.JWTManager)
	requireAdmin := middleware.RequireRole(domain.RoleAdmin)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/auth/register", cfg.AuthHandler.Register)
		r.Post("/auth/login", cfg.AuthHandler.Login)
		r.Get("/currencies", cfg.RateHandler.ListCurrencies)
		r.Get("/rates/convert", cfg.RateHandler.Convert)
		r.Get("/rates/timeseries", cfg.RateHandler.Timeseries)

		// Authenticated
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", cfg.AuthHandler.Me)

			r.Route("/transfers", func(r chi.Router) {
				r.Post("/", cfg.TransferHandler.Create)
				r.Get("/{reference}", cfg.TransferHandler.GetByReference)
			})

			r.Post("/trades", cfg.TradeHandler.Create)

			r.Route("/portfolio", func(r chi.Router) {
				r.Get("/balances", cfg.PortfolioHandler.GetBalances)
				r.Get("/entries", cfg.PortfolioHandler.ListEntries)
			})
		})

		// Admin
		r.Group(func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)

			r.Put("/admin/rates", cfg.AdminHandler.UpsertRate)
			r.Get("/admin/users", cfg.AdminHandler.ListUsers)
			r.Patch("/admin/users/{id}", cfg.AdminHandler.UpdateUser)
			r.Get("/admin/consistency", cfg.AdminHandler.CheckConsistency)
		})
	})

	return r
}
