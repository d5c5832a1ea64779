/**
 * @description
 * This file sets up the HTTP router for the points-service. It defines the API
 * endpoints, associates them with their handlers and applies the middleware for
 * each audience: users, admins and internal services.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: Router and standard middleware.
 * - github.com/go-chi/cors: CORS handling for browser clients.
 * - github.com/prometheus/client_golang: The /metrics endpoint.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries the credentials the router's middleware checks.
type RouterConfig struct {
	Auth           AuthConfig
	InternalAPIKey string
}

// NewRouter creates and returns the router for the points service.
func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Internal-API-Key"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/internal", func(r chi.Router) {
		r.Use(InternalAuthMiddleware(cfg.InternalAPIKey))
		r.Post("/accounts", h.RegisterAccountInternalHandler)
		r.Get("/accounts/{userID}/balance", h.GetBalanceInternalHandler)
	})

	r.Group(func(r chi.Router) {
		r.Use(JWTAuthMiddleware(cfg.Auth))

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminOnly)
			r.Post("/accounts/{id}/adjust", h.AdminAdjustHandler)
			r.Delete("/accounts/{id}", h.AdminDeleteAccountHandler)
			r.Get("/wallet", h.AdminGetWalletHandler)
			r.Post("/wallet/fund", h.AdminFundWalletHandler)
			r.Post("/wallet/reset", h.AdminResetWalletHandler)
			r.Post("/leaderboard/reward", h.AdminRewardLeaderboardHandler)
			r.Put("/promotion-settings", h.AdminUpdatePromotionSettingsHandler)
			r.Post("/tasks/{id}/close", h.AdminCloseTaskHandler)
		})

		// Routes that need no account of their own.
		r.Get("/leaderboard", h.LeaderboardHandler)
		r.Get("/tasks", h.ListTasksHandler)
		r.Get("/tasks/{id}", h.GetTaskHandler)
		r.Get("/promotion-settings", h.GetPromotionSettingsHandler)

		r.Group(func(r chi.Router) {
			r.Use(AccountMiddleware(h.service))

			r.Get("/wallet", h.GetWalletHandler)
			r.Get("/wallet/history", h.GetHistoryHandler)
			r.Post("/wallet/transfer", h.TransferHandler)
			r.Post("/wallet/redeem", h.RedeemHandler)
			r.Post("/daily-login/claim", h.ClaimDailyLoginHandler)

			r.Post("/tasks", h.CreateTaskHandler)
			r.Post("/tasks/{id}/complete", h.CompleteTaskHandler)
			r.Post("/tasks/{id}/promote", h.PromoteTaskHandler)
			r.Post("/tasks/{id}/close", h.CloseTaskHandler)
		})
	})

	return r
}
