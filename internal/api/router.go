package api

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sawanori/nonturn-chatdesk/internal/api/middleware"
	"github.com/sawanori/nonturn-chatdesk/internal/config"
	"github.com/sawanori/nonturn-chatdesk/internal/handlers"
	"github.com/sawanori/nonturn-chatdesk/internal/store"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, cfg *config.Config, h *handlers.Handler, db store.DataStore, redisStore *store.RedisStore) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(16 * 1024)) // 16KB max body
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting (requires Redis; dev runs without it)
	if redisStore != nil {
		limiter := middleware.NewRateLimiter(redisStore.Client(), logger, middleware.RateLimiterConfig{
			Whitelist: cfg.RateLimitWhitelist,
		})
		r.Use(limiter.Middleware)
	}

	// CORS - cookie-authenticated browser clients from the marketing site
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.CSRFHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	adminAuth := middleware.NewAdminAuth(db)

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/", h.Root)
	r.Get("/health", h.Health)

	// Visitor chat (session cookie identity, no auth)
	r.Post("/chat/start", h.StartChat)
	r.Post("/chat/send", h.SendMessage)
	r.Get("/chat/history", h.History)
	r.Post("/chat/update-contact", h.UpdateContact)

	// Contact form (double-submit CSRF)
	r.Get("/contact/token", h.CSRFToken)
	r.Group(func(r chi.Router) {
		r.Use(middleware.CSRF([]byte(cfg.CSRFSecret), logger))
		r.Post("/contact", h.Contact)
	})

	// LINE platform webhook (HMAC-verified, no cookies)
	r.Post("/line/webhook", h.LINEWebhook)

	// Admin auth lifecycle
	r.Post("/admin/auth/login", h.Login)
	r.Post("/admin/auth/logout", h.Logout)

	// Authenticated admin routes
	r.Group(func(r chi.Router) {
		r.Use(adminAuth.RequireAdmin)

		r.Get("/admin/auth/verify", h.Verify)
		r.Get("/admin/conversations", h.ListConversations)
		r.Get("/admin/conversations/{id}/messages", h.GetThread)
		r.Post("/admin/conversations/{id}/status", h.SetStatus)
		r.Post("/admin/reply", h.Reply)
		r.Get("/admin/contact-submissions", h.ListContactSubmissions)
	})

	return r
}
