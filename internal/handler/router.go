package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dhowcruise/booking-platform/internal/middleware"
	"github.com/dhowcruise/booking-platform/internal/ws"
	"github.com/dhowcruise/booking-platform/pkg/logger"
)

// RouterConfig carries the handlers and HTTP settings of the API.
type RouterConfig struct {
	Health    *HealthHandler
	Chat      *ChatHandler
	Agents    *AgentHandler
	Bookings  *BookingHandler
	Catalog   *CatalogHandler
	Content   *ContentHandler
	Functions *FunctionHandler

	Hub    *ws.Hub
	Tokens *middleware.TokenValidator

	AllowedOrigins []string
	RateRequests   int
	RateWindow     time.Duration

	Logger *logger.Logger
}

// NewRouter builds the HTTP routes.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", cfg.Health.Health)
	r.Get("/ready", cfg.Health.Ready)

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/og", cfg.Functions.Preview)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateRequests, cfg.RateWindow))
			r.Use(middleware.Visitor)

			r.Get("/tours", cfg.Catalog.PublicTours)
			r.Get("/tours/{slug}", cfg.Catalog.TourBySlug)
			r.Get("/reviews", cfg.Catalog.PublicReviews)
			r.Post("/reviews", cfg.Catalog.SubmitReview)

			r.Post("/inquiries", cfg.Content.CreateInquiry)
			r.Get("/settings", cfg.Content.PublicSettings)
			r.Post("/discounts/validate", cfg.Content.ValidateDiscount)
			r.Post("/analytics/pageview", cfg.Content.RecordPageView)

			r.Post("/bookings", cfg.Bookings.Create)

			r.Route("/chat", func(r chi.Router) {
				r.Get("/agents/online", cfg.Chat.AgentsOnline)
				r.Post("/conversations", cfg.Chat.Start)
				r.Route("/conversations/{id}", func(r chi.Router) {
					r.Get("/", cfg.Chat.Get)
					r.Get("/messages", cfg.Chat.Messages)
					r.Post("/messages", cfg.Chat.Send)
					r.Get("/stream", cfg.Chat.Stream)
					r.Post("/human", cfg.Chat.RequestHuman)
					r.Post("/lead", cfg.Chat.Lead)
				})
			})
		})

		r.Route("/admin", func(r chi.Router) {
			// Browsers cannot set headers on a websocket handshake.
			r.Get("/ws", ws.Serve(cfg.Hub, cfg.Tokens))

			r.Group(func(r chi.Router) {
				r.Use(middleware.Auth(cfg.Tokens))
				r.Use(middleware.UserRateLimit(cfg.RateRequests*5, cfg.RateWindow))

				r.Route("/conversations", func(r chi.Router) {
					r.Get("/", cfg.Agents.List)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.Agents.Get)
						r.Get("/messages", cfg.Agents.Messages)
						r.Post("/messages", cfg.Agents.Send)
						r.Post("/join", cfg.Agents.Join)
						r.Post("/leave", cfg.Agents.Leave)
						r.Post("/close", cfg.Agents.Close)
					})
				})

				r.Route("/presence", func(r chi.Router) {
					r.Get("/", cfg.Agents.Presence)
					r.Put("/", cfg.Agents.SetPresence)
					r.Post("/heartbeat", cfg.Agents.Heartbeat)
				})

				r.Route("/bookings", func(r chi.Router) {
					r.Get("/", cfg.Bookings.List)
					r.Get("/calendar", cfg.Bookings.Calendar)
					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", cfg.Bookings.Get)
						r.Delete("/", cfg.Bookings.Delete)
						r.Put("/date", cfg.Bookings.Reschedule)
						r.Put("/status", cfg.Bookings.UpdateStatus)
					})
				})
				r.Get("/customers", cfg.Bookings.Customers)

				r.Route("/tours", func(r chi.Router) {
					r.Get("/", cfg.Catalog.AdminTours)
					r.Post("/", cfg.Catalog.CreateTour)
					r.Get("/{id}", cfg.Catalog.GetTour)
					r.Put("/{id}", cfg.Catalog.UpdateTour)
					r.Delete("/{id}", cfg.Catalog.DeleteTour)
				})

				r.Route("/discounts", func(r chi.Router) {
					r.Get("/", cfg.Content.ListDiscounts)
					r.Post("/", cfg.Content.CreateDiscount)
					r.Get("/{id}", cfg.Content.GetDiscount)
					r.Put("/{id}", cfg.Content.UpdateDiscount)
					r.Delete("/{id}", cfg.Content.DeleteDiscount)
					r.Post("/{id}/toggle", cfg.Content.ToggleDiscount)
				})

				r.Route("/reviews", func(r chi.Router) {
					r.Get("/", cfg.Catalog.AdminReviews)
					r.Put("/{id}/published", cfg.Catalog.PublishReview)
					r.Delete("/{id}", cfg.Catalog.DeleteReview)
				})

				r.Route("/inquiries", func(r chi.Router) {
					r.Get("/", cfg.Content.ListInquiries)
					r.Put("/{id}/status", cfg.Content.UpdateInquiryStatus)
					r.Delete("/{id}", cfg.Content.DeleteInquiry)
				})

				r.Route("/settings", func(r chi.Router) {
					r.Get("/", cfg.Content.ListSettings)
					r.Put("/{key}", cfg.Content.PutSetting)
					r.Delete("/{key}", cfg.Content.DeleteSetting)
				})

				r.Get("/analytics", cfg.Content.Analytics)

				r.Post("/functions/notify-agent-request", cfg.Functions.NotifyAgentRequest)
			})
		})
	})

	return r
}
