package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/chatops-kit/triage-service/internal/api/http/handlers"
	"github.com/chatops-kit/triage-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Events         *handlers.EventsHandler
	Tickets        *handlers.TicketsHandler
	Escalations    *handlers.EscalationsHandler
	Ratings        *handlers.RatingsHandler
	Stats          *handlers.StatsHandler
	Taxonomy       *handlers.TaxonomyHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. The event webhook stays public because
// the platform authenticates deliveries itself; everything under /api/v1
// requires a service token.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/events", cfg.Events.Receive)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	reader := api.Group("", auth.RequireRole(auth.RoleReader))
	reader.Get("/tickets", cfg.Tickets.ListTickets)
	reader.Get("/tickets/:id", cfg.Tickets.GetTicket)
	reader.Get("/tickets/:id/history", cfg.Tickets.GetTicketHistory)
	reader.Get("/tickets/:id/rating", cfg.Ratings.GetRating)
	reader.Get("/escalations", cfg.Escalations.ListEscalations)
	reader.Get("/stats", cfg.Stats.Report)
	reader.Get("/taxonomy", cfg.Taxonomy.List)

	operator := api.Group("", auth.RequireRole(auth.RoleOperator))
	operator.Patch("/tickets/:id", cfg.Tickets.UpdateTicket)
	operator.Post("/tickets/:id/rating", cfg.Ratings.CaptureRating)
	operator.Post("/escalations", cfg.Escalations.CreateEscalation)
	operator.Post("/escalations/:id/resolve", cfg.Escalations.ResolveEscalation)
}
