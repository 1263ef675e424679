package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/direct-line/internal/api/http/handlers"
	"github.com/spec-kit/direct-line/internal/auth"
	"github.com/spec-kit/direct-line/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Staff          *handlers.StaffHandler
	AuthMiddleware *auth.AuthMiddleware
	// RequireStaff puts status changes behind a staff bearer token.
	RequireStaff bool
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	authGroup := app.Group("/auth")
	authGroup.Post("/staff/login", cfg.Staff.Login)

	api := app.Group("/api")
	api.Get("/", cfg.Tickets.Root)
	api.Get("/categories", cfg.Tickets.Categories)
	api.Get("/metrics", cfg.Tickets.Metrics)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Post("/tickets", cfg.Tickets.CreateTicket)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/tickets/:id/history", cfg.Tickets.History)

	statusHandlers := []fiber.Handler{}
	if cfg.RequireStaff {
		statusHandlers = append(statusHandlers,
			cfg.AuthMiddleware.Handle,
			auth.RequireStaffRole(domain.StaffRoleDispatcher, domain.StaffRoleAdmin),
		)
	}
	statusHandlers = append(statusHandlers, cfg.Tickets.UpdateStatus)
	api.Patch("/tickets/:id/status", statusHandlers...)
}
