package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/permit-lifecycle/internal/api/http/handlers"
	"github.com/spec-kit/permit-lifecycle/internal/auth"
	"github.com/spec-kit/permit-lifecycle/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Entities       *handlers.EntitiesHandler
	Events         *handlers.EventsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/metrics", cfg.Health.Metrics)

	entities := app.Group("/entities", cfg.AuthMiddleware.Handle, auth.RequireAnyRole())
	entities.Post("", auth.RequireRole(domain.RoleIntake), cfg.Entities.Submit)
	entities.Get("/:id", cfg.Entities.Get)
	entities.Get("/:id/history", cfg.Entities.History)
	entities.Post("/:id/transitions", auth.RequireRole(domain.RoleOfficer, domain.RoleSupervisor), cfg.Entities.Transition)
	entities.Post("/:id/priority", auth.RequireRole(domain.RoleSupervisor), cfg.Entities.ChangePriority)

	if cfg.Events != nil {
		app.Get("/events/stream", cfg.AuthMiddleware.Handle, auth.RequireAnyRole(), cfg.Events.Stream)
	}
}
