package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/4sighteducation/vespa-activities-api/internal/config"
	"github.com/4sighteducation/vespa-activities-api/internal/handler"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	StaffDashboardHandler *handler.StaffDashboardHandler
	AssignmentHandler     *handler.AssignmentHandler
	JWTMiddleware         fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	staff := app.Group("/api/v2/staff", jwtMiddleware)
	if deps.StaffDashboardHandler != nil {
		deps.StaffDashboardHandler.Register(staff)
	}
	if deps.AssignmentHandler != nil {
		deps.AssignmentHandler.Register(staff)
	}
}
