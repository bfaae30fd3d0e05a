package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bodylens/bodylens-go-api/internal/config"
	"github.com/bodylens/bodylens-go-api/internal/handler"
	"github.com/bodylens/bodylens-go-api/internal/middleware"
	"github.com/bodylens/bodylens-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	EvaluationHandler *handler.EvaluationHandler
	WindowHandler     *handler.WindowHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	if deps.EvaluationHandler != nil {
		evaluation := api.Group("", jwtMiddleware, middleware.RateLimit("evaluation", 60, time.Minute))
		deps.EvaluationHandler.Register(evaluation)
	}

	if deps.WindowHandler != nil {
		window := api.Group("/window", jwtMiddleware)
		deps.WindowHandler.Register(window)
	}
}
