package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/ligth279/xilov5-overhual/internal/config"
	"github.com/ligth279/xilov5-overhual/internal/handler"
	"github.com/ligth279/xilov5-overhual/internal/middleware"
	"github.com/ligth279/xilov5-overhual/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	LessonHandler     *handler.LessonHandler
	EvaluationHandler *handler.EvaluationHandler
	ProgressHandler   *handler.ProgressHandler
	ChatHandler       *handler.ChatHandler
	StatusHandler     *handler.StatusHandler
	JWTMiddleware     fiber.Handler
	HealthProbes      []handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes...))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	if deps.StatusHandler != nil {
		deps.StatusHandler.Register(api)
	}

	// Routes that reach the model share a per student budget.
	modelLimit := middleware.RateLimit("model", cfg.RateLimitMax, time.Minute)

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	lessons := api.Group("/lessons")
	if deps.EvaluationHandler != nil {
		// Routes that write per student attempt state resolve the caller first.
		lessons.Use("/evaluate-answer", jwtMiddleware)
		lessons.Use("/reset-attempts", jwtMiddleware)
		lessons.Use("/evaluate-answer", modelLimit)
		lessons.Use("/doubt-chat", modelLimit)
		deps.EvaluationHandler.Register(lessons)
	}
	if deps.LessonHandler != nil {
		deps.LessonHandler.Register(lessons)
	}

	if deps.ChatHandler != nil {
		api.Use("/chat", modelLimit)
		deps.ChatHandler.Register(api)
	}

	if deps.ProgressHandler != nil {
		progress := api.Group("/progress", jwtMiddleware)
		deps.ProgressHandler.Register(progress)
	}
}
