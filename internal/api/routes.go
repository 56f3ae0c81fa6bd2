package api

import (
	"time"

	"github.com/bilgisen/newsroom/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// NewApp creates the Fiber app with error handling and request logging.
// timeout bounds reads and writes; a manual pipeline run may take minutes.
func NewApp(h *Handlers, timeout time.Duration) *fiber.App {
	app := fiber.New(fiber.Config{
		ReadTimeout:           timeout,
		WriteTimeout:          timeout,
		IdleTimeout:           120 * time.Second,
		ErrorHandler:          middleware.ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	SetupRoutes(app, h)
	return app
}

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers) {
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)
	api.Get("/metrics", h.Metrics)
	api.Get("/schedule", h.GetSchedule)
	api.Post("/pipeline/run", middleware.ValidateBody[runRequest](), h.RunPipeline)
	api.Delete("/cache/processed", h.ClearProcessedCache)

	news := api.Group("/news")
	{
		news.Get("", h.ListNews)
		news.Get("/:id", h.GetNews)
		news.Patch("/:id", middleware.ValidateBody[updateRequest](), h.UpdateNews)
		news.Post("/:id/approve", h.ApproveNews)
		news.Post("/:id/reject", h.RejectNews)
		news.Delete("/:id", h.DeleteNews)
	}

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
