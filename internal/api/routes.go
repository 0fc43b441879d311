package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/msi-products/capwatch/internal/middleware"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers) {
	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	entries := api.Group("/entries")
	{
		entries.Get("", h.GetEntries)
		entries.Post("/read-all", h.MarkAllRead)
		entries.Patch("/:guid", h.PatchEntry)
		entries.Get("/:guid/open", h.OpenEntry)
	}

	api.Post("/refresh", h.Refresh)
	api.Get("/badge", h.GetBadge)
	api.Get("/notifications", h.GetNotifications)

	api.Get("/settings", h.GetSettings)
	if h.config.AdminAPIKey != "" {
		api.Put("/settings", middleware.AdminOnly(h.config.AdminAPIKey), h.PutSettings)
	} else {
		api.Put("/settings", h.PutSettings)
	}

	api.Get("/export.json", h.ExportJSON)
	api.Get("/export.csv", h.ExportCSV)

	// 404 Handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
