package api

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/export"
	"github.com/msi-products/capwatch/internal/ingest"
	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/sched"
	"github.com/msi-products/capwatch/internal/store"
	"github.com/msi-products/capwatch/internal/views"
)

type Handlers struct {
	config    *config.Config
	store     store.Store
	service   *ingest.Service
	scheduler *sched.Scheduler
	validate  *validator.Validate
}

func NewHandlers(cfg *config.Config, st store.Store, service *ingest.Service, scheduler *sched.Scheduler) *Handlers {
	return &Handlers{
		config:    cfg,
		store:     st,
		service:   service,
		scheduler: scheduler,
		validate:  validator.New(),
	}
}

// HealthCheck handles GET /api/v1/health
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": "1.0.0",
		"time":    time.Now().Format(time.RFC3339),
	})
}

// GetEntries handles GET /api/v1/entries?view=recent|saved|history&q=
func (h *Handlers) GetEntries(c *fiber.Ctx) error {
	view := c.Query("view", "recent")
	query := c.Query("q", "")

	entries, err := h.store.GetEntries(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading entries")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read entries",
		})
	}

	switch view {
	case "recent":
		threads := views.Recent(entries, query)
		return c.JSON(fiber.Map{
			"view":    view,
			"threads": threads,
			"total":   len(threads),
		})
	case "saved":
		saved := views.Saved(entries, query)
		return c.JSON(fiber.Map{
			"view":    view,
			"entries": saved,
			"total":   len(saved),
		})
	case "history":
		history := views.History(entries, query)
		return c.JSON(fiber.Map{
			"view":    view,
			"entries": history,
			"total":   len(history),
		})
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unknown view: " + view,
		})
	}
}

// Refresh handles POST /api/v1/refresh, the manual "refresh now" trigger. The
// cycle itself runs on the scheduler goroutine.
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	h.scheduler.Trigger()
	return c.JSON(fiber.Map{"ok": true})
}

// PatchEntry handles PATCH /api/v1/entries/:guid
func (h *Handlers) PatchEntry(c *fiber.Ctx) error {
	guid := c.Params("guid")
	if guid == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Entry guid is required",
		})
	}

	var patch ingest.FlagPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	if err := h.service.SetFlags(c.Context(), guid, patch); err != nil {
		logger.Get().Error().Err(err).Str("guid", guid).Msg("Error updating entry flags")
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Entry not found",
		})
	}

	return c.JSON(fiber.Map{"ok": true})
}

// MarkAllRead handles POST /api/v1/entries/read-all
func (h *Handlers) MarkAllRead(c *fiber.Ctx) error {
	if err := h.service.MarkRecentRead(c.Context()); err != nil {
		logger.Get().Error().Err(err).Msg("Error marking recent entries read")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to mark entries read",
		})
	}
	return c.JSON(fiber.Map{"ok": true})
}

// GetBadge handles GET /api/v1/badge
func (h *Handlers) GetBadge(c *fiber.Ctx) error {
	entries, err := h.store.GetEntries(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading entries for badge")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to compute badge",
		})
	}

	count := views.Badge(entries)
	return c.JSON(fiber.Map{
		"count": count,
		"text":  views.BadgeText(count),
	})
}

// OpenEntry handles GET /api/v1/entries/:guid/open, the notification
// click-through resolution.
func (h *Handlers) OpenEntry(c *fiber.Ctx) error {
	link, err := h.service.Resolve(c.Context(), c.Params("guid"))
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error resolving entry link")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve entry",
		})
	}
	return c.JSON(fiber.Map{"link": link})
}

// GetNotifications handles GET /api/v1/notifications
func (h *Handlers) GetNotifications(c *fiber.Ctx) error {
	notifications, err := h.store.Notifications(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading notifications")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read notifications",
		})
	}
	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total":         len(notifications),
	})
}

// GetSettings handles GET /api/v1/settings
func (h *Handlers) GetSettings(c *fiber.Ctx) error {
	settings, err := h.store.GetSettings(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read settings",
		})
	}
	return c.JSON(settings)
}

type settingsRequest struct {
	Feeds                []string `json:"feeds"`
	Interval             int      `json:"interval" validate:"omitempty,min=1,max=1440"`
	CRMToken             string   `json:"crmToken"`
	OpenAIKey            string   `json:"openaiKey"`
	NotificationsEnabled bool     `json:"notificationsEnabled"`
	SoundEnabled         bool     `json:"soundEnabled"`
	SummariesEnabled     bool     `json:"enableSummaries"`
	SnoozeMinutes        int      `json:"snoozeMinutes" validate:"omitempty,min=0,max=1440"`
	Theme                string   `json:"theme" validate:"omitempty,oneof=light dark"`
	LastTab              string   `json:"lastTab" validate:"omitempty,oneof=recent saved history"`
}

// PutSettings handles PUT /api/v1/settings. A positive snoozeMinutes value is
// converted to the absolute snoozeUntil timestamp; zero clears the snooze.
func (h *Handlers) PutSettings(c *fiber.Ctx) error {
	var req settingsRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body: " + err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		fields := make(map[string]string)
		for _, fieldErr := range err.(validator.ValidationErrors) {
			fields[fieldErr.Field()] = fieldErr.Tag()
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":  "Validation failed",
			"fields": fields,
		})
	}

	settings, err := h.store.GetSettings(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read settings",
		})
	}

	settings.Feeds = req.Feeds
	if req.Interval > 0 {
		settings.Interval = req.Interval
	}
	settings.CRMToken = req.CRMToken
	settings.OpenAIKey = req.OpenAIKey
	settings.NotificationsEnabled = req.NotificationsEnabled
	settings.SoundEnabled = req.SoundEnabled
	settings.SummariesEnabled = req.SummariesEnabled
	if req.Theme != "" {
		settings.Theme = req.Theme
	}
	if req.LastTab != "" {
		settings.LastTab = req.LastTab
	}
	if req.SnoozeMinutes > 0 {
		settings.SnoozeUntil = time.Now().Add(time.Duration(req.SnoozeMinutes) * time.Minute).UnixMilli()
	} else {
		settings.SnoozeUntil = 0
	}

	if err := h.store.SetSettings(c.Context(), settings); err != nil {
		logger.Get().Error().Err(err).Msg("Error writing settings")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save settings",
		})
	}

	return c.JSON(settings)
}

// ExportJSON handles GET /api/v1/export.json
func (h *Handlers) ExportJSON(c *fiber.Ctx) error {
	entries, err := h.store.GetEntries(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading entries for export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export entries",
		})
	}

	data, err := export.RenderJSON(entries)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error rendering JSON export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export entries",
		})
	}

	c.Set(fiber.HeaderContentType, "application/json")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="crm_feed_export.json"`)
	return c.Send(data)
}

// ExportCSV handles GET /api/v1/export.csv
func (h *Handlers) ExportCSV(c *fiber.Ctx) error {
	entries, err := h.store.GetEntries(c.Context())
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error reading entries for export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export entries",
		})
	}

	data, err := export.RenderCSV(entries)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Error rendering CSV export")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to export entries",
		})
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="crm_feed_export.csv"`)
	return c.Send(data)
}
