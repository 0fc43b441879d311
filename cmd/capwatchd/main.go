package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/msi-products/capwatch/internal/api"
	"github.com/msi-products/capwatch/internal/config"
	"github.com/msi-products/capwatch/internal/crm"
	"github.com/msi-products/capwatch/internal/export"
	"github.com/msi-products/capwatch/internal/ingest"
	"github.com/msi-products/capwatch/internal/logger"
	"github.com/msi-products/capwatch/internal/middleware"
	"github.com/msi-products/capwatch/internal/sched"
	"github.com/msi-products/capwatch/internal/store"
	"github.com/msi-products/capwatch/internal/summary"
	"github.com/msi-products/capwatch/internal/views"
)

func main() {
	// Load and validate configuration
	cfg := config.Load()

	// Initialize logger
	if err := logger.Init(logger.Config{
		Level:  cfg.LogLevel,
		Output: "stdout",
		Pretty: cfg.Env == "development",
	}); err != nil {
		panic(err)
	}

	log := logger.Get()
	log.Info().Msg("Starting capwatch...")

	// Initialize the Redis-backed store
	st, err := store.NewRedisStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize store")
	}
	defer func() {
		log.Info().Msg("Closing store...")
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	crmClient := crm.NewClient(cfg.CRMApiURL, cfg.CRMBaseURL, cfg.HTTPTimeout)
	summarizer := summary.NewSummarizer(cfg.AIApiURL, cfg.AIModel, cfg.AITemperature,
		time.Duration(cfg.AITimeout)*time.Second)

	service, err := ingest.NewService(ctx, cfg, st, crmClient, summarizer)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize ingest service")
	}

	// Badge recomputation on every collection change
	st.Subscribe(func(key string) {
		if key != store.KeyEntries {
			return
		}
		go func() {
			entries, err := st.GetEntries(context.Background())
			if err != nil {
				log.Error().Err(err).Msg("Failed to recompute badge")
				return
			}
			count := views.Badge(entries)
			log.Info().Int("count", count).Str("text", views.BadgeText(count)).Msg("Badge updated")
		}()
	})

	// Optional collection archive to R2
	if cfg.ArchiveEnabled() {
		uploader, err := export.NewUploader(ctx, cfg, st)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize archive uploader")
		}
		uploader.Start(ctx)
		log.Info().Str("bucket", cfg.R2Bucket).Msg("Archive uploads enabled")
	}

	scheduler := sched.New(st, service)
	go scheduler.Start(ctx)
	// Initial cycle on startup
	scheduler.Trigger()

	// Create Fiber app with custom config
	app := fiber.New(fiber.Config{
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  120 * time.Second,
		ErrorHandler: middleware.ErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	handlers := api.NewHandlers(cfg, st, service, scheduler)
	api.SetupRoutes(app, handlers)

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting server")
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
