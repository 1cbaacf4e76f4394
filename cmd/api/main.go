package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata" // DEAL_TIMEZONE and report zones must resolve in minimal images

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/deals-backend/internal/config"
	"github.com/fairyhunter13/deals-backend/internal/dealcode"
	"github.com/fairyhunter13/deals-backend/internal/handler"
	"github.com/fairyhunter13/deals-backend/internal/metrics"
	"github.com/fairyhunter13/deals-backend/internal/repository"
	"github.com/fairyhunter13/deals-backend/internal/service"
	"github.com/fairyhunter13/deals-backend/internal/validator"
	"github.com/fairyhunter13/deals-backend/pkg/database"
	"github.com/fairyhunter13/deals-backend/pkg/migration"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	initLogger(cfg)

	loc, err := time.LoadLocation(cfg.Deal.TimeZone)
	if err != nil {
		log.Fatal().Err(err).Str("time_zone", cfg.Deal.TimeZone).Msg("invalid DEAL_TIMEZONE")
	}

	ctx := context.Background()

	if cfg.DB.MigrateOnStart {
		if err := migration.Up(cfg.DB.URL()); err != nil {
			log.Fatal().Err(err).Msg("failed to apply migrations")
		}
	}

	pool, err := database.NewPool(ctx, cfg.DB.DSN(), database.DefaultRetryOptions())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	app := fiber.New(fiber.Config{
		AppName:      "Deals Backend",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    4 * 1024 * 1024, // report requests carry analytics rows
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())

	validate := validator.New()
	m := metrics.New()

	dealCodeRepo := repository.NewDealCodeRepository(pool)
	dealRepo := repository.NewDealRepository(pool)
	generator := dealcode.NewGenerator(dealCodeRepo, cfg.Deal.CodeMaxAttempts)
	dealService := service.NewDealService(dealRepo, generator, loc, m)
	reportService := service.NewReportService(m)

	dealHandler := handler.NewDealHandler(dealService, validate)
	reportHandler := handler.NewReportHandler(reportService, validate)
	healthHandler := handler.NewHealthHandler(pool, m.Registry)

	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", healthHandler.Metrics())

	api := app.Group("/api")
	api.Post("/deals", dealHandler.CreateDeal)
	api.Get("/deals/:code", dealHandler.GetDeal)
	api.Post("/reports/display-dates", reportHandler.FormatReport)

	go func() {
		log.Info().
			Str("port", cfg.Server.Port).
			Str("deal_timezone", loc.String()).
			Int("deal_code_max_attempts", cfg.Deal.CodeMaxAttempts).
			Msg("starting server")
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Int("timeout_seconds", cfg.Server.ShutdownTimeout).Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(
		context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Second,
	)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}

	// The pool outlives the server so in-flight requests can finish.
	pool.Close()
	log.Info().Msg("server stopped")
}

// initLogger configures zerolog based on the application configuration.
func initLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Log.Pretty {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Logger()
		return
	}
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}
