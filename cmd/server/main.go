// Package main is the entry point for the market calendar service.
// It classifies dates for the configured exchanges, keeps computed years
// in a SQLite cache and serves the calendars over HTTP.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketcal/internal/config"
	"github.com/aristath/marketcal/internal/database"
	"github.com/aristath/marketcal/internal/modules/market_hours"
	"github.com/aristath/marketcal/internal/scheduler"
	"github.com/aristath/marketcal/internal/server"
	"github.com/aristath/marketcal/pkg/logger"
)

// main wires the service together:
// 1. Loads configuration from environment variables (.env file)
// 2. Initializes logging
// 3. Opens and migrates the calendar database
// 4. Builds the announced-dates source and the market registry
// 5. Schedules the prewarm job and runs it once at startup
// 6. Starts the HTTP server and waits for a shutdown signal
func main() {
	cfg, err := config.Load()
	if err != nil {
		// Use fallback logger if config fails
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.LogPretty,
	})
	logger.SetGlobalLogger(log)

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting market calendar service")

	// The calendar database only holds years that can be recomputed
	calendarDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileCache,
		Name:    "calendar",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open calendar database")
	}
	defer calendarDB.Close()

	if err := calendarDB.Migrate(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate calendar database")
	}

	source, err := buildSource(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load announced dates")
	}

	service, err := market_hours.NewMarketHoursService(
		market_hours.DefaultMarkets(),
		market_hours.NewRepository(calendarDB.Conn()),
		source,
		log,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build market calendars")
	}

	sched := scheduler.New(log, 5*time.Minute)
	if cfg.PrewarmSchedule != "" {
		prewarm := market_hours.NewPrewarmJob(service, cfg.PrewarmYearsAhead, log)
		if err := sched.AddJob(cfg.PrewarmSchedule, prewarm); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule prewarm job")
		}

		// Warm the cache right away instead of waiting for the first tick
		go func() {
			if err := sched.RunNow(prewarm); err != nil {
				log.Error().Err(err).Msg("Initial prewarm failed")
			}
		}()
	}
	if cfg.CheckDBSchedule != "" {
		if err := sched.AddJob(cfg.CheckDBSchedule, scheduler.NewCheckDatabaseJob(calendarDB, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule database check")
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:        log,
		CalendarDB: calendarDB,
		Service:    service,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()

	log.Info().Msg("Server stopped")
}

// buildSource returns the built-in announced dates, preceded by the
// configured file when there is one
func buildSource(cfg *config.Config, log zerolog.Logger) (market_hours.DataSource, error) {
	builtin, err := market_hours.BuiltinSource()
	if err != nil {
		return nil, err
	}
	if cfg.AnnouncedDatesFile == "" {
		return builtin, nil
	}

	file, err := market_hours.NewFileSource(cfg.AnnouncedDatesFile)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", file.Path()).Ints("years", file.Years()).Msg("Loaded announced dates file")
	return market_hours.ChainSource{file, builtin}, nil
}
