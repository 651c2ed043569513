// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config holds application configuration
type Config struct {
	DataDir            string // Directory holding calendar.db, always absolute
	AnnouncedDatesFile string // Optional YAML file of announced closures, consulted before the built-in table
	LogLevel           string
	LogPretty          bool
	Port               int
	DevMode            bool
	PrewarmSchedule    string // Cron expression, seconds optional, for the calendar prewarm job; empty disables it
	PrewarmYearsAhead  int    // Years after the current one that the prewarm job materializes
	CheckDBSchedule    string // Cron expression for the database integrity check and WAL checkpoint; empty disables it
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("CALENDAR_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		AnnouncedDatesFile: getEnv("ANNOUNCED_DATES_FILE", ""),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogPretty:          getEnvAsBool("LOG_PRETTY", false),
		Port:               getEnvAsInt("PORT", 8080),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		PrewarmSchedule:    getEnv("PREWARM_SCHEDULE", "0 0 3 * * *"), // 03:00 every day
		PrewarmYearsAhead:  getEnvAsInt("PREWARM_YEARS_AHEAD", 1),
		CheckDBSchedule:    getEnv("CHECK_DB_SCHEDULE", "0 30 * * * *"), // half past every hour
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration values
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
	}
	if c.PrewarmYearsAhead < 0 || c.PrewarmYearsAhead > 10 {
		return fmt.Errorf("PREWARM_YEARS_AHEAD must be between 0 and 10, got %d", c.PrewarmYearsAhead)
	}
	if err := validateSchedule("PREWARM_SCHEDULE", c.PrewarmSchedule); err != nil {
		return err
	}
	if err := validateSchedule("CHECK_DB_SCHEDULE", c.CheckDBSchedule); err != nil {
		return err
	}
	if c.AnnouncedDatesFile != "" {
		if _, err := os.Stat(c.AnnouncedDatesFile); err != nil {
			return fmt.Errorf("ANNOUNCED_DATES_FILE: %w", err)
		}
	}
	return nil
}

var scheduleParser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func validateSchedule(key, expr string) error {
	if expr == "" {
		return nil
	}
	if _, err := scheduleParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, expr, err)
	}
	return nil
}

// DatabasePath returns the location of the calendar database
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "calendar.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
