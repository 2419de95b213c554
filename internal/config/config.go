package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type Config struct {
	Database  DatabaseConfig
	JWT       JWTConfig
	App       AppConfig
	CORS      CORSConfig
	TimeTrack TimeTrackConfig
	Cron      CronConfig
}

type DatabaseConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AppConfig holds application configuration
type AppConfig struct {
	Name     string
	Version  string
	Port     int
	Env      string
	LogLevel string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// TimeTrackConfig tunes the reconciliation engine
type TimeTrackConfig struct {
	TimeZone      string
	MaxBatchDays  int
	MaxPeriodDays int
	StaleAfter    time.Duration
}

type CronConfig struct {
	Enabled  bool
	Interval time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Driver:   strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverPostgres)),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "cmlabs-timetrack"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Name:     getEnv("APP_NAME", "timetrack-cmlabs"),
		Version:  getEnv("APP_VERSION", "v1.0.0"),
		Port:     appPort,
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	config.CORS = CORSConfig{
		AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	// Time tracking configuration
	maxBatchDays, err := strconv.Atoi(getEnv("TIMETRACK_MAX_BATCH_DAYS", "62"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMETRACK_MAX_BATCH_DAYS: %w", err)
	}
	maxPeriodDays, err := strconv.Atoi(getEnv("TIMETRACK_MAX_PERIOD_DAYS", "366"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMETRACK_MAX_PERIOD_DAYS: %w", err)
	}
	staleAfter, err := time.ParseDuration(getEnv("TIMETRACK_STALE_AFTER", "2h"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMETRACK_STALE_AFTER: %w", err)
	}

	config.TimeTrack = TimeTrackConfig{
		TimeZone:      getEnv("TIMETRACK_TIMEZONE", "Europe/Madrid"),
		MaxBatchDays:  maxBatchDays,
		MaxPeriodDays: maxPeriodDays,
		StaleAfter:    staleAfter,
	}

	// Cron configuration
	cronEnabled, err := strconv.ParseBool(getEnv("CRON_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_ENABLED: %w", err)
	}
	cronInterval, err := time.ParseDuration(getEnv("CRON_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid CRON_INTERVAL: %w", err)
	}

	config.Cron = CronConfig{
		Enabled:  cronEnabled,
		Interval: cronInterval,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Database.Driver {
	case StorageDriverPostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
	case StorageDriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q",
			StorageDriverPostgres, StorageDriverMemory, c.Database.Driver))
	}

	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET_KEY is required"))
	}
	if _, err := time.LoadLocation(c.TimeTrack.TimeZone); err != nil {
		errs = append(errs, fmt.Errorf("TIMETRACK_TIMEZONE %q is not a known time zone", c.TimeTrack.TimeZone))
	}
	if c.TimeTrack.MaxBatchDays <= 0 {
		errs = append(errs, errors.New("TIMETRACK_MAX_BATCH_DAYS must be positive"))
	}
	if c.TimeTrack.MaxPeriodDays <= 0 {
		errs = append(errs, errors.New("TIMETRACK_MAX_PERIOD_DAYS must be positive"))
	}
	if c.TimeTrack.StaleAfter < 0 {
		errs = append(errs, errors.New("TIMETRACK_STALE_AFTER must not be negative"))
	}
	if c.Cron.Enabled && c.Cron.Interval <= 0 {
		errs = append(errs, errors.New("CRON_INTERVAL must be positive"))
	}

	return errors.Join(errs...)
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Location resolves the reference time zone. Validate has already checked it.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeTrack.TimeZone)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvSlice(env string, fallback []string) []string {
	value := getEnv(env, "")
	if value == "" {
		return fallback
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
