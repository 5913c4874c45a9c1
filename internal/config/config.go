package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/cesargomez89/tilevault/internal/constants"
	"github.com/cesargomez89/tilevault/internal/logger"
)

// Config holds all application configuration
type Config struct {
	Port               string
	DBPath             string
	LogLevel           string
	LogFormat          string
	UserAgent          string
	SourcesFile        string
	Concurrency        int
	RateLimit          time.Duration
	FetchTimeout       time.Duration
	CacheSize          int
	ProgressFlushEvery int
	MaxTilesPerJob     int64
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:               getEnv("PORT", constants.DefaultPort),
		DBPath:             getEnv("DB_PATH", constants.DefaultDBPath),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
		UserAgent:          getEnv("USER_AGENT", constants.DefaultUserAgent),
		SourcesFile:        getEnv("SOURCES_FILE", ""),
		Concurrency:        getEnvInt("CONCURRENCY", constants.DefaultConcurrency),
		RateLimit:          time.Duration(getEnvInt("RATE_LIMIT_MS", int(constants.DefaultRateLimit/time.Millisecond))) * time.Millisecond,
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", constants.DefaultFetchTimeout),
		CacheSize:          getEnvInt("CACHE_SIZE", constants.DefaultCacheSize),
		ProgressFlushEvery: getEnvInt("PROGRESS_FLUSH_EVERY", constants.DefaultProgressFlushEvery),
		MaxTilesPerJob:     int64(getEnvInt("MAX_TILES_PER_JOB", constants.DefaultMaxTilesPerJob)),
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.Concurrency < 1 {
		errors = append(errors, fmt.Sprintf("CONCURRENCY must be at least 1, got: %d", c.Concurrency))
	}

	if c.RateLimit < 0 {
		errors = append(errors, fmt.Sprintf("RATE_LIMIT_MS cannot be negative, got: %d", c.RateLimit/time.Millisecond))
	}

	if c.FetchTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("FETCH_TIMEOUT must be positive, got: %s", c.FetchTimeout))
	}

	if c.CacheSize < 0 {
		errors = append(errors, fmt.Sprintf("CACHE_SIZE cannot be negative, got: %d", c.CacheSize))
	}

	if c.ProgressFlushEvery < 1 {
		errors = append(errors, fmt.Sprintf("PROGRESS_FLUSH_EVERY must be at least 1, got: %d", c.ProgressFlushEvery))
	}

	if c.MaxTilesPerJob < 1 {
		errors = append(errors, fmt.Sprintf("MAX_TILES_PER_JOB must be at least 1, got: %d", c.MaxTilesPerJob))
	}

	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// getEnvInt keeps invalid numbers visible to Validate by returning -1.
func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0
	}
	return d
}
