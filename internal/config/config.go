// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Port          string
	FrontendURL   string
	DBPath        string
	StudyCSV      string
	StaticDir     string
	JournalDir    string
	DefaultTrials int
	LiveTTL       time.Duration
	Survey        SurveyConfig
	Timeout       TimeoutConfig
	Retry         RetryConfig
}

// SurveyConfig points participants at the post-session questionnaire.
type SurveyConfig struct {
	URL             string
	UniqnameEntry   string
	SurveyCodeEntry string
}

// TimeoutConfig bounds server-side operations.
type TimeoutConfig struct {
	HealthCheck time.Duration
	Submit      time.Duration
}

// RetryConfig controls SQLite busy/locked retries.
type RetryConfig struct {
	DatabaseMaxRetries     int
	DatabaseRetryBaseDelay time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		FrontendURL:   getEnv("FRONTEND_URL", ""),
		DBPath:        getEnv("DB_PATH", "./data/memelab.db"),
		StudyCSV:      getEnv("STUDY_CSV", "./data/study_trials.csv"),
		StaticDir:     getEnv("STATIC_DIR", "./static"),
		JournalDir:    getEnv("JOURNAL_DIR", "./data"),
		DefaultTrials: getEnvInt("DEFAULT_TRIALS", 12),
		LiveTTL:       getEnvDuration("LIVE_SESSION_TTL", 2*time.Hour),
		Survey: SurveyConfig{
			URL:             getEnv("SURVEY_URL", ""),
			UniqnameEntry:   getEnv("SURVEY_PREFILL_UNIQNAME", ""),
			SurveyCodeEntry: getEnv("SURVEY_PREFILL_CODE", ""),
		},
		Timeout: TimeoutConfig{
			HealthCheck: getEnvDuration("HEALTH_CHECK_TIMEOUT", 5*time.Second),
			Submit:      getEnvDuration("SUBMIT_TIMEOUT", 15*time.Second),
		},
		Retry: RetryConfig{
			DatabaseMaxRetries:     getEnvInt("DB_MAX_RETRIES", 3),
			DatabaseRetryBaseDelay: getEnvDuration("DB_RETRY_BASE_DELAY", 50*time.Millisecond),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.StudyCSV == "" {
		return fmt.Errorf("STUDY_CSV cannot be empty")
	}
	if c.DefaultTrials <= 0 {
		return fmt.Errorf("DEFAULT_TRIALS must be > 0")
	}
	if c.LiveTTL <= 0 {
		return fmt.Errorf("LIVE_SESSION_TTL must be > 0")
	}
	if c.Retry.DatabaseMaxRetries <= 0 {
		return fmt.Errorf("DB_MAX_RETRIES must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS allow-list.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{c.FrontendURL}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
