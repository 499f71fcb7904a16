// Package config provides configuration management for A2S Gestion
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the runtime configuration
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	CORS     CORSConfig
	Database DatabaseConfig
	Billing  BillingConfig
	AI       AIConfig
	Log      LogConfig
	Metrics  MetricsConfig
}

// ServerConfig holds server settings
type ServerConfig struct {
	Port            string
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds token verification settings
type AuthConfig struct {
	JWTSecret    string
	AccessExpiry time.Duration
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	AllowedOrigins   []string
	AllowCredentials bool
}

// DatabaseConfig holds the backend URL
type DatabaseConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// BillingConfig holds subscription rules and the reconcile schedule
type BillingConfig struct {
	Timezone          string
	AlertWindowDays   int
	ReconcileInterval time.Duration
}

// Location resolves Timezone, falling back to UTC
func (b BillingConfig) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// AIConfig selects the insight provider
type AIConfig struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration

	// Insight requests per user: RateBurst at once, then one per RateInterval
	RateInterval time.Duration
	RateBurst    int
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig toggles the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool
}

// MissingError lists required settings that are not set
type MissingError struct {
	Keys []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// LoadDotEnv loads .env files into the process environment when present.
// Variables already set win over file values.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads the configuration through getenv. DATABASE_URL and
// JWT_SECRET are required.
func LoadFrom(getenv func(string) string) (*Config, error) {
	s := source{getenv: getenv}

	cfg := &Config{
		Server: ServerConfig{
			Port:            s.GetWithDefault("PORT", "8090"),
			Mode:            s.GetWithDefault("GIN_MODE", "release"),
			ReadTimeout:     s.GetDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    s.GetDuration("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: s.GetDuration("SERVER_SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:    s.Get("JWT_SECRET"),
			AccessExpiry: s.GetDuration("JWT_ACCESS_EXPIRY", 24*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins:   splitString(s.GetWithDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
			AllowCredentials: s.GetBool("CORS_ALLOW_CREDENTIALS", true),
		},
		Database: DatabaseConfig{
			URL:          s.Get("DATABASE_URL"),
			MaxOpenConns: s.GetInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: s.GetInt("DB_MAX_IDLE_CONNS", 5),
		},
		Billing: BillingConfig{
			Timezone:          s.GetWithDefault("TIMEZONE", "Africa/Algiers"),
			AlertWindowDays:   s.GetInt("ALERT_WINDOW_DAYS", 30),
			ReconcileInterval: s.GetDuration("RECONCILE_INTERVAL", time.Hour),
		},
		AI: AIConfig{
			Provider: strings.ToLower(s.Get("AI_PROVIDER")),
			APIKey:   s.Get("AI_API_KEY"),
			Model:    s.Get("AI_MODEL"),
			BaseURL:  s.Get("AI_BASE_URL"),
			Timeout:  s.GetDuration("AI_TIMEOUT", 30*time.Second),

			RateInterval: s.GetDuration("AI_RATE_INTERVAL", time.Minute),
			RateBurst:    s.GetInt("AI_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  s.GetWithDefault("LOG_LEVEL", "info"),
			Format: s.GetWithDefault("LOG_FORMAT", "auto"),
		},
		Metrics: MetricsConfig{
			Enabled: s.GetBool("METRICS_ENABLED", true),
		},
	}

	var missing []string
	if cfg.Database.URL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.Auth.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return cfg, &MissingError{Keys: missing}
	}

	if cfg.Billing.AlertWindowDays <= 0 {
		return cfg, fmt.Errorf("ALERT_WINDOW_DAYS must be positive, got %d", cfg.Billing.AlertWindowDays)
	}
	if _, err := time.LoadLocation(cfg.Billing.Timezone); err != nil {
		return cfg, fmt.Errorf("invalid TIMEZONE %q: %w", cfg.Billing.Timezone, err)
	}

	return cfg, nil
}

// source reads typed values from the environment
type source struct {
	getenv func(string) string
}

// Get returns a config value by key
func (s source) Get(key string) string {
	return strings.TrimSpace(s.getenv(key))
}

// GetWithDefault returns a config value or default if not found
func (s source) GetWithDefault(key, defaultValue string) string {
	if val := s.Get(key); val != "" {
		return val
	}
	return defaultValue
}

// GetInt returns a config value as int
func (s source) GetInt(key string, defaultValue int) int {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(val); err == nil {
		return i
	}
	return defaultValue
}

// GetBool returns a config value as bool
func (s source) GetBool(key string, defaultValue bool) bool {
	val := strings.ToLower(s.Get(key))
	if val == "" {
		return defaultValue
	}
	return val == "true" || val == "1" || val == "yes"
}

// GetDuration accepts Go durations ("90s", "1h") or a plain number of seconds
func (s source) GetDuration(key string, defaultValue time.Duration) time.Duration {
	val := s.Get(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// splitString splits a comma-separated string into a slice
func splitString(s string) []string {
	if s == "" {
		return []string{}
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
