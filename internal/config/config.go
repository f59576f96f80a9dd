// Package config loads application settings from the environment and an
// optional app.env file.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/justestif/go-strava-leaderboard/internal/week"
)

// Session backends.
const (
	SessionMemory   = "memory"
	SessionRedis    = "redis"
	SessionPostgres = "postgres"
)

var (
	// ErrMissingStravaCredentials is returned when STRAVA_CLIENT_ID or STRAVA_CLIENT_SECRET is not set.
	ErrMissingStravaCredentials = errors.New("missing STRAVA_CLIENT_ID or STRAVA_CLIENT_SECRET")

	// ErrMissingDatabaseURL is returned when DATABASE_URL is not set.
	ErrMissingDatabaseURL = errors.New("missing DATABASE_URL")

	// ErrInvalid is returned for values that are set but unusable.
	ErrInvalid = errors.New("invalid configuration")
)

// Config holds all runtime settings.
type Config struct {
	HTTPAddr                 string        `mapstructure:"HTTP_ADDR"`
	DatabaseURL              string        `mapstructure:"DATABASE_URL"`
	StravaClientID           string        `mapstructure:"STRAVA_CLIENT_ID"`
	StravaClientSecret       string        `mapstructure:"STRAVA_CLIENT_SECRET"`
	StravaRedirectURI        string        `mapstructure:"STRAVA_REDIRECT_URI"`
	StravaPerPage            int           `mapstructure:"STRAVA_PER_PAGE"`
	RedisAddr                string        `mapstructure:"REDIS_ADDR"`
	SessionBackend           string        `mapstructure:"SESSION_BACKEND"`
	SyncCooldown             time.Duration `mapstructure:"SYNC_COOLDOWN"`
	TimezoneMode             string        `mapstructure:"TIMEZONE_MODE"`
	ServerTimezone           string        `mapstructure:"SERVER_TIMEZONE"`
	FootballMinSeconds       int           `mapstructure:"FOOTBALL_MIN_SECONDS"`
	WeightTrainingMinSeconds int           `mapstructure:"WEIGHT_TRAINING_MIN_SECONDS"`
	LogLevel                 string        `mapstructure:"LOG_LEVEL"`
	LogFormat                string        `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                   ":8080",
	"DATABASE_URL":                "",
	"STRAVA_CLIENT_ID":            "",
	"STRAVA_CLIENT_SECRET":        "",
	"STRAVA_REDIRECT_URI":         "http://localhost:8080/auth/strava/callback",
	"STRAVA_PER_PAGE":             30,
	"REDIS_ADDR":                  "localhost:6379",
	"SESSION_BACKEND":             SessionMemory,
	"SYNC_COOLDOWN":               "0s",
	"TIMEZONE_MODE":               string(week.ModeAthlete),
	"SERVER_TIMEZONE":             "UTC",
	"FOOTBALL_MIN_SECONDS":        0,
	"WEIGHT_TRAINING_MIN_SECONDS": 1800,
	"LOG_LEVEL":                   "info",
	"LOG_FORMAT":                  "text",
}

// Load reads app.env from path when present, then the environment, which
// takes precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")

	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	return &cfg, nil
}

// Validate checks that required settings are present and usable.
func (c *Config) Validate() error {
	if c.StravaClientID == "" || c.StravaClientSecret == "" {
		return ErrMissingStravaCredentials
	}
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	switch c.SessionBackend {
	case SessionMemory, SessionPostgres:
	case SessionRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: SESSION_BACKEND=redis needs REDIS_ADDR", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown SESSION_BACKEND %q", ErrInvalid, c.SessionBackend)
	}
	if _, err := week.ParseMode(c.TimezoneMode); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := c.ServerLocation(); err != nil {
		return err
	}
	if c.StravaPerPage < 1 || c.StravaPerPage > 200 {
		return fmt.Errorf("%w: STRAVA_PER_PAGE must be between 1 and 200", ErrInvalid)
	}
	if c.SyncCooldown < 0 || c.FootballMinSeconds < 0 || c.WeightTrainingMinSeconds < 0 {
		return fmt.Errorf("%w: durations and thresholds must not be negative", ErrInvalid)
	}
	return nil
}

// ServerLocation resolves SERVER_TIMEZONE. Empty means no server zone.
func (c *Config) ServerLocation() (*time.Location, error) {
	if c.ServerTimezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.ServerTimezone)
	if err != nil {
		return nil, fmt.Errorf("%w: SERVER_TIMEZONE: %v", ErrInvalid, err)
	}
	return loc, nil
}

// Resolver builds the week resolver described by the timezone settings.
func (c *Config) Resolver() (week.Resolver, error) {
	mode, err := week.ParseMode(c.TimezoneMode)
	if err != nil {
		return week.Resolver{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	loc, err := c.ServerLocation()
	if err != nil {
		return week.Resolver{}, err
	}
	return week.Resolver{Mode: mode, Server: loc}, nil
}
