// Package config provides configuration for the banya-check server.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Relay transports for content events.
const (
	RelayLocal = "local"
	RelayHTTP  = "http"
	RelayRedis = "redis"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds the server configuration.
type Config struct {
	Env string

	// Server settings
	PublicPort   int // REST API and /ws
	InternalPort int // /internal/send, /health

	// Storage
	DatabaseDriver string
	DatabaseURL    string

	// PolicyFile overrides the built-in mutation policy when set.
	PolicyFile string

	// Relay settings
	RelayTransport string
	HubURL         string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisChannel   string
	NotifyTimeout  time.Duration

	// Presence settings
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	SweepInterval     time.Duration
	WriteTimeout      time.Duration
	MaxMessageSize    int64

	// Logging
	LogLevel string
}

type envConfig struct {
	Env                 string `env:"ENV" envDefault:"production"`
	PublicPort          int    `env:"PUBLIC_PORT" envDefault:"3002"`
	InternalPort        int    `env:"INTERNAL_PORT" envDefault:"3003"`
	DatabaseDriver      string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL         string `env:"DATABASE_URL" envDefault:"file:banya.db?mode=rwc"`
	PolicyFile          string `env:"POLICY_FILE"`
	RelayTransport      string `env:"RELAY_TRANSPORT" envDefault:"local"`
	HubURL              string `env:"HUB_URL"`
	RedisAddr           string `env:"REDIS_ADDR"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	RedisChannel        string `env:"REDIS_CHANNEL" envDefault:"banya:presence"`
	NotifyTimeoutMS     int    `env:"NOTIFY_TIMEOUT_MS" envDefault:"5000"`
	HeartbeatIntervalMS int    `env:"WS_HEARTBEAT_INTERVAL_MS" envDefault:"5000"`
	HeartbeatTimeoutMS  int    `env:"WS_HEARTBEAT_TIMEOUT_MS" envDefault:"10000"`
	SweepIntervalMS     int    `env:"WS_SWEEP_INTERVAL_MS" envDefault:"5000"`
	WriteTimeoutMS      int    `env:"WS_WRITE_TIMEOUT_MS" envDefault:"10000"`
	MaxMessageSize      int64  `env:"WS_MAX_MESSAGE_SIZE" envDefault:"65536"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads an optional .env file, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return parse(env.Options{})
}

// LoadFrom builds a Config from the given variables only.
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	var raw envConfig
	if err := env.ParseWithOptions(&raw, opts); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &Config{
		Env:               raw.Env,
		PublicPort:        raw.PublicPort,
		InternalPort:      raw.InternalPort,
		DatabaseDriver:    strings.ToLower(raw.DatabaseDriver),
		DatabaseURL:       raw.DatabaseURL,
		PolicyFile:        raw.PolicyFile,
		RelayTransport:    strings.ToLower(raw.RelayTransport),
		HubURL:            strings.TrimRight(raw.HubURL, "/"),
		RedisAddr:         raw.RedisAddr,
		RedisPassword:     raw.RedisPassword,
		RedisDB:           raw.RedisDB,
		RedisChannel:      raw.RedisChannel,
		NotifyTimeout:     millis(raw.NotifyTimeoutMS),
		HeartbeatInterval: millis(raw.HeartbeatIntervalMS),
		HeartbeatTimeout:  millis(raw.HeartbeatTimeoutMS),
		SweepInterval:     millis(raw.SweepIntervalMS),
		WriteTimeout:      millis(raw.WriteTimeoutMS),
		MaxMessageSize:    raw.MaxMessageSize,
		LogLevel:          raw.LogLevel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.PublicPort <= 0 || c.InternalPort <= 0 {
		return errors.New("PUBLIC_PORT and INTERNAL_PORT must be positive")
	}
	if c.PublicPort == c.InternalPort {
		return errors.New("PUBLIC_PORT and INTERNAL_PORT must differ")
	}

	switch c.DatabaseDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", c.DatabaseDriver)
	}
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}

	switch c.RelayTransport {
	case RelayLocal:
	case RelayHTTP:
		if c.HubURL == "" {
			return errors.New("HUB_URL is required when RELAY_TRANSPORT=http")
		}
	case RelayRedis:
		if c.RedisAddr == "" {
			return errors.New("REDIS_ADDR is required when RELAY_TRANSPORT=redis")
		}
		if c.RedisChannel == "" {
			return errors.New("REDIS_CHANNEL is required when RELAY_TRANSPORT=redis")
		}
	default:
		return fmt.Errorf("RELAY_TRANSPORT must be local, http or redis, got %q", c.RelayTransport)
	}

	if c.HeartbeatInterval <= 0 || c.SweepInterval <= 0 {
		return errors.New("heartbeat and sweep intervals must be positive")
	}
	// One late heartbeat must not evict a live connection.
	if c.HeartbeatTimeout < 2*c.HeartbeatInterval {
		return fmt.Errorf("WS_HEARTBEAT_TIMEOUT_MS (%s) must be at least twice WS_HEARTBEAT_INTERVAL_MS (%s)",
			c.HeartbeatTimeout, c.HeartbeatInterval)
	}
	if c.MaxMessageSize <= 0 {
		return errors.New("WS_MAX_MESSAGE_SIZE must be positive")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// SlogLevel maps LogLevel to a slog level. Development forces debug.
func (c *Config) SlogLevel() slog.Level {
	if c.IsDevelopment() {
		return slog.LevelDebug
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
