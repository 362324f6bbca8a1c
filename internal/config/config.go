package config

import (
	"time"

	"github.com/radio-control/radiowake/internal/logging"
	"github.com/radio-control/radiowake/internal/telemetry"
	"github.com/radio-control/radiowake/internal/wsnotify"
)

// Radio adapter types.
const (
	RadioTypeFake    = "fake"
	RadioTypeJSONRPC = "jsonrpc"
)

// Config is the top-level configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Wake      WakeConfig      `mapstructure:"wake"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Radios    []RadioConfig   `mapstructure:"radios"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Audit     AuditConfig     `mapstructure:"audit"`
	History   HistoryConfig   `mapstructure:"history"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig controls the HTTP API listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// WakeConfig controls wake attempts.
type WakeConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	// Predicate is an event.ParsePredicate expression.
	Predicate            string `mapstructure:"predicate"`
	ConnectingCountsAsUp bool   `mapstructure:"connecting_counts_as_up"`
	CheckEnabled         bool   `mapstructure:"check_enabled"`
	// Concurrency bounds WakeAll.
	Concurrency int                     `mapstructure:"concurrency"`
	Progress    ProgressExtensionConfig `mapstructure:"progress"`
}

// ProgressExtensionConfig lets progress events extend a wake.
type ProgressExtensionConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Predicate string        `mapstructure:"predicate"`
	Step      time.Duration `mapstructure:"step"`
	Max       time.Duration `mapstructure:"max"`
}

// TelemetryConfig controls the hub and the event stream.
type TelemetryConfig struct {
	EventBufferSize int           `mapstructure:"event_buffer_size"`
	RetainLatest    bool          `mapstructure:"retain_latest"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	SendBuffer      int           `mapstructure:"send_buffer"`
}

// Hub returns the hub settings.
func (t TelemetryConfig) Hub() telemetry.Config {
	return telemetry.Config{EventBufferSize: t.EventBufferSize, RetainLatest: t.RetainLatest}
}

// Stream returns the WebSocket stream settings.
func (t TelemetryConfig) Stream() wsnotify.Config {
	return wsnotify.Config{
		PingInterval: t.PingInterval,
		PongTimeout:  t.PongTimeout,
		WriteTimeout: t.WriteTimeout,
		SendBuffer:   t.SendBuffer,
	}
}

// RadioConfig declares one radio.
type RadioConfig struct {
	ID    string `mapstructure:"id"`
	Model string `mapstructure:"model"`
	Type  string `mapstructure:"type"`
	// Scenario is a YAML scenario file for fake radios; empty uses the default.
	Scenario string `mapstructure:"scenario"`
	// Endpoint is the JSON-RPC URL for jsonrpc radios.
	Endpoint string `mapstructure:"endpoint"`
	// Stream is the ws:// URL of the remote event stream for jsonrpc radios.
	Stream string `mapstructure:"stream"`
	Vendor string `mapstructure:"vendor"`
}

// LoggingConfig controls the application log.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Options returns the logger options.
func (l LoggingConfig) Options() logging.Options {
	return logging.Options{
		Level:      l.Level,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
		Compress:   l.Compress,
	}
}

// AuditConfig controls the JSONL audit trail.
type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// HistoryConfig controls the SQLite attempt store.
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"`
}

// AuthConfig controls bearer token verification.
type AuthConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	HMACSecret    string `mapstructure:"hmac_secret"`
	PublicKeyFile string `mapstructure:"public_key_file"`
}

// RateLimitConfig bounds wake requests through the API.
type RateLimitConfig struct {
	WakesPerSecond float64 `mapstructure:"wakes_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:          ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    0, // wakes and streams hold the response open
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Wake: WakeConfig{
			DefaultTimeout: 10 * time.Second,
			MaxTimeout:     2 * time.Minute,
			Predicate:      "link",
			CheckEnabled:   true,
			Concurrency:    4,
			Progress: ProgressExtensionConfig{
				Enabled:   false,
				Predicate: "progress",
				Step:      5 * time.Second,
				Max:       30 * time.Second,
			},
		},
		Telemetry: TelemetryConfig{
			EventBufferSize: 50,
			RetainLatest:    true,
			PingInterval:    30 * time.Second,
			PongTimeout:     60 * time.Second,
			WriteTimeout:    10 * time.Second,
			SendBuffer:      64,
		},
		Logging: LoggingConfig{
			Level:      logging.LevelInfo,
			MaxSizeMB:  50,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
		Audit: AuditConfig{
			Enabled:    true,
			File:       "data/audit.jsonl",
			MaxSizeMB:  100,
			MaxBackups: 10,
			MaxAgeDays: 90,
		},
		History: HistoryConfig{
			Enabled:   true,
			Path:      "data/history.db",
			Retention: 30 * 24 * time.Hour,
		},
		RateLimit: RateLimitConfig{
			WakesPerSecond: 2,
			Burst:          5,
		},
	}
}

// DefaultRadio is used when no radios are configured.
func DefaultRadio() RadioConfig {
	return RadioConfig{ID: "radio-01", Model: "Fake-Radio", Type: RadioTypeFake}
}
