package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to environment overrides.
const EnvPrefix = "RADIOWAKE"

// SetDefaults registers the baseline values on v and enables environment
// overrides. It must run before Load so every key is known to viper.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server
	v.SetDefault("server.listen", d.Server.Listen)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)

	// Wake
	v.SetDefault("wake.default_timeout", d.Wake.DefaultTimeout)
	v.SetDefault("wake.max_timeout", d.Wake.MaxTimeout)
	v.SetDefault("wake.predicate", d.Wake.Predicate)
	v.SetDefault("wake.connecting_counts_as_up", d.Wake.ConnectingCountsAsUp)
	v.SetDefault("wake.check_enabled", d.Wake.CheckEnabled)
	v.SetDefault("wake.concurrency", d.Wake.Concurrency)
	v.SetDefault("wake.progress.enabled", d.Wake.Progress.Enabled)
	v.SetDefault("wake.progress.predicate", d.Wake.Progress.Predicate)
	v.SetDefault("wake.progress.step", d.Wake.Progress.Step)
	v.SetDefault("wake.progress.max", d.Wake.Progress.Max)

	// Telemetry
	v.SetDefault("telemetry.event_buffer_size", d.Telemetry.EventBufferSize)
	v.SetDefault("telemetry.retain_latest", d.Telemetry.RetainLatest)
	v.SetDefault("telemetry.ping_interval", d.Telemetry.PingInterval)
	v.SetDefault("telemetry.pong_timeout", d.Telemetry.PongTimeout)
	v.SetDefault("telemetry.write_timeout", d.Telemetry.WriteTimeout)
	v.SetDefault("telemetry.send_buffer", d.Telemetry.SendBuffer)

	// Logging
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", d.Logging.Compress)

	// Audit
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.file", d.Audit.File)
	v.SetDefault("audit.max_size_mb", d.Audit.MaxSizeMB)
	v.SetDefault("audit.max_backups", d.Audit.MaxBackups)
	v.SetDefault("audit.max_age_days", d.Audit.MaxAgeDays)

	// History
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.path", d.History.Path)
	v.SetDefault("history.retention", d.History.Retention)

	// Auth
	v.SetDefault("auth.enabled", d.Auth.Enabled)
	v.SetDefault("auth.hmac_secret", d.Auth.HMACSecret)
	v.SetDefault("auth.public_key_file", d.Auth.PublicKeyFile)

	// Rate limit
	v.SetDefault("rate_limit.wakes_per_second", d.RateLimit.WakesPerSecond)
	v.SetDefault("rate_limit.burst", d.RateLimit.Burst)
}

// ReadFile reads the config file at path into v. With an empty path the
// usual locations are searched and a missing file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("radiowake")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/radiowake")
		v.AddConfigPath("/etc/radiowake")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if len(cfg.Radios) == 0 {
		cfg.Radios = []RadioConfig{DefaultRadio()}
	}
	for i := range cfg.Radios {
		if cfg.Radios[i].Type == "" {
			cfg.Radios[i].Type = RadioTypeFake
		}
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watch reloads the configuration whenever the file backing v changes and
// hands the result to fn. A reload that fails validation is passed as an
// error and the caller keeps its previous configuration.
func Watch(v *viper.Viper, fn func(*Config, error)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		fn(Load(v))
	})
	v.WatchConfig()
}
