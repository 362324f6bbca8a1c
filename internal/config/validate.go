package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/radio-control/radiowake/internal/event"
	"github.com/radio-control/radiowake/internal/logging"
)

// Validate checks the configuration section by section.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if err := validateServer(&cfg.Server); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	if err := validateWake(&cfg.Wake); err != nil {
		return fmt.Errorf("wake validation failed: %w", err)
	}

	if err := validateTelemetry(&cfg.Telemetry); err != nil {
		return fmt.Errorf("telemetry validation failed: %w", err)
	}

	if err := validateRadios(cfg.Radios); err != nil {
		return fmt.Errorf("radio validation failed: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging validation failed: %w", err)
	}

	if err := validateStorage(cfg); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}

	if err := validateAuth(&cfg.Auth); err != nil {
		return fmt.Errorf("auth validation failed: %w", err)
	}

	if cfg.RateLimit.WakesPerSecond < 0 {
		return fmt.Errorf("rate limit must be non-negative, got %v", cfg.RateLimit.WakesPerSecond)
	}
	if cfg.RateLimit.WakesPerSecond > 0 && cfg.RateLimit.Burst < 1 {
		return fmt.Errorf("rate limit burst must be at least 1, got %d", cfg.RateLimit.Burst)
	}

	return nil
}

func validateServer(s *ServerConfig) error {
	if s.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if s.ReadTimeout < 0 || s.WriteTimeout < 0 || s.IdleTimeout < 0 {
		return fmt.Errorf("timeouts must be non-negative")
	}
	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive, got %v", s.ShutdownTimeout)
	}
	return nil
}

func validateWake(w *WakeConfig) error {
	if w.DefaultTimeout <= 0 {
		return fmt.Errorf("default timeout must be positive, got %v", w.DefaultTimeout)
	}
	if w.MaxTimeout < w.DefaultTimeout {
		return fmt.Errorf("max timeout %v must be >= default timeout %v", w.MaxTimeout, w.DefaultTimeout)
	}
	if _, err := event.ParsePredicate(w.Predicate); err != nil {
		return fmt.Errorf("predicate: %w", err)
	}
	if w.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", w.Concurrency)
	}

	if !w.Progress.Enabled {
		return nil
	}
	if _, err := event.ParsePredicate(w.Progress.Predicate); err != nil {
		return fmt.Errorf("progress predicate: %w", err)
	}
	if w.Progress.Step <= 0 {
		return fmt.Errorf("progress step must be positive, got %v", w.Progress.Step)
	}
	if w.Progress.Max < 0 {
		return fmt.Errorf("progress max must be non-negative, got %v", w.Progress.Max)
	}
	return nil
}

func validateTelemetry(t *TelemetryConfig) error {
	if t.EventBufferSize < 1 {
		return fmt.Errorf("event buffer size must be at least 1, got %d", t.EventBufferSize)
	}
	if t.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive, got %v", t.PingInterval)
	}
	// Pong deadline must outlast a ping round.
	if t.PongTimeout <= t.PingInterval {
		return fmt.Errorf("pong timeout %v must be > ping interval %v", t.PongTimeout, t.PingInterval)
	}
	if t.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive, got %v", t.WriteTimeout)
	}
	if t.SendBuffer < 1 {
		return fmt.Errorf("send buffer must be at least 1, got %d", t.SendBuffer)
	}
	return nil
}

func validateRadios(radios []RadioConfig) error {
	seen := make(map[string]bool, len(radios))
	for i, r := range radios {
		if r.ID == "" {
			return fmt.Errorf("radios[%d]: id is required", i)
		}
		if strings.ContainsAny(r.ID, "/ ?#") {
			return fmt.Errorf("radios[%d]: id %q contains reserved characters", i, r.ID)
		}
		if seen[r.ID] {
			return fmt.Errorf("radios[%d]: duplicate id %q", i, r.ID)
		}
		seen[r.ID] = true

		switch r.Type {
		case RadioTypeFake:
		case RadioTypeJSONRPC:
			if err := validateURL(r.Endpoint, "http", "https"); err != nil {
				return fmt.Errorf("radios[%d]: endpoint: %w", i, err)
			}
			if r.Stream != "" {
				if err := validateURL(r.Stream, "ws", "wss"); err != nil {
					return fmt.Errorf("radios[%d]: stream: %w", i, err)
				}
			}
		default:
			return fmt.Errorf("radios[%d]: unknown type %q", i, r.Type)
		}
	}
	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme %q not one of %s", u.Scheme, strings.Join(schemes, ", "))
}

func validateLogging(l *LoggingConfig) error {
	if !logging.IsValidLevel(l.Level) {
		return fmt.Errorf("level %q must be one of: %s", l.Level, strings.Join(logging.ValidLevels(), ", "))
	}
	if l.MaxSizeMB < 0 || l.MaxBackups < 0 || l.MaxAgeDays < 0 {
		return fmt.Errorf("rotation settings must be non-negative")
	}
	return nil
}

func validateStorage(cfg *Config) error {
	if cfg.Audit.Enabled && cfg.Audit.File == "" {
		return fmt.Errorf("audit file is required when audit is enabled")
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return fmt.Errorf("history path is required when history is enabled")
	}
	if cfg.History.Retention < 0 {
		return fmt.Errorf("history retention must be non-negative, got %v", cfg.History.Retention)
	}
	return nil
}

func validateAuth(a *AuthConfig) error {
	if !a.Enabled {
		return nil
	}
	if a.HMACSecret == "" && a.PublicKeyFile == "" {
		return fmt.Errorf("hmac_secret or public_key_file is required when auth is enabled")
	}
	if a.HMACSecret != "" && len(a.HMACSecret) < 32 {
		return fmt.Errorf("hmac_secret must be at least 32 bytes")
	}
	return nil
}
