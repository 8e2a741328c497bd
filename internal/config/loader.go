package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables, falling back to the
// default tags, and validates the result. Every malformed variable is
// reported, not only the first.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := decode(cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// Defaults returns a Config populated only from default tags, ignoring the
// environment. Tests and embedders start from it and override fields.
func Defaults() *Config {
	cfg := &Config{}
	if err := decode(cfg, func(string) string { return "" }); err != nil {
		panic(fmt.Sprintf("invalid default tag: %v", err))
	}
	return cfg
}

// fieldParser converts one env value into a field of a specific type.
type fieldParser func(value string) (reflect.Value, error)

// parsers covers every field type Config declares.
var parsers = map[reflect.Type]fieldParser{
	reflect.TypeOf(""): func(v string) (reflect.Value, error) {
		return reflect.ValueOf(v), nil
	},
	reflect.TypeOf(0): func(v string) (reflect.Value, error) {
		n, err := strconv.Atoi(v)
		return reflect.ValueOf(n), err
	},
	reflect.TypeOf(int64(0)): func(v string) (reflect.Value, error) {
		n, err := strconv.ParseInt(v, 10, 64)
		return reflect.ValueOf(n), err
	},
	reflect.TypeOf(false): func(v string) (reflect.Value, error) {
		b, err := strconv.ParseBool(v)
		return reflect.ValueOf(b), err
	},
	reflect.TypeOf(time.Duration(0)): func(v string) (reflect.Value, error) {
		d, err := time.ParseDuration(v)
		return reflect.ValueOf(d), err
	},
	reflect.TypeOf([]string(nil)): func(v string) (reflect.Value, error) {
		return reflect.ValueOf(splitList(v)), nil
	},
}

// decode fills the groups of cfg from lookup. A field's env tag is tried
// first, then its envAlt tag, then its default tag.
func decode(cfg *Config, lookup func(string) string) error {
	var errs []string

	groups := reflect.ValueOf(cfg).Elem()
	for g := 0; g < groups.NumField(); g++ {
		group := groups.Field(g)
		t := group.Type()

		for i := 0; i < t.NumField(); i++ {
			field := t.Field(i)
			name := field.Tag.Get("env")
			if name == "" {
				continue
			}

			value := lookup(name)
			if value == "" {
				if alt := field.Tag.Get("envAlt"); alt != "" {
					value = lookup(alt)
				}
			}
			if value == "" {
				value = field.Tag.Get("default")
			}
			if value == "" {
				continue
			}

			parse, ok := parsers[field.Type]
			if !ok {
				errs = append(errs, fmt.Sprintf("%s: unsupported field type %s", name, field.Type))
				continue
			}
			parsed, err := parse(value)
			if err != nil {
				errs = append(errs, fmt.Sprintf("invalid value for %s=%q: %v", name, value, err))
				continue
			}
			group.Field(i).Set(parsed)
		}
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// splitList splits a comma-separated value, dropping blank items.
func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Load validation
	if c.Load.MaxFileSize <= 0 {
		errs = append(errs, "LOAD_MAX_FILE_SIZE must be positive")
	}
	if c.Load.MaxConcurrent <= 0 {
		errs = append(errs, "LOAD_MAX_CONCURRENT must be positive")
	}
	if c.Load.MaxWaitTime <= 0 {
		errs = append(errs, "LOAD_MAX_WAIT_TIME must be positive")
	}
	if c.Load.Timeout <= 0 {
		errs = append(errs, "LOAD_TIMEOUT must be positive")
	}
	if c.Load.SourceConcurrency <= 0 {
		errs = append(errs, "LOAD_SOURCE_CONCURRENCY must be positive")
	}
	if c.Load.PreviewRows <= 0 {
		errs = append(errs, "LOAD_PREVIEW_ROWS must be positive")
	}
	if c.Load.AuditLogSize <= 0 {
		errs = append(errs, "LOAD_AUDIT_LOG_SIZE must be positive")
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.LoadLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_LOAD must be positive when rate limiting is enabled")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// API keys are reported by count only.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port))
	b.WriteString(fmt.Sprintf("Load: {MaxFileSize: %d, MaxConcurrent: %d, Timeout: %s, Paths: %d}, ",
		c.Load.MaxFileSize, c.Load.MaxConcurrent, c.Load.Timeout, len(c.Load.Paths)))
	b.WriteString(fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute))
	b.WriteString(fmt.Sprintf("Security: {RequireAPIKey: %v, APIKeys: [%d MASKED]}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys)))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}
