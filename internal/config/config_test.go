package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Load.MaxConcurrent != 4 {
		t.Errorf("Load.MaxConcurrent = %d, want %d", cfg.Load.MaxConcurrent, 4)
	}
	if cfg.Load.MaxFileSize != 104857600 {
		t.Errorf("Load.MaxFileSize = %d, want %d", cfg.Load.MaxFileSize, 104857600)
	}
	if cfg.Load.PreviewRows != 5 {
		t.Errorf("Load.PreviewRows = %d, want %d", cfg.Load.PreviewRows, 5)
	}
	if cfg.Load.Timeout != 5*time.Minute {
		t.Errorf("Load.Timeout = %v, want %v", cfg.Load.Timeout, 5*time.Minute)
	}
	if cfg.Rate.RequestsPerMinute != 100 {
		t.Errorf("Rate.RequestsPerMinute = %d, want %d", cfg.Rate.RequestsPerMinute, 100)
	}
	if len(cfg.Load.Paths) != 0 {
		t.Errorf("Load.Paths = %v, want empty", cfg.Load.Paths)
	}
}

func TestLoad_OverrideDefaults(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("LOAD_MAX_CONCURRENT", "10")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOAD_MANIFEST", "/etc/csvcache/sources.yaml")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9090)
	}
	if cfg.Load.MaxConcurrent != 10 {
		t.Errorf("Load.MaxConcurrent = %d, want %d", cfg.Load.MaxConcurrent, 10)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Load.Manifest != "/etc/csvcache/sources.yaml" {
		t.Errorf("Load.Manifest = %q", cfg.Load.Manifest)
	}
}

func TestLoad_AltEnvVar(t *testing.T) {
	t.Setenv("SERVER_PORT", "")
	t.Setenv("PORT", "3000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("LOAD_MAX_FILE_SIZE", "lots")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for non-numeric LOAD_MAX_FILE_SIZE")
	}
	if !strings.Contains(err.Error(), "LOAD_MAX_FILE_SIZE") {
		t.Errorf("error should mention LOAD_MAX_FILE_SIZE: %v", err)
	}
}

func TestLoad_ReportsEveryInvalidVariable(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("RATE_LIMIT_ENABLED", "sometimes")
	t.Setenv("LOAD_TIMEOUT", "5 minutes")

	_, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for malformed variables")
	}
	for _, name := range []string{"SERVER_PORT", "RATE_LIMIT_ENABLED", "LOAD_TIMEOUT"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error should mention %s: %v", name, err)
		}
	}
}

func TestLoad_Duration(t *testing.T) {
	t.Setenv("SERVER_READ_TIMEOUT", "45s")
	t.Setenv("LOAD_MAX_WAIT_TIME", "1m30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.ReadTimeout != 45*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want %v", cfg.Server.ReadTimeout, 45*time.Second)
	}
	if cfg.Load.MaxWaitTime != 90*time.Second {
		t.Errorf("Load.MaxWaitTime = %v, want %v", cfg.Load.MaxWaitTime, 90*time.Second)
	}
}

func TestLoad_CommaSeparatedSlice(t *testing.T) {
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12 , 192.168.0.0/16")
	t.Setenv("LOAD_PATHS", "/data/sales.csv,,/data/exports.zip")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	expected := []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"}
	if len(cfg.Security.TrustedProxies) != len(expected) {
		t.Fatalf("TrustedProxies length = %d, want %d", len(cfg.Security.TrustedProxies), len(expected))
	}
	for i, v := range expected {
		if cfg.Security.TrustedProxies[i] != v {
			t.Errorf("TrustedProxies[%d] = %q, want %q", i, cfg.Security.TrustedProxies[i], v)
		}
	}

	if got := strings.Join(cfg.Load.Paths, "|"); got != "/data/sales.csv|/data/exports.zip" {
		t.Errorf("Load.Paths = %q", got)
	}
}

func TestDefaults_IgnoresEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9999")

	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults() should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{
			name:   "invalid port",
			modify: func(c *Config) { c.Server.Port = 99999 },
			want:   "SERVER_PORT",
		},
		{
			name:   "zero file size",
			modify: func(c *Config) { c.Load.MaxFileSize = 0 },
			want:   "LOAD_MAX_FILE_SIZE",
		},
		{
			name:   "zero concurrency",
			modify: func(c *Config) { c.Load.MaxConcurrent = 0 },
			want:   "LOAD_MAX_CONCURRENT",
		},
		{
			name:   "negative preview rows",
			modify: func(c *Config) { c.Load.PreviewRows = -1 },
			want:   "LOAD_PREVIEW_ROWS",
		},
		{
			name:   "zero audit log size",
			modify: func(c *Config) { c.Load.AuditLogSize = 0 },
			want:   "LOAD_AUDIT_LOG_SIZE",
		},
		{
			name:   "invalid log level",
			modify: func(c *Config) { c.Logging.Level = "verbose" },
			want:   "LOG_LEVEL",
		},
		{
			name:   "api key required without keys",
			modify: func(c *Config) { c.Security.RequireAPIKey = true },
			want:   "API_KEYS",
		},
		{
			name:   "rate limit enabled with zero rate",
			modify: func(c *Config) { c.Rate.RequestsPerMinute = 0 },
			want:   "RATE_LIMIT_REQUESTS_PER_MINUTE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error should mention %s: %v", tt.want, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 0
	cfg.Logging.Format = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() expected error")
	}
	for _, want := range []string{"SERVER_PORT", "LOG_FORMAT"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %s: %v", want, err)
		}
	}
}

func TestServerAddr(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"", 8080, ":8080"},
		{"0.0.0.0", 8080, "0.0.0.0:8080"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
		{"localhost", 443, "localhost:443"},
	}

	for _, tt := range tests {
		cfg := &ServerConfig{Host: tt.host, Port: tt.port}
		got := cfg.Addr()
		if got != tt.want {
			t.Errorf("Addr() with host=%q, port=%d = %q, want %q", tt.host, tt.port, got, tt.want)
		}
	}
}

func TestConfigString_MasksAPIKeys(t *testing.T) {
	cfg := Defaults()
	cfg.Security.APIKeys = []string{"super-secret-key", "another-secret"}

	str := cfg.String()
	if strings.Contains(str, "secret") {
		t.Error("String() should mask API keys")
	}
	if !strings.Contains(str, "2 MASKED") {
		t.Errorf("String() should report masked key count: %s", str)
	}
}
