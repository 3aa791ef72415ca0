package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Port != 8888 {
		t.Errorf("Port = %d, want 8888", cfg.Port)
	}
	if cfg.NumClients != 50 {
		t.Errorf("NumClients = %d, want 50", cfg.NumClients)
	}
	if cfg.DB.Enabled() {
		t.Error("relational backend should be disabled by default")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"valid", func(c *Config) {}, ""},
		{"ephemeral port", func(c *Config) { c.Port = 0 }, ""},
		{"negative port", func(c *Config) { c.Port = -1 }, "port"},
		{"port too large", func(c *Config) { c.Port = 70000 }, "port"},
		{"zero clients", func(c *Config) { c.NumClients = 0 }, "numClients"},
		{"negative timeout", func(c *Config) { c.ShutdownTimeoutMs = -5 }, "shutdownTimeoutMs"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"db and bolt", func(c *Config) {
			c.DB.URL = "sqlite://docs.db"
			c.Storage.BoltPath = "docs.bolt"
		}, "storage.boltPath"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			cfgErr, ok := err.(*ConfigError)
			if !ok {
				t.Fatalf("Validate() = %v, want *ConfigError", err)
			}
			if cfgErr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", cfgErr.Field, tt.wantField)
			}
		})
	}
}

func TestConfigError_Error(t *testing.T) {
	err := &ConfigError{Field: "port", Message: "bad"}
	if got := err.Error(); got != "config error in field 'port': bad" {
		t.Errorf("Error() = %q", got)
	}
}

func TestLoadConfig_Default(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != DefaultPort || cfg.NumClients != DefaultNumClients {
		t.Errorf("got port=%d numClients=%d, want defaults", cfg.Port, cfg.NumClients)
	}
}

func TestLoadConfig_Properties(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.conf")
	content := strings.Join([]string{
		"port=9999",
		"numClients=12",
		"db.url=jdbc:mysql://localhost:3306/hstestdb",
		"db.user=hsdb",
		"db.password=hsdbpass",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Port != 9999 {
		t.Errorf("Port = %d, want 9999", cfg.Port)
	}
	if cfg.NumClients != 12 {
		t.Errorf("NumClients = %d, want 12", cfg.NumClients)
	}
	if cfg.DB.URL != "jdbc:mysql://localhost:3306/hstestdb" {
		t.Errorf("DB.URL = %q", cfg.DB.URL)
	}
	if cfg.DB.User != "hsdb" || cfg.DB.Password != "hsdbpass" {
		t.Errorf("DB credentials = %q/%q", cfg.DB.User, cfg.DB.Password)
	}
	if !cfg.DB.Enabled() {
		t.Error("DB.Enabled() = false, want true")
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hybrid.yaml")
	content := `port: 7000
storage:
  seedFile: seed.yaml
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.NumClients != DefaultNumClients {
		t.Errorf("NumClients = %d, want default %d", cfg.NumClients, DefaultNumClients)
	}
	if cfg.Storage.SeedFile != "seed.yaml" {
		t.Errorf("Storage.SeedFile = %q", cfg.Storage.SeedFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("HYBRID_PORT", "8123")
	t.Setenv("HYBRID_DB_URL", "sqlite:///tmp/docs.db")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Port != 8123 {
		t.Errorf("Port = %d, want 8123", cfg.Port)
	}
	if cfg.DB.URL != "sqlite:///tmp/docs.db" {
		t.Errorf("DB.URL = %q", cfg.DB.URL)
	}
}

func TestLoadConfig_NotFound(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfig_SaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "config.json")

	cfg := DefaultConfig()
	cfg.Port = 9100
	cfg.Storage.BoltPath = "docs.bolt"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if loaded.Port != 9100 || loaded.Storage.BoltPath != "docs.bolt" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DB.Password = "secret"

	r := cfg.Redacted()
	if r.DB.Password == "secret" {
		t.Error("Redacted() should hide the password")
	}
	if cfg.DB.Password != "secret" {
		t.Error("Redacted() should not modify the original")
	}
}
