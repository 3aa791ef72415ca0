package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// DefaultPort is the TCP port the server listens on when none is configured
const DefaultPort = 8888

// DefaultNumClients is the default worker pool size
const DefaultNumClients = 50

// EnvPrefix prefixes every environment override (HYBRID_PORT, HYBRID_DB_URL, ...)
const EnvPrefix = "HYBRID"

// Config represents the complete server configuration
type Config struct {
	Port              int `json:"port" yaml:"port" toml:"port" mapstructure:"port"`
	NumClients        int `json:"numClients" yaml:"numClients" toml:"numClients" mapstructure:"numClients"`
	ShutdownTimeoutMs int `json:"shutdownTimeoutMs" yaml:"shutdownTimeoutMs" toml:"shutdownTimeoutMs" mapstructure:"shutdownTimeoutMs"`

	DB      DBConfig      `json:"db" yaml:"db" toml:"db" mapstructure:"db"`
	Storage StorageConfig `json:"storage" yaml:"storage" toml:"storage" mapstructure:"storage"`
	Logging LoggingConfig `json:"logging" yaml:"logging" toml:"logging" mapstructure:"logging"`
}

// DBConfig contains the relational backend connection settings
type DBConfig struct {
	URL      string `json:"url" yaml:"url" toml:"url" mapstructure:"url"`
	User     string `json:"user" yaml:"user" toml:"user" mapstructure:"user"`
	Password string `json:"password" yaml:"password" toml:"password" mapstructure:"password"`
}

// Enabled reports whether a relational backend was configured
func (c DBConfig) Enabled() bool {
	return strings.TrimSpace(c.URL) != ""
}

// StorageConfig contains settings for the non-relational backends
type StorageConfig struct {
	// BoltPath selects the embedded bolt backend when no database URL is set
	BoltPath string `json:"boltPath" yaml:"boltPath" toml:"boltPath" mapstructure:"boltPath"`
	// SeedFile is a YAML file of documents loaded at startup
	SeedFile string `json:"seedFile" yaml:"seedFile" toml:"seedFile" mapstructure:"seedFile"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" yaml:"format" toml:"format" mapstructure:"format"`
	Level      string `json:"level" yaml:"level" toml:"level" mapstructure:"level"`
	File       string `json:"file" yaml:"file" toml:"file" mapstructure:"file"`
	MaxSizeMB  int    `json:"maxSizeMB" yaml:"maxSizeMB" toml:"maxSizeMB" mapstructure:"maxSizeMB"`
	MaxBackups int    `json:"maxBackups" yaml:"maxBackups" toml:"maxBackups" mapstructure:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Port:              DefaultPort,
		NumClients:        DefaultNumClients,
		ShutdownTimeoutMs: 5000,
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// setDefaults registers every key so env overrides resolve during Unmarshal
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("numClients", d.NumClients)
	v.SetDefault("shutdownTimeoutMs", d.ShutdownTimeoutMs)
	v.SetDefault("db.url", "")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("storage.boltPath", "")
	v.SetDefault("storage.seedFile", "")
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// LoadConfig loads configuration from path (any format viper reads; unknown
// extensions are read as Java-style properties). An empty path yields the
// defaults with environment overrides applied.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if !isSupportedExt(filepath.Ext(path)) {
			v.SetConfigType("properties")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func isSupportedExt(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ext == "" {
		return false
	}
	for _, e := range viper.SupportedExts {
		if e == ext {
			return true
		}
	}
	return false
}

// Save writes the configuration as indented JSON
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return &ConfigError{Field: "port", Message: "must be between 0 and 65535"}
	}
	if c.NumClients <= 0 {
		return &ConfigError{Field: "numClients", Message: "must be positive"}
	}
	if c.ShutdownTimeoutMs < 0 {
		return &ConfigError{Field: "shutdownTimeoutMs", Message: "must not be negative"}
	}
	switch c.Logging.Format {
	case "", "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "unsupported format " + c.Logging.Format}
	}
	if c.DB.Enabled() && c.Storage.BoltPath != "" {
		return &ConfigError{Field: "storage.boltPath", Message: "cannot be combined with db.url"}
	}
	return nil
}

// Redacted returns a copy safe for display
func (c *Config) Redacted() *Config {
	cp := *c
	if cp.DB.Password != "" {
		cp.DB.Password = "********"
	}
	return &cp
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
