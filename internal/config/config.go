package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version this build reads and writes.
const CurrentVersion = 1

// Config represents the fserve configuration
type Config struct {
	Version   int             `json:"version" mapstructure:"version" toml:"version" yaml:"version"`
	Server    ServerConfig    `json:"server" mapstructure:"server" toml:"server" yaml:"server"`
	Limits    LimitsConfig    `json:"limits" mapstructure:"limits" toml:"limits" yaml:"limits"`
	AccessLog AccessLogConfig `json:"accessLog" mapstructure:"accessLog" toml:"accessLog" yaml:"accessLog"`
	Logging   LoggingConfig   `json:"logging" mapstructure:"logging" toml:"logging" yaml:"logging"`
}

// ServerConfig controls the listener and the served directory.
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host" toml:"host" yaml:"host"`
	Port int    `json:"port" mapstructure:"port" toml:"port" yaml:"port"`
	Root string `json:"root" mapstructure:"root" toml:"root" yaml:"root"`

	// MaxRequestBytes caps how much of a request head is read before it is
	// decoded as-is.
	MaxRequestBytes int `json:"maxRequestBytes" mapstructure:"maxRequestBytes" toml:"maxRequestBytes" yaml:"maxRequestBytes"`

	// Zero disables the deadline.
	ReadTimeoutMs  int `json:"readTimeoutMs" mapstructure:"readTimeoutMs" toml:"readTimeoutMs" yaml:"readTimeoutMs"`
	WriteTimeoutMs int `json:"writeTimeoutMs" mapstructure:"writeTimeoutMs" toml:"writeTimeoutMs" yaml:"writeTimeoutMs"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LimitsConfig bounds concurrent connection handling.
type LimitsConfig struct {
	MaxConcurrent  int `json:"maxConcurrent" mapstructure:"maxConcurrent" toml:"maxConcurrent" yaml:"maxConcurrent"`
	QueueSize      int `json:"queueSize" mapstructure:"queueSize" toml:"queueSize" yaml:"queueSize"`
	QueueTimeoutMs int `json:"queueTimeoutMs" mapstructure:"queueTimeoutMs" toml:"queueTimeoutMs" yaml:"queueTimeoutMs"`
}

// AccessLogConfig controls the SQLite access ledger.
type AccessLogConfig struct {
	Enabled       bool   `json:"enabled" mapstructure:"enabled" toml:"enabled" yaml:"enabled"`
	Path          string `json:"path,omitempty" mapstructure:"path" toml:"path,omitempty" yaml:"path,omitempty"` // empty means ~/.fserve/access.db
	RetentionDays int    `json:"retentionDays" mapstructure:"retentionDays" toml:"retentionDays" yaml:"retentionDays"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format     string `json:"format" mapstructure:"format" toml:"format" yaml:"format"`
	Level      string `json:"level" mapstructure:"level" toml:"level" yaml:"level"`
	File       string `json:"file,omitempty" mapstructure:"file" toml:"file,omitempty" yaml:"file,omitempty"`
	MaxSize    string `json:"maxSize,omitempty" mapstructure:"maxSize" toml:"maxSize,omitempty" yaml:"maxSize,omitempty"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" toml:"maxBackups" yaml:"maxBackups"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentVersion,
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            5500,
			Root:            ".",
			MaxRequestBytes: 8192,
		},
		Limits: LimitsConfig{
			MaxConcurrent:  64,
			QueueSize:      64,
			QueueTimeoutMs: 5000,
		},
		AccessLog: AccessLogConfig{
			Enabled:       false,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Format:     "human",
			Level:      "info",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// LoadConfig loads the configuration at path. A missing file yields the
// defaults; a file that exists but cannot be parsed is an error.
func LoadConfig(path string) (*Config, error) {
	if path == "" || !fileExists(path) {
		return DefaultConfig(), nil
	}
	return LoadConfigFromPath(path)
}

// LoadConfigFromPath parses the file at path on top of the defaults. TOML
// files are decoded directly; JSON and YAML go through viper.
func LoadConfigFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("json")
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the configuration to path, choosing the encoding from the
// file extension (JSON unless .toml, .yaml or .yml).
func (c *Config) Save(path string) error {
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		format = "toml"
	case ".yaml", ".yml":
		format = "yaml"
	}

	data, err := Encode(c, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Encode renders cfg as json, toml or yaml.
func Encode(cfg *Config, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case "toml":
		return gotoml.Marshal(cfg)
	case "yaml", "yml":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported format %q (use json, toml or yaml)", format)
	}
}

var (
	validFormats = map[string]bool{"human": true, "json": true}
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true, "silent": true}
)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}
	if c.Server.Host == "" {
		return &ConfigError{Field: "server.host", Message: "must not be empty"}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return &ConfigError{Field: "server.port", Message: "must be between 0 and 65535"}
	}
	if c.Server.Root == "" {
		return &ConfigError{Field: "server.root", Message: "must not be empty"}
	}
	if c.Server.MaxRequestBytes < 16 {
		return &ConfigError{Field: "server.maxRequestBytes", Message: "must be at least 16"}
	}
	if c.Server.ReadTimeoutMs < 0 || c.Server.WriteTimeoutMs < 0 {
		return &ConfigError{Field: "server.readTimeoutMs", Message: "timeouts must not be negative"}
	}
	if c.Limits.MaxConcurrent < 1 {
		return &ConfigError{Field: "limits.maxConcurrent", Message: "must be at least 1"}
	}
	if c.Limits.QueueSize < 0 {
		return &ConfigError{Field: "limits.queueSize", Message: "must not be negative"}
	}
	if c.Limits.QueueTimeoutMs < 0 {
		return &ConfigError{Field: "limits.queueTimeoutMs", Message: "must not be negative"}
	}
	if c.AccessLog.RetentionDays < 0 {
		return &ConfigError{Field: "accessLog.retentionDays", Message: "must not be negative"}
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return &ConfigError{Field: "logging.format", Message: fmt.Sprintf("unknown format %q", c.Logging.Format)}
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
