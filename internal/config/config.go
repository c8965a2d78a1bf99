package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
// It is read-only after Load() returns and thread-safe for concurrent reads.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Sources  SourcesConfig  `yaml:"sources"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig contains HTTP server settings for serve mode.
type ServerConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeout     Duration `yaml:"read_timeout"`
	WriteTimeout    Duration `yaml:"write_timeout"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig contains document-store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SourceConfig describes one vendor inventory API.
type SourceConfig struct {
	BaseURL  string `yaml:"base_url"`
	Endpoint string `yaml:"endpoint"`
	APIToken string `yaml:"-"` // env-only, never in YAML
	MaxLimit int    `yaml:"max_limit"`
	MaxSkip  int    `yaml:"max_skip"`
}

// SourcesConfig groups the per-vendor API settings.
type SourcesConfig struct {
	Qualys      SourceConfig `yaml:"qualys"`
	CrowdStrike SourceConfig `yaml:"crowdstrike"`
	Tenable     SourceConfig `yaml:"tenable"`
}

// PipelineConfig contains ingestion pipeline settings.
type PipelineConfig struct {
	PageBackoff  Duration `yaml:"page_backoff"`
	SyncInterval Duration `yaml:"sync_interval"`
}

// SnapshotConfig contains S3-compatible snapshot upload settings.
// An empty bucket disables uploads entirely.
type SnapshotConfig struct {
	Endpoint  string   `yaml:"endpoint"`
	Bucket    string   `yaml:"bucket"`
	Region    string   `yaml:"region"`
	UseSSL    bool     `yaml:"use_ssl"`
	AccessKey string   `yaml:"-"` // env-only, never in YAML
	SecretKey string   `yaml:"-"` // env-only, never in YAML
	Interval  Duration `yaml:"interval"`
}

// AuthConfig contains authentication settings for the serve API.
type AuthConfig struct {
	APIKey string `yaml:"-"` // env-only, never in YAML
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
// Returns an immutable Config suitable for concurrent read access.
func Load() (*Config, error) {
	cfg := newDefaults()

	configPath := getEnv("HOSTMERGE_CONFIG_PATH", "config/hostmerge.yaml")

	// Missing file is not an error; defaults apply
	if err := loadYAMLFile(cfg, configPath); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile loads configuration from a specific path.
// Used for testing and explicit path specification.
func LoadFromFile(path string) (*Config, error) {
	cfg := newDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newDefaults returns a Config with all default values. Vendor limits match
// the documented ceilings of the inventory APIs.
func newDefaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     Duration(30 * time.Second),
			WriteTimeout:    Duration(30 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Database: DatabaseConfig{
			Path: "data/hostmerge.db",
		},
		Sources: SourcesConfig{
			Qualys: SourceConfig{
				BaseURL:  "https://api.recruiting.app.silk.security",
				Endpoint: "/api/qualys/hosts/get",
				MaxLimit: 2,
				MaxSkip:  6,
			},
			CrowdStrike: SourceConfig{
				BaseURL:  "https://api.recruiting.app.silk.security",
				Endpoint: "/api/crowdstrike/hosts/get",
				MaxLimit: 2,
				MaxSkip:  6,
			},
			Tenable: SourceConfig{
				BaseURL:  "https://api.recruiting.app.silk.security",
				Endpoint: "/api/tenable/hosts/get",
			},
		},
		Pipeline: PipelineConfig{
			PageBackoff:  Duration(50 * time.Millisecond),
			SyncInterval: Duration(1 * time.Hour),
		},
		Snapshot: SnapshotConfig{
			Region:   "us-east-1",
			UseSSL:   true,
			Interval: Duration(6 * time.Hour),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// loadYAMLFile loads configuration from a YAML file if it exists.
func loadYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	// Server
	if v := os.Getenv("HOSTMERGE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("HOSTMERGE_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = Duration(d)
		}
	}
	if v := os.Getenv("HOSTMERGE_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = Duration(d)
		}
	}
	if v := os.Getenv("HOSTMERGE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ShutdownTimeout = Duration(d)
		}
	}

	// Database
	if v := os.Getenv("HOSTMERGE_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Vendor tokens: API_TOKEN covers all sources, per-vendor vars override.
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Sources.Qualys.APIToken = v
		cfg.Sources.CrowdStrike.APIToken = v
		cfg.Sources.Tenable.APIToken = v
	}
	if v := os.Getenv("QUALYS_API_TOKEN"); v != "" {
		cfg.Sources.Qualys.APIToken = v
	}
	if v := os.Getenv("CROWDSTRIKE_API_TOKEN"); v != "" {
		cfg.Sources.CrowdStrike.APIToken = v
	}
	if v := os.Getenv("TENABLE_API_TOKEN"); v != "" {
		cfg.Sources.Tenable.APIToken = v
	}

	// Source base URLs (all vendors share one gateway by default)
	if v := os.Getenv("HOSTMERGE_SOURCE_BASE_URL"); v != "" {
		cfg.Sources.Qualys.BaseURL = v
		cfg.Sources.CrowdStrike.BaseURL = v
		cfg.Sources.Tenable.BaseURL = v
	}

	// Pipeline
	if v := os.Getenv("HOSTMERGE_PAGE_BACKOFF"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.PageBackoff = Duration(d)
		}
	}
	if v := os.Getenv("HOSTMERGE_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pipeline.SyncInterval = Duration(d)
		}
	}

	// Snapshot (S3)
	if v := os.Getenv("HOSTMERGE_S3_ENDPOINT"); v != "" {
		cfg.Snapshot.Endpoint = v
	}
	if v := os.Getenv("HOSTMERGE_S3_BUCKET"); v != "" {
		cfg.Snapshot.Bucket = v
	}
	if v := os.Getenv("HOSTMERGE_S3_REGION"); v != "" {
		cfg.Snapshot.Region = v
	}
	if v := os.Getenv("HOSTMERGE_S3_ACCESS_KEY"); v != "" {
		cfg.Snapshot.AccessKey = v
	}
	if v := os.Getenv("HOSTMERGE_S3_SECRET_KEY"); v != "" {
		cfg.Snapshot.SecretKey = v
	}
	if v := os.Getenv("HOSTMERGE_SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Snapshot.Interval = Duration(d)
		}
	}

	// Auth
	if v := os.Getenv("HOSTMERGE_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}

	// Log
	if v := os.Getenv("HOSTMERGE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HOSTMERGE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// validate checks that required configuration values are set.
// In dev mode (HOSTMERGE_DEV_MODE=true), token validation is skipped.
func (c *Config) validate() error {
	if os.Getenv("HOSTMERGE_DEV_MODE") == "true" {
		return nil
	}

	if c.Sources.Qualys.APIToken == "" ||
		c.Sources.CrowdStrike.APIToken == "" ||
		c.Sources.Tenable.APIToken == "" {
		return errors.New("API_TOKEN (or per-vendor *_API_TOKEN) is required")
	}
	return nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
