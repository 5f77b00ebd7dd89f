// Package config loads the service configuration from TOML files and PIMIFY_*
// environment variables, and the workflow policy from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/database"
	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvPimifyEnv             = "PIMIFY_ENV"
	EnvPimifyShutdownTimeout = "PIMIFY_SHUTDOWN_TIMEOUT"
	EnvPimifyVersion         = "PIMIFY_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "PIMIFY_DB_HOST",
	Port:            "PIMIFY_DB_PORT",
	Name:            "PIMIFY_DB_NAME",
	User:            "PIMIFY_DB_USER",
	Password:        "PIMIFY_DB_PASSWORD",
	SSLMode:         "PIMIFY_DB_SSL_MODE",
	ApplicationName: "PIMIFY_DB_APPLICATION_NAME",
	MaxOpenConns:    "PIMIFY_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "PIMIFY_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "PIMIFY_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "PIMIFY_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	Provider:         "PIMIFY_STORAGE_PROVIDER",
	ContainerName:    "PIMIFY_STORAGE_CONTAINER_NAME",
	ConnectionString: "PIMIFY_STORAGE_CONNECTION_STRING",
	AccountURL:       "PIMIFY_STORAGE_ACCOUNT_URL",
	Region:           "PIMIFY_STORAGE_REGION",
	Endpoint:         "PIMIFY_STORAGE_ENDPOINT",
}

// Config is the root configuration for the Pimify service.
type Config struct {
	Server          ServerConfig        `toml:"server"`
	Database        database.Config     `toml:"database"`
	Storage         storage.Config      `toml:"storage"`
	API             APIConfig           `toml:"api"`
	Identity        IdentityConfig      `toml:"identity"`
	Notifications   NotificationsConfig `toml:"notifications"`
	Workflow        WorkflowConfig      `toml:"workflow"`
	ShutdownTimeout string              `toml:"shutdown_timeout"`
	Version         string              `toml:"version"`
}

// Env returns the PIMIFY_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvPimifyEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		loaded, err := load(BaseConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.API.Merge(&overlay.API)
	c.Identity.Merge(&overlay.Identity)
	c.Notifications.Merge(&overlay.Notifications)
	c.Workflow.Merge(&overlay.Workflow)
}

// Finalize applies defaults, environment overrides and validation to every section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}

	sections := []struct {
		name     string
		finalize func() error
	}{
		{"server", c.Server.Finalize},
		{"database", func() error { return c.Database.Finalize(databaseEnv) }},
		{"storage", func() error { return c.Storage.Finalize(storageEnv) }},
		{"api", c.API.Finalize},
		{"identity", c.Identity.Finalize},
		{"notifications", c.Notifications.Finalize},
		{"workflow", c.Workflow.Finalize},
	}
	for _, s := range sections {
		if err := s.finalize(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvPimifyShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvPimifyVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath() string {
	if env := os.Getenv(EnvPimifyEnv); env != "" {
		path := fmt.Sprintf(OverlayConfigPattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
