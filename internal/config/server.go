package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost            = "PIMIFY_SERVER_HOST"
	EnvServerPort            = "PIMIFY_SERVER_PORT"
	EnvServerReadTimeout     = "PIMIFY_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout    = "PIMIFY_SERVER_WRITE_TIMEOUT"
	EnvServerIdleTimeout     = "PIMIFY_SERVER_IDLE_TIMEOUT"
	EnvServerShutdownTimeout = "PIMIFY_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	ReadTimeout     string `toml:"read_timeout"`
	WriteTimeout    string `toml:"write_timeout"`
	IdleTimeout     string `toml:"idle_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ReadTimeoutDuration returns ReadTimeout as a time.Duration.
func (c *ServerConfig) ReadTimeoutDuration() time.Duration {
	return mustDuration(c.ReadTimeout)
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *ServerConfig) WriteTimeoutDuration() time.Duration {
	return mustDuration(c.WriteTimeout)
}

// IdleTimeoutDuration returns IdleTimeout as a time.Duration.
func (c *ServerConfig) IdleTimeoutDuration() time.Duration {
	return mustDuration(c.IdleTimeout)
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(c.ShutdownTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	mergeString(&c.ReadTimeout, overlay.ReadTimeout)
	mergeString(&c.WriteTimeout, overlay.WriteTimeout)
	mergeString(&c.IdleTimeout, overlay.IdleTimeout)
	mergeString(&c.ShutdownTimeout, overlay.ShutdownTimeout)
}

func (c *ServerConfig) loadDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	defaultString(&c.ReadTimeout, "30s")
	defaultString(&c.WriteTimeout, "1m")
	defaultString(&c.IdleTimeout, "2m")
	defaultString(&c.ShutdownTimeout, "30s")
}

func (c *ServerConfig) loadEnv() {
	envString(EnvServerHost, &c.Host)
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	envString(EnvServerReadTimeout, &c.ReadTimeout)
	envString(EnvServerWriteTimeout, &c.WriteTimeout)
	envString(EnvServerIdleTimeout, &c.IdleTimeout)
	envString(EnvServerShutdownTimeout, &c.ShutdownTimeout)
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return validateDurations(map[string]string{
		"read_timeout":     c.ReadTimeout,
		"write_timeout":    c.WriteTimeout,
		"idle_timeout":     c.IdleTimeout,
		"shutdown_timeout": c.ShutdownTimeout,
	})
}
