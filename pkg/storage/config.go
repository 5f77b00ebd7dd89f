package storage

import (
	"fmt"
	"os"
)

// Supported storage providers.
const (
	ProviderAzure = "azure"
	ProviderS3    = "s3"
)

// Config holds blob storage connection parameters for either provider.
// Azure uses ConnectionString, or AccountURL with the default Azure credential chain.
// S3 uses Region and an optional Endpoint for S3-compatible services.
type Config struct {
	Provider         string `toml:"provider"`
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	AccountURL       string `toml:"account_url"`
	Region           string `toml:"region"`
	Endpoint         string `toml:"endpoint"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider         string
	ContainerName    string
	ConnectionString string
	AccountURL       string
	Region           string
	Endpoint         string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.AccountURL != "" {
		c.AccountURL = overlay.AccountURL
	}
	if overlay.Region != "" {
		c.Region = overlay.Region
	}
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderAzure
	}
	if c.ContainerName == "" {
		c.ContainerName = "pimify"
	}
}

func (c *Config) loadEnv(env *Env) {
	set := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	set(env.Provider, &c.Provider)
	set(env.ContainerName, &c.ContainerName)
	set(env.ConnectionString, &c.ConnectionString)
	set(env.AccountURL, &c.AccountURL)
	set(env.Region, &c.Region)
	set(env.Endpoint, &c.Endpoint)
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	switch c.Provider {
	case ProviderAzure:
		if c.ConnectionString == "" && c.AccountURL == "" {
			return fmt.Errorf("connection_string or account_url required for azure storage")
		}
	case ProviderS3:
		if c.Region == "" {
			return fmt.Errorf("region required for s3 storage")
		}
	default:
		return fmt.Errorf("unknown storage provider %q", c.Provider)
	}
	return nil
}
