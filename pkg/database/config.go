package database

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds PostgreSQL connection and pool parameters.
type Config struct {
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	ApplicationName string `toml:"application_name"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env names the environment variables that override Config fields.
type Env struct {
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	ApplicationName string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// URL returns the connection parameters as a postgres:// URL. The pgx driver and
// the migration tooling both accept it.
func (c *Config) URL() string {
	q := url.Values{"sslmode": []string{c.SSLMode}}
	if c.ApplicationName != "" {
		q.Set("application_name", c.ApplicationName)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
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
	mergeString(&c.Host, overlay.Host)
	mergeInt(&c.Port, overlay.Port)
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.User, overlay.User)
	mergeString(&c.Password, overlay.Password)
	mergeString(&c.SSLMode, overlay.SSLMode)
	mergeString(&c.ApplicationName, overlay.ApplicationName)
	mergeInt(&c.MaxOpenConns, overlay.MaxOpenConns)
	mergeInt(&c.MaxIdleConns, overlay.MaxIdleConns)
	mergeString(&c.ConnMaxLifetime, overlay.ConnMaxLifetime)
	mergeString(&c.ConnTimeout, overlay.ConnTimeout)
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func (c *Config) loadDefaults() {
	c.Host = defaultIfEmpty(c.Host, "localhost")
	if c.Port == 0 {
		c.Port = 5432
	}
	c.SSLMode = defaultIfEmpty(c.SSLMode, "disable")
	c.ApplicationName = defaultIfEmpty(c.ApplicationName, "pimify")
	// Campaign batches run several transitions at once; keep enough connections
	// for them next to interactive traffic.
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 25
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	c.ConnMaxLifetime = defaultIfEmpty(c.ConnMaxLifetime, "15m")
	c.ConnTimeout = defaultIfEmpty(c.ConnTimeout, "5s")
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *Config) loadEnv(env *Env) {
	str := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if name == "" {
			return
		}
		if n, err := strconv.Atoi(os.Getenv(name)); err == nil {
			*dst = n
		}
	}

	str(env.Host, &c.Host)
	num(env.Port, &c.Port)
	str(env.Name, &c.Name)
	str(env.User, &c.User)
	str(env.Password, &c.Password)
	str(env.SSLMode, &c.SSLMode)
	str(env.ApplicationName, &c.ApplicationName)
	num(env.MaxOpenConns, &c.MaxOpenConns)
	num(env.MaxIdleConns, &c.MaxIdleConns)
	str(env.ConnMaxLifetime, &c.ConnMaxLifetime)
	str(env.ConnTimeout, &c.ConnTimeout)
}

func (c *Config) validate() error {
	if c.Name == "" {
		return errors.New("name required")
	}
	if c.User == "" {
		return errors.New("user required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) exceeds max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}
