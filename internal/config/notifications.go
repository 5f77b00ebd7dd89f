package config

import (
	"fmt"
	"time"
)

// Notification drivers.
const (
	NotifierLog   = "log"
	NotifierKafka = "kafka"
)

const (
	EnvNotificationsDriver       = "PIMIFY_NOTIFICATIONS_DRIVER"
	EnvNotificationsBrokers      = "PIMIFY_NOTIFICATIONS_BROKERS"
	EnvNotificationsTopic        = "PIMIFY_NOTIFICATIONS_TOPIC"
	EnvNotificationsBufferSize   = "PIMIFY_NOTIFICATIONS_BUFFER_SIZE"
	EnvNotificationsWriteTimeout = "PIMIFY_NOTIFICATIONS_WRITE_TIMEOUT"
)

// NotificationsConfig selects and configures the lifecycle event publisher.
type NotificationsConfig struct {
	Driver       string   `toml:"driver"`
	Brokers      []string `toml:"brokers"`
	Topic        string   `toml:"topic"`
	BufferSize   int      `toml:"buffer_size"`
	WriteTimeout string   `toml:"write_timeout"`
}

// WriteTimeoutDuration returns WriteTimeout as a time.Duration.
func (c *NotificationsConfig) WriteTimeoutDuration() time.Duration {
	return mustDuration(c.WriteTimeout)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *NotificationsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *NotificationsConfig) Merge(overlay *NotificationsConfig) {
	mergeString(&c.Driver, overlay.Driver)
	if overlay.Brokers != nil {
		c.Brokers = overlay.Brokers
	}
	mergeString(&c.Topic, overlay.Topic)
	if overlay.BufferSize != 0 {
		c.BufferSize = overlay.BufferSize
	}
	mergeString(&c.WriteTimeout, overlay.WriteTimeout)
}

func (c *NotificationsConfig) loadDefaults() {
	defaultString(&c.Driver, NotifierLog)
	defaultString(&c.Topic, "pimify.lifecycle")
	defaultString(&c.WriteTimeout, "5s")
	if c.BufferSize == 0 {
		c.BufferSize = 256
	}
}

func (c *NotificationsConfig) loadEnv() {
	envString(EnvNotificationsDriver, &c.Driver)
	envList(EnvNotificationsBrokers, &c.Brokers)
	envString(EnvNotificationsTopic, &c.Topic)
	envInt(EnvNotificationsBufferSize, &c.BufferSize)
	envString(EnvNotificationsWriteTimeout, &c.WriteTimeout)
}

func (c *NotificationsConfig) validate() error {
	switch c.Driver {
	case NotifierLog:
	case NotifierKafka:
		if len(c.Brokers) == 0 {
			return fmt.Errorf("brokers required for kafka driver")
		}
		if c.Topic == "" {
			return fmt.Errorf("topic required for kafka driver")
		}
	default:
		return fmt.Errorf("unknown notifications driver %q", c.Driver)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("buffer_size must be positive")
	}
	return validateDurations(map[string]string{"write_timeout": c.WriteTimeout})
}
