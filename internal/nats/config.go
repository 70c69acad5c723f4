// Package nats carries native calls and callbacks between the bridge and a
// native host over NATS. The bridge side implements native.Transport; the
// host side serves any native.Transport and forwards its callbacks back.
package nats

import (
	"time"
)

// Config holds NATS connection and subject configuration.
type Config struct {
	// URL is the NATS server URL (e.g., "nats://localhost:4222")
	URL string `env:"NATS_URL" envDefault:"nats://localhost:4222"`

	// Name is the client connection name for monitoring
	Name string `env:"NATS_CLIENT_NAME" envDefault:"pushbridge"`

	// MaxReconnects is the maximum number of reconnection attempts
	MaxReconnects int `env:"NATS_MAX_RECONNECTS" envDefault:"60"`

	// ReconnectWait is the time to wait between reconnection attempts
	ReconnectWait time.Duration `env:"NATS_RECONNECT_WAIT" envDefault:"2s"`

	// Timeout is the connection timeout
	Timeout time.Duration `env:"NATS_TIMEOUT" envDefault:"5s"`

	// Subjects configures the subject layout shared by both sides.
	Subjects SubjectConfig `envPrefix:"NATS_SUBJECT_"`

	// Retry configures how call delivery is retried while no host answers.
	Retry RetryConfig `envPrefix:"NATS_RETRY_"`
}

// SubjectConfig holds the subject layout.
type SubjectConfig struct {
	// Prefix is prepended to every subject; bridge and host must agree.
	Prefix string `env:"PREFIX" envDefault:"pushbridge"`

	// CallTimeout bounds how long the bridge waits for the host to accept a
	// call.
	CallTimeout time.Duration `env:"CALL_TIMEOUT" envDefault:"2s"`

	// InterceptTimeout bounds how long the host waits for the bridge to
	// decide on an interceptable event.
	InterceptTimeout time.Duration `env:"INTERCEPT_TIMEOUT" envDefault:"5s"`
}

// RetryConfig holds call retry settings.
type RetryConfig struct {
	BaseDelay  time.Duration `env:"BASE_DELAY" envDefault:"50ms"`
	MaxDelay   time.Duration `env:"MAX_DELAY" envDefault:"2s"`
	MaxRetries int           `env:"MAX_RETRIES" envDefault:"5"`
	Jitter     float64       `env:"JITTER" envDefault:"0.2"`
}

// Subjects used on the wire.
func (c SubjectConfig) calls() string        { return c.Prefix + ".calls.>" }
func (c SubjectConfig) call(m string) string { return c.Prefix + ".calls." + m }
func (c SubjectConfig) callbacks() string    { return c.Prefix + ".callbacks" }
func (c SubjectConfig) intercept() string    { return c.Prefix + ".intercept" }

func (c SubjectConfig) withDefaults() SubjectConfig {
	if c.Prefix == "" {
		c.Prefix = "pushbridge"
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 2 * time.Second
	}
	if c.InterceptTimeout <= 0 {
		c.InterceptTimeout = 5 * time.Second
	}
	return c
}
