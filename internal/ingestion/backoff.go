package ingestion

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// BackoffConfig controls the delay between reconnect attempts.
// Multiplier 1 with RandomizationFactor 0 yields a constant delay.
type BackoffConfig struct {
	InitialInterval     time.Duration `yaml:"initial_interval"`
	MaxInterval         time.Duration `yaml:"max_interval"`
	Multiplier          float64       `yaml:"multiplier"`
	RandomizationFactor float64       `yaml:"randomization_factor"`
}

// DefaultReconnectDelay is the first delay after a lost connection.
const DefaultReconnectDelay = 10 * time.Second

// DefaultBackoffConfig returns a growing, jittered policy starting at 10s.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		InitialInterval:     DefaultReconnectDelay,
		MaxInterval:         2 * time.Minute,
		Multiplier:          2,
		RandomizationFactor: 0.2,
	}
}

// FixedBackoffConfig returns a policy that always waits d.
func FixedBackoffConfig(d time.Duration) BackoffConfig {
	return BackoffConfig{
		InitialInterval: d,
		MaxInterval:     d,
		Multiplier:      1,
	}
}

// withDefaults fills zero fields from DefaultBackoffConfig.
func (c BackoffConfig) withDefaults() BackoffConfig {
	def := DefaultBackoffConfig()
	if c.InitialInterval <= 0 {
		c.InitialInterval = def.InitialInterval
	}
	if c.MaxInterval < c.InitialInterval {
		c.MaxInterval = c.InitialInterval
	}
	if c.Multiplier < 1 {
		c.Multiplier = 1
	}
	if c.RandomizationFactor < 0 || c.RandomizationFactor >= 1 {
		c.RandomizationFactor = 0
	}
	return c
}

// newBackOff builds a policy that never gives up.
func (c BackoffConfig) newBackOff() *backoff.ExponentialBackOff {
	c = c.withDefaults()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.InitialInterval
	b.MaxInterval = c.MaxInterval
	b.Multiplier = c.Multiplier
	b.RandomizationFactor = c.RandomizationFactor
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
