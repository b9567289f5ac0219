package station

import (
	"fmt"
	"time"
)

// Default intervals.
const (
	DefaultResetInterval   = 10 * time.Minute
	DefaultPreGameTimeout  = 30 * time.Second
	DefaultPostGameTimeout = 30 * time.Second
	DefaultSettleDelay     = time.Second
	DefaultHubCallTimeout  = 10 * time.Second
)

// Config holds controller settings.
type Config struct {
	StationID  string
	StationKey string
	Ruleset    string

	ResetInterval   time.Duration
	PreGameTimeout  time.Duration
	PostGameTimeout time.Duration
	SettleDelay     time.Duration
	HubCallTimeout  time.Duration

	ActivationRetry RetryPolicy
}

// RetryPolicy bounds re-activation after the hub refuses registration.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int // retries after the first refusal; 0 disables them
}

// Delay returns the wait before the given attempt (1-based), doubling from BaseDelay and
// capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

func (c Config) withDefaults() Config {
	if c.ResetInterval <= 0 {
		c.ResetInterval = DefaultResetInterval
	}
	if c.PreGameTimeout <= 0 {
		c.PreGameTimeout = DefaultPreGameTimeout
	}
	if c.PostGameTimeout <= 0 {
		c.PostGameTimeout = DefaultPostGameTimeout
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.HubCallTimeout <= 0 {
		c.HubCallTimeout = DefaultHubCallTimeout
	}
	if c.ActivationRetry.BaseDelay <= 0 {
		c.ActivationRetry.BaseDelay = 5 * time.Second
	}
	if c.ActivationRetry.MaxDelay < c.ActivationRetry.BaseDelay {
		c.ActivationRetry.MaxDelay = 5 * time.Minute
	}
	return c
}

func (c Config) validate() error {
	if c.StationID == "" {
		return fmt.Errorf("%w: station id is required", ErrInvalidConfig)
	}
	if c.ActivationRetry.MaxRetries < 0 {
		return fmt.Errorf("%w: activation retries must not be negative", ErrInvalidConfig)
	}
	return nil
}
