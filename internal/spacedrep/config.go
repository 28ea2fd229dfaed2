package spacedrep

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds the spacing constants.
type Config struct {
	// BaseDelay is the delay after the first failure. Each further
	// failure doubles it, up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// BaseInterval grows by GrowthFactor per consecutive success,
	// up to MaxInterval.
	BaseInterval time.Duration
	GrowthFactor float64
	MaxInterval  time.Duration
}

// DefaultConfig returns the standard spacing.
func DefaultConfig() Config {
	return Config{
		BaseDelay:    24 * time.Hour,
		MaxDelay:     14 * 24 * time.Hour,
		BaseInterval: 48 * time.Hour,
		GrowthFactor: 1.8,
		MaxInterval:  180 * 24 * time.Hour,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	var errs []error
	if c.BaseDelay <= 0 {
		errs = append(errs, fmt.Errorf("base delay must be > 0, got %s", c.BaseDelay))
	}
	if c.MaxDelay < c.BaseDelay {
		errs = append(errs, fmt.Errorf("max delay %s is below base delay %s", c.MaxDelay, c.BaseDelay))
	}
	if c.BaseInterval <= 0 {
		errs = append(errs, fmt.Errorf("base interval must be > 0, got %s", c.BaseInterval))
	}
	if c.GrowthFactor < 1 {
		errs = append(errs, fmt.Errorf("growth factor must be >= 1, got %g", c.GrowthFactor))
	}
	if c.MaxInterval < c.BaseInterval {
		errs = append(errs, fmt.Errorf("max interval %s is below base interval %s", c.MaxInterval, c.BaseInterval))
	}
	return errors.Join(errs...)
}

// Backoff returns the delay after the n-th consecutive failure:
// BaseDelay * 2^(n-1), capped at MaxDelay. n below 1 counts as 1.
func (c Config) Backoff(n int) time.Duration {
	d := c.BaseDelay
	for i := 1; i < n && d < c.MaxDelay; i++ {
		d *= 2
	}
	return min(d, c.MaxDelay)
}

// Growth returns the interval after n consecutive successes:
// BaseInterval * GrowthFactor^n, capped at MaxInterval.
func (c Config) Growth(n int) time.Duration {
	n = max(n, 0)
	d := float64(c.BaseInterval) * math.Pow(c.GrowthFactor, float64(n))
	if math.IsInf(d, 0) || math.IsNaN(d) || d >= float64(c.MaxInterval) {
		return c.MaxInterval
	}
	return time.Duration(d)
}
