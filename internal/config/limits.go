package config

import (
	"fmt"
	"time"
)

// ScanLimits bounds how much work one invocation does.
type ScanLimits struct {
	Concurrency int    `yaml:"concurrency" json:"concurrency"` // Pages scanned in parallel
	Timeout     string `yaml:"timeout" json:"timeout"`         // Whole-run timeout per page
}

// ValidateScanLimits checks that scan limits are within acceptable ranges.
func (c *Config) ValidateScanLimits() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be >= 1")
	}
	if c.Timeout != "" {
		d, err := time.ParseDuration(c.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive")
		}
	}
	return nil
}

// GetTimeout returns the per-page timeout as a duration.
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil || d <= 0 {
		return 60 * time.Second
	}
	return d
}
