package recommendproducts

import (
	"fmt"
	"time"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Index         string        `mapstructure:"index"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	MaxLimit      int           `mapstructure:"max_limit"`
	// SeasonFallback widens an empty type match to the whole season.
	SeasonFallback bool `mapstructure:"season_fallback"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:        true,
		MaxJobsActive:  10,
		Timeout:        10 * time.Second,
		Index:          "products",
		DefaultLimit:   20,
		MaxLimit:       100,
		SeasonFallback: true,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.Index == "" {
		return fmt.Errorf("index is required")
	}
	if c.DefaultLimit <= 0 || c.MaxLimit < c.DefaultLimit {
		return fmt.Errorf("limits must satisfy 0 < default_limit <= max_limit")
	}
	return nil
}
