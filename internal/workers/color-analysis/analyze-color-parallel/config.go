package analyzecolorparallel

import (
	"fmt"
	"time"

	"personal-color-workers/internal/ensemble"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// DefaultMethod overrides the ensemble default for this worker. Empty
	// leaves the choice to the orchestrator.
	DefaultMethod ensemble.AggregationMethod `mapstructure:"default_method"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       90 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DefaultMethod != "" && !c.DefaultMethod.IsParallel() {
		return fmt.Errorf("default_method %q is not a parallel aggregation method", c.DefaultMethod)
	}
	return nil
}
