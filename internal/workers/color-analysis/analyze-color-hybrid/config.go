package analyzecolorhybrid

import (
	"fmt"
	"time"

	"personal-color-workers/internal/ensemble"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`

	// DefaultJudge overrides the ensemble's judge. Empty defers to the
	// orchestrator.
	DefaultJudge ensemble.ProviderID `mapstructure:"default_judge"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       2 * time.Minute,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DefaultJudge != "" && !c.DefaultJudge.IsValid() {
		return fmt.Errorf("default_judge %q is not a known provider", c.DefaultJudge)
	}
	return nil
}
