package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"personal-color-workers/internal/ensemble"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on
// top and applies environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigName("config")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile reads a single config file.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	// Walk up directories looking for go.mod
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	setIfEmpty(&cfg.Providers.Gemini.APIKey, "GEMINI_API_KEY")
	setIfEmpty(&cfg.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setIfEmpty(&cfg.Providers.Claude.APIKey, "ANTHROPIC_API_KEY")

	setIfEmpty(&cfg.Database.Postgres.User, "DB_USER")
	setIfEmpty(&cfg.Database.Postgres.Password, "DB_PASSWORD")
	setIfEmpty(&cfg.Database.Redis.Password, "REDIS_PASSWORD")

	setIfEmpty(&cfg.Notifications.SNS.TopicARN, "COLOR_RESULT_TOPIC_ARN")
}

func setIfEmpty(field *string, envKey string) {
	if *field != "" {
		return
	}
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func applyDefaults(cfg *Config) {
	// Camunda defaults
	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	// Database defaults
	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ProductIndex == "" {
		cfg.Database.Elasticsearch.ProductIndex = "products"
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}

	applyProviderDefaults(&cfg.Providers.Gemini, "https://generativelanguage.googleapis.com", "gemini-2.0-flash")
	applyProviderDefaults(&cfg.Providers.OpenAI, "https://api.openai.com", "gpt-4o")
	applyProviderDefaults(&cfg.Providers.Claude, "https://api.anthropic.com", "claude-sonnet-4-5")

	defaults := ensemble.DefaultConfig()
	if cfg.Ensemble.DefaultMethod == "" {
		cfg.Ensemble.DefaultMethod = string(defaults.DefaultMethod)
	}
	if cfg.Ensemble.DefaultJudge == "" {
		cfg.Ensemble.DefaultJudge = string(defaults.DefaultJudge)
	}
	if cfg.Ensemble.CallTimeout == 0 {
		cfg.Ensemble.CallTimeout = int(defaults.CallTimeout / time.Millisecond)
	}
	if cfg.Ensemble.JudgeTimeout == 0 {
		cfg.Ensemble.JudgeTimeout = int(defaults.JudgeTimeout / time.Millisecond)
	}
	if cfg.Ensemble.ConsensusThreshold == 0 {
		cfg.Ensemble.ConsensusThreshold = defaults.ConsensusThreshold
	}
	if cfg.Ensemble.FallbackConfidence == 0 {
		cfg.Ensemble.FallbackConfidence = defaults.FallbackConfidence
	}
	if len(cfg.Ensemble.ProviderOrder) == 0 {
		for _, p := range defaults.ProviderOrder {
			cfg.Ensemble.ProviderOrder = append(cfg.Ensemble.ProviderOrder, string(p))
		}
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "personal-color-workers"
	}
	if cfg.Observability.MetricsAddress == "" {
		cfg.Observability.MetricsAddress = ":9090"
	}
	if cfg.Registry.Path == "" {
		cfg.Registry.Path = "configs/activity-registry.json"
	}
}

func applyProviderDefaults(p *ProviderConfig, baseURL, model string) {
	if p.BaseURL == "" {
		p.BaseURL = baseURL
	}
	if p.Model == "" {
		p.Model = model
	}
	if p.Timeout == 0 {
		p.Timeout = 15000
	}
	if p.MaxRetries == 0 {
		p.MaxRetries = 2
	}
	if p.RateLimit == 0 {
		p.RateLimit = 5
	}
	if p.RateBurst == 0 {
		p.RateBurst = 5
	}
	if p.BreakerFailures == 0 {
		p.BreakerFailures = 5
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 1024
	}
	if p.Temperature == 0 {
		p.Temperature = 0.3
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}
	if len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required")
	}
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if _, err := cfg.ToEnsembleConfig(); err != nil {
		return err
	}
	return nil
}

// ToEnsembleConfig converts the ensemble section into the orchestrator's
// immutable configuration and validates it.
func (c *Config) ToEnsembleConfig() (ensemble.Config, error) {
	method, err := ensemble.ParseAggregationMethod(c.Ensemble.DefaultMethod)
	if err != nil {
		return ensemble.Config{}, fmt.Errorf("ensemble.default_method: %w", err)
	}
	judge, err := ensemble.ParseProvider(c.Ensemble.DefaultJudge)
	if err != nil {
		return ensemble.Config{}, fmt.Errorf("ensemble.default_judge: %w", err)
	}

	order := make([]ensemble.ProviderID, 0, len(c.Ensemble.ProviderOrder))
	for _, name := range c.Ensemble.ProviderOrder {
		p, err := ensemble.ParseProvider(name)
		if err != nil {
			return ensemble.Config{}, fmt.Errorf("ensemble.provider_order: %w", err)
		}
		order = append(order, p)
	}

	out := ensemble.Config{
		CallTimeout:        GetDuration(c.Ensemble.CallTimeout),
		JudgeTimeout:       GetDuration(c.Ensemble.JudgeTimeout),
		DefaultMethod:      method,
		DefaultJudge:       judge,
		ConsensusThreshold: c.Ensemble.ConsensusThreshold,
		FallbackConfidence: c.Ensemble.FallbackConfidence,
		ProviderOrder:      order,
	}
	if err := out.Validate(); err != nil {
		return ensemble.Config{}, fmt.Errorf("ensemble: %w", err)
	}
	return out, nil
}

// Provider returns the configuration section of p.
func (c *Config) Provider(p ensemble.ProviderID) ProviderConfig {
	switch p {
	case ensemble.ProviderOpenAI:
		return c.Providers.OpenAI
	case ensemble.ProviderClaude:
		return c.Providers.Claude
	default:
		return c.Providers.Gemini
	}
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
