package eventmodels

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML configs can use values like "250ms".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// AppConfig is the YAML configuration for the pipeline process. Environment
// variables override the database and HTTP settings so nothing sensitive
// lands in the file.
type AppConfig struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Bus       BusConfig       `yaml:"bus"`
	Execution ExecutionConfig `yaml:"execution"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
}

type HTTPConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

type BusConfig struct {
	OrdersTopic          string   `yaml:"ordersTopic"`
	FilledOrdersTopic    string   `yaml:"filledOrdersTopic"`
	DeadLetterTopic      string   `yaml:"deadLetterTopic"`
	Partitions           int      `yaml:"partitions"`
	RetainedPerPartition int      `yaml:"retainedPerPartition"`
	ProcessorGroupID     string   `yaml:"processorGroupId"`
	PortfolioGroupID     string   `yaml:"portfolioGroupId"`
	OffsetReset          string   `yaml:"offsetReset"`
	MaxAttempts          int      `yaml:"maxAttempts"`
	BackoffInterval      Duration `yaml:"backoffInterval"`
}

type ExecutionConfig struct {
	MinDelay       Duration `yaml:"minDelay"`
	MaxDelay       Duration `yaml:"maxDelay"`
	FailureRatePct int      `yaml:"failureRatePct"`
}

type PortfolioConfig struct {
	LockTimeout Duration `yaml:"lockTimeout"`
}

// LoadAppConfig reads the YAML config file, applies defaults and environment
// overrides, and validates the result.
func LoadAppConfig(path string) (*AppConfig, error) {
	cfg := defaultAppConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("LoadAppConfig: failed to read %s: %w", path, err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("LoadAppConfig: failed to unmarshal %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("LoadAppConfig: %w", err)
	}

	return cfg, nil
}

func defaultAppConfig() *AppConfig {
	return &AppConfig{
		HTTP: HTTPConfig{Port: "3000"},
		Database: DatabaseConfig{
			Host: "localhost",
			Port: "5432",
			User: "postgres",
			Name: "tradeplatform",
		},
		Bus: BusConfig{
			OrdersTopic:          "trade-orders",
			FilledOrdersTopic:    "filled-orders",
			DeadLetterTopic:      "trade-orders-dlt",
			Partitions:           3,
			RetainedPerPartition: 1024,
			ProcessorGroupID:     "trade-processor-group",
			PortfolioGroupID:     "portfolio-service-group",
			OffsetReset:          "earliest",
			MaxAttempts:          3,
			BackoffInterval:      Duration(time.Second),
		},
		Execution: ExecutionConfig{
			MinDelay:       Duration(100 * time.Millisecond),
			MaxDelay:       Duration(600 * time.Millisecond),
			FailureRatePct: 5,
		},
		Portfolio: PortfolioConfig{LockTimeout: Duration(5 * time.Second)},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Port = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		cfg.Database.Port = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
}

func (c *AppConfig) Validate() error {
	if c.Bus.OrdersTopic == "" || c.Bus.FilledOrdersTopic == "" || c.Bus.DeadLetterTopic == "" {
		return fmt.Errorf("bus topics must be set")
	}
	if c.Bus.Partitions <= 0 {
		return fmt.Errorf("bus partitions must be > 0")
	}
	if c.Bus.MaxAttempts <= 0 {
		return fmt.Errorf("bus maxAttempts must be > 0")
	}
	if c.Bus.OffsetReset != "earliest" && c.Bus.OffsetReset != "latest" {
		return fmt.Errorf("bus offsetReset must be earliest or latest")
	}
	if c.Execution.FailureRatePct < 0 || c.Execution.FailureRatePct > 100 {
		return fmt.Errorf("execution failureRatePct must be between 0 and 100")
	}
	if c.Portfolio.LockTimeout <= 0 {
		return fmt.Errorf("portfolio lockTimeout must be > 0")
	}
	return nil
}
