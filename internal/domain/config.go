package domain

import (
	"fmt"
	"time"
)

// Config holds the complete Kestrel configuration. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	// Server settings
	Server ServerConfig `mapstructure:"server" json:"server"`

	// Component configurations
	Repository RepositoryConfig `mapstructure:"repository" json:"repository"`
	Storage    StorageConfig    `mapstructure:"storage" json:"storage"`
	Cache      CacheConfig      `mapstructure:"cache" json:"cache"`
	EventBus   EventBusConfig   `mapstructure:"eventBus" json:"eventBus"`

	Logging LoggingConfig `mapstructure:"logging" json:"logging"`

	// Detection pipeline
	Detection      DetectionConfig  `mapstructure:"detection" json:"detection"`
	Rules          []RuleDefinition `mapstructure:"rules" json:"rules"`
	RiskyLocations []string         `mapstructure:"riskyLocations" json:"riskyLocations"`
	RiskyMerchants []string         `mapstructure:"riskyMerchants" json:"riskyMerchants"`

	Worker WorkerConfig `mapstructure:"worker" json:"worker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `mapstructure:"host" json:"host"`
	Port         int    `mapstructure:"port" json:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout" json:"readTimeout"`   // seconds
	WriteTimeout int    `mapstructure:"writeTimeout" json:"writeTimeout"` // seconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" json:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" json:"format"` // json, text, console
}

// DetectionConfig holds the global scoring parameters.
type DetectionConfig struct {
	MediumCutoff          int `mapstructure:"mediumCutoff" json:"mediumCutoff"`
	HighCutoff            int `mapstructure:"highCutoff" json:"highCutoff"`
	VelocityWindowSeconds int `mapstructure:"velocityWindowSeconds" json:"velocityWindowSeconds"`
	VelocityLimit         int `mapstructure:"velocityLimit" json:"velocityLimit"`
	VelocityWeight        int `mapstructure:"velocityWeight" json:"velocityWeight"`
	DuplicateWeight       int `mapstructure:"duplicateWeight" json:"duplicateWeight"`
}

// Validate checks the scoring parameters.
func (c DetectionConfig) Validate() error {
	if c.MediumCutoff < 0 || c.HighCutoff < c.MediumCutoff {
		return fmt.Errorf("%w: cutoffs must satisfy highCutoff >= mediumCutoff >= 0 (got medium=%d high=%d)",
			ErrInvalidConfig, c.MediumCutoff, c.HighCutoff)
	}
	if c.VelocityWindowSeconds <= 0 {
		return fmt.Errorf("%w: velocityWindowSeconds must be positive", ErrInvalidConfig)
	}
	if c.VelocityLimit < 1 {
		return fmt.Errorf("%w: velocityLimit must be at least 1", ErrInvalidConfig)
	}
	if c.VelocityWeight < 0 || c.DuplicateWeight < 0 {
		return fmt.Errorf("%w: velocity and duplicate weights must not be negative", ErrInvalidConfig)
	}
	return nil
}

// WorkerConfig sizes the batch worker pool.
type WorkerConfig struct {
	Count int `mapstructure:"count" json:"count"`
}

// RulesConfig extracts the rule set builder input.
func (c *Config) RulesConfig() RulesConfig {
	return RulesConfig{
		Definitions:    c.Rules,
		RiskyLocations: c.RiskyLocations,
		RiskyMerchants: c.RiskyMerchants,
	}
}

// Validate checks the whole configuration. Any error is fatal at startup.
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	switch c.Repository.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: unsupported repository driver %q", ErrInvalidConfig, c.Repository.Driver)
	}
	if c.Worker.Count < 0 {
		return fmt.Errorf("%w: worker.count must not be negative", ErrInvalidConfig)
	}
	if c.Storage.TimeoutMs < 0 {
		return fmt.Errorf("%w: storage.timeoutMs must not be negative", ErrInvalidConfig)
	}
	return nil
}

// DefaultConfig returns a default single-node configuration: SQLite, no
// external cache or bus, the stock rule set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Storage: StorageConfig{
			TimeoutMs:          5000,
			BreakerEnabled:     true,
			BreakerMaxFailures: 5,
			BreakerOpenSeconds: 30,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			AlertTTL:     time.Minute,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Detection: DetectionConfig{
			MediumCutoff:          30,
			HighCutoff:            60,
			VelocityWindowSeconds: 120,
			VelocityLimit:         3,
			VelocityWeight:        20,
			DuplicateWeight:       15,
		},
		Rules:          DefaultRuleDefinitions(),
		RiskyLocations: []string{},
		RiskyMerchants: []string{},
		Worker: WorkerConfig{
			Count: 4,
		},
	}
}
