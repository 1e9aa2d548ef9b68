// Package config loads the Kestrel configuration snapshot.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. KESTREL_DETECTION_HIGHCUTOFF.
const EnvPrefix = "KESTREL"

// Load reads the configuration from path, or from the first kestrel.yaml found
// in the working directory, ./configs or /etc/kestrel when path is empty. A
// missing file is not an error; defaults and environment overrides apply. The
// result is validated.
func Load(path string) (*domain.Config, error) {
	v := viper.New()

	setDefaults(v, domain.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("kestrel")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/kestrel")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		slog.Debug("config file loaded", "path", v.ConfigFileUsed())
	}

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *domain.Config) {
	// Server
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)

	// Repository
	v.SetDefault("repository.driver", d.Repository.Driver)
	v.SetDefault("repository.sqlitePath", d.Repository.SQLitePath)
	v.SetDefault("repository.postgresHost", "localhost")
	v.SetDefault("repository.postgresPort", 5432)
	v.SetDefault("repository.postgresUser", "kestrel")
	v.SetDefault("repository.postgresPassword", "")
	v.SetDefault("repository.postgresDB", "kestrel")
	v.SetDefault("repository.postgresSSLMode", "disable")
	v.SetDefault("repository.maxOpenConns", 0)
	v.SetDefault("repository.maxIdleConns", 0)
	v.SetDefault("repository.connMaxLifetime", "0s")

	// Storage resilience
	v.SetDefault("storage.timeoutMs", d.Storage.TimeoutMs)
	v.SetDefault("storage.breakerEnabled", d.Storage.BreakerEnabled)
	v.SetDefault("storage.breakerMaxFailures", d.Storage.BreakerMaxFailures)
	v.SetDefault("storage.breakerOpenSeconds", d.Storage.BreakerOpenSeconds)

	// Cache
	v.SetDefault("cache.type", d.Cache.Type)
	v.SetDefault("cache.localMaxSize", d.Cache.LocalMaxSize)
	v.SetDefault("cache.localTTL", d.Cache.LocalTTL)
	v.SetDefault("cache.redisAddr", "localhost:6379")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)
	v.SetDefault("cache.enableTwoPhase", false)
	v.SetDefault("cache.alertTTL", d.Cache.AlertTTL)

	// Event bus
	v.SetDefault("eventBus.type", d.EventBus.Type)
	v.SetDefault("eventBus.channelBufferSize", d.EventBus.ChannelBufferSize)
	v.SetDefault("eventBus.natsUrl", "nats://localhost:4222")
	v.SetDefault("eventBus.natsToken", "")
	v.SetDefault("eventBus.natsMaxReconnects", 10)
	v.SetDefault("eventBus.natsReconnectWait", 5)

	// Logging
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	// Detection
	v.SetDefault("detection.mediumCutoff", d.Detection.MediumCutoff)
	v.SetDefault("detection.highCutoff", d.Detection.HighCutoff)
	v.SetDefault("detection.velocityWindowSeconds", d.Detection.VelocityWindowSeconds)
	v.SetDefault("detection.velocityLimit", d.Detection.VelocityLimit)
	v.SetDefault("detection.velocityWeight", d.Detection.VelocityWeight)
	v.SetDefault("detection.duplicateWeight", d.Detection.DuplicateWeight)

	v.SetDefault("rules", ruleDefaults(d.Rules))
	v.SetDefault("riskyLocations", d.RiskyLocations)
	v.SetDefault("riskyMerchants", d.RiskyMerchants)

	v.SetDefault("worker.count", d.Worker.Count)
}

// ruleDefaults flattens rule definitions into the shape a YAML file would produce.
func ruleDefaults(defs []domain.RuleDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(defs))
	for _, def := range defs {
		m := map[string]any{
			"type": string(def.Type),
			"name": def.Name,
		}
		if def.Enabled != nil {
			m["enabled"] = *def.Enabled
		}
		if def.Weight != nil {
			m["weight"] = *def.Weight
		}
		if def.Threshold != "" {
			m["threshold"] = def.Threshold
		}
		if def.StartHour != nil {
			m["startHour"] = *def.StartHour
		}
		if def.EndHour != nil {
			m["endHour"] = *def.EndHour
		}
		if def.Expression != "" {
			m["expression"] = def.Expression
		}
		out = append(out, m)
	}
	return out
}

// SetupLogging installs the default slog logger. Format "json" (the default)
// writes JSON lines; "text" and "console" write logfmt-style text.
func SetupLogging(cfg domain.LoggingConfig, w io.Writer) error {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "", "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("%w: invalid log level: %s", domain.ErrInvalidConfig, cfg.Level)
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text", "console":
		handler = slog.NewTextHandler(w, opts)
	default:
		return fmt.Errorf("%w: invalid log format: %s", domain.ErrInvalidConfig, cfg.Format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}
