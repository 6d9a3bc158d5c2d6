// Package config provides configuration management for the arbiter service.
//
// Configuration is loaded from multiple sources with the following precedence
// (later sources override earlier ones):
//  1. Default values
//  2. Configuration files (./config.yaml, ./configs/config.yaml,
//     ~/.arbiter/config.yaml, /etc/arbiter/config.yaml)
//  3. Environment variables with the ARBITER_ prefix, underscores for
//     nested keys (e.g. ARBITER_SERVER_PORT=8095,
//     ARBITER_GOVERNOR_LIMITS_MEMORY=2048)
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Host is the server bind address (default: 0.0.0.0)
	Host string `mapstructure:"host"`

	// Port is the server listen port (default: 8080)
	Port int `mapstructure:"port"`

	// ReadTimeout is the maximum duration for reading requests
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration for writing responses
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// ShutdownTimeout is the maximum duration for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// BodyLimit caps request body size (e.g. "10M")
	BodyLimit string `mapstructure:"body_limit"`

	// RateLimit is the allowed requests per second (0 = unlimited)
	RateLimit float64 `mapstructure:"rate_limit"`

	// Debug enables debug logging and verbose request traces
	Debug bool `mapstructure:"debug"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level"`

	// Format is the output format: text or json
	Format string `mapstructure:"format"`
}

// GovernorConfig contains resource admission settings.
type GovernorConfig struct {
	// Limits maps resource names to their admission limits
	Limits map[string]int64 `mapstructure:"limits"`

	// ResourceCheckInterval is how often usage is sampled (default: 30s)
	ResourceCheckInterval time.Duration `mapstructure:"resource_check_interval"`

	// HealthCheckInterval is how often overall health is sampled (default: 60s)
	HealthCheckInterval time.Duration `mapstructure:"health_check_interval"`

	// PressureThreshold is the usage/limit ratio that raises a pressure
	// signal (default: 0.9)
	PressureThreshold float64 `mapstructure:"pressure_threshold"`
}

// RankerConfig contains candidate ranking weights.
type RankerConfig struct {
	// RelevanceWeight is the relevance share of the combined score (default: 0.6)
	RelevanceWeight float64 `mapstructure:"relevance_weight"`

	// PersonalizationWeight is the personalization share (default: 0.4)
	PersonalizationWeight float64 `mapstructure:"personalization_weight"`

	// CategoryWeight caps the per-category share after diversity
	// filtering (default: 0.3)
	CategoryWeight float64 `mapstructure:"category_weight"`

	// AttributeWeight caps the per-attribute share (default: 0.2)
	AttributeWeight float64 `mapstructure:"attribute_weight"`
}

// ValidationConfig contains decision validation settings.
type ValidationConfig struct {
	// PolicyFile is an optional YAML file defining constraints and
	// impact areas
	PolicyFile string `mapstructure:"policy_file"`

	// ImpactThreshold is the mean impact score above which a decision
	// is rejected outright (default: 0.8)
	ImpactThreshold float64 `mapstructure:"impact_threshold"`
}

// BrokerConfig contains message broker settings.
type BrokerConfig struct {
	// Kind selects the broker backend: memory or rabbitmq
	Kind string `mapstructure:"kind"`

	// URL is the AMQP connection URL for the rabbitmq backend
	URL string `mapstructure:"url"`

	// QueuePrefix namespaces the declared queues (default: "arbiter.")
	QueuePrefix string `mapstructure:"queue_prefix"`
}

// StagingConfig contains staging store settings for oversized payloads.
type StagingConfig struct {
	// Kind selects the staging backend: redis or s3
	Kind string `mapstructure:"kind"`

	// Threshold is the encoded payload size in bytes above which
	// artifacts are staged out of process memory (default: 262144)
	Threshold int `mapstructure:"threshold"`

	// RedisURL is the Redis connection URL for the redis backend
	RedisURL string `mapstructure:"redis_url"`

	// KeyPrefix namespaces staged keys (default: "arbiter:staging:")
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL is how long staged artifacts are retained (default: 24h)
	TTL time.Duration `mapstructure:"ttl"`

	// S3 settings for the s3 backend
	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3Region    string `mapstructure:"s3_region"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
}

// PipelineConfig contains run coordination settings.
type PipelineConfig struct {
	// Workers is the number of concurrent run workers (default: 4)
	Workers int `mapstructure:"workers"`

	// QueueDepth is the submitted-run buffer size (default: 64)
	QueueDepth int `mapstructure:"queue_depth"`

	// RunTimeout bounds a single run end to end (default: 2m)
	RunTimeout time.Duration `mapstructure:"run_timeout"`

	// TrackerDBPath is an optional bbolt file for the decision audit
	// trail (empty = in-memory only)
	TrackerDBPath string `mapstructure:"tracker_db_path"`
}

// Config is the root configuration for the arbiter service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Governor   GovernorConfig   `mapstructure:"governor"`
	Ranker     RankerConfig     `mapstructure:"ranker"`
	Validation ValidationConfig `mapstructure:"validation"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	Staging    StagingConfig    `mapstructure:"staging"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.body_limit", "10M")
	v.SetDefault("server.rate_limit", 0.0)
	v.SetDefault("server.debug", false)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("governor.limits", map[string]int64{
		"memory": 4096,
		"cpu":    16,
		"slots":  32,
	})
	v.SetDefault("governor.resource_check_interval", 30*time.Second)
	v.SetDefault("governor.health_check_interval", 60*time.Second)
	v.SetDefault("governor.pressure_threshold", 0.9)

	v.SetDefault("ranker.relevance_weight", 0.6)
	v.SetDefault("ranker.personalization_weight", 0.4)
	v.SetDefault("ranker.category_weight", 0.3)
	v.SetDefault("ranker.attribute_weight", 0.2)

	v.SetDefault("validation.impact_threshold", 0.8)

	v.SetDefault("broker.kind", "memory")
	v.SetDefault("broker.queue_prefix", "arbiter.")

	v.SetDefault("staging.kind", "redis")
	v.SetDefault("staging.threshold", 256*1024)
	v.SetDefault("staging.redis_url", "redis://localhost:6379/0")
	v.SetDefault("staging.key_prefix", "arbiter:staging:")
	v.SetDefault("staging.ttl", 24*time.Hour)
	v.SetDefault("staging.s3_region", "us-east-1")

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.queue_depth", 64)
	v.SetDefault("pipeline.run_timeout", 2*time.Minute)
}

// LoadConfig loads the configuration, optionally from an explicit file path.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix("ARBITER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("$HOME/.arbiter")
		v.AddConfigPath("/etc/arbiter")

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Governor.PressureThreshold <= 0 || c.Governor.PressureThreshold > 1 {
		return fmt.Errorf("governor pressure threshold must be in (0,1]: %f", c.Governor.PressureThreshold)
	}
	for name, limit := range c.Governor.Limits {
		if limit <= 0 {
			return fmt.Errorf("governor limit for %q must be positive: %d", name, limit)
		}
	}
	if c.Validation.ImpactThreshold <= 0 || c.Validation.ImpactThreshold > 1 {
		return fmt.Errorf("validation impact threshold must be in (0,1]: %f", c.Validation.ImpactThreshold)
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive: %d", c.Pipeline.Workers)
	}
	switch c.Broker.Kind {
	case "memory", "rabbitmq":
	default:
		return fmt.Errorf("unknown broker kind: %q", c.Broker.Kind)
	}
	switch c.Staging.Kind {
	case "redis", "s3":
	default:
		return fmt.Errorf("unknown staging kind: %q", c.Staging.Kind)
	}
	return nil
}
