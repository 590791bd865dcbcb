// Package config loads consumer configuration from defaults, an optional
// YAML file, and WIDGET_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	AWS      AWSConfig      `mapstructure:"aws"`
	Source   SourceConfig   `mapstructure:"source"`
	Dest     DestConfig     `mapstructure:"dest"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	DLQ      DLQConfig      `mapstructure:"dlq"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

type AWSConfig struct {
	Region string `mapstructure:"region"`
}

type SourceConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// DestKindS3 and DestKindDynamo are the accepted Dest.Kind values.
const (
	DestKindS3     = "s3"
	DestKindDynamo = "dynamo"
)

type DestConfig struct {
	Kind   string `mapstructure:"kind"`
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Table  string `mapstructure:"table"`
}

type ConsumerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	MaxIterations int           `mapstructure:"max_iterations"`
}

type ArchiveConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Bucket        string        `mapstructure:"bucket"`
	Prefix        string        `mapstructure:"prefix"`
	MaxEntries    int           `mapstructure:"max_entries"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

type DLQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	QueueURL string `mapstructure:"queue_url"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// Load reads configuration without validating it; callers apply any flag
// overrides first and then call Validate.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("aws.region", "")
	v.SetDefault("source.bucket", "")
	v.SetDefault("source.prefix", "")
	v.SetDefault("dest.kind", DestKindS3)
	v.SetDefault("dest.bucket", "")
	v.SetDefault("dest.prefix", "")
	v.SetDefault("dest.table", "")
	v.SetDefault("consumer.poll_interval", "100ms")
	v.SetDefault("consumer.max_iterations", 0)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.bucket", "")
	v.SetDefault("archive.prefix", "trail")
	v.SetDefault("archive.max_entries", 256)
	v.SetDefault("archive.flush_interval", "1m")
	v.SetDefault("dlq.enabled", false)
	v.SetDefault("dlq.queue_url", "")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9090")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("widget-consumer")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/widget-consumer")
	}

	// Environment variables override
	v.SetEnvPrefix("WIDGET")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks that the configuration can actually drive a consumer.
func (c *Config) Validate() error {
	if c.Source.Bucket == "" {
		return errors.New("source.bucket is required")
	}

	switch c.Dest.Kind {
	case DestKindS3:
		if c.Dest.Bucket == "" {
			return errors.New("dest.bucket is required when dest.kind is \"s3\"")
		}
	case DestKindDynamo:
		if c.Dest.Table == "" {
			return errors.New("dest.table is required when dest.kind is \"dynamo\"")
		}
	default:
		return fmt.Errorf("dest.kind must be %q or %q, got %q", DestKindS3, DestKindDynamo, c.Dest.Kind)
	}

	if c.Consumer.PollInterval <= 0 {
		return errors.New("consumer.poll_interval must be > 0")
	}
	if c.Consumer.MaxIterations < 0 {
		return errors.New("consumer.max_iterations must be >= 0")
	}

	if c.Archive.Enabled {
		if c.Archive.Bucket == "" {
			return errors.New("archive.bucket is required when archive is enabled")
		}
		if c.Archive.MaxEntries <= 0 {
			return errors.New("archive.max_entries must be > 0")
		}
		if c.Archive.FlushInterval <= 0 {
			return errors.New("archive.flush_interval must be > 0")
		}
	}

	if c.DLQ.Enabled && c.DLQ.QueueURL == "" {
		return errors.New("dlq.queue_url is required when dlq is enabled")
	}

	if c.Metrics.Enabled && c.Metrics.Listen == "" {
		return errors.New("metrics.listen is required when metrics are enabled")
	}

	return nil
}
