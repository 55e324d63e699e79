package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. SCRIPTBRIDGE_LOG_LEVEL.
const EnvPrefix = "SCRIPTBRIDGE"

type HostConfig struct {
	ExtensionPaths []string      `mapstructure:"extension_paths"`
	LogLevel       string        `mapstructure:"log_level"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled"`
	MetricsPort    int           `mapstructure:"metrics_port"`
	Tracing        TracingConfig `mapstructure:"tracing"`
	View           ViewConfig    `mapstructure:"view"`
}

// TracingConfig holds OTLP trace export configuration.
type TracingConfig struct {
	// Collector endpoint (host:port). Empty disables export.
	Endpoint string `mapstructure:"endpoint"`
	// "http" or "grpc".
	Protocol string `mapstructure:"protocol"`
	// Reported service name.
	ServiceName string `mapstructure:"service_name"`
}

// ViewConfig holds script view configuration.
type ViewConfig struct {
	// Log every evaluated script.
	Debug bool `mapstructure:"debug"`
	// Script evaluation time limit.
	EvalTimeout time.Duration `mapstructure:"eval_timeout"`
	// Maximum pending view jobs.
	QueueSize int `mapstructure:"queue_size"`
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"log-level":         "log_level",
	"extension-path":    "extension_paths",
	"metrics":           "metrics_enabled",
	"metrics-port":      "metrics_port",
	"otlp-endpoint":     "tracing.endpoint",
	"otlp-protocol":     "tracing.protocol",
	"view-debug":        "view.debug",
	"view-eval-timeout": "view.eval_timeout",
}

// LoadHostConfig reads configPath (when non-empty), then applies environment
// overrides and the flags in flags that were set explicitly. flags may be nil.
func LoadHostConfig(configPath string, flags *pflag.FlagSet) (*HostConfig, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("extension_paths", []string{"./extensions"})
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_enabled", false)
	v.SetDefault("metrics_port", 9090)

	// Tracing defaults
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.protocol", "http")
	v.SetDefault("tracing.service_name", "scriptbridge")

	// View defaults
	v.SetDefault("view.debug", false)
	v.SetDefault("view.eval_timeout", "5s")
	v.SetDefault("view.queue_size", 1024)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
				}
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field ranges.
func (c *HostConfig) Validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level '%s' (must be one of: debug, info, warn, error)", c.LogLevel)
	}

	if c.MetricsEnabled && (c.MetricsPort <= 0 || c.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics_port %d", c.MetricsPort)
	}

	switch c.Tracing.Protocol {
	case "http", "grpc":
	default:
		return fmt.Errorf("invalid tracing.protocol '%s' (must be one of: http, grpc)", c.Tracing.Protocol)
	}

	if c.View.EvalTimeout < 0 {
		return fmt.Errorf("view.eval_timeout must not be negative")
	}
	if c.View.QueueSize < 0 {
		return fmt.Errorf("view.queue_size must not be negative")
	}

	return nil
}

// MetricsAddr returns the listen address of the metrics endpoint.
func (c *HostConfig) MetricsAddr() string {
	return fmt.Sprintf(":%d", c.MetricsPort)
}
