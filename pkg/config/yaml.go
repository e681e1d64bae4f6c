// Copyright 2025 Pine Host Project
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("10m", "1h30s").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} and ${VAR_NAME:-default} with the
// named environment variable's value, or the default if it's unset.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadFile reads a YAML configuration file, expands ${VAR}/${VAR:-default}
// references against the environment, unmarshals it, and fills in defaults
// for anything left unset.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills unset fields with the same defaults LoadFromEnv uses,
// so a YAML file only needs to name what differs from them.
func (c *Config) applyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "0.0.0.0:8080"
	}
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = "0.0.0.0:9090"
	}
	if c.Store.Root == "" {
		c.Store.Root = "./data/store"
	}
	if c.Store.IndexDir == "" {
		c.Store.IndexDir = "./data/store-index"
	}
	if c.ReductionMaintenance.Interval == 0 {
		c.ReductionMaintenance.Interval = Duration(10 * time.Minute)
	}
	if c.Index.MaxOpenConns == 0 {
		c.Index.MaxOpenConns = 10
	}
	if c.Index.MaxIdleConns == 0 {
		c.Index.MaxIdleConns = 2
	}
	if c.Index.ConnMaxLifetime == 0 {
		c.Index.ConnMaxLifetime = Duration(time.Hour)
	}
	if c.RemoteAudit.Collection == "" {
		c.RemoteAudit.Collection = "pine-host-composition-events"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
