// Copyright 2025 Pine Host Project
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the pine-host service.
type Config struct {
	Environment string `yaml:"environment"`

	Server               ServerSettings                `yaml:"server"`
	Store                StoreSettings                 `yaml:"store"`
	Admin                AdminSettings                 `yaml:"admin"`
	ReductionMaintenance ReductionMaintenanceSettings  `yaml:"reduction_maintenance"`
	Index                IndexSettings                 `yaml:"index"`
	RemoteAudit          RemoteAuditSettings            `yaml:"remote_audit"`
	Logging              LoggingSettings                `yaml:"logging"`
}

// ServerSettings configures the admin/public HTTP surface (spec §4.8, §6).
type ServerSettings struct {
	ListenAddr     string   `yaml:"listen_addr"`
	MetricsAddr    string   `yaml:"metrics_addr"`
	PublicWebHosts []string `yaml:"public_web_hosts"`
}

// StoreSettings configures the content-addressed file store (spec §6).
type StoreSettings struct {
	Root     string `yaml:"root"`
	IndexDir string `yaml:"index_dir"`
}

// AdminSettings configures the single shared admin credential enforced by
// pkg/server's Basic auth middleware (spec §6).
type AdminSettings struct {
	Password string `yaml:"password"`
}

// ReductionMaintenanceSettings configures the persistent process's snapshot
// timer (spec §4.6).
type ReductionMaintenanceSettings struct {
	Interval Duration `yaml:"interval"`
}

// IndexSettings configures the optional, non-authoritative Postgres mirror
// of committed composition-log records (pkg/index).
type IndexSettings struct {
	Enabled         bool     `yaml:"enabled"`
	DatabaseURL     string   `yaml:"database_url"`
	MaxOpenConns    int      `yaml:"max_open_conns"`
	MaxIdleConns    int      `yaml:"max_idle_conns"`
	ConnMaxLifetime Duration `yaml:"conn_max_lifetime"`
	Required        bool     `yaml:"required"`
}

// RemoteAuditSettings configures the optional, best-effort Firestore mirror
// of committed composition events (pkg/remoteaudit).
type RemoteAuditSettings struct {
	Enabled         bool   `yaml:"enabled"`
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file"`
	Collection      string `yaml:"collection"`
}

// LoggingSettings configures the stdlib-logger prefix and verbosity.
type LoggingSettings struct {
	Level string `yaml:"level"`
}

// LoadFromEnv builds a Config purely from environment variables, with no
// YAML file involved. This is the compatibility path for deployments that
// configure pine-host entirely through the environment (mirrors the
// teacher's env-only Load()); LoadFile (yaml.go) is the primary path.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("PINE_HOST_ENV", "development"),

		Server: ServerSettings{
			ListenAddr:     getEnv("PINE_HOST_LISTEN_ADDR", "0.0.0.0:8080"),
			MetricsAddr:    getEnv("PINE_HOST_METRICS_ADDR", "0.0.0.0:9090"),
			PublicWebHosts: parseHostList(getEnv("PINE_HOST_PUBLIC_WEB_HOSTS", "")),
		},

		Store: StoreSettings{
			Root:     getEnv("PINE_HOST_STORE_ROOT", "./data/store"),
			IndexDir: getEnv("PINE_HOST_STORE_INDEX_DIR", "./data/store-index"),
		},

		Admin: AdminSettings{
			Password: getEnv("PINE_HOST_ADMIN_PASSWORD", ""),
		},

		ReductionMaintenance: ReductionMaintenanceSettings{
			Interval: Duration(getEnvDuration("PINE_HOST_REDUCTION_INTERVAL", 10*time.Minute)),
		},

		Index: IndexSettings{
			Enabled:         getEnvBool("PINE_HOST_INDEX_ENABLED", false),
			DatabaseURL:     getEnv("PINE_HOST_INDEX_DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("PINE_HOST_INDEX_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("PINE_HOST_INDEX_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: Duration(getEnvDuration("PINE_HOST_INDEX_CONN_MAX_LIFETIME", time.Hour)),
			Required:        getEnvBool("PINE_HOST_INDEX_REQUIRED", false),
		},

		RemoteAudit: RemoteAuditSettings{
			Enabled:         getEnvBool("PINE_HOST_REMOTE_AUDIT_ENABLED", false),
			ProjectID:       getEnv("PINE_HOST_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			Collection:      getEnv("PINE_HOST_REMOTE_AUDIT_COLLECTION", "pine-host-composition-events"),
		},

		Logging: LoggingSettings{
			Level: getEnv("PINE_HOST_LOG_LEVEL", "info"),
		},
	}

	return cfg, nil
}

// Validate checks that the configuration is sufficient to start the
// service. The admin password has no default — an empty password would
// leave every mutating admin endpoint unauthenticated.
func (c *Config) Validate() error {
	var problems []string

	if c.Admin.Password == "" {
		problems = append(problems, "admin.password (PINE_HOST_ADMIN_PASSWORD) is required")
	}
	if c.Store.Root == "" {
		problems = append(problems, "store.root is required")
	}
	if c.Index.Required && c.Index.DatabaseURL == "" {
		problems = append(problems, "index.database_url is required when index.required is true")
	}
	if c.RemoteAudit.Enabled && c.RemoteAudit.ProjectID == "" {
		problems = append(problems, "remote_audit.project_id is required when remote_audit.enabled is true")
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

// parseHostList splits a comma-separated list of public web host URLs,
// trimming whitespace and dropping empty entries.
func parseHostList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
