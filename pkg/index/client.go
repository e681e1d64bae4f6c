// Copyright 2025 Pine Host Project
//
// Package index is an optional, non-authoritative Postgres mirror of
// committed composition-log records. It exists for ad-hoc SQL queries over
// process history; the durable source of truth remains the file-store
// composition log (pkg/compositionlog) — this package can be dropped and
// rebuilt from it at any time.
package index

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/pinehost/pine-host/pkg/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Client wraps a connection-pooled *sql.DB mirroring committed composition
// log records into Postgres.
type Client struct {
	db     *sql.DB
	logger *log.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger *log.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient opens a connection pool against cfg.DatabaseURL, verifies
// connectivity, and returns a ready Client.
func NewClient(cfg config.IndexSettings, opts ...ClientOption) (*Client, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("index: database URL cannot be empty")
	}

	client := &Client{
		logger: log.New(log.Writer(), "[Index] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(client)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("index: open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime.Duration())

	client.db = db

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: ping database: %w", err)
	}

	client.logger.Printf("connected to composition-log index (max_open_conns=%d)", cfg.MaxOpenConns)
	return client, nil
}

// DB returns the underlying *sql.DB for direct access.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Close closes the connection pool.
func (c *Client) Close() error {
	if c.db != nil {
		c.logger.Println("closing composition-log index connection")
		return c.db.Close()
	}
	return nil
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// HealthStatus summarizes the connection pool for GET /health.
type HealthStatus struct {
	Healthy         bool   `json:"healthy"`
	Error           string `json:"error,omitempty"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
	Idle            int    `json:"idle"`
}

// Health reports the current pool state, never returning an error itself —
// a failed ping is reported as an unhealthy status, matching the degraded
// reporting this mirror is meant to support (spec §8 ambient coverage).
func (c *Client) Health(ctx context.Context) HealthStatus {
	if err := c.db.PingContext(ctx); err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}
	stats := c.db.Stats()
	return HealthStatus{
		Healthy:         true,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
	}
}

// MigrateUp applies every embedded migration not yet recorded in
// schema_migrations.
func (c *Client) MigrateUp(ctx context.Context) error {
	c.logger.Println("running composition-log index migrations")

	migrations, err := c.readMigrations()
	if err != nil {
		return fmt.Errorf("index: read migrations: %w", err)
	}

	applied, err := c.appliedMigrations(ctx)
	if err != nil {
		if !strings.Contains(err.Error(), "does not exist") {
			return fmt.Errorf("index: read applied migrations: %w", err)
		}
		applied = make(map[string]bool)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		if err := c.applyMigration(ctx, m); err != nil {
			return fmt.Errorf("index: apply migration %s: %w", m.Version, err)
		}
		c.logger.Printf("applied migration %s", m.Version)
	}

	return nil
}

type migrationFile struct {
	Version string
	SQL     string
}

func (c *Client) readMigrations() ([]migrationFile, error) {
	var out []migrationFile
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		out = append(out, migrationFile{
			Version: strings.TrimSuffix(d.Name(), ".sql"),
			SQL:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (c *Client) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (c *Client) applyMigration(ctx context.Context, m migrationFile) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, m.SQL); err != nil {
		return fmt.Errorf("execute migration: %w", err)
	}
	return tx.Commit()
}
