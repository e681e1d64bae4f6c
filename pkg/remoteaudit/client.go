// Copyright 2025 Pine Host Project
//
// Package remoteaudit is a best-effort, asynchronous mirror of committed
// composition-log events to a Firestore collection, for off-box audit
// trails. It is never on the write path a composition-log append depends
// on — a Firestore outage degrades to "no off-box mirror", never to a
// failed commit.
package remoteaudit

import (
	"context"
	"fmt"
	"log"
	"sync"

	gcpfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pinehost/pine-host/pkg/config"
)

// Client wraps a Firestore client, falling back to a no-op mode when
// disabled so callers never need to branch on whether remote audit is
// configured.
type Client struct {
	mu        sync.RWMutex
	app       *firebase.App
	firestore *gcpfirestore.Client
	collection string
	enabled   bool
	logger    *log.Logger
}

// NewClient builds a Client from cfg. When cfg.Enabled is false, it returns
// a ready no-op Client rather than an error, matching the teacher's
// DefaultConfig-disabled pattern.
func NewClient(ctx context.Context, cfg config.RemoteAuditSettings, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[RemoteAudit] ", log.LstdFlags)
	}

	client := &Client{
		collection: cfg.Collection,
		enabled:    cfg.Enabled,
		logger:     logger,
	}

	if !cfg.Enabled {
		logger.Println("remote audit mirror is disabled - running in no-op mode")
		return client, nil
	}
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("remoteaudit: project id is required when enabled")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("remoteaudit: initialize firebase app: %w", err)
	}
	fsClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("remoteaudit: create firestore client: %w", err)
	}

	client.app = app
	client.firestore = fsClient
	logger.Printf("remote audit mirror initialized for project %s, collection %s", cfg.ProjectID, cfg.Collection)
	return client, nil
}

// IsEnabled reports whether the mirror performs real writes.
func (c *Client) IsEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.enabled
}

// Close releases the underlying Firestore client, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.firestore != nil {
		return c.firestore.Close()
	}
	return nil
}

// Health reports connectivity; a disabled client is always healthy.
func (c *Client) Health(ctx context.Context) error {
	if !c.IsEnabled() {
		return nil
	}
	if c.firestore == nil {
		return fmt.Errorf("remoteaudit: firestore client not initialized")
	}
	_, err := c.firestore.Collection(c.collection).Doc("_health_check").Get(ctx)
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("remoteaudit: health check: %w", err)
	}
	return nil
}

// isNotFound reports whether err is the gRPC NotFound status Firestore
// returns for a missing document — the expected outcome of a health check
// against a document that was never written, not a connectivity failure.
func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}
