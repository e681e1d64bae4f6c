// Copyright 2025 Pine Host Project
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinehost/pine-host/internal/testapp"
	"github.com/pinehost/pine-host/pkg/config"
	"github.com/pinehost/pine-host/pkg/evaluator"
	"github.com/pinehost/pine-host/pkg/filestore"
	"github.com/pinehost/pine-host/pkg/index"
	"github.com/pinehost/pine-host/pkg/metrics"
	"github.com/pinehost/pine-host/pkg/migration"
	"github.com/pinehost/pine-host/pkg/process"
	"github.com/pinehost/pine-host/pkg/remoteaudit"
	"github.com/pinehost/pine-host/pkg/server"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		configPath = flag.String("config", "", "Path to a YAML config file (overrides PINE_HOST_* env vars)")
		showHelp   = flag.Bool("help", false, "Show help message")
	)
	flag.Parse()

	if *showHelp {
		printHelp()
		return
	}

	log.Printf("🌲 Starting pine-host")

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	log.Printf("🗄️  [Store] Opening file store at %s", cfg.Store.Root)
	files, err := filestore.NewDiskStore(cfg.Store.Root, cfg.Store.IndexDir)
	if err != nil {
		log.Fatalf("❌ [Store] Failed to open file store: %v", err)
	}
	defer files.Close()

	driver := migration.New(testapp.Build)

	proc, _, err := process.LoadFromStore(files, driver, log.New(log.Writer(), "[Process] ", log.LstdFlags))
	if err != nil {
		log.Fatalf("❌ [Process] Restore failed: %v", err)
	}
	if proc == nil {
		log.Printf("🌱 [Process] No deployable history found, starting from an empty store")
		proc, err = process.NewSeed(files, driver, log.New(log.Writer(), "[Process] ", log.LstdFlags))
		if err != nil {
			log.Fatalf("❌ [Process] Failed to seed process: %v", err)
		}
	} else {
		log.Printf("✅ [Process] Restored live application from durable history")
	}

	stopReduction := proc.StartReductionMaintenance(cfg.ReductionMaintenance.Interval.Duration())
	defer stopReduction()

	var idxClient *index.Client
	if cfg.Index.Enabled {
		log.Printf("🗄️  [Index] Connecting to Postgres secondary index...")
		idxClient, err = index.NewClient(cfg.Index, index.WithLogger(log.New(log.Writer(), "[Index] ", log.LstdFlags)))
		if err != nil {
			if cfg.Index.Required {
				log.Fatalf("❌ [Index] Connection REQUIRED but failed: %v", err)
			}
			log.Printf("⚠️  [Index] Connection failed - running without the secondary index: %v", err)
			idxClient = nil
		} else {
			if err := idxClient.MigrateUp(context.Background()); err != nil {
				log.Printf("⚠️  [Index] Migration failed: %v", err)
			}
			log.Printf("✅ [Index] Connected and migrated")
			defer idxClient.Close()
		}
	} else {
		log.Printf("⚠️  [Index] Secondary index disabled (set PINE_HOST_INDEX_ENABLED=true to enable)")
	}

	auditCtx, auditCancel := context.WithTimeout(context.Background(), 30*time.Second)
	auditClient, err := remoteaudit.NewClient(auditCtx, cfg.RemoteAudit, log.New(log.Writer(), "[RemoteAudit] ", log.LstdFlags))
	auditCancel()
	if err != nil {
		log.Fatalf("❌ [RemoteAudit] Failed to initialize: %v", err)
	}
	defer auditClient.Close()
	if auditClient.IsEnabled() {
		log.Printf("✅ [RemoteAudit] Firestore mirror enabled for collection %s", cfg.RemoteAudit.Collection)
	} else {
		log.Printf("⚠️  [RemoteAudit] Firestore mirror disabled (set PINE_HOST_REMOTE_AUDIT_ENABLED=true to enable)")
	}

	reg := metrics.New(evaluator.New())
	proc.SetReductionRecorder(reg)
	srv := server.New(proc, cfg.Admin.Password, cfg.Server.PublicWebHosts, reg, log.New(log.Writer(), "[Server] ", log.LstdFlags))
	srv.Health().Set("store", "connected")
	if idxClient != nil {
		srv.Health().Set("index", "connected")
	} else if cfg.Index.Enabled {
		srv.Health().Set("index", "disconnected")
	}
	if auditClient.IsEnabled() {
		srv.Health().Set("remoteAudit", "connected")
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: srv.Handler(),
	}

	go func() {
		log.Printf("🌐 [Server] pine-host listening on %s", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ [Server] HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Printf("🛑 Shutting down pine-host...")
	stopReduction()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️  HTTP server shutdown error: %v", err)
	}

	proc.Dispose()
	log.Printf("✅ pine-host stopped")
}

// loadConfig loads from a YAML file when configPath is set, otherwise from
// PINE_HOST_* environment variables alone.
func loadConfig(configPath string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.LoadFromEnv()
}

func printHelp() {
	fmt.Println("pine-host - a persistent, event-sourced application host")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  pine-host [-config path/to/config.yaml]")
	fmt.Println()
	flag.PrintDefaults()
}
