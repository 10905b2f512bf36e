// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/olegiv/staticlift/internal/blob"
	"github.com/olegiv/staticlift/internal/config"
	"github.com/olegiv/staticlift/internal/content"
	"github.com/olegiv/staticlift/internal/handler"
	"github.com/olegiv/staticlift/internal/images"
	"github.com/olegiv/staticlift/internal/logging"
	"github.com/olegiv/staticlift/internal/scheduler"
	"github.com/olegiv/staticlift/internal/ssr"
	"github.com/olegiv/staticlift/internal/store"
	"github.com/olegiv/staticlift/internal/version"
)

func main() {
	// Parse CLI flags
	showVersion := flag.Bool("version", false, "Show version information")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	showHelp := flag.Bool("help", false, "Show help information")
	flag.BoolVar(showHelp, "h", false, "Show help information (shorthand)")

	flag.Usage = func() {
		_, _ = fmt.Fprintf(os.Stderr, "staticlift - CMS layer for static multi-page sites\n\n")
		_, _ = fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		_, _ = fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		_, _ = fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_JWT_SECRET       Token signing secret (required, min 32 bytes)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_ADMIN_USERS      Comma-separated administrator emails\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_DB_PATH          SQLite database path (default: ./data/staticlift.db)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_SITE_DIR         Static site root directory (default: ./site)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_SERVER_PORT      Server port (default: 8080)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_S3_BUCKET        S3 bucket for uploaded images (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_UPLOADS_DIR      Local directory for uploaded images (optional)\n")
		_, _ = fmt.Fprintf(os.Stderr, "  SLIFT_ENV              Environment: development|production (default: development)\n")
	}

	flag.Parse()

	if *showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		info := version.Get()
		_, _ = fmt.Printf("staticlift %s (commit: %s, built: %s)\n", info.Version, info.GitCommit, info.BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load .env files if present (development)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logLevel := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	slog.Info("initializing database", "path", cfg.DBPath)
	db, err := store.NewDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initializing database: %w", err)
	}
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			slog.Error("error closing database connection", "error", err)
		}
	}(db)

	slog.Info("running database migrations")
	if err := store.Migrate(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database ready")

	kv := store.NewKV(db)

	// Upgrade logger to also persist WARN and ERROR records in the store
	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	logger = slog.New(logging.NewEventLogHandler(textHandler, kv))
	slog.SetDefault(logger)
	slog.Info("event log integration enabled", "min_level", "warn")

	// Image storage: S3 when provisioned, local directory otherwise, absent
	// when neither is configured
	blobStore, err := newBlobStore(cfg)
	if err != nil {
		return err
	}
	if blobStore == nil {
		slog.Warn("no image storage configured, image API disabled")
	}

	contentSvc := content.NewService(kv, time.Duration(cfg.HistoryRetentionDays)*24*time.Hour)
	imagesSvc := images.NewService(blobStore)
	injector := ssr.NewInjector(contentSvc, content.SharedPageID)

	// Periodic purge of expired history snapshots and log events
	sched := scheduler.New(kv, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	if len(cfg.AdminUsers) == 0 {
		slog.Warn("no administrators configured, editor API is unreachable")
	}

	router := handler.NewRouter(cfg, kv, contentSvc, imagesSvc, injector)

	srv := &http.Server{
		Addr:              cfg.ServerAddr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      60 * time.Second, // Longer to allow for large uploads and slow connections
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		slog.Info("starting server", "addr", cfg.ServerAddr(), "env", cfg.Env, "site_dir", cfg.SiteDir)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// newBlobStore selects the image storage backend. A nil store (with a nil
// error) means no backend is configured.
func newBlobStore(cfg *config.Config) (blob.Store, error) {
	if cfg.S3Bucket != "" {
		slog.Info("using S3 image storage", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s, err := blob.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Prefix)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 storage: %w", err)
		}
		return s, nil
	}
	if cfg.UploadsDir != "" {
		slog.Info("using local image storage", "dir", cfg.UploadsDir)
		s, err := blob.NewLocalStore(cfg.UploadsDir)
		if err != nil {
			return nil, fmt.Errorf("initializing local storage: %w", err)
		}
		return s, nil
	}
	return nil, nil
}
