// Package main is the entry point for the apkvault server.
// This file should ONLY handle:
//   - Loading configuration
//   - Creating infrastructure (database, storage, external tools)
//   - Wiring up dependencies
//   - Starting the server
//
// Business logic belongs in the core components (internal/catalog,
// internal/upload, internal/artifactstore, internal/inspector,
// internal/bundleconv). HTTP handling belongs in internal/handler.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/joho/godotenv"

	"github.com/nullstream-oss/apkvault/internal/artifactstore"
	"github.com/nullstream-oss/apkvault/internal/auth"
	"github.com/nullstream-oss/apkvault/internal/bundleconv"
	"github.com/nullstream-oss/apkvault/internal/config"
	"github.com/nullstream-oss/apkvault/internal/db"
	"github.com/nullstream-oss/apkvault/internal/handler"
	"github.com/nullstream-oss/apkvault/internal/handler/middleware"
	"github.com/nullstream-oss/apkvault/internal/inspector"
	"github.com/nullstream-oss/apkvault/internal/logger"
	"github.com/nullstream-oss/apkvault/internal/metrics"
	"github.com/nullstream-oss/apkvault/internal/upload"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// ========== Logging ==========

	logCfg := logger.Config{
		Level:     cfg.LogLevel,
		Format:    cfg.LogFormat,
		Output:    "stdout",
		AddSource: cfg.Environment == "production",
	}
	if err := logger.SetDefault(logCfg); err != nil {
		log.Fatalf("Failed to set up logger: %v", err)
	}

	slog.Info("starting apkvault",
		slog.String("environment", cfg.Environment),
		slog.String("log_level", cfg.LogLevel),
		slog.String("log_format", cfg.LogFormat),
	)

	ctx := context.Background()

	// ========== Catalog Store ==========

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		slog.Error("failed to resolve database path", slog.Any("error", err))
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create database directory", slog.Any("error", err))
		os.Exit(1)
	}

	dbConn, err := db.Open(dbPath)
	if err != nil {
		slog.Error("failed to open catalog database", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.Migrate(dbConn); err != nil {
		slog.Error("failed to run catalog migrations", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("catalog database ready", slog.String("database_url", cfg.DatabaseURL))

	txManager := db.NewTxManager(dbConn)
	queries := txManager.Queries()

	// ========== Artifact Store ==========

	store, err := artifactstore.NewStore(cfg.StoragePath)
	if err != nil {
		slog.Error("failed to initialize artifact store", slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("artifact store ready", slog.String("storage_path", cfg.StoragePath))

	if cfg.SweepOrphansOnStart {
		removed, err := store.SweepOrphans(ctx, queries.VersionExists)
		if err != nil {
			slog.Error("orphan sweep failed", slog.Any("error", err))
		} else {
			slog.Info("orphan sweep complete", slog.Int("removed", removed))
		}
	}

	// ========== Package Inspector / Bundle Converter ==========

	insp := inspector.AutoDetect()
	if cfg.Aapt2Path != "" {
		insp = inspector.New(cfg.Aapt2Path)
	}
	if !insp.Available() {
		slog.Warn("no aapt2-compatible inspector tool found; uploads will fail inspection")
	}

	converter := bundleconv.NewWithBundletool(cfg.BundletoolPath)
	if cfg.BundletoolPath != "" && cfg.JavaPath != "" {
		converter = bundleconv.New(cfg.BundletoolPath, cfg.JavaPath)
	}
	if converter == nil {
		slog.Info("bundle converter not configured; AAB uploads will be rejected")
	}

	// ========== Upload Pipeline ==========

	pipeline := upload.New(store, insp, converter, txManager, cfg.MaxUploadSizeBytes, slog.Default())

	// ========== Auth ==========

	var validator *auth.Validator
	if cfg.OIDCIssuerURL != "" {
		v, err := auth.NewValidator(ctx, cfg.OIDCIssuerURL, cfg.OIDCAudience, cfg.OIDCAdminRole)
		if err != nil {
			slog.Error("failed to initialize OIDC validator", slog.Any("error", err))
			os.Exit(1)
		}
		validator = v
		slog.Info("OIDC auth configured", slog.String("issuer", cfg.OIDCIssuerURL))
	} else {
		slog.Warn("OIDC_ISSUER_URL not set; admin routes will reject every request")
	}

	// ========== Metrics ==========

	updater := metrics.NewUpdater(queries, cfg.StoragePath, dbPath, time.Minute, slog.Default())
	updaterCtx, stopUpdater := context.WithCancel(ctx)
	defer stopUpdater()
	go updater.Run(updaterCtx)

	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		slog.Info("metrics server starting", slog.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()

	// ========== Middleware ==========

	loggingMiddleware := middleware.NewLoggingMiddleware(middleware.DefaultLoggingConfig())

	var authMiddleware *middleware.AuthMiddleware
	if validator != nil {
		authMiddleware = middleware.NewAuthMiddleware(validator)
	}

	// ========== Handlers ==========

	systemHandler := handler.NewSystemHandler()
	catalogHandler := handler.NewCatalogHandler(queries, store)
	adminHandler := handler.NewAdminHandler(queries, store, pipeline)

	// ========== Router ==========

	mux := http.NewServeMux()

	humaConfig := huma.DefaultConfig("apkvault", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "OIDC-issued bearer token carrying the admin role",
		},
	}

	api := humago.New(mux, humaConfig)

	systemHandler.Register(api)
	catalogHandler.Register(api)

	adminMux := http.NewServeMux()
	adminApi := humago.New(adminMux, humaConfig)
	adminHandler.Register(adminApi)

	if authMiddleware != nil {
		mux.Handle("/admin/", authMiddleware.RequireAdmin(adminMux))
	} else {
		mux.Handle("/admin/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"status":401,"code":"unauthorized","message":"admin routes are disabled: no OIDC issuer configured"}`, http.StatusUnauthorized)
		}))
	}

	var rootHandler http.Handler = mux
	rootHandler = metrics.Middleware(rootHandler)
	rootHandler = loggingMiddleware.Handler(rootHandler)

	// ========== Server ==========

	server := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan

		slog.Info("shutting down server", slog.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", slog.Any("error", err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("metrics server shutdown error", slog.Any("error", err))
		}
	}()

	slog.Info("server starting",
		slog.String("addr", cfg.ListenAddr),
		slog.String("docs", "http://"+cfg.ListenAddr+"/docs"),
	)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
