// Package main is the entry point for the claude-gateway proxy.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/backend"
	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/credentials"
	"github.com/howard-nolan/claude-gateway/internal/logging"
	"github.com/howard-nolan/claude-gateway/internal/metrics"
	"github.com/howard-nolan/claude-gateway/internal/server"
	"github.com/howard-nolan/claude-gateway/internal/supervisor"
	"github.com/howard-nolan/claude-gateway/internal/usage"
)

// shutdownTimeout bounds how long the HTTP server gets to drain in-flight
// requests once a shutdown signal arrives.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logBuffer := logging.NewBuffer()
	logger, err := logging.New(logging.Config{
		Level:    os.Getenv("CLAUDE_GATEWAY_LOG_LEVEL"),
		Format:   os.Getenv("CLAUDE_GATEWAY_LOG_FORMAT"),
		FilePath: cfg.Server.LogFile,
	}, logBuffer)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	runtimeStore, err := config.NewRuntimeStore(cfg.RuntimeFile, cfg)
	if err != nil {
		logger.Fatal("failed to load runtime config", zap.Error(err))
	}
	favoritesStore := config.NewFavoritesStore(cfg.Favorites.Path)
	tracker := usage.NewTracker(cfg.Usage.Path, logger)
	collector := metrics.NewCollector("claude_gateway", logger)
	creds := credentials.New(cfg.Credentials.Path, logger).WithCollector(collector)
	registry := backend.NewRegistry(cfg, creds, logger)

	srv := server.New(server.Deps{
		Config:    cfg,
		Runtime:   runtimeStore,
		Favorites: favoritesStore,
		Registry:  registry,
		Tracker:   tracker,
		Creds:     creds,
		Collector: collector,
		LogBuffer: logBuffer,
		Logger:    logger,
	})

	sup := supervisor.New(cfg.GeminiBridge, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := sup.Start(ctx); err != nil {
		logger.Error("gemini bridge subprocess failed to start", zap.Error(err))
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      srv,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("claude-gateway listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.Error("server exited unexpectedly", zap.Error(err))
	}

	sup.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
