package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/terra-clan/contest-client/internal/api"
	"github.com/terra-clan/contest-client/internal/config"
	"github.com/terra-clan/contest-client/internal/drafts"
	"github.com/terra-clan/contest-client/internal/logging"
	"github.com/terra-clan/contest-client/internal/session"
	"github.com/terra-clan/contest-client/internal/storage"
	"github.com/terra-clan/contest-client/internal/templates"
	"github.com/terra-clan/contest-client/pkg/client"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	slog.SetDefault(slog.New(logging.NewHandler(cfg.Log, os.Stdout)))

	slog.Info("starting contest-client",
		"api", cfg.API.BaseURL,
		"storage", cfg.Storage.Backend,
		"addr", cfg.Bridge.Addr(),
	)

	// Create context for initialization
	initCtx, initCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer initCancel()

	store, err := storage.Open(initCtx, cfg)
	if err != nil {
		slog.Error("failed to open local store", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	// Load templates
	templateLoader := templates.NewLoader()
	if cfg.Templates.Dir != "" {
		if err := templateLoader.LoadFromDir(cfg.Templates.Dir); err != nil {
			slog.Warn("failed to load templates from dir", "dir", cfg.Templates.Dir, "error", err)
		}
	}

	judge := client.NewClient(cfg.API.BaseURL, client.WithTimeout(cfg.API.Timeout))

	// Background loops live until shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := session.New(judge, store, drafts.NewCache(store, templateLoader), session.WithContext(ctx))

	// Resume the last contest, if any
	if _, _, err := sess.Restore(initCtx); err == nil {
		if _, err := sess.Enter(initCtx); err != nil {
			slog.Warn("failed to enter restored contest", "error", err)
		}
	}

	// Setup HTTP server
	server := api.NewServer(cfg.Bridge, sess, judge, store, templateLoader)
	httpServer := &http.Server{
		Addr:        cfg.Bridge.Addr(),
		Handler:     server.Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down gracefully...")

	// Cancel context to stop background loops
	cancel()
	sess.Close()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	if err := store.Close(); err != nil {
		slog.Error("store close error", "error", err)
	}

	slog.Info("contest-client stopped")
}
