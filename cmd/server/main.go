package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/snaptosheet/invoice-extract-service/api"
	"github.com/snaptosheet/invoice-extract-service/internal/auth"
	"github.com/snaptosheet/invoice-extract-service/internal/config"
	"github.com/snaptosheet/invoice-extract-service/internal/logging"
)

func main() {
	// A missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Style)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Create API handler
	handler := api.NewHandler(cfg, logger)
	router := handler.SetupRoutes()

	// Wrap router with JWT middleware (skips /health and /metrics, no-op without a secret)
	authenticator := auth.New(cfg.Auth.JWTSecret)
	protectedRouter := authenticator.JWTMiddleware(router)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           protectedRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("server.starting",
		zap.String("addr", addr),
		zap.String("version", api.Version),
		zap.String("environment", cfg.Environment),
		zap.String("default_provider", cfg.AI.DefaultProvider),
		zap.Bool("auth", authenticator.Enabled()),
		zap.Bool("debug_endpoint", cfg.Debug),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server.failed", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info("server.shutting_down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server.shutdown_failed", zap.Error(err))
		}
	}
}
