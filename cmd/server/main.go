package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/likithgowdabh/eventstack/internal/app"
	"github.com/likithgowdabh/eventstack/internal/config"
	httpTransport "github.com/likithgowdabh/eventstack/internal/transport/http"
)

func main() {
	// Load configuration
	cfg := config.Load()

	logger := cfg.Logging.NewLogger(os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting vote server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	// Create event hub
	hub := app.NewEventHub(app.NewVoteStore(), logger)
	defer hub.Close()

	server := httpTransport.NewServer(cfg, hub, logger)

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
