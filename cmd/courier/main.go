package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/dukerupert/courier/internal/config"
	"github.com/dukerupert/courier/internal/logging"
	"github.com/dukerupert/courier/internal/relay"
	"github.com/dukerupert/courier/internal/server"
)

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	logger := logging.Setup("courier", os.Getenv("COURIER_LOG_LEVEL"))

	cfg := config.Load()

	srv := server.New(cfg, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		// No read/write deadlines: relay WebSocket connections are long-lived.
		IdleTimeout: 120 * time.Second,
	}

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	defer janitorCancel()
	janitor := relay.NewJanitor(srv.Store(), srv.RateLimiter(), cfg.SweepInterval, logger.With("component", "janitor"))
	go janitor.Run(janitorCtx)

	go func() {
		slog.Info("relay listening", "addr", httpServer.Addr, "relay_kind", cfg.RelayKind, "open_mode", cfg.OpenMode())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	janitorCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
