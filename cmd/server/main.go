package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Absterrg0/Excalidraw/internal/app"
	httpx "github.com/Absterrg0/Excalidraw/internal/http"
	"github.com/Absterrg0/Excalidraw/internal/queue"
	"github.com/Absterrg0/Excalidraw/internal/store"
	"github.com/Absterrg0/Excalidraw/internal/ws"
	"github.com/Absterrg0/Excalidraw/pkg/auth"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres connection + migrations
	pg, err := store.NewPostgres(ctx, cfg, logger)
	if err != nil {
		logger.Error("postgres.connect", "err", err)
		os.Exit(1)
	}
	defer pg.Close()
	if err := store.RunMigrations(ctx, pg, logger); err != nil {
		logger.Error("migrations", "err", err)
		os.Exit(1)
	}

	// Optional redis bus for cross-instance fan-out
	var bus *ws.Bus
	if cfg.RedisAddr != "" {
		bus, err = ws.NewBus(ctx, cfg, logger)
		if err != nil {
			logger.Error("redis.connect", "err", err)
			os.Exit(1)
		}
		defer bus.Close()
	} else {
		logger.Info("bus.disabled")
	}

	// Write-behind queue for durable chat history
	q := queue.New(logger, pg, cfg.FlushInterval, cfg.HighWaterMark, cfg.FlushBatch)
	go q.Run(ctx)

	// WebSocket hub
	hub := ws.NewHub(logger, auth.New(cfg.JWTSecret), ws.NewRegistry(), q, bus)
	go hub.Run(ctx)

	// HTTP + WS router
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpx.NewRouter(cfg, hub, pg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	// One final drain so pending history is not silently lost
	q.DrainAndStop(shutdownCtx)

	logger.Info("server.shutdown.complete")
}
