package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BioHazard786/meshroom/internal/config"
	"github.com/BioHazard786/meshroom/internal/logging"
	"github.com/BioHazard786/meshroom/internal/relay"
	"github.com/BioHazard786/meshroom/internal/server"
	"github.com/BioHazard786/meshroom/internal/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	logger := logging.Init(os.Stdout, slog.LevelInfo)

	cfg, err := config.LoadRelay(os.LookupEnv)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Create the Hub and run its event loop until shutdown.
	hub := relay.NewHub(logger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	// 2. Register the channel endpoint, health check and front-end.
	srv := &http.Server{
		Handler:           server.NewRouter(hub, cfg.StaticDir, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", cfg.Addr())
	if err != nil {
		logger.Error("failed to listen", "addr", cfg.Addr(), "err", err)
		os.Exit(1)
	}

	// 3. Start the server.
	logger.Info("starting signaling relay", "addr", ln.Addr().String(), "static_dir", cfg.StaticDir, "version", version.Version)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", "err", err)
			os.Exit(1)
		}
		return
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", "err", err)
	}
	// Hijacked websocket connections are not tracked by Shutdown; the hub
	// closing every send queue is what ends them.
	<-hubDone

	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server exited after shutdown", "err", err)
		os.Exit(1)
	}
}
