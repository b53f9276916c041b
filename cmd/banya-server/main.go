package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/snekaaa/banya-check/internal/config"
	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/hub"
	"github.com/snekaaa/banya-check/internal/relay"
	"github.com/snekaaa/banya-check/internal/store"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := mustLoadConfig()
	logger := initLogger(cfg)
	logger.Info("startup: configuration loaded",
		"env", cfg.Env,
		"public_port", cfg.PublicPort,
		"internal_port", cfg.InternalPort,
		"database_driver", cfg.DatabaseDriver,
		"relay", cfg.RelayTransport,
	)

	injector := setupDI(cfg, logger)
	if err := run(cfg, injector, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func mustLoadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func run(cfg *config.Config, injector do.Injector, logger *slog.Logger) error {
	s, err := do.Invoke[store.Store](injector)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}()

	connectionHub := do.MustInvoke[*hub.Hub](injector)
	eng, err := do.Invoke[*engine.Engine](injector)
	if err != nil {
		return err
	}
	publicEcho, err := do.InvokeNamed[*echo.Echo](injector, publicServer)
	if err != nil {
		return err
	}
	internalEcho := do.MustInvokeNamed[*echo.Echo](injector, internalServer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go connectionHub.Run(ctx)

	if cfg.RelayTransport == config.RelayRedis {
		client := do.MustInvoke[*redis.Client](injector)
		defer client.Close()

		sub := relay.NewRedisSubscriber(client, cfg.RedisChannel, connectionHub, logger)
		go func() {
			if err := sub.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("redis subscriber stopped", "error", err)
			}
		}()
	}

	errCh := make(chan error, 2)
	start := func(name string, e *echo.Echo, port int) {
		addr := fmt.Sprintf(":%d", port)
		logger.Info("server started", "server", name, "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s server: %w", name, err)
		}
	}
	go start(publicServer, publicEcho, cfg.PublicPort)
	go start(internalServer, internalEcho, cfg.InternalPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-quit:
		logger.Info("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := publicEcho.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown public server gracefully", "error", err)
	}
	if err := internalEcho.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown internal server gracefully", "error", err)
	}
	if err := eng.Drain(shutdownCtx); err != nil {
		logger.Error("pending notifications dropped", "error", err)
	}
	cancel()

	logger.Info("server stopped")
	return runErr
}
