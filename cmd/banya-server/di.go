package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/snekaaa/banya-check/internal/config"
	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/hub"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/relay"
	"github.com/snekaaa/banya-check/internal/store"
	transporthttp "github.com/snekaaa/banya-check/internal/transport/http"
	"github.com/snekaaa/banya-check/internal/ws"
)

const (
	databaseInitTimeout = 15 * time.Second
	publicServer        = "public"
	internalServer      = "internal"
)

func setupDI(cfg *config.Config, logger *slog.Logger) do.Injector {
	injector := do.New()

	do.ProvideValue(injector, cfg)
	do.ProvideValue(injector, logger)
	registerStore(injector)
	registerPolicy(injector)
	registerPresence(injector)
	registerRelay(injector)
	registerEngine(injector)
	registerServers(injector)

	return injector
}

func registerStore(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (store.Store, error) {
		cfg := do.MustInvoke[*config.Config](i)

		switch cfg.DatabaseDriver {
		case config.DriverPostgres:
			ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
			defer cancel()
			s, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open postgres store: %w", err)
			}
			return s, nil
		default:
			s, err := store.NewSQLiteStore(cfg.DatabaseURL)
			if err != nil {
				return nil, fmt.Errorf("failed to open sqlite store: %w", err)
			}
			return s, nil
		}
	})
}

func registerPolicy(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*policy.Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)

		content := policy.DefaultPolicy
		if cfg.PolicyFile != "" {
			data, err := os.ReadFile(cfg.PolicyFile)
			if err != nil {
				return nil, fmt.Errorf("failed to read policy file: %w", err)
			}
			content = string(data)
		}
		return policy.NewEngine(context.Background(), content)
	})
}

func registerPresence(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*hub.Hub, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return hub.NewHub(hub.Options{
			Logger:           do.MustInvoke[*slog.Logger](i),
			HeartbeatTimeout: cfg.HeartbeatTimeout,
			SweepInterval:    cfg.SweepInterval,
		}), nil
	})

	do.Provide(injector, func(i do.Injector) (*ws.Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return ws.NewServer(do.MustInvoke[*hub.Hub](i), ws.Options{
			MaxMessageSize: cfg.MaxMessageSize,
			WriteTimeout:   cfg.WriteTimeout,
			PingInterval:   cfg.HeartbeatInterval,
			Logger:         do.MustInvoke[*slog.Logger](i),
		}), nil
	})
}

func registerRelay(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*redis.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), databaseInitTimeout)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return client, nil
	})

	do.Provide(injector, func(i do.Injector) (relay.Notifier, error) {
		cfg := do.MustInvoke[*config.Config](i)

		switch cfg.RelayTransport {
		case config.RelayHTTP:
			return relay.NewHTTPClient(cfg.HubURL, nil), nil
		case config.RelayRedis:
			client, err := do.Invoke[*redis.Client](i)
			if err != nil {
				return nil, err
			}
			return relay.NewRedisPublisher(client, cfg.RedisChannel), nil
		default:
			return relay.NewLocal(do.MustInvoke[*hub.Hub](i)), nil
		}
	})
}

func registerEngine(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*engine.Engine, error) {
		cfg := do.MustInvoke[*config.Config](i)
		s, err := do.Invoke[store.Store](i)
		if err != nil {
			return nil, err
		}
		notifier, err := do.Invoke[relay.Notifier](i)
		if err != nil {
			return nil, err
		}
		return engine.New(s, engine.Options{
			Policy:        do.MustInvoke[*policy.Engine](i),
			Notifier:      notifier,
			Logger:        do.MustInvoke[*slog.Logger](i),
			NotifyTimeout: cfg.NotifyTimeout,
		}), nil
	})
}

func registerServers(injector do.Injector) {
	do.ProvideNamed(injector, publicServer, func(i do.Injector) (*echo.Echo, error) {
		eng, err := do.Invoke[*engine.Engine](i)
		if err != nil {
			return nil, err
		}
		return transporthttp.NewPublicServer(eng, do.MustInvoke[*ws.Server](i), do.MustInvoke[*slog.Logger](i)), nil
	})

	do.ProvideNamed(injector, internalServer, func(i do.Injector) (*echo.Echo, error) {
		return transporthttp.NewInternalServer(do.MustInvoke[*hub.Hub](i), do.MustInvoke[*slog.Logger](i)), nil
	})
}
