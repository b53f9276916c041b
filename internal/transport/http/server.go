// Package http assembles the public and internal echo servers.
package http

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/snekaaa/banya-check/internal/engine"
	"github.com/snekaaa/banya-check/internal/hub"
	"github.com/snekaaa/banya-check/internal/transport/http/internalapi"
	v1 "github.com/snekaaa/banya-check/internal/transport/http/v1"
	"github.com/snekaaa/banya-check/internal/ws"
)

// NewPublicServer creates the server for bill views: the REST API and the
// presence socket.
func NewPublicServer(eng *engine.Engine, wsServer *ws.Server, logger *slog.Logger) *echo.Echo {
	e := newEcho(logger)
	e.Use(middleware.CORS())

	v1.NewHandler(eng, logger).RegisterRoutes(e)
	e.GET("/ws", wsServer.HandleWebSocket)

	return e
}

// NewInternalServer creates the server relays post content events to.
func NewInternalServer(h *hub.Hub, logger *slog.Logger) *echo.Echo {
	e := newEcho(logger)
	internalapi.NewHandler(h, logger).RegisterRoutes(e)
	return e
}

func newEcho(logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= 500 {
				level = slog.LevelError
			}
			logger.LogAttrs(context.Background(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	return e
}
