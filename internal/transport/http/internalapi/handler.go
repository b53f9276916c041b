// Package internalapi provides the hub's internal HTTP handlers. These are
// reachable only from processes that relay content events.
package internalapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snekaaa/banya-check/internal/protocol"
	"github.com/snekaaa/banya-check/internal/relay"
)

// Hub is the part of the presence hub the internal API drives.
type Hub interface {
	relay.Broadcaster
	ConnectionCount() int
	RoomCount() int
	Online(sessionID string) []protocol.OnlineUser
}

// Handler handles internal HTTP requests.
type Handler struct {
	hub    Hub
	logger *slog.Logger
}

// NewHandler creates a new internal API handler.
func NewHandler(h Hub, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:    h,
		logger: logger,
	}
}

// RegisterRoutes registers internal routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.POST(relay.SendPath, h.Send)
	e.GET("/internal/sessions/:session_id/online", h.Online)
}

// Health handles health check requests.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "healthy",
		"connections": h.hub.ConnectionCount(),
		"rooms":       h.hub.RoomCount(),
	})
}

// SendResponse represents the response for POST /internal/send.
type SendResponse struct {
	OK        bool `json:"ok"`
	Delivered int  `json:"delivered"`
}

// Send broadcasts a relayed content event to a session room.
// POST /internal/send
func (h *Handler) Send(c echo.Context) error {
	var env relay.Envelope
	if err := c.Bind(&env); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	sessionID, event, err := relay.ParseEnvelope(env)
	if err != nil {
		msg := err.Error()
		if errors.Is(err, relay.ErrNotContent) {
			msg = "event must be a content event"
		}
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	delivered := h.hub.Publish(sessionID, event)
	h.logger.Debug("event relayed",
		"session_id", sessionID,
		"type", event.EventType(),
		"delivered", delivered)

	return c.JSON(http.StatusOK, SendResponse{
		OK:        true,
		Delivered: delivered,
	})
}

// Online lists who is viewing a session.
// GET /internal/sessions/:session_id/online
func (h *Handler) Online(c echo.Context) error {
	users := h.hub.Online(c.Param("session_id"))
	if users == nil {
		users = []protocol.OnlineUser{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"users": users,
	})
}
