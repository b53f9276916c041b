// Package v1 provides the public bill API handlers.
package v1

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/engine"
)

// Handler handles HTTP requests.
type Handler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewHandler creates a new handler.
func NewHandler(eng *engine.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: eng,
		logger: logger,
	}
}

// RegisterRoutes registers public routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	api := e.Group("/api")

	// Bill state
	api.GET("/sessions/:session_id", h.GetSession)
	api.GET("/sessions/:session_id/shares", h.GetShares)

	// Selections
	api.POST("/items/:item_id/select", h.SelectItem)
	api.DELETE("/items/:item_id/unselect", h.UnselectItem)
	api.POST("/sessions/:session_id/confirm-selection", h.ConfirmSelection)
	api.POST("/sessions/:session_id/unconfirm-selection", h.UnconfirmSelection)

	// Expenses
	api.POST("/sessions/:session_id/expenses", h.AddExpense)
	api.POST("/sessions/:session_id/receipt-items", h.AddReceiptItems)
	api.DELETE("/items/:item_id", h.DeleteItem)

	// Payments
	api.POST("/sessions/:session_id/payments", h.RecordPayment)
	api.GET("/sessions/:session_id/payments/:participant_id", h.ListPayments)
	api.PATCH("/payments/:payment_id", h.AttachPaymentProof)

	// Sessions and participants
	api.POST("/sessions", h.CreateSession)
	api.POST("/sessions/:session_id/join", h.JoinSession)
	api.PUT("/sessions/:session_id/status", h.UpdateSessionStatus)
	api.PUT("/sessions/:session_id/participants/:participant_id/attendance", h.SetAttendance)
	api.GET("/participants/by-external/:external_id", h.GetParticipantByExternalID)
	api.GET("/participants/:participant_id/sessions", h.ListParticipantSessions)
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

// errorResponse maps a domain error to its status. A rejected claim also
// reports how much is still claimable.
func (h *Handler) errorResponse(c echo.Context, err error) error {
	var over *domain.OverAllocatedError
	if errors.As(err, &over) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error":     err.Error(),
			"remaining": over.Remaining,
		})
	}

	switch domain.KindOf(err) {
	case domain.KindNotFound:
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	case domain.KindInvalidInput:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case domain.KindConflict:
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}

	h.logger.Error("request failed",
		"method", c.Request().Method,
		"path", c.Path(),
		"error", err)
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
