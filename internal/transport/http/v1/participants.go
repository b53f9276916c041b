package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/snekaaa/banya-check/internal/engine"
)

// GetParticipantByExternalID resolves a chat identity to a participant.
// GET /api/participants/by-external/:external_id
func (h *Handler) GetParticipantByExternalID(c echo.Context) error {
	p, err := h.engine.ResolveParticipant(c.Request().Context(), engine.ParticipantRef{ExternalID: c.Param("external_id")})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// ListParticipantSessions lists the sessions a participant is enrolled in.
// GET /api/participants/:participant_id/sessions
func (h *Handler) ListParticipantSessions(c echo.Context) error {
	sessions, err := h.engine.ListParticipantSessions(c.Request().Context(), c.Param("participant_id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}
