package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/engine"
)

// SelectRequest is the request to claim part of an item.
type SelectRequest struct {
	ParticipantID string          `json:"participantId"`
	ExternalID    string          `json:"externalId"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// SelectItem claims a quantity of an item for a participant.
// POST /api/items/:item_id/select
func (h *Handler) SelectItem(c echo.Context) error {
	var req SelectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.engine.ClaimSelection(c.Request().Context(), engine.ClaimRequest{
		ItemID:      c.Param("item_id"),
		Participant: engine.ParticipantRef{ID: req.ParticipantID, ExternalID: req.ExternalID},
		Quantity:    req.Quantity,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":        true,
		"selection": res.Selection,
		"remaining": res.Remaining,
	})
}

// UnselectRequest names the participant releasing a claim. It may come in
// the body or the query string.
type UnselectRequest struct {
	ParticipantID string `json:"participantId" query:"participantId"`
	ExternalID    string `json:"externalId" query:"externalId"`
}

// UnselectItem releases a participant's claim on an item.
// DELETE /api/items/:item_id/unselect
func (h *Handler) UnselectItem(c echo.Context) error {
	var req UnselectRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	res, err := h.engine.ReleaseSelection(c.Request().Context(), c.Param("item_id"),
		engine.ParticipantRef{ID: req.ParticipantID, ExternalID: req.ExternalID})
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":       true,
		"released": res.Released,
	})
}

// ConfirmRequest names the participant toggling confirmation.
type ConfirmRequest struct {
	ParticipantID string `json:"participantId"`
}

// ConfirmSelection locks a participant's selections.
// POST /api/sessions/:session_id/confirm-selection
func (h *Handler) ConfirmSelection(c echo.Context) error {
	return h.toggleConfirmation(c, true)
}

// UnconfirmSelection re-opens a participant's selections.
// POST /api/sessions/:session_id/unconfirm-selection
func (h *Handler) UnconfirmSelection(c echo.Context) error {
	return h.toggleConfirmation(c, false)
}

func (h *Handler) toggleConfirmation(c echo.Context, confirm bool) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.ParticipantID == "" {
		return badRequest(c, "participantId is required")
	}

	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	toggle := h.engine.UnconfirmSelections
	if confirm {
		toggle = h.engine.ConfirmSelections
	}
	roster, err := toggle(ctx, sessionID, req.ParticipantID)
	if err != nil {
		return h.errorResponse(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":           true,
		"participants": roster,
	})
}
