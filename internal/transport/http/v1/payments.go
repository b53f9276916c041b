package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/engine"
)

// PaymentRequest is the request to record a payment.
type PaymentRequest struct {
	ParticipantID string          `json:"participantId"`
	Amount        decimal.Decimal `json:"amount"`
	ProofRef      string          `json:"proofRef"`
}

// RecordPayment records a payment for a participant.
// POST /api/sessions/:session_id/payments
func (h *Handler) RecordPayment(c echo.Context) error {
	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	payment, err := h.engine.RecordPayment(c.Request().Context(), engine.PaymentRequest{
		SessionID:     c.Param("session_id"),
		ParticipantID: req.ParticipantID,
		Amount:        req.Amount,
		ProofRef:      req.ProofRef,
	})
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, payment)
}

// ListPayments lists a participant's payments in a session.
// GET /api/sessions/:session_id/payments/:participant_id
func (h *Handler) ListPayments(c echo.Context) error {
	payments, err := h.engine.ListPayments(c.Request().Context(), c.Param("session_id"), c.Param("participant_id"))
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"payments": payments,
	})
}

// ProofRequest attaches a proof to a payment.
type ProofRequest struct {
	ProofRef string `json:"proofRef"`
}

// AttachPaymentProof sets a payment's proof reference.
// PATCH /api/payments/:payment_id
func (h *Handler) AttachPaymentProof(c echo.Context) error {
	var req ProofRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	payment, err := h.engine.AttachPaymentProof(c.Request().Context(), c.Param("payment_id"), req.ProofRef)
	if err != nil {
		return h.errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, payment)
}
