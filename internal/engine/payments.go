package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/protocol"
)

// PaymentRequest records money received from a participant.
type PaymentRequest struct {
	SessionID     string
	ParticipantID string
	Amount        decimal.Decimal
	ProofRef      string
}

// RecordPayment stores a payment and marks the participant as paid. The
// amount is not checked against the participant's share.
func (e *Engine) RecordPayment(ctx context.Context, req PaymentRequest) (*domain.Payment, error) {
	if !req.Amount.IsPositive() || !domain.FitsPlaces(req.Amount, domain.MoneyPlaces) {
		return nil, domain.ErrInvalidAmount
	}
	if req.ParticipantID == "" {
		return nil, domain.InvalidInput("participantId is required")
	}
	if _, _, err := e.requireEnrollment(ctx, req.SessionID, req.ParticipantID, policy.ActionRecordPayment); err != nil {
		return nil, err
	}

	payment := &domain.Payment{
		ID:            uuid.New().String(),
		SessionID:     req.SessionID,
		ParticipantID: req.ParticipantID,
		Amount:        req.Amount,
		ProofRef:      req.ProofRef,
		ConfirmedAt:   e.now(),
	}
	if err := e.store.RecordPayment(ctx, payment); err != nil {
		return nil, err
	}

	e.logger.Info("payment recorded",
		"session_id", req.SessionID,
		"participant_id", req.ParticipantID,
		"amount", req.Amount.String())

	e.notify(req.SessionID, &protocol.RosterUpdatedMessage{ParticipantID: req.ParticipantID})
	return payment, nil
}

// ListPayments returns a session's payments, narrowed to one participant
// when participantID is set.
func (e *Engine) ListPayments(ctx context.Context, sessionID, participantID string) ([]domain.Payment, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	payments, err := e.store.ListPayments(ctx, sessionID, participantID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []domain.Payment{}
	}
	return payments, nil
}

// AttachPaymentProof sets the proof reference of a recorded payment.
func (e *Engine) AttachPaymentProof(ctx context.Context, paymentID, proofRef string) (*domain.Payment, error) {
	if proofRef == "" {
		return nil, domain.InvalidInput("proofRef is required")
	}
	payment, err := e.store.AttachPaymentProof(ctx, paymentID, proofRef)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, domain.ErrPaymentNotFound
	}
	return payment, nil
}
