package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/protocol"
	"github.com/snekaaa/banya-check/internal/store"
)

// ClaimRequest sets a participant's quantity of a partial item.
type ClaimRequest struct {
	ItemID      string
	Participant ParticipantRef
	Quantity    decimal.Decimal
}

// ClaimSelection replaces the participant's claim on an item. It fails with
// an *domain.OverAllocatedError when the other participants' claims leave
// less than the requested quantity.
func (e *Engine) ClaimSelection(ctx context.Context, req ClaimRequest) (*store.ClaimResult, error) {
	if !req.Quantity.IsPositive() || !domain.FitsPlaces(req.Quantity, domain.QuantityPlaces) {
		return nil, domain.ErrInvalidQuantity
	}
	if req.ItemID == "" {
		return nil, domain.InvalidInput("itemId is required")
	}
	p, err := e.ResolveParticipant(ctx, req.Participant)
	if err != nil {
		return nil, err
	}

	res, err := e.store.ClaimSelection(ctx, store.Claim{
		ItemID:        req.ItemID,
		ParticipantID: p.ID,
		Quantity:      req.Quantity,
	}, e.selectionGuard(ctx, policy.ActionClaim))
	if err != nil {
		return nil, err
	}

	e.logger.Debug("selection claimed",
		"item_id", req.ItemID,
		"participant_id", p.ID,
		"quantity", req.Quantity.String(),
		"remaining", res.Remaining.String())

	e.notify(res.Item.SessionID, &protocol.ItemSelectionUpdatedMessage{
		ItemID:        req.ItemID,
		ParticipantID: p.ID,
		Quantity:      req.Quantity,
	})
	return res, nil
}

// ReleaseSelection deletes the participant's claim on an item. Releasing an
// absent claim succeeds.
func (e *Engine) ReleaseSelection(ctx context.Context, itemID string, ref ParticipantRef) (*store.ReleaseResult, error) {
	if itemID == "" {
		return nil, domain.InvalidInput("itemId is required")
	}
	p, err := e.ResolveParticipant(ctx, ref)
	if err != nil {
		return nil, err
	}

	res, err := e.store.ReleaseSelection(ctx, itemID, p.ID, e.selectionGuard(ctx, policy.ActionRelease))
	if err != nil {
		return nil, err
	}

	e.notify(res.Item.SessionID, &protocol.ItemSelectionUpdatedMessage{
		ItemID:        itemID,
		ParticipantID: p.ID,
		Quantity:      decimal.Zero,
	})
	return res, nil
}

// selectionGuard runs inside the claim or release transaction.
func (e *Engine) selectionGuard(ctx context.Context, action string) store.Guard {
	return func(st store.MutationState) error {
		if action == policy.ActionClaim && st.Item.IsCommon {
			return domain.ErrItemNotClaimable
		}
		return e.check(ctx, policy.Input{
			Action:             action,
			SessionStatus:      string(st.Session.Status),
			SelectionConfirmed: st.Enrollment.SelectionConfirmed,
			Role:               string(st.Enrollment.Role),
		})
	}
}

// ConfirmSelections locks the participant's selections and returns the
// refreshed roster.
func (e *Engine) ConfirmSelections(ctx context.Context, sessionID, participantID string) ([]domain.RosterEntry, error) {
	return e.setConfirmed(ctx, sessionID, participantID, true)
}

// UnconfirmSelections re-opens the participant's selections for editing.
func (e *Engine) UnconfirmSelections(ctx context.Context, sessionID, participantID string) ([]domain.RosterEntry, error) {
	return e.setConfirmed(ctx, sessionID, participantID, false)
}

func (e *Engine) setConfirmed(ctx context.Context, sessionID, participantID string, confirmed bool) ([]domain.RosterEntry, error) {
	if participantID == "" {
		return nil, domain.InvalidInput("participantId is required")
	}
	action := policy.ActionUnconfirm
	if confirmed {
		action = policy.ActionConfirm
	}
	if _, _, err := e.requireEnrollment(ctx, sessionID, participantID, action); err != nil {
		return nil, err
	}

	ok, err := e.store.SetSelectionConfirmed(ctx, sessionID, participantID, confirmed)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrNotEnrolled
	}

	roster, err := e.store.ListRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	e.notify(sessionID, &protocol.SelectionConfirmedMessage{
		ParticipantID: participantID,
		Confirmed:     confirmed,
		Participants:  roster,
	})
	return roster, nil
}
