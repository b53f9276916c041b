package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/policy"
	"github.com/snekaaa/banya-check/internal/protocol"
)

// ItemInput describes a bill line to add. A zero quantity means one unit.
type ItemInput struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  decimal.Decimal
	IsCommon  bool
}

func (in ItemInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return domain.InvalidInput("name is required")
	}
	if !in.UnitPrice.IsPositive() {
		return domain.InvalidInput("unitPrice must be greater than zero")
	}
	if !domain.FitsPlaces(in.UnitPrice, domain.MoneyPlaces) {
		return domain.InvalidInput("unitPrice has more than 2 decimal places")
	}
	if in.Quantity.IsNegative() || !domain.FitsPlaces(in.Quantity, domain.QuantityPlaces) {
		return domain.ErrInvalidQuantity
	}
	return nil
}

func (e *Engine) newItem(sessionID string, in ItemInput) domain.Item {
	qty := in.Quantity
	if qty.IsZero() {
		qty = decimal.NewFromInt(1)
	}
	return domain.Item{
		ID:            uuid.New().String(),
		SessionID:     sessionID,
		Name:          strings.TrimSpace(in.Name),
		UnitPrice:     in.UnitPrice,
		TotalQuantity: qty,
		IsCommon:      in.IsCommon,
		CreatedAt:     e.now(),
	}
}

// AddExpense adds one item to a session.
func (e *Engine) AddExpense(ctx context.Context, sessionID string, in ItemInput) (*domain.Item, error) {
	items, err := e.ImportItems(ctx, sessionID, []ItemInput{in})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

// ImportItems adds several items to a session at once, as confirmed from a
// scanned receipt. Nothing is stored when any line is invalid.
func (e *Engine) ImportItems(ctx context.Context, sessionID string, lines []ItemInput) ([]domain.Item, error) {
	if len(lines) == 0 {
		return nil, domain.InvalidInput("at least one item is required")
	}
	for i, in := range lines {
		if err := in.validate(); err != nil {
			if len(lines) > 1 {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			return nil, err
		}
	}
	if _, err := e.requireSession(ctx, sessionID, policy.ActionAddExpense); err != nil {
		return nil, err
	}

	items := make([]domain.Item, 0, len(lines))
	for _, in := range lines {
		items = append(items, e.newItem(sessionID, in))
	}
	if err := e.store.CreateItems(ctx, items); err != nil {
		return nil, err
	}

	e.logger.Info("items added", "session_id", sessionID, "count", len(items))
	e.notify(sessionID, &protocol.ExpensesUpdatedMessage{})
	return items, nil
}

// DeleteItem removes an item together with its selections.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	item, err := e.store.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item == nil {
		return domain.ErrItemNotFound
	}
	if _, err := e.requireSession(ctx, item.SessionID, policy.ActionDeleteItem); err != nil {
		return err
	}

	ok, err := e.store.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrItemNotFound
	}

	e.notify(item.SessionID, &protocol.ExpensesUpdatedMessage{})
	return nil
}
