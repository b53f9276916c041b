package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies an error for callers that translate it to a status.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidInput
	KindOverAllocated
	KindConflict
)

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrItemNotFound        = errors.New("item not found")
	ErrParticipantNotFound = errors.New("participant not found")
	ErrNotEnrolled         = errors.New("participant not enrolled in session")
	ErrPaymentNotFound     = errors.New("payment not found")

	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidQuantity  = errors.New("quantity must be positive with at most 4 decimal places")
	ErrInvalidAmount    = errors.New("amount must be positive with at most 2 decimal places")
	ErrItemNotClaimable = errors.New("common items cannot be claimed")

	ErrOverAllocated = errors.New("item over-allocated")

	ErrSessionClosed      = errors.New("session is closed")
	ErrSelectionConfirmed = errors.New("selection already confirmed")
)

// OverAllocatedError is returned when a claim exceeds the claimable quantity.
type OverAllocatedError struct {
	ItemID    string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *OverAllocatedError) Error() string {
	return fmt.Sprintf("item %s over-allocated: requested %s, remaining %s",
		e.ItemID, e.Requested.String(), e.Remaining.String())
}

func (e *OverAllocatedError) Is(target error) bool {
	return target == ErrOverAllocated
}

// InvalidInput wraps ErrInvalidInput with a field-specific message.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// KindOf classifies err against the domain sentinels.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrOverAllocated):
		return KindOverAllocated
	case errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrParticipantNotFound),
		errors.Is(err, ErrNotEnrolled),
		errors.Is(err, ErrPaymentNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrItemNotClaimable):
		return KindInvalidInput
	case errors.Is(err, ErrSessionClosed),
		errors.Is(err, ErrSelectionConfirmed):
		return KindConflict
	}
	return KindInternal
}
