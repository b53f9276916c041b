package domain

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	over := &OverAllocatedError{ItemID: "i1", Requested: decimal.NewFromInt(2), Remaining: decimal.NewFromInt(1)}

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", ErrItemNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("claim: %w", ErrNotEnrolled), KindNotFound},
		{"invalid quantity", ErrInvalidQuantity, KindInvalidInput},
		{"invalid field", InvalidInput("name is required"), KindInvalidInput},
		{"over allocated", over, KindOverAllocated},
		{"wrapped over allocated", fmt.Errorf("tx: %w", over), KindOverAllocated},
		{"closed", ErrSessionClosed, KindConflict},
		{"unknown", fmt.Errorf("disk on fire"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestOverAllocatedErrorMessage(t *testing.T) {
	err := &OverAllocatedError{ItemID: "beer", Requested: decimal.NewFromInt(2), Remaining: decimal.RequireFromString("0.5")}
	assert.Equal(t, "item beer over-allocated: requested 2, remaining 0.5", err.Error())
	assert.ErrorIs(t, err, ErrOverAllocated)
}

func TestColorFor(t *testing.T) {
	assert.Equal(t, DefaultColor, ColorFor(""))
	assert.Equal(t, ColorFor("42"), ColorFor("42"))
	assert.Contains(t, Palette, ColorFor("123456789"))
}

func TestParticipantDisplayName(t *testing.T) {
	assert.Equal(t, "Ivan Petrov", (&Participant{FirstName: "Ivan", LastName: "Petrov"}).DisplayName())
	assert.Equal(t, "Ivan", (&Participant{FirstName: "Ivan", Username: "ivan"}).DisplayName())
	assert.Equal(t, "ivan", (&Participant{Username: "ivan"}).DisplayName())
	assert.Equal(t, "Participant", (&Participant{}).DisplayName())
}

func TestFitsPlaces(t *testing.T) {
	d := decimal.RequireFromString
	assert.True(t, FitsPlaces(d("1"), QuantityPlaces))
	assert.True(t, FitsPlaces(d("0.3333"), QuantityPlaces))
	assert.False(t, FitsPlaces(d("0.33333"), QuantityPlaces))
	assert.True(t, FitsPlaces(d("1250.50"), MoneyPlaces))
	assert.False(t, FitsPlaces(d("10.005"), MoneyPlaces))
}
