package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snekaaa/banya-check/internal/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func rosterOf(statuses ...domain.AttendanceStatus) []domain.RosterEntry {
	out := make([]domain.RosterEntry, 0, len(statuses))
	for i, s := range statuses {
		id := string(rune('a' + i))
		out = append(out, domain.RosterEntry{
			Enrollment:  domain.Enrollment{ParticipantID: id, Attendance: s},
			Participant: domain.Participant{ID: id},
		})
	}
	return out
}

func TestComputeSharesSplitsCommonItemsEqually(t *testing.T) {
	roster := rosterOf(domain.AttendanceGoing, domain.AttendanceGoing, domain.AttendanceGoing, domain.AttendanceGoing)
	items := []domain.Item{{ID: "rent", UnitPrice: dec("1000"), TotalQuantity: dec("1"), IsCommon: true}}

	shares := ComputeShares(roster, items, nil)

	require.Len(t, shares, 4)
	for _, s := range shares {
		assert.True(t, s.Common.Equal(dec("250")), "common share %s", s.Common)
		assert.True(t, s.Partial.IsZero())
		assert.True(t, s.Total.Equal(dec("250")))
	}
}

func TestComputeSharesCountsOnlyGoing(t *testing.T) {
	roster := rosterOf(domain.AttendanceGoing, domain.AttendanceMaybe, domain.AttendanceGoing, domain.AttendanceNotGoing)
	items := []domain.Item{{ID: "rent", UnitPrice: dec("300"), TotalQuantity: dec("2"), IsCommon: true}}

	shares := ComputeShares(roster, items, nil)

	require.Len(t, shares, 2)
	assert.Equal(t, "a", shares[0].ParticipantID)
	assert.Equal(t, "c", shares[1].ParticipantID)
	assert.True(t, shares[0].Total.Equal(dec("300")))
}

func TestComputeSharesWithNobodyGoing(t *testing.T) {
	roster := rosterOf(domain.AttendanceMaybe)
	items := []domain.Item{{ID: "rent", UnitPrice: dec("1000"), TotalQuantity: dec("1"), IsCommon: true}}

	assert.NotPanics(t, func() {
		assert.Empty(t, ComputeShares(roster, items, nil))
		assert.Empty(t, ComputeShares(nil, nil, nil))
	})
}

func TestComputeSharesChargesPartialClaims(t *testing.T) {
	roster := rosterOf(domain.AttendanceGoing, domain.AttendanceGoing, domain.AttendanceMaybe)
	items := []domain.Item{
		{ID: "rent", UnitPrice: dec("900"), TotalQuantity: dec("1"), IsCommon: true},
		{ID: "beer", UnitPrice: dec("500"), TotalQuantity: dec("4")},
		{ID: "tea", UnitPrice: dec("120"), TotalQuantity: dec("1")},
	}
	selections := []domain.Selection{
		{ItemID: "beer", ParticipantID: "a", Quantity: dec("3")},
		{ItemID: "beer", ParticipantID: "b", Quantity: dec("1")},
		{ItemID: "tea", ParticipantID: "b", Quantity: dec("0.5")},
		{ItemID: "tea", ParticipantID: "c", Quantity: dec("0.5")},
		{ItemID: "rent", ParticipantID: "a", Quantity: dec("1")},
	}

	shares := ComputeShares(roster, items, selections)

	require.Len(t, shares, 2)
	assert.True(t, shares[0].Common.Equal(dec("450")))
	assert.True(t, shares[0].Partial.Equal(dec("1500")), "a partial %s", shares[0].Partial)
	assert.True(t, shares[0].Total.Equal(dec("1950")))
	assert.True(t, shares[1].Partial.Equal(dec("560")), "b partial %s", shares[1].Partial)
	assert.True(t, shares[1].Total.Equal(dec("1010")))
}
