package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// ComputeShares splits a bill across the going participants of roster, in
// roster order. Common items are divided equally by the going head count
// (at least one); partial items are charged by each participant's own
// claimed quantity.
func ComputeShares(roster []domain.RosterEntry, items []domain.Item, selections []domain.Selection) []domain.Share {
	going := goingOnly(roster)

	heads := decimal.NewFromInt(int64(len(going)))
	if len(going) == 0 {
		heads = decimal.NewFromInt(1)
	}

	common := decimal.Zero
	prices := make(map[string]decimal.Decimal, len(items))
	for i := range items {
		if items[i].IsCommon {
			common = common.Add(items[i].Cost())
			continue
		}
		prices[items[i].ID] = items[i].UnitPrice
	}
	perHead := common.Div(heads)

	partial := make(map[string]decimal.Decimal, len(going))
	for _, sel := range selections {
		price, ok := prices[sel.ItemID]
		if !ok {
			continue
		}
		partial[sel.ParticipantID] = partial[sel.ParticipantID].Add(price.Mul(sel.Quantity))
	}

	shares := make([]domain.Share, 0, len(going))
	for _, r := range going {
		own := partial[r.ParticipantID]
		shares = append(shares, domain.Share{
			ParticipantID: r.ParticipantID,
			Common:        perHead,
			Partial:       own,
			Total:         perHead.Add(own),
		})
	}
	return shares
}

func goingOnly(roster []domain.RosterEntry) []domain.RosterEntry {
	out := make([]domain.RosterEntry, 0, len(roster))
	for _, r := range roster {
		if r.Attendance == domain.AttendanceGoing {
			out = append(out, r)
		}
	}
	return out
}

// Shares recomputes the session's shares from the store.
func (e *Engine) Shares(ctx context.Context, sessionID string) ([]domain.Share, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return ComputeShares(st.roster, st.items, st.selections), nil
}

// Snapshot returns the authoritative state of a session as shown to the
// going participants.
func (e *Engine) Snapshot(ctx context.Context, sessionID string) (*domain.SessionSnapshot, error) {
	st, err := e.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	payments, err := e.store.ListPayments(ctx, sessionID, "")
	if err != nil {
		return nil, err
	}

	byItem := make(map[string][]domain.Selection)
	byParticipant := make(map[string][]domain.Selection)
	for _, sel := range st.selections {
		byItem[sel.ItemID] = append(byItem[sel.ItemID], sel)
		byParticipant[sel.ParticipantID] = append(byParticipant[sel.ParticipantID], sel)
	}

	snap := &domain.SessionSnapshot{
		Session:      *st.session,
		Participants: []domain.ParticipantView{},
		Items:        make([]domain.ItemView, 0, len(st.items)),
		Total:        decimal.Zero,
		Paid:         decimal.Zero,
	}

	for _, item := range st.items {
		sels := byItem[item.ID]
		claimed := decimal.Zero
		for _, sel := range sels {
			claimed = claimed.Add(sel.Quantity)
		}
		remaining := item.TotalQuantity.Sub(claimed)
		if remaining.IsNegative() {
			remaining = decimal.Zero
		}
		if sels == nil {
			sels = []domain.Selection{}
		}
		snap.Items = append(snap.Items, domain.ItemView{
			Item:       item,
			Claimed:    claimed,
			Remaining:  remaining,
			Selections: sels,
		})
		snap.Total = snap.Total.Add(item.Cost())
	}

	shares := ComputeShares(st.roster, st.items, st.selections)
	for i, r := range goingOnly(st.roster) {
		sels := byParticipant[r.ParticipantID]
		if sels == nil {
			sels = []domain.Selection{}
		}
		snap.Participants = append(snap.Participants, domain.ParticipantView{
			RosterEntry: r,
			Selections:  sels,
			Share:       shares[i],
		})
	}

	for _, p := range payments {
		snap.Paid = snap.Paid.Add(p.Amount)
	}
	return snap, nil
}

type sessionState struct {
	session    *domain.Session
	roster     []domain.RosterEntry
	items      []domain.Item
	selections []domain.Selection
}

func (e *Engine) load(ctx context.Context, sessionID string) (*sessionState, error) {
	session, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	roster, err := e.store.ListRoster(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	items, err := e.store.ListItems(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	selections, err := e.store.ListSelections(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &sessionState{session: session, roster: roster, items: items, selections: selections}, nil
}
