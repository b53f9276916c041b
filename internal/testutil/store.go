// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/store"
)

func NewTestSQLiteStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create sqlite store: %v", err)
	}

	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// Fixture is a seeded active session.
type Fixture struct {
	Session      domain.Session
	Participants []domain.Participant
}

// SeedSession creates an active session "s1" with going participants p1..pN
// (external IDs ext-1..ext-N). p1 is the admin.
func SeedSession(t *testing.T, s store.Store, n int) Fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	f := Fixture{Session: domain.Session{
		ID:        "s1",
		Title:     "Banya night",
		Venue:     "Sandunovskie",
		Status:    domain.SessionStatusActive,
		AdminID:   "p1",
		CreatedAt: now,
	}}
	if err := s.CreateSession(ctx, &f.Session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	for i := 1; i <= n; i++ {
		p, err := s.UpsertParticipant(ctx, &domain.Participant{
			ID:         "p" + strconv.Itoa(i),
			ExternalID: "ext-" + strconv.Itoa(i),
			FirstName:  "Guest" + strconv.Itoa(i),
			Color:      domain.ColorFor("ext-" + strconv.Itoa(i)),
			CreatedAt:  now,
		})
		if err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}
		role := domain.RoleMember
		if i == 1 {
			role = domain.RoleAdmin
		}
		if _, err := s.EnrollParticipant(ctx, &domain.Enrollment{
			SessionID:     f.Session.ID,
			ParticipantID: p.ID,
			Attendance:    domain.AttendanceGoing,
			Role:          role,
			JoinedAt:      now.Add(time.Duration(i) * time.Millisecond),
		}); err != nil {
			t.Fatalf("EnrollParticipant failed: %v", err)
		}
		f.Participants = append(f.Participants, *p)
	}
	return f
}

// AddItem creates an item in the fixture session.
func AddItem(t *testing.T, s store.Store, id string, price, qty string, common bool) domain.Item {
	t.Helper()
	item := domain.Item{
		ID:            id,
		SessionID:     "s1",
		Name:          id,
		UnitPrice:     decimal.RequireFromString(price),
		TotalQuantity: decimal.RequireFromString(qty),
		IsCommon:      common,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.CreateItems(context.Background(), []domain.Item{item}); err != nil {
		t.Fatalf("CreateItems failed: %v", err)
	}
	return item
}
