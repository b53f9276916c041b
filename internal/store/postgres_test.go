package store_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/store"
)

// Runs only when BANYA_TEST_DATABASE_URL points at a scratch database.
func newTestPostgresStore(t *testing.T) *store.PostgresStore {
	t.Helper()
	url := os.Getenv("BANYA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("BANYA_TEST_DATABASE_URL not set")
	}
	s, err := store.NewPostgresStore(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPostgresStoreConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s := newTestPostgresStore(t)
	now := time.Now().UTC()

	sessionID := uuid.NewString()
	if err := s.CreateSession(ctx, &domain.Session{ID: sessionID, Title: "pg", Status: domain.SessionStatusActive, CreatedAt: now}); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	var ids []string
	for i := 0; i < 4; i++ {
		p, err := s.UpsertParticipant(ctx, &domain.Participant{ID: uuid.NewString(), ExternalID: uuid.NewString(), Color: domain.DefaultColor, CreatedAt: now})
		if err != nil {
			t.Fatalf("UpsertParticipant failed: %v", err)
		}
		if _, err := s.EnrollParticipant(ctx, &domain.Enrollment{SessionID: sessionID, ParticipantID: p.ID, Attendance: domain.AttendanceGoing, Role: domain.RoleMember, JoinedAt: now}); err != nil {
			t.Fatalf("EnrollParticipant failed: %v", err)
		}
		ids = append(ids, p.ID)
	}

	itemID := uuid.NewString()
	if err := s.CreateItems(ctx, []domain.Item{{ID: itemID, SessionID: sessionID, Name: "beer", UnitPrice: decimal.NewFromInt(500), TotalQuantity: decimal.NewFromInt(4), CreatedAt: now}}); err != nil {
		t.Fatalf("CreateItems failed: %v", err)
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			_, err := s.ClaimSelection(ctx, store.Claim{ItemID: itemID, ParticipantID: pid, Quantity: decimal.NewFromInt(3)}, nil)
			if err != nil && !errors.Is(err, domain.ErrOverAllocated) {
				t.Errorf("unexpected claim error: %v", err)
			}
		}(id)
	}
	wg.Wait()

	sels, err := s.ListSelections(ctx, sessionID)
	if err != nil {
		t.Fatalf("ListSelections failed: %v", err)
	}
	if len(sels) != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", len(sels))
	}

	if ok, err := s.DeleteItem(ctx, itemID); err != nil || !ok {
		t.Fatalf("DeleteItem failed: %v", err)
	}
}
