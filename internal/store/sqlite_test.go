package store_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
	"github.com/snekaaa/banya-check/internal/store"
	"github.com/snekaaa/banya-check/internal/testutil"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestSQLiteStoreSessionAndRoster(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 2)

	session, err := s.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if session == nil || session.Title != "Banya night" || session.Status != domain.SessionStatusActive {
		t.Fatalf("unexpected session: %+v", session)
	}

	missing, err := s.GetSession(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("expected nil session, got %+v, %v", missing, err)
	}

	roster, err := s.ListRoster(ctx, "s1")
	if err != nil {
		t.Fatalf("ListRoster failed: %v", err)
	}
	if len(roster) != 2 || roster[0].ParticipantID != "p1" || roster[0].Role != domain.RoleAdmin {
		t.Fatalf("unexpected roster: %+v", roster)
	}
	if roster[1].Participant.FirstName != "Guest2" {
		t.Fatalf("roster participant not joined: %+v", roster[1])
	}

	ok, err := s.UpdateSessionStatus(ctx, "s1", domain.SessionStatusClosed)
	if err != nil || !ok {
		t.Fatalf("UpdateSessionStatus failed: %v", err)
	}
	sessions, err := s.ListParticipantSessions(ctx, "p2")
	if err != nil {
		t.Fatalf("ListParticipantSessions failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Session.Status != domain.SessionStatusClosed || sessions[0].Role != domain.RoleMember {
		t.Fatalf("unexpected sessions: %+v", sessions)
	}
}

func TestSQLiteStoreUpsertParticipantKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)

	first, err := s.UpsertParticipant(ctx, &domain.Participant{
		ID: "p1", ExternalID: "42", Username: "anna", AvatarRef: "a.png", Color: "#4ECDC4", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertParticipant failed: %v", err)
	}

	second, err := s.UpsertParticipant(ctx, &domain.Participant{
		ID: "other", ExternalID: "42", Username: "anna_k", FirstName: "Anna", Color: "#FFD93D", CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertParticipant failed: %v", err)
	}
	if second.ID != first.ID || second.Color != "#4ECDC4" {
		t.Fatalf("identity not kept: %+v", second)
	}
	if second.Username != "anna_k" || second.FirstName != "Anna" || second.AvatarRef != "a.png" {
		t.Fatalf("profile not refreshed: %+v", second)
	}

	byExt, err := s.GetParticipantByExternalID(ctx, "42")
	if err != nil || byExt == nil || byExt.ID != "p1" {
		t.Fatalf("GetParticipantByExternalID: %+v, %v", byExt, err)
	}
}

func TestSQLiteStoreEnrollIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 1)

	created, err := s.EnrollParticipant(ctx, &domain.Enrollment{
		SessionID: "s1", ParticipantID: "p1", Attendance: domain.AttendanceMaybe, Role: domain.RoleMember, JoinedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("EnrollParticipant failed: %v", err)
	}
	if created {
		t.Fatalf("expected existing enrollment to be kept")
	}

	e, err := s.GetEnrollment(ctx, "s1", "p1")
	if err != nil || e == nil || e.Attendance != domain.AttendanceGoing || e.Role != domain.RoleAdmin {
		t.Fatalf("enrollment changed: %+v, %v", e, err)
	}
}

func TestSQLiteStoreClaimReplacesQuantity(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 2)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	if _, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("1")}, nil); err != nil {
		t.Fatalf("ClaimSelection failed: %v", err)
	}
	res, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("2.5")}, nil)
	if err != nil {
		t.Fatalf("ClaimSelection failed: %v", err)
	}
	if !res.Remaining.Equal(dec("1.5")) {
		t.Fatalf("expected remaining 1.5, got %s", res.Remaining)
	}

	sels, err := s.ListSelections(ctx, "s1")
	if err != nil {
		t.Fatalf("ListSelections failed: %v", err)
	}
	if len(sels) != 1 || !sels[0].Quantity.Equal(dec("2.5")) {
		t.Fatalf("expected a single replaced selection, got %+v", sels)
	}
}

func TestSQLiteStoreClaimOverAllocated(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 2)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	if _, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("3")}, nil); err != nil {
		t.Fatalf("ClaimSelection failed: %v", err)
	}

	_, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p2", Quantity: dec("2")}, nil)
	var over *domain.OverAllocatedError
	if !errors.As(err, &over) {
		t.Fatalf("expected OverAllocatedError, got %v", err)
	}
	if !over.Remaining.Equal(dec("1")) {
		t.Fatalf("expected remaining 1, got %s", over.Remaining)
	}

	sels, _ := s.ListSelections(ctx, "s1")
	if len(sels) != 1 {
		t.Fatalf("rejected claim was written: %+v", sels)
	}
}

func TestSQLiteStoreClaimMissingRows(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 1)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	_, err := s.ClaimSelection(ctx, store.Claim{ItemID: "wine", ParticipantID: "p1", Quantity: dec("1")}, nil)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
	_, err = s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p9", Quantity: dec("1")}, nil)
	if !errors.Is(err, domain.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}
}

func TestSQLiteStoreGuardVetoesWrite(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 1)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	veto := errors.New("veto")
	var seen store.MutationState
	_, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("1")}, func(st store.MutationState) error {
		seen = st
		return veto
	})
	if !errors.Is(err, veto) {
		t.Fatalf("expected veto, got %v", err)
	}
	if seen.Item.ID != "beer" || seen.Session.ID != "s1" || seen.Enrollment.ParticipantID != "p1" {
		t.Fatalf("guard saw incomplete state: %+v", seen)
	}

	sels, _ := s.ListSelections(ctx, "s1")
	if len(sels) != 0 {
		t.Fatalf("vetoed claim was written: %+v", sels)
	}
}

func TestSQLiteStoreReleaseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 1)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	if _, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("2")}, nil); err != nil {
		t.Fatalf("ClaimSelection failed: %v", err)
	}

	first, err := s.ReleaseSelection(ctx, "beer", "p1", nil)
	if err != nil || !first.Released {
		t.Fatalf("first release: %+v, %v", first, err)
	}
	second, err := s.ReleaseSelection(ctx, "beer", "p1", nil)
	if err != nil || second.Released {
		t.Fatalf("second release: %+v, %v", second, err)
	}
	sels, _ := s.ListSelections(ctx, "s1")
	if len(sels) != 0 {
		t.Fatalf("selection left behind: %+v", sels)
	}
}

func TestSQLiteStoreDeleteItemCascades(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 1)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	if _, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: "p1", Quantity: dec("2")}, nil); err != nil {
		t.Fatalf("ClaimSelection failed: %v", err)
	}
	ok, err := s.DeleteItem(ctx, "beer")
	if err != nil || !ok {
		t.Fatalf("DeleteItem failed: %v", err)
	}

	items, _ := s.ListItems(ctx, "s1")
	sels, _ := s.ListSelections(ctx, "s1")
	if len(items) != 0 || len(sels) != 0 {
		t.Fatalf("expected cascade, items=%d selections=%d", len(items), len(sels))
	}

	again, err := s.DeleteItem(ctx, "beer")
	if err != nil || again {
		t.Fatalf("second delete reported %v, %v", again, err)
	}
}

func TestSQLiteStorePayments(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 2)

	p := &domain.Payment{ID: "pay1", SessionID: "s1", ParticipantID: "p2", Amount: dec("1250.50"), ConfirmedAt: time.Now().UTC()}
	if err := s.RecordPayment(ctx, p); err != nil {
		t.Fatalf("RecordPayment failed: %v", err)
	}

	e, _ := s.GetEnrollment(ctx, "s1", "p2")
	if e == nil || !e.HasPayment {
		t.Fatalf("has_payment not set: %+v", e)
	}

	err := s.RecordPayment(ctx, &domain.Payment{ID: "pay2", SessionID: "s1", ParticipantID: "p9", Amount: dec("1"), ConfirmedAt: time.Now()})
	if !errors.Is(err, domain.ErrNotEnrolled) {
		t.Fatalf("expected ErrNotEnrolled, got %v", err)
	}

	updated, err := s.AttachPaymentProof(ctx, "pay1", "receipts/pay1.jpg")
	if err != nil || updated == nil || updated.ProofRef != "receipts/pay1.jpg" {
		t.Fatalf("AttachPaymentProof: %+v, %v", updated, err)
	}
	missing, err := s.AttachPaymentProof(ctx, "nope", "x")
	if err != nil || missing != nil {
		t.Fatalf("expected nil payment, got %+v, %v", missing, err)
	}

	payments, err := s.ListPayments(ctx, "s1", "p2")
	if err != nil || len(payments) != 1 || !payments[0].Amount.Equal(dec("1250.5")) {
		t.Fatalf("ListPayments: %+v, %v", payments, err)
	}
	all, _ := s.ListPayments(ctx, "s1", "")
	if len(all) != 1 {
		t.Fatalf("expected one payment in session, got %d", len(all))
	}
}

func TestSQLiteStoreConcurrentClaimsNeverOversell(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestSQLiteStore(t)
	testutil.SeedSession(t, s, 8)
	testutil.AddItem(t, s, "sauna", "1000", "3", false)

	var wg sync.WaitGroup
	for i := 1; i <= 8; i++ {
		for _, q := range []string{"0.5", "1", "1.5"} {
			wg.Add(1)
			go func(pid, qty string) {
				defer wg.Done()
				_, err := s.ClaimSelection(ctx, store.Claim{ItemID: "sauna", ParticipantID: pid, Quantity: dec(qty)}, nil)
				if err != nil && !errors.Is(err, domain.ErrOverAllocated) {
					t.Errorf("unexpected claim error: %v", err)
				}
			}("p"+strconv.Itoa(i), q)
		}
	}
	wg.Wait()

	sels, err := s.ListSelections(ctx, "s1")
	if err != nil {
		t.Fatalf("ListSelections failed: %v", err)
	}
	total := decimal.Zero
	for _, sel := range sels {
		total = total.Add(sel.Quantity)
	}
	if total.GreaterThan(dec("3")) {
		t.Fatalf("oversold: %s claimed of 3", total)
	}
}

func TestSQLiteFileStoreSerializesConcurrentClaims(t *testing.T) {
	ctx := context.Background()
	s, err := store.NewSQLiteStore("file:" + t.TempDir() + "/banya.db?cache=shared&mode=rwc")
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	testutil.SeedSession(t, s, 20)
	testutil.AddItem(t, s, "beer", "500", "4", false)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		reject int
	)
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func(pid string) {
			defer wg.Done()
			_, err := s.ClaimSelection(ctx, store.Claim{ItemID: "beer", ParticipantID: pid, Quantity: dec("1")}, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrOverAllocated):
				reject++
			default:
				t.Errorf("claim by %s failed: %v", pid, err)
			}
		}("p" + strconv.Itoa(i))
	}
	wg.Wait()

	if ok != 4 || reject != 16 {
		t.Fatalf("expected 4 claims and 16 over-allocations, got %d and %d", ok, reject)
	}
}
