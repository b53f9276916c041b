// Package store defines the allocation storage interface and implementations.
package store

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// Store defines the interface for data persistence.
//
// Get* methods return nil, nil when the row does not exist. ClaimSelection,
// ReleaseSelection and RecordPayment run in a single transaction and report
// missing rows with domain errors.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	UpdateSessionStatus(ctx context.Context, sessionID string, status domain.SessionStatus) (bool, error)
	ListParticipantSessions(ctx context.Context, participantID string) ([]domain.ParticipantSession, error)

	// Participant operations
	UpsertParticipant(ctx context.Context, participant *domain.Participant) (*domain.Participant, error)
	GetParticipant(ctx context.Context, participantID string) (*domain.Participant, error)
	GetParticipantByExternalID(ctx context.Context, externalID string) (*domain.Participant, error)

	// Enrollment operations
	EnrollParticipant(ctx context.Context, enrollment *domain.Enrollment) (bool, error)
	GetEnrollment(ctx context.Context, sessionID, participantID string) (*domain.Enrollment, error)
	SetAttendance(ctx context.Context, sessionID, participantID string, status domain.AttendanceStatus) (bool, error)
	SetSelectionConfirmed(ctx context.Context, sessionID, participantID string, confirmed bool) (bool, error)
	ListRoster(ctx context.Context, sessionID string) ([]domain.RosterEntry, error)

	// Item operations
	CreateItems(ctx context.Context, items []domain.Item) error
	GetItem(ctx context.Context, itemID string) (*domain.Item, error)
	ListItems(ctx context.Context, sessionID string) ([]domain.Item, error)
	DeleteItem(ctx context.Context, itemID string) (bool, error)

	// Selection operations
	ListSelections(ctx context.Context, sessionID string) ([]domain.Selection, error)
	ClaimSelection(ctx context.Context, claim Claim, guard Guard) (*ClaimResult, error)
	ReleaseSelection(ctx context.Context, itemID, participantID string, guard Guard) (*ReleaseResult, error)

	// Payment operations
	RecordPayment(ctx context.Context, payment *domain.Payment) error
	ListPayments(ctx context.Context, sessionID, participantID string) ([]domain.Payment, error)
	AttachPaymentProof(ctx context.Context, paymentID, proofRef string) (*domain.Payment, error)

	// Lifecycle
	Close() error
}

// MutationState is the row set a selection mutation is about to change,
// read inside its transaction.
type MutationState struct {
	Session    domain.Session
	Item       domain.Item
	Enrollment domain.Enrollment
}

// Guard vetoes a mutation by returning an error. It runs inside the
// transaction, before any write.
type Guard func(MutationState) error

// Claim is a request to set a participant's quantity of an item.
type Claim struct {
	ItemID        string
	ParticipantID string
	Quantity      decimal.Decimal
}

// ClaimResult describes a committed claim.
type ClaimResult struct {
	Item      domain.Item
	Selection domain.Selection
	Remaining decimal.Decimal
}

// ReleaseResult describes a committed release.
type ReleaseResult struct {
	Item     domain.Item
	Released bool
}

// checkClaim enforces that a claim fits in what the other participants left.
func checkClaim(item domain.Item, others []decimal.Decimal, quantity decimal.Decimal) (decimal.Decimal, error) {
	claimed := decimal.Zero
	for _, q := range others {
		claimed = claimed.Add(q)
	}
	available := item.TotalQuantity.Sub(claimed)
	if quantity.GreaterThan(available) {
		if available.IsNegative() {
			available = decimal.Zero
		}
		return available, &domain.OverAllocatedError{
			ItemID:    item.ID,
			Requested: quantity,
			Remaining: available,
		}
	}
	return available.Sub(quantity), nil
}

func runGuard(guard Guard, state MutationState) error {
	if guard == nil {
		return nil
	}
	return guard(state)
}
