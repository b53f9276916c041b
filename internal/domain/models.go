package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Session is one shared-bill context.
type Session struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Venue     string        `json:"venue,omitempty"`
	Date      string        `json:"date,omitempty"`
	Time      string        `json:"time,omitempty"`
	Status    SessionStatus `json:"status"`
	AdminID   string        `json:"adminId,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Participant is a person, created once per external identity.
type Participant struct {
	ID         string    `json:"id"`
	ExternalID string    `json:"externalId"`
	Username   string    `json:"username,omitempty"`
	FirstName  string    `json:"firstName,omitempty"`
	LastName   string    `json:"lastName,omitempty"`
	AvatarRef  string    `json:"avatarRef,omitempty"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"createdAt"`
}

// DisplayName returns the best human-readable name for the participant.
func (p *Participant) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.Username != "":
		return p.Username
	}
	return "Participant"
}

// Enrollment is the join entity between a session and a participant.
type Enrollment struct {
	SessionID          string           `json:"sessionId"`
	ParticipantID      string           `json:"participantId"`
	Attendance         AttendanceStatus `json:"attendance"`
	Role               Role             `json:"role"`
	SelectionConfirmed bool             `json:"selectionConfirmed"`
	HasPayment         bool             `json:"hasPayment"`
	JoinedAt           time.Time        `json:"joinedAt"`
}

// RosterEntry is an enrollment joined with its participant.
type RosterEntry struct {
	Enrollment
	Participant Participant `json:"participant"`
}

// Item is a bill line.
type Item struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"sessionId"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalQuantity decimal.Decimal `json:"totalQuantity"`
	IsCommon      bool            `json:"isCommon"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Cost is the full price of the item.
func (i *Item) Cost() decimal.Decimal {
	return i.UnitPrice.Mul(i.TotalQuantity)
}

// Selection is a participant's claimed quantity of a partial item.
type Selection struct {
	ItemID        string          `json:"itemId"`
	ParticipantID string          `json:"participantId"`
	Quantity      decimal.Decimal `json:"quantity"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Payment records money handed over by a participant.
type Payment struct {
	ID            string          `json:"id"`
	SessionID     string          `json:"sessionId"`
	ParticipantID string          `json:"participantId"`
	Amount        decimal.Decimal `json:"amount"`
	ProofRef      string          `json:"proofRef,omitempty"`
	ConfirmedAt   time.Time       `json:"confirmedAt"`
}

// ParticipantSession is a session seen from one participant.
type ParticipantSession struct {
	Session    Session          `json:"session"`
	Attendance AttendanceStatus `json:"attendance"`
	Role       Role             `json:"role"`
}

// Decimal places stored for quantities and money.
const (
	QuantityPlaces = 4
	MoneyPlaces    = 2
)

// FitsPlaces reports whether d has at most places decimal places.
func FitsPlaces(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Round(places))
}
