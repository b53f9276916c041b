package domain

import "github.com/shopspring/decimal"

// Share is the amount one going participant owes.
type Share struct {
	ParticipantID string          `json:"participantId"`
	Common        decimal.Decimal `json:"common"`
	Partial       decimal.Decimal `json:"partial"`
	Total         decimal.Decimal `json:"total"`
}

// ItemView is an item with its claims, as shown in the live bill.
type ItemView struct {
	Item
	Claimed    decimal.Decimal `json:"claimed"`
	Remaining  decimal.Decimal `json:"remaining"`
	Selections []Selection     `json:"selections"`
}

// ParticipantView is a going participant with their selections and share.
type ParticipantView struct {
	RosterEntry
	Selections []Selection `json:"selections"`
	Share      Share       `json:"share"`
}

// SessionSnapshot is the authoritative state clients re-fetch.
type SessionSnapshot struct {
	Session      Session           `json:"session"`
	Participants []ParticipantView `json:"participants"`
	Items        []ItemView        `json:"items"`
	Total        decimal.Decimal   `json:"total"`
	Paid         decimal.Decimal   `json:"paid"`
}
