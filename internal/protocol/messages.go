// Package protocol defines the WebSocket message protocol between bill views and the presence hub.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/snekaaa/banya-check/internal/domain"
)

// Message types from client to hub
const (
	TypeJoin = "join"
	TypePing = "ping"
)

// Message types from hub to client
const (
	TypeOnlineUsers = "online_users"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypePong        = "pong"
)

// Content events. Receivers re-fetch the session instead of applying them.
const (
	TypeItemSelectionUpdated = "item_selection_updated"
	TypeExpensesUpdated      = "expenses_updated"
	TypeSelectionConfirmed   = "selection_confirmed"
	TypeRosterUpdated        = "roster_updated"
)

var (
	// ErrMalformed is returned when a frame is not a JSON object with a type.
	ErrMalformed = errors.New("malformed message")
	// ErrUnknownType is returned for a type outside the protocol.
	ErrUnknownType = errors.New("unknown message type")
)

// Event is one of the message variants defined in this package.
type Event interface {
	EventType() string
	base() *BaseMessage
}

// BaseMessage contains common fields for all messages.
type BaseMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
}

func (b *BaseMessage) base() *BaseMessage { return b }

// OnlineUser describes one live connection in a room.
type OnlineUser struct {
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	AvatarRef     string `json:"avatarRef,omitempty"`
	Color         string `json:"color,omitempty"`
}

// JoinMessage is sent by a bill view to enter a session room.
type JoinMessage struct {
	BaseMessage
	ParticipantID string `json:"participantId"`
	DisplayName   string `json:"displayName"`
	AvatarRef     string `json:"avatarRef,omitempty"`
	Color         string `json:"color,omitempty"`
}

// PingMessage is the client heartbeat.
type PingMessage struct {
	BaseMessage
}

// OnlineUsersMessage is the full roster sent to a joining connection.
type OnlineUsersMessage struct {
	BaseMessage
	Users []OnlineUser `json:"users"`
}

// UserJoinedMessage announces a new connection to the rest of the room.
type UserJoinedMessage struct {
	BaseMessage
	OnlineUser
}

// UserLeftMessage announces a departed connection.
type UserLeftMessage struct {
	BaseMessage
	ParticipantID string `json:"participantId"`
}

// PongMessage acknowledges a ping.
type PongMessage struct {
	BaseMessage
	Timestamp int64 `json:"timestamp"`
}

// ItemSelectionUpdatedMessage reports a claim or release. Quantity 0 means released.
type ItemSelectionUpdatedMessage struct {
	BaseMessage
	ItemID        string          `json:"itemId"`
	ParticipantID string          `json:"participantId"`
	Quantity      decimal.Decimal `json:"quantity"`
}

// ExpensesUpdatedMessage reports added or removed items.
type ExpensesUpdatedMessage struct {
	BaseMessage
}

// SelectionConfirmedMessage reports a confirmation toggle with the refreshed roster.
type SelectionConfirmedMessage struct {
	BaseMessage
	ParticipantID string               `json:"participantId"`
	Confirmed     bool                 `json:"confirmed"`
	Participants  []domain.RosterEntry `json:"participants,omitempty"`
}

// RosterUpdatedMessage reports an enrollment or attendance change.
type RosterUpdatedMessage struct {
	BaseMessage
	ParticipantID string `json:"participantId,omitempty"`
}

func (*JoinMessage) EventType() string                 { return TypeJoin }
func (*PingMessage) EventType() string                 { return TypePing }
func (*OnlineUsersMessage) EventType() string          { return TypeOnlineUsers }
func (*UserJoinedMessage) EventType() string           { return TypeUserJoined }
func (*UserLeftMessage) EventType() string             { return TypeUserLeft }
func (*PongMessage) EventType() string                 { return TypePong }
func (*ItemSelectionUpdatedMessage) EventType() string { return TypeItemSelectionUpdated }
func (*ExpensesUpdatedMessage) EventType() string      { return TypeExpensesUpdated }
func (*SelectionConfirmedMessage) EventType() string   { return TypeSelectionConfirmed }
func (*RosterUpdatedMessage) EventType() string        { return TypeRosterUpdated }

// Encode stamps the event's type and marshals it.
func Encode(e Event) ([]byte, error) {
	e.base().Type = e.EventType()
	return json.Marshal(e)
}

// SessionOf returns the session an event is addressed to, if any.
func SessionOf(e Event) string {
	return e.base().SessionID
}

// WithSession sets the session an event is addressed to and returns it.
func WithSession(e Event, sessionID string) Event {
	e.base().SessionID = sessionID
	return e
}

// Decode parses a frame into its concrete variant.
func Decode(data []byte) (Event, error) {
	var head BaseMessage
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	var e Event
	switch head.Type {
	case TypeJoin:
		e = &JoinMessage{}
	case TypePing:
		e = &PingMessage{}
	case TypeOnlineUsers:
		e = &OnlineUsersMessage{}
	case TypeUserJoined:
		e = &UserJoinedMessage{}
	case TypeUserLeft:
		e = &UserLeftMessage{}
	case TypePong:
		e = &PongMessage{}
	case TypeItemSelectionUpdated:
		e = &ItemSelectionUpdatedMessage{}
	case TypeExpensesUpdated:
		e = &ExpensesUpdatedMessage{}
	case TypeSelectionConfirmed:
		e = &SelectionConfirmedMessage{}
	case TypeRosterUpdated:
		e = &RosterUpdatedMessage{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, head.Type)
	}

	if err := json.Unmarshal(data, e); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, head.Type, err)
	}
	return e, nil
}

// IsContent reports whether e is a content-change event.
func IsContent(e Event) bool {
	switch e.(type) {
	case *ItemSelectionUpdatedMessage, *ExpensesUpdatedMessage,
		*SelectionConfirmedMessage, *RosterUpdatedMessage:
		return true
	}
	return false
}
