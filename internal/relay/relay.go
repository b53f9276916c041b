// Package relay carries content events from whichever process committed a
// mutation to the presence hubs that hold the live connections.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/snekaaa/banya-check/internal/protocol"
)

// ErrNotContent is returned when an envelope carries a presence message
// instead of a content event.
var ErrNotContent = errors.New("event is not a content event")

// Notifier delivers a content event to every live connection of a session.
type Notifier interface {
	Notify(ctx context.Context, sessionID string, event protocol.Event) error
}

// Broadcaster is the hub side of a relay.
type Broadcaster interface {
	Publish(sessionID string, event protocol.Event) int
}

// Envelope is the wire form shared by the HTTP and Redis relays.
type Envelope struct {
	SessionID string          `json:"sessionId"`
	Event     json.RawMessage `json:"event"`
}

// EncodeEnvelope marshals an event addressed to sessionID.
func EncodeEnvelope(sessionID string, event protocol.Event) ([]byte, error) {
	raw, err := protocol.Encode(protocol.WithSession(event, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}
	return json.Marshal(Envelope{SessionID: sessionID, Event: raw})
}

// DecodeEnvelope parses an envelope and its event. Only content events are
// accepted.
func DecodeEnvelope(data []byte) (string, protocol.Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("%w: %v", protocol.ErrMalformed, err)
	}
	return ParseEnvelope(env)
}

// ParseEnvelope validates an already unmarshalled envelope.
func ParseEnvelope(env Envelope) (string, protocol.Event, error) {
	if env.SessionID == "" {
		return "", nil, fmt.Errorf("%w: missing sessionId", protocol.ErrMalformed)
	}
	if len(env.Event) == 0 {
		return "", nil, fmt.Errorf("%w: missing event", protocol.ErrMalformed)
	}
	event, err := protocol.Decode(env.Event)
	if err != nil {
		return "", nil, err
	}
	if !protocol.IsContent(event) {
		return "", nil, fmt.Errorf("%w: %s", ErrNotContent, event.EventType())
	}
	return env.SessionID, protocol.WithSession(event, env.SessionID), nil
}

// Local broadcasts straight into a hub in the same process.
type Local struct {
	hub Broadcaster
}

// NewLocal creates a Local relay.
func NewLocal(hub Broadcaster) *Local {
	return &Local{hub: hub}
}

// Notify implements Notifier.
func (l *Local) Notify(_ context.Context, sessionID string, event protocol.Event) error {
	l.hub.Publish(sessionID, protocol.WithSession(event, sessionID))
	return nil
}
