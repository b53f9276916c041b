// Package connector keeps one bill view joined to its presence room,
// reconnecting with backoff when the transport drops.
package connector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/snekaaa/banya-check/internal/clock"
	"github.com/snekaaa/banya-check/internal/protocol"
)

// State is the connector's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}

// Identity is what the connector announces when it joins.
type Identity struct {
	SessionID     string
	ParticipantID string
	DisplayName   string
	AvatarRef     string
	Color         string
}

// Options configures a Connector.
type Options struct {
	URL      string
	Identity Identity

	Dialer            Dialer
	Clock             clock.Clock
	Logger            *slog.Logger
	HeartbeatInterval time.Duration
	Backoff           Backoff

	// Refetch is called for every content event. The payload is a hint
	// only; the receiver reloads the session.
	Refetch func(ctx context.Context, event protocol.Event)
	// OnState and OnRoster observe changes. Both run on connector goroutines.
	OnState  func(State)
	OnRoster func([]protocol.OnlineUser)
}

// Connector maintains one presence membership.
type Connector struct {
	opts   Options
	logger *slog.Logger
	clock  clock.Clock

	mu          sync.Mutex
	state       State
	roster      []protocol.OnlineUser
	backoff     Backoff
	intentional bool
	cancel      context.CancelFunc
}

// New creates a Connector. It does nothing until Run is called.
func New(opts Options) *Connector {
	if opts.Dialer == nil {
		opts.Dialer = WebsocketDialer{}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 5 * time.Second
	}
	if opts.Backoff.Base <= 0 || opts.Backoff.Cap <= 0 {
		opts.Backoff = DefaultBackoff()
	}
	c := &Connector{
		opts:    opts,
		logger:  opts.Logger,
		clock:   opts.Clock,
		backoff: opts.Backoff,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.clock == nil {
		c.clock = clock.Real()
	}
	return c
}

// State returns the current state.
func (c *Connector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Roster returns the users currently online in the room.
func (c *Connector) Roster() []protocol.OnlineUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]protocol.OnlineUser, len(c.roster))
	copy(out, c.roster)
	return out
}

// Close tears the connector down without reconnecting. Run returns once
// the current transport is closed.
func (c *Connector) Close() {
	c.mu.Lock()
	c.intentional = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Run connects and stays connected until ctx is done or Close is called.
func (c *Connector) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	for !c.stopping(ctx) {
		c.setState(StateConnecting)

		t, err := c.opts.Dialer.Dial(ctx, c.opts.URL)
		if err != nil {
			if c.stopping(ctx) {
				break
			}
			c.logger.Warn("connect failed", "kind", "TransportError", "url", c.opts.URL, "error", err)
			if !c.wait(ctx) {
				break
			}
			continue
		}

		if err := c.join(t); err != nil {
			_ = t.Close()
			c.logger.Warn("join failed", "kind", "TransportError", "error", err)
			if !c.wait(ctx) {
				break
			}
			continue
		}

		c.mu.Lock()
		c.backoff.Reset()
		c.mu.Unlock()
		c.setState(StateConnected)

		err = c.serve(ctx, t)
		if c.stopping(ctx) {
			break
		}
		c.logger.Warn("connection dropped", "kind", "TransportError", "error", err)
		if !c.wait(ctx) {
			break
		}
	}

	c.setState(StateDisconnected)
}

func (c *Connector) stopping(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentional || ctx.Err() != nil
}

// wait sleeps for the next backoff delay. It reports false when the
// connector is stopped meanwhile.
func (c *Connector) wait(ctx context.Context) bool {
	c.mu.Lock()
	delay := c.backoff.Next()
	attempt := c.backoff.Attempt()
	c.mu.Unlock()

	c.setState(StateReconnecting)
	c.logger.Info("reconnecting", "attempt", attempt, "delay", delay)

	select {
	case <-ctx.Done():
		return false
	case <-c.clock.After(delay):
		return !c.stopping(ctx)
	}
}

func (c *Connector) join(t Transport) error {
	id := c.opts.Identity
	data, err := protocol.Encode(&protocol.JoinMessage{
		BaseMessage:   protocol.BaseMessage{SessionID: id.SessionID},
		ParticipantID: id.ParticipantID,
		DisplayName:   id.DisplayName,
		AvatarRef:     id.AvatarRef,
		Color:         id.Color,
	})
	if err != nil {
		return err
	}
	return t.Write(data)
}

// serve pumps one transport: reads on a goroutine, heartbeats on a
// ticker. It returns once the transport is closed and the reader is done.
func (c *Connector) serve(ctx context.Context, t Transport) error {
	readErr := make(chan error, 1)
	go func() {
		for {
			data, err := t.Read()
			if err != nil {
				readErr <- err
				return
			}
			c.handle(ctx, data)
		}
	}()

	ticker := c.clock.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()

	ping, err := protocol.Encode(&protocol.PingMessage{})
	if err != nil {
		_ = t.Close()
		<-readErr
		return err
	}

	for {
		select {
		case <-ctx.Done():
			_ = t.Close()
			<-readErr
			return ctx.Err()
		case err := <-readErr:
			_ = t.Close()
			return err
		case <-ticker.C:
			if err := t.Write(ping); err != nil {
				_ = t.Close()
				<-readErr
				return err
			}
		}
	}
}

func (c *Connector) handle(ctx context.Context, data []byte) {
	event, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("ignoring malformed message", "error", err)
		return
	}
	if sid := protocol.SessionOf(event); sid != "" && sid != c.opts.Identity.SessionID {
		c.logger.Debug("ignoring event for another session", "session_id", sid, "type", event.EventType())
		return
	}

	switch msg := event.(type) {
	case *protocol.OnlineUsersMessage:
		c.updateRoster(func([]protocol.OnlineUser) []protocol.OnlineUser {
			return dedupe(msg.Users)
		})
	case *protocol.UserJoinedMessage:
		c.updateRoster(func(r []protocol.OnlineUser) []protocol.OnlineUser {
			for _, u := range r {
				if u.ParticipantID == msg.ParticipantID {
					return r
				}
			}
			return append(r, msg.OnlineUser)
		})
	case *protocol.UserLeftMessage:
		c.updateRoster(func(r []protocol.OnlineUser) []protocol.OnlineUser {
			out := r[:0]
			for _, u := range r {
				if u.ParticipantID != msg.ParticipantID {
					out = append(out, u)
				}
			}
			return out
		})
	case *protocol.PongMessage:
	default:
		if protocol.IsContent(event) && c.opts.Refetch != nil {
			c.opts.Refetch(ctx, event)
		}
	}
}

func dedupe(users []protocol.OnlineUser) []protocol.OnlineUser {
	seen := make(map[string]bool, len(users))
	out := make([]protocol.OnlineUser, 0, len(users))
	for _, u := range users {
		if seen[u.ParticipantID] {
			continue
		}
		seen[u.ParticipantID] = true
		out = append(out, u)
	}
	return out
}

func (c *Connector) updateRoster(apply func([]protocol.OnlineUser) []protocol.OnlineUser) {
	c.mu.Lock()
	c.roster = apply(c.roster)
	snapshot := make([]protocol.OnlineUser, len(c.roster))
	copy(snapshot, c.roster)
	c.mu.Unlock()

	if c.opts.OnRoster != nil {
		c.opts.OnRoster(snapshot)
	}
}

func (c *Connector) setState(s State) {
	c.mu.Lock()
	changed := c.state != s
	c.state = s
	c.mu.Unlock()

	if changed && c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}
