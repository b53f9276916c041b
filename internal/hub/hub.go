// Package hub tracks the live connections of each bill session and fans
// presence and content events out to them.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/snekaaa/banya-check/internal/clock"
	"github.com/snekaaa/banya-check/internal/protocol"
)

const (
	defaultHeartbeatTimeout = 10 * time.Second
	defaultSweepInterval    = 5 * time.Second
	defaultSendBuffer       = 256
)

var (
	// ErrInvalidJoin is returned when a join lacks a session or participant.
	ErrInvalidJoin = errors.New("join requires sessionId and participantId")
	// ErrNotRegistered is returned for a connection the hub no longer holds.
	ErrNotRegistered = errors.New("connection not registered")
)

// Connection represents a single WebSocket connection.
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// Guarded by the hub's mutex.
	sessionID     string
	user          protocol.OnlineUser
	lastHeartbeat time.Time

	writeMu sync.Mutex
}

// WriteMessage writes a message to the connection with proper locking.
func (c *Connection) WriteMessage(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(messageType, data)
}

// SetWriteDeadline sets the write deadline for the connection.
func (c *Connection) SetWriteDeadline(t time.Time) error {
	return c.Conn.SetWriteDeadline(t)
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	if c.Conn == nil {
		return nil
	}
	return c.Conn.Close()
}

// JoinRequest is the identity a connection announces for a session room.
type JoinRequest struct {
	SessionID     string
	ParticipantID string
	DisplayName   string
	AvatarRef     string
	Color         string
}

// Options configures a Hub.
type Options struct {
	Clock            clock.Clock
	Logger           *slog.Logger
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	SendBuffer       int
}

// Hub manages all WebSocket connections.
type Hub struct {
	// Connections indexed by connection ID
	connections map[string]*Connection

	// Rooms maps session ID to its joined connections
	rooms map[string]map[*Connection]struct{}

	mu sync.Mutex

	clock            clock.Clock
	logger           *slog.Logger
	heartbeatTimeout time.Duration
	sweepInterval    time.Duration
	sendBuffer       int
}

// NewHub creates a new Hub.
func NewHub(opts Options) *Hub {
	h := &Hub{
		connections:      make(map[string]*Connection),
		rooms:            make(map[string]map[*Connection]struct{}),
		clock:            opts.Clock,
		logger:           opts.Logger,
		heartbeatTimeout: opts.HeartbeatTimeout,
		sweepInterval:    opts.SweepInterval,
		sendBuffer:       opts.SendBuffer,
	}
	if h.clock == nil {
		h.clock = clock.Real()
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	if h.heartbeatTimeout <= 0 {
		h.heartbeatTimeout = defaultHeartbeatTimeout
	}
	if h.sweepInterval <= 0 {
		h.sweepInterval = defaultSweepInterval
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	return h
}

// NewConnection creates a connection and registers it with the hub. The
// heartbeat clock starts now, so a connection that never joins is swept.
func (h *Hub) NewConnection(ws *websocket.Conn) *Connection {
	conn := &Connection{
		ID:   uuid.New().String(),
		Conn: ws,
		Send: make(chan []byte, h.sendBuffer),
	}

	h.mu.Lock()
	conn.lastHeartbeat = h.clock.Now()
	h.connections[conn.ID] = conn
	h.mu.Unlock()

	h.logger.Debug("connection registered", "conn_id", conn.ID)
	return conn
}

// Join adds conn to the request's room. The rest of the room gets
// user_joined; conn gets the full online_users list, itself included.
// Joining another room first leaves the current one.
func (h *Hub) Join(conn *Connection, req JoinRequest) error {
	if req.SessionID == "" || req.ParticipantID == "" {
		return ErrInvalidJoin
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return ErrNotRegistered
	}
	if conn.sessionID != "" && conn.sessionID != req.SessionID {
		h.removeFromRoomLocked(conn)
	}

	user := protocol.OnlineUser{
		ParticipantID: req.ParticipantID,
		DisplayName:   req.DisplayName,
		AvatarRef:     req.AvatarRef,
		Color:         req.Color,
	}
	conn.user = user
	conn.sessionID = req.SessionID
	conn.lastHeartbeat = h.clock.Now()

	room := h.rooms[req.SessionID]
	if room == nil {
		room = make(map[*Connection]struct{})
		h.rooms[req.SessionID] = room
	}
	_, rejoined := room[conn]
	room[conn] = struct{}{}

	if !rejoined {
		h.broadcastLocked(req.SessionID, &protocol.UserJoinedMessage{OnlineUser: user}, conn)
	}

	users := make([]protocol.OnlineUser, 0, len(room))
	for c := range room {
		users = append(users, c.user)
	}
	h.sendLocked(conn, protocol.WithSession(&protocol.OnlineUsersMessage{Users: users}, req.SessionID))

	h.logger.Info("participant joined room",
		"conn_id", conn.ID,
		"session_id", req.SessionID,
		"participant_id", req.ParticipantID,
		"room_size", len(room))
	return nil
}

// Heartbeat records liveness for conn and queues a pong. It reports false,
// doing nothing, once conn has left.
func (h *Hub) Heartbeat(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.connections[conn.ID]; !ok {
		return false
	}
	now := h.clock.Now()
	conn.lastHeartbeat = now
	h.sendLocked(conn, &protocol.PongMessage{Timestamp: now.UnixMilli()})
	return true
}

// Leave unregisters conn, deletes its room when it empties, and closes its
// send queue. Only the first call for a connection reports true. user_left
// goes out when the participant's last connection in the room is gone.
func (h *Hub) Leave(conn *Connection) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.leaveLocked(conn)
}

func (h *Hub) leaveLocked(conn *Connection) bool {
	if _, ok := h.connections[conn.ID]; !ok {
		return false
	}
	delete(h.connections, conn.ID)
	h.removeFromRoomLocked(conn)
	close(conn.Send)

	h.logger.Debug("connection unregistered", "conn_id", conn.ID)
	return true
}

func (h *Hub) removeFromRoomLocked(conn *Connection) {
	sessionID := conn.sessionID
	room := h.rooms[sessionID]
	if room == nil {
		return
	}
	delete(room, conn)
	conn.sessionID = ""

	if len(room) == 0 {
		delete(h.rooms, sessionID)
		return
	}
	for c := range room {
		if c.user.ParticipantID == conn.user.ParticipantID {
			return
		}
	}
	h.broadcastLocked(sessionID, &protocol.UserLeftMessage{ParticipantID: conn.user.ParticipantID}, nil)
}

// Broadcast sends event to every connection in the room except exclude and
// returns how many were reached. An unknown room reaches nobody.
func (h *Hub) Broadcast(sessionID string, event protocol.Event, exclude *Connection) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.broadcastLocked(sessionID, event, exclude)
}

// Publish broadcasts to the whole room.
func (h *Hub) Publish(sessionID string, event protocol.Event) int {
	return h.Broadcast(sessionID, event, nil)
}

func (h *Hub) broadcastLocked(sessionID string, event protocol.Event, exclude *Connection) int {
	room := h.rooms[sessionID]
	if len(room) == 0 {
		return 0
	}

	data, err := protocol.Encode(protocol.WithSession(event, sessionID))
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.EventType(), "error", err)
		return 0
	}

	delivered := 0
	for c := range room {
		if c == exclude {
			continue
		}
		if h.enqueue(c, data) {
			delivered++
		}
	}
	return delivered
}

func (h *Hub) sendLocked(conn *Connection, event protocol.Event) {
	data, err := protocol.Encode(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", event.EventType(), "error", err)
		return
	}
	h.enqueue(conn, data)
}

// enqueue never blocks; a full queue drops the message for that
// connection only.
func (h *Hub) enqueue(conn *Connection, data []byte) bool {
	select {
	case conn.Send <- data:
		return true
	default:
		h.logger.Warn("connection buffer full, dropping message", "conn_id", conn.ID)
		return false
	}
}

// Sweep evicts every connection whose last heartbeat is older than the
// heartbeat timeout and returns how many were evicted. Staleness is checked
// and the connection evicted under one lock.
func (h *Hub) Sweep() int {
	now := h.clock.Now()

	h.mu.Lock()
	var evicted []*Connection
	for _, c := range h.connections {
		if now.Sub(c.lastHeartbeat) > h.heartbeatTimeout && h.leaveLocked(c) {
			evicted = append(evicted, c)
		}
	}
	h.mu.Unlock()

	for _, c := range evicted {
		h.logger.Info("connection evicted", "conn_id", c.ID)
		_ = c.Close()
	}
	return len(evicted)
}

// Run sweeps on every tick of the sweep interval until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := h.clock.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep()
		}
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

// RoomCount returns the number of rooms with at least one connection.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Online lists the users connected to a session.
func (h *Hub) Online(sessionID string) []protocol.OnlineUser {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[sessionID]
	users := make([]protocol.OnlineUser, 0, len(room))
	for c := range room {
		users = append(users, c.user)
	}
	return users
}
