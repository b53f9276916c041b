// Package ws serves the presence WebSocket endpoint.
package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/snekaaa/banya-check/internal/hub"
	"github.com/snekaaa/banya-check/internal/protocol"
)

// Options configures a Server.
type Options struct {
	MaxMessageSize int64
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	Logger         *slog.Logger
}

// Server handles WebSocket connections.
type Server struct {
	hub      *hub.Hub
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(h *hub.Hub, opts Options) *Server {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		hub:    h,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Bill views are opened from chat deep links on any origin.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Warn("failed to upgrade websocket", "error", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	ws.SetReadLimit(s.opts.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages until the socket fails, then leaves the hub.
// Liveness is judged by the hub's sweep, not by read deadlines.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.hub.Leave(conn)
		_ = conn.Close()
	}()

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Warn("websocket error", "conn_id", conn.ID, "error", err)
			}
			return
		}
		s.handleMessage(conn, message)
	}
}

// writePump drains the connection's send queue onto the socket.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if !ok {
				// Hub closed the channel
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Debug("failed to write message", "conn_id", conn.ID, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches a client frame. Anything the hub cannot act on
// is logged and ignored; the connection stays open.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	event, err := protocol.Decode(data)
	if err != nil {
		s.logger.Warn("ignoring malformed message", "conn_id", conn.ID, "error", err)
		return
	}

	switch msg := event.(type) {
	case *protocol.JoinMessage:
		err := s.hub.Join(conn, hub.JoinRequest{
			SessionID:     msg.SessionID,
			ParticipantID: msg.ParticipantID,
			DisplayName:   msg.DisplayName,
			AvatarRef:     msg.AvatarRef,
			Color:         msg.Color,
		})
		if err != nil {
			s.logger.Warn("ignoring join", "conn_id", conn.ID, "error", err)
		}
	case *protocol.PingMessage:
		if !s.hub.Heartbeat(conn) {
			s.logger.Debug("heartbeat after leave", "conn_id", conn.ID)
		}
	default:
		s.logger.Warn("ignoring unexpected message", "conn_id", conn.ID, "type", event.EventType())
	}
}
