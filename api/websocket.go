package api

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/drawdeck/drawdeck/internal/slogging"
	"github.com/drawdeck/drawdeck/internal/telemetry"
	"github.com/drawdeck/drawdeck/internal/uuidgen"
)

// HubSettings holds the websocket tuning knobs. Defaults match the values
// the server has always shipped with; cmd/server overrides them from config.
type HubSettings struct {
	// ReadLimit is the maximum inbound message size in bytes
	ReadLimit int64
	// SendBufferSize is the outbound queue length per connection
	SendBufferSize int
	// PingInterval is how often idle connections are pinged
	PingInterval time.Duration
	// PongWait is the read deadline extension granted per pong
	PongWait time.Duration
	// WriteWait is the per-message write deadline
	WriteWait time.Duration
	// SessionTimeout is how long an inactive room is kept before sweeping
	SessionTimeout time.Duration
	// CleanupInterval is how often the sweep runs
	CleanupInterval time.Duration
}

// DefaultHubSettings returns the built-in tuning values
func DefaultHubSettings() HubSettings {
	return HubSettings{
		ReadLimit:       256 * 1024,
		SendBufferSize:  256,
		PingInterval:    30 * time.Second,
		PongWait:        60 * time.Second,
		WriteWait:       10 * time.Second,
		SessionTimeout:  15 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// WebSocketHub is the room registry: it owns every active RoomSession and is
// the single place rooms are created and destroyed. Rooms are created lazily
// on first reference and torn down when their last connection leaves, so a
// room id that was never joined is indistinguishable from an empty room.
type WebSocketHub struct {
	// Registered rooms by room ID
	Rooms map[string]*RoomSession
	// Tuning knobs, set before serving
	Settings HubSettings
	// Metrics may be nil (tests); all recording methods tolerate that
	Metrics *telemetry.WebSocketMetrics

	router *MessageRouter
	mu     sync.RWMutex
}

// RoomSession represents one room's live collaboration state: its connected
// clients and its operation log. The session mutex is the room's critical
// section; every log mutation, membership change, and read-for-broadcast
// passes through it, and no send ever happens while it is held.
type RoomSession struct {
	// Session ID
	ID string
	// Room ID
	RoomID string
	// Connected clients
	Clients map[*WebSocketClient]bool
	// Committed drawing history
	Log *OperationLog
	// Last activity timestamp
	LastActivity time.Time

	hub *WebSocketHub
	mu  sync.RWMutex
}

// WebSocketClient represents a connected participant
type WebSocketClient struct {
	// Hub reference
	Hub *WebSocketHub
	// Room session reference
	Session *RoomSession
	// The websocket connection
	Conn *websocket.Conn
	// Generated identity, unique for the process lifetime
	UserID string
	// Display color, stable for the connection's lifetime
	Color string
	// Buffered channel of outbound messages
	Send chan []byte

	// In-progress stroke flag, guarded by Session.mu
	strokeActive bool
}

// NewWebSocketHub creates a hub with default settings
func NewWebSocketHub() *WebSocketHub {
	return &WebSocketHub{
		Rooms:    make(map[string]*RoomSession),
		Settings: DefaultHubSettings(),
		router:   NewMessageRouter(),
	}
}

// JoinRoom registers the client under the room, creating the room on first
// reference. Membership changes happen under the hub lock so a concurrent
// teardown of an emptying room cannot split the membership across two
// sessions with the same room id.
func (h *WebSocketHub) JoinRoom(roomID string, client *WebSocketClient) *RoomSession {
	h.mu.Lock()
	defer h.mu.Unlock()

	session, ok := h.Rooms[roomID]
	if !ok {
		session = &RoomSession{
			ID:           uuidgen.MustNewV4().String(),
			RoomID:       roomID,
			Clients:      make(map[*WebSocketClient]bool),
			Log:          NewOperationLog(),
			LastActivity: time.Now().UTC(),
			hub:          h,
		}
		h.Rooms[roomID] = session
		h.Metrics.RoomOpened()
		slogging.Get().Info("Room created - room_id=%s session_id=%s", roomID, session.ID)
	}

	session.mu.Lock()
	session.Clients[client] = true
	session.LastActivity = time.Now().UTC()
	session.mu.Unlock()

	client.Session = session
	return session
}

// LeaveRoom deregisters the client and destroys the room if it emptied.
// Idempotent: leaving a client that is not registered is a no-op.
func (h *WebSocketHub) LeaveRoom(client *WebSocketClient) {
	session := client.Session
	if session == nil {
		return
	}

	h.mu.Lock()
	session.mu.Lock()
	_, present := session.Clients[client]
	if present {
		delete(session.Clients, client)
		close(client.Send)
		session.LastActivity = time.Now().UTC()
	}
	empty := len(session.Clients) == 0
	if empty && h.Rooms[session.RoomID] == session {
		delete(h.Rooms, session.RoomID)
	}
	session.mu.Unlock()
	h.mu.Unlock()

	if !present {
		return
	}

	if empty {
		h.Metrics.RoomClosed()
		slogging.Get().Info("Room destroyed - room_id=%s session_id=%s", session.RoomID, session.ID)
		return
	}

	session.broadcastMessage(UserLeftMessage{
		Type:   MessageTypeUserLeft,
		UserID: client.UserID,
	}, "")
}

// GetRoom returns the session for a room id, or nil if no one is in it
func (h *WebSocketHub) GetRoom(roomID string) *RoomSession {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.Rooms[roomID]
}

// CleanupInactiveSessions sweeps rooms idle past the session timeout. Empty
// rooms are destroyed on leave already, so this is a backstop for sessions
// whose connections went away without a clean close.
func (h *WebSocketHub) CleanupInactiveSessions() {
	h.mu.Lock()
	defer h.mu.Unlock()

	cutoff := time.Now().UTC().Add(-h.Settings.SessionTimeout)
	for roomID, session := range h.Rooms {
		session.mu.Lock()
		idle := session.LastActivity.Before(cutoff)
		clientCount := len(session.Clients)
		if idle || clientCount == 0 {
			for client := range session.Clients {
				close(client.Send)
				delete(session.Clients, client)
			}
			delete(h.Rooms, roomID)
			h.Metrics.RoomClosed()
			slogging.Get().Info("Swept inactive room - room_id=%s clients=%d", roomID, clientCount)
		}
		session.mu.Unlock()
	}
}

// StartCleanupTimer runs the inactive-session sweep until ctx is done
func (h *WebSocketHub) StartCleanupTimer(ctx context.Context) {
	ticker := time.NewTicker(h.Settings.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.CleanupInactiveSessions()
		case <-ctx.Done():
			return
		}
	}
}

// Members returns the identities currently joined, in unspecified order
func (s *RoomSession) Members() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	members := make([]string, 0, len(s.Clients))
	for client := range s.Clients {
		members = append(members, client.UserID)
	}
	return members
}

// membersExcept returns member identities excluding the given one.
// Caller must hold s.mu.
func (s *RoomSession) membersExcept(userID string) []string {
	members := make([]string, 0, len(s.Clients))
	for client := range s.Clients {
		if client.UserID != userID {
			members = append(members, client.UserID)
		}
	}
	return members
}

// enqueueLocked queues data for every member whose identity differs from
// excludeUserID (pass "" to reach everyone). Caller must hold s.mu: queueing
// inside the critical section is what makes every client observe mutations
// in the same order. Queueing never blocks; a recipient with a full queue
// loses the message rather than stalling the room, and the actual socket
// writes happen on the recipients' write pumps after the section is released.
// Every fan-out marks the room active so the inactivity sweep only reaps
// rooms with no traffic at all.
func (s *RoomSession) enqueueLocked(data []byte, messageType MessageType, excludeUserID string) {
	s.LastActivity = time.Now().UTC()

	recipients := 0
	for client := range s.Clients {
		if excludeUserID != "" && client.UserID == excludeUserID {
			continue
		}
		recipients++
		select {
		case client.Send <- data:
		default:
			s.hub.Metrics.SendDropped()
			slogging.Get().Warn("Dropped outbound message - room_id=%s user_id=%s message_type=%s (recipient queue full)",
				s.RoomID, client.UserID, messageType)
		}
	}
	s.hub.Metrics.Broadcast(string(messageType), recipients)
}

// broadcastMessage marshals msg and delivers it under the room's critical section
func (s *RoomSession) broadcastMessage(msg Message, excludeUserID string) {
	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal broadcast - room_id=%s message_type=%s error=%v",
			s.RoomID, msg.GetType(), err)
		return
	}
	s.mu.Lock()
	s.enqueueLocked(data, msg.GetType(), excludeUserID)
	s.mu.Unlock()
}

// sendToClient queues a message for one client without blocking. The send
// happens under s.mu with a membership check: Send channels are only closed
// while the client is being removed from Clients under the same lock, so a
// deregistered client's message is dropped instead of hitting a closed
// channel.
func (s *RoomSession) sendToClient(client *WebSocketClient, msg Message) {
	data, err := MarshalMessage(msg)
	if err != nil {
		slogging.Get().Error("Failed to marshal message - room_id=%s user_id=%s message_type=%s error=%v",
			s.RoomID, client.UserID, msg.GetType(), err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.Clients[client] {
		return
	}
	select {
	case client.Send <- data:
	default:
		s.hub.Metrics.SendDropped()
		slogging.Get().Warn("Dropped direct message - room_id=%s user_id=%s message_type=%s",
			s.RoomID, client.UserID, msg.GetType())
	}
}

// sendErrorMessage reports a rejected message back to its sender
func (s *RoomSession) sendErrorMessage(client *WebSocketClient, errorCode, message string) {
	s.hub.Metrics.MalformedMessage(errorCode)
	s.sendToClient(client, ErrorMessage{
		Type:      MessageTypeError,
		Error:     errorCode,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
}

// ReadPump pumps messages from the WebSocket to the protocol router.
// One goroutine per connection; terminates on transport close or error,
// which is also what triggers the leave path.
func (c *WebSocketClient) ReadPump() {
	defer func() {
		c.Hub.LeaveRoom(c)
		if err := c.Conn.Close(); err != nil {
			slogging.Get().Debug("Connection close after read loop: %v", err)
		}
		c.Hub.Metrics.ConnectionClosed()
	}()

	settings := c.Hub.Settings
	c.Conn.SetReadLimit(settings.ReadLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(settings.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(settings.PongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("WebSocket read error - room_id=%s user_id=%s error=%v",
					c.Session.RoomID, c.UserID, err)
			}
			break
		}

		if err := c.Hub.router.RouteMessage(c.Session, c, message); err != nil {
			slogging.Get().Debug("Message rejected - room_id=%s user_id=%s error=%v",
				c.Session.RoomID, c.UserID, err)
		}
	}
}

// WritePump pumps messages from the outbound queue to the WebSocket and
// keeps the connection alive with periodic pings
func (c *WebSocketClient) WritePump() {
	settings := c.Hub.Settings
	ticker := time.NewTicker(settings.PingInterval)
	defer func() {
		ticker.Stop()
		if err := c.Conn.Close(); err != nil {
			slogging.Get().Debug("Connection close after write loop: %v", err)
		}
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(settings.WriteWait))
			if !ok {
				// Hub closed the channel
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(settings.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
