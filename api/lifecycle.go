package api

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/drawdeck/drawdeck/internal/slogging"
	"github.com/drawdeck/drawdeck/internal/uuidgen"
)

// DefaultRoomID is joined when the client does not request a room
const DefaultRoomID = "default"

// palette is the fixed set of display colors. Colors are cosmetic, not an
// identity key, so collisions between concurrent users are acceptable.
var palette = [...]string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E2",
}

var paletteCursor atomic.Uint64

// nextColor assigns colors round-robin so concurrent joiners tend to differ
func nextColor() string {
	return palette[(paletteCursor.Add(1)-1)%uint64(len(palette))]
}

// Upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// HandleWS handles WebSocket connection requests on /ws. Each connection
// gets a fresh process-unique identity and a palette color, joins exactly
// one room for its lifetime, and receives the replay snapshot before any
// live traffic. Reconnection is the client's concern: a returning user is a
// new identity.
func (h *WebSocketHub) HandleWS(c *gin.Context) {
	roomID := c.DefaultQuery("room", DefaultRoomID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slogging.Get().Error("Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		Hub:    h,
		Conn:   conn,
		UserID: "user_" + uuidgen.MustNewV7().String(),
		Color:  nextColor(),
		Send:   make(chan []byte, h.Settings.SendBufferSize),
	}

	session := h.JoinRoom(roomID, client)
	h.Metrics.ConnectionOpened()

	// Replay snapshot and join notice, then start the pumps
	session.sendInit(client)

	go client.ReadPump()
	go client.WritePump()
}
