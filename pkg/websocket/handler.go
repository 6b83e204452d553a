package websocket

import (
	"net/http"
	"time"

	"telecare-sos/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

type Options struct {
	ReadBufferSize  int
	WriteBufferSize int
	PingInterval    time.Duration
	PongTimeout     time.Duration
	AllowedOrigins  []string
}

type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	options  Options
}

// NewHandler starts a hub and returns a gin handler for upgrades. The caller
// owns the hub's lifetime through Hub().Stop().
func NewHandler(options Options, log *logger.Logger) *Handler {
	hub := NewHub(log)
	go hub.Run()

	return &Handler{
		hub:     hub,
		options: options,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  options.ReadBufferSize,
			WriteBufferSize: options.WriteBufferSize,
			CheckOrigin:     originChecker(options.AllowedOrigins),
		},
	}
}

// HandleWebSocket expects the auth middleware to have set user_id and
// user_type.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID := c.GetString("user_id")
	userType := c.GetString("user_type")
	if userID == "" || userType == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.logger.WithUserID(userID).WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, userID, userType, h.options.PingInterval, h.options.PongTimeout)
	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// BroadcastToOperators sends a message to every connected operator console.
func (h *Handler) BroadcastToOperators(messageType string, data map[string]interface{}) {
	h.hub.Broadcast(RoomOperators, messageType, data)
}

func (h *Handler) Hub() *Hub {
	return h.hub
}

func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		set[origin] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
