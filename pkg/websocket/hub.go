package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"telecare-sos/pkg/logger"
)

const (
	RoomOperators = "operators"

	MessageTypeWelcome  = "welcome"
	MessageTypeSOSAlert = "sos_alert"
	MessageTypeSOSState = "sos_status"
	MessageTypePong     = "pong"
)

type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
	logger     *logger.Logger
	onCount    func(int)
	done       chan struct{}
	stopOnce   sync.Once
}

type Message struct {
	Type      string                 `json:"type"`
	RoomID    string                 `json:"room_id,omitempty"`
	UserID    string                 `json:"user_id,omitempty"`
	Timestamp int64                  `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
		logger:     log.WithField("component", "ws_hub"),
		done:       make(chan struct{}),
	}
}

// OnClientCount is called with the number of connected operators after every
// register and unregister.
func (h *Hub) OnClientCount(fn func(int)) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.onCount = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			if message.RoomID != "" {
				h.sendToRoom(message.RoomID, message)
			} else {
				h.sendToAll(message)
			}

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a message for a room, or for everyone when roomID is
// empty. It never blocks the caller for long: when the hub is backed up the
// message is dropped and logged.
func (h *Hub) Broadcast(roomID, messageType string, data map[string]interface{}) {
	message := Message{
		Type:      messageType,
		RoomID:    roomID,
		Timestamp: getCurrentTimestamp(),
		Data:      data,
	}

	select {
	case h.broadcast <- message:
	case <-h.done:
	case <-time.After(time.Second):
		h.logger.WithField("type", messageType).Warn("WebSocket hub busy, message dropped")
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.joinRoom(client, "user_"+client.UserID)
	if client.UserType == "operator" || client.UserType == "admin" {
		h.joinRoom(client, RoomOperators)
	}
	count, onCount := len(h.clients), h.onCount
	h.mutex.Unlock()

	h.logger.WithUserID(client.UserID).Info("Client registered")
	h.sendToClient(client, Message{
		Type:      MessageTypeWelcome,
		UserID:    client.UserID,
		Timestamp: getCurrentTimestamp(),
		Data: map[string]interface{}{
			"message": "Connected successfully",
		},
	})
	if onCount != nil {
		onCount(count)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	removed := h.removeLocked(client)
	count, onCount := len(h.clients), h.onCount
	h.mutex.Unlock()

	if !removed {
		return
	}
	h.logger.WithUserID(client.UserID).Info("Client unregistered")
	if onCount != nil {
		onCount(count)
	}
}

func (h *Hub) removeLocked(client *Client) bool {
	if _, ok := h.clients[client]; !ok {
		return false
	}
	delete(h.clients, client)
	close(client.send)

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	return true
}

func (h *Hub) sendToAll(message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode broadcast")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.deliverLocked(client, data)
	}
}

func (h *Hub) sendToRoom(roomID string, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode room message")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.rooms[roomID] {
		h.deliverLocked(client, data)
	}
}

func (h *Hub) sendToClient(client *Client, message Message) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.deliverLocked(client, data)
}

// deliverLocked drops clients whose send buffer is full.
func (h *Hub) deliverLocked(client *Client, data []byte) {
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WithUserID(client.UserID).Warn("Slow WebSocket client dropped")
		h.removeLocked(client)
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
	client.rooms[roomID] = true
}

func (h *Hub) LeaveRoom(client *Client, roomID string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if room, exists := h.rooms[roomID]; exists {
		delete(room, client)
		delete(client.rooms, roomID)

		if len(room) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func getCurrentTimestamp() int64 {
	return time.Now().Unix()
}
