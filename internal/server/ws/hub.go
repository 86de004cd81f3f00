package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Room names. Rooms are plain strings on the wire-facing side so the
// fan-out consumer can target them without knowing channel kinds.
func BusRoom(busID string) string   { return "bus:" + busID }
func TripRoom(tripID string) string { return "trip:" + tripID }

const AdminFleetRoom = "admin-fleet"

// Client wraps one upgraded connection with a write lock, since gorilla
// connections allow a single concurrent writer.
type Client struct {
	ID      string
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func NewClient(id string, conn *websocket.Conn) *Client {
	return &Client{ID: id, conn: conn}
}

// WriteJSON sends one message, serialized against concurrent writers.
func (c *Client) WriteJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// WriteRaw sends pre-marshaled bytes as one text frame.
func (c *Client) WriteRaw(b []byte) error {
	return c.WriteJSON(json.RawMessage(b))
}

// Hub stores room membership for all connections on this instance.
// Membership here is wire-level only: it dies with the connection, and
// clients are expected to re-join after every reconnect.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	byConn map[*Client]map[string]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		byConn: make(map[*Client]map[string]struct{}),
		logger: logger,
	}
}

// Join subscribes the client to a room. Joining twice is a no-op.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]struct{})
	}
	if _, ok := h.rooms[room][c]; ok {
		return
	}
	h.rooms[room][c] = struct{}{}
	if h.byConn[c] == nil {
		h.byConn[c] = make(map[string]struct{})
	}
	h.byConn[c][room] = struct{}{}
	h.logger.Info("room_joined", "room", room, "client_id", c.ID)
}

// Leave removes the client from one room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(room, c)
}

// Drop removes the client from every room. Called on connection teardown.
func (h *Hub) Drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.byConn[c] {
		h.leaveLocked(room, c)
	}
}

func (h *Hub) leaveLocked(room string, c *Client) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	if rooms, ok := h.byConn[c]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(h.byConn, c)
		}
	}
}

// Broadcast sends a pre-marshaled frame to every member of a room.
// No room, no delivery.
func (h *Hub) Broadcast(room string, frame []byte) {
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()

	for _, c := range members {
		if err := c.WriteRaw(frame); err != nil {
			h.logger.Warn("broadcast_write_failed", "room", room, "client_id", c.ID, "error", err)
		}
	}
}

// Members returns the current member count of a room.
func (h *Hub) Members(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
