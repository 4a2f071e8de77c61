package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/algoprep/algoprep-api/internal/dto"
)

const hubSendBufferSize = 32

// Hub tracks every live websocket client and the rooms each has joined. Chat
// rooms and signaling rooms share the transport but live in independent
// namespaces; callers prefix room keys accordingly.
type Hub struct {
	mu      sync.RWMutex
	clients map[*HubClient]struct{}
	rooms   map[string]map[*HubClient]struct{}
	log     zerolog.Logger
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*HubClient]struct{}),
		rooms:   make(map[string]map[*HubClient]struct{}),
		log:     logger.With().Str("component", "realtime_hub").Logger(),
	}
}

// HubClient is one websocket connection with its outbound queue.
type HubClient struct {
	conn   *websocket.Conn
	send   chan dto.RealtimeEnvelope
	userID uint
	hub    *Hub
	closed chan struct{}
	once   sync.Once
	mu     sync.Mutex
	rooms  map[string]struct{}
}

// NewClient wraps a connection for hub membership.
func (h *Hub) NewClient(conn *websocket.Conn, userID uint) *HubClient {
	return &HubClient{
		conn:   conn,
		send:   make(chan dto.RealtimeEnvelope, hubSendBufferSize),
		userID: userID,
		hub:    h,
		closed: make(chan struct{}),
		rooms:  make(map[string]struct{}),
	}
}

// UserID returns the authenticated user behind this connection.
func (c *HubClient) UserID() uint { return c.userID }

// Enqueue queues an envelope for delivery, dropping it when the client's
// buffer is full. Reports whether the envelope was queued.
func (c *HubClient) Enqueue(envelope dto.RealtimeEnvelope) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- envelope:
		return true
	default:
		c.hub.log.Warn().Uint("user_id", c.userID).Str("event", envelope.Event).Msg("dropping envelope for slow client")
		return false
	}
}

// Writer drains the send queue onto the wire and keeps the connection alive
// with periodic pings. Runs until the client closes.
func (c *HubClient) Writer() {
	defer c.Close()

	for {
		select {
		case envelope, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(envelope); err != nil {
				c.hub.log.Debug().Err(err).Msg("realtime write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.hub.log.Debug().Err(err).Msg("realtime ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

// Close tears the client down exactly once and removes it from every room.
func (c *HubClient) Close() {
	c.once.Do(func() {
		close(c.closed)
		c.hub.unregister(c)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// Closed reports whether the client has been torn down.
func (c *HubClient) Closed() <-chan struct{} { return c.closed }

// Register adds a connected client to the hub.
func (h *Hub) Register(client *HubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[client] = struct{}{}
	h.log.Debug().Uint("user_id", client.userID).Msg("realtime client connected")
}

func (h *Hub) unregister(client *HubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, client)
	for room := range client.joinedRooms() {
		h.removeFromRoom(room, client)
	}
	h.log.Debug().Uint("user_id", client.userID).Msg("realtime client disconnected")
}

// Join subscribes the client to a room. Closed clients are refused so a late
// dispatch cannot re-add a connection that unregister already swept.
func (h *Hub) Join(room string, client *HubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-client.closed:
		return
	default:
	}

	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*HubClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	client.trackRoom(room)
}

// Leave unsubscribes the client from a room.
func (h *Hub) Leave(room string, client *HubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeFromRoom(room, client)
	client.untrackRoom(room)
}

func (h *Hub) removeFromRoom(room string, client *HubClient) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// BroadcastRoom delivers an envelope to every member of a room, optionally
// excluding the sender.
func (h *Hub) BroadcastRoom(room string, envelope dto.RealtimeEnvelope, except *HubClient) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[room] {
		if client == except {
			continue
		}
		client.Enqueue(envelope)
	}
}

// BroadcastAll delivers an envelope to every connected client.
func (h *Hub) BroadcastAll(envelope dto.RealtimeEnvelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		client.Enqueue(envelope)
	}
}

func (c *HubClient) trackRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room] = struct{}{}
}

func (c *HubClient) untrackRoom(room string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.rooms, room)
}

func (c *HubClient) joinedRooms() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]struct{}, len(c.rooms))
	for room := range c.rooms {
		out[room] = struct{}{}
	}
	return out
}
