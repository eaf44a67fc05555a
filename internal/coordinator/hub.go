package coordinator

import (
	"log"
	"sync"

	"github.com/chatwave/chatwave/internal/protocol"
)

// Publisher republishes room broadcasts to other processes. Optional; a
// single-process deployment runs without one.
type Publisher interface {
	Publish(room string, env protocol.Envelope)
}

// Hub fans an envelope out to every connection currently subscribed to a
// room. Delivery is best effort: a full or gone subscriber simply misses
// the frame and must re-synchronize via history. Order is preserved per
// connection in the order broadcasts were issued; no ordering holds across
// connections.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[string]chan<- protocol.Envelope
	relay Publisher
}

// NewHub initializes an empty hub.
func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[string]chan<- protocol.Envelope)}
}

// SetRelay attaches a cross-process publisher. Must be called before the
// hub starts receiving traffic.
func (h *Hub) SetRelay(relay Publisher) {
	h.relay = relay
}

// Subscribe registers a subscriber sink for the provided room.
func (h *Hub) Subscribe(room, connID string, sink chan<- protocol.Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[room]; !ok {
		h.rooms[room] = make(map[string]chan<- protocol.Envelope)
	}
	h.rooms[room][connID] = sink
}

// Unsubscribe removes the subscriber if present.
func (h *Hub) Unsubscribe(room, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, connID)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast delivers the envelope to every subscriber of the room.
func (h *Hub) Broadcast(room string, env protocol.Envelope) {
	h.BroadcastExcept(room, "", env)
}

// BroadcastExcept delivers the envelope to every subscriber of the room
// except the named connection. Used for typing indicators.
func (h *Hub) BroadcastExcept(room, exceptConnID string, env protocol.Envelope) {
	h.deliver(room, exceptConnID, env)
	if h.relay != nil {
		h.relay.Publish(room, env)
	}
}

// DeliverLocal delivers an envelope received from another process without
// republishing it.
func (h *Hub) DeliverLocal(room string, env protocol.Envelope) {
	h.deliver(room, "", env)
}

func (h *Hub) deliver(room, exceptConnID string, env protocol.Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for connID, sink := range h.rooms[room] {
		if exceptConnID != "" && connID == exceptConnID {
			continue
		}
		select {
		case sink <- env:
		default:
			log.Printf("broadcast dropped room=%s conn=%s type=%s", room, connID, env.Type)
		}
	}
}

// Subscribers returns the number of connections subscribed to the room.
func (h *Hub) Subscribers(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
