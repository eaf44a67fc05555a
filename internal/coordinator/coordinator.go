package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

// Config tunes the coordinator.
type Config struct {
	// MaxConnections caps live connections; <= 0 disables the cap.
	MaxConnections int
	// StrictRooms rejects joins and messages for rooms without a record.
	// When false, rooms are created lazily on first join.
	StrictRooms bool
	// HistoryLimit bounds a single history page.
	HistoryLimit int
}

const defaultHistoryLimit = 100

// Coordinator orchestrates the connection registry, membership index,
// fan-out hub, message pipeline, and presence notifier. It is the only
// mutator of the registry and index; transports call it from their
// per-connection goroutines.
type Coordinator struct {
	cfg      Config
	registry *Registry
	presence *MembershipIndex
	hub      *Hub
	pipeline *Pipeline
	notifier *Notifier
	rooms    storage.RoomStore
	messages storage.MessageStore

	mu    sync.Mutex
	sinks map[string]chan<- protocol.Envelope
}

// New wires a coordinator over the given stores.
func New(cfg Config, messages storage.MessageStore, rooms storage.RoomStore) *Coordinator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	hub := NewHub()
	c := &Coordinator{
		cfg:      cfg,
		registry: NewRegistry(cfg.MaxConnections),
		presence: NewMembershipIndex(),
		hub:      hub,
		notifier: NewNotifier(hub),
		rooms:    rooms,
		messages: messages,
		sinks:    make(map[string]chan<- protocol.Envelope),
	}

	var gate RoomGate
	if cfg.StrictRooms {
		gate = c.strictGate
	}
	c.pipeline = NewPipeline(messages, hub, gate)
	return c
}

// Hub exposes the fan-out hub for relay wiring.
func (c *Coordinator) Hub() *Hub {
	return c.hub
}

// Connect registers a new connection and the sink its transport drains.
func (c *Coordinator) Connect(connID string, sink chan<- protocol.Envelope) error {
	if err := c.registry.Register(connID); err != nil {
		return err
	}
	c.mu.Lock()
	c.sinks[connID] = sink
	c.mu.Unlock()
	return nil
}

// Bind attaches a resolved identity to the connection. First bind wins.
func (c *Coordinator) Bind(connID string, identity Identity) error {
	return c.registry.BindIdentity(connID, identity)
}

// Identity returns the connection's bound identity.
func (c *Coordinator) Identity(connID string) (Identity, bool) {
	return c.registry.Identity(connID)
}

// Touch records liveness for the connection.
func (c *Coordinator) Touch(connID string) {
	c.registry.Touch(connID)
}

// Join subscribes the connection to the room and reconciles presence. A
// repeated join from the same connection is a no-op.
func (c *Coordinator) Join(ctx context.Context, connID, room string) error {
	identity, bound := c.registry.Identity(connID)
	if !bound {
		return ErrNotBound
	}

	if c.cfg.StrictRooms {
		if err := c.strictGate(ctx, room); err != nil {
			return err
		}
	} else if err := c.ensureRoom(ctx, room, identity.Name); err != nil {
		return err
	}

	newlyJoined, err := c.registry.Join(connID, room)
	if err != nil {
		return err
	}
	if !newlyJoined {
		return nil
	}

	c.hub.Subscribe(room, connID, c.sink(connID))
	if c.presence.OnJoin(room, identity.Name) {
		c.notifier.PresenceChanged(room, identity.Name, true, c.presence.Snapshot(room))
	}
	return nil
}

// Leave unsubscribes the connection from the room and reconciles presence.
// Leaving a room that was never joined is a no-op.
func (c *Coordinator) Leave(ctx context.Context, connID, room string) error {
	identity, bound := c.registry.Identity(connID)
	if !bound {
		return ErrNotBound
	}

	wasJoined, err := c.registry.Leave(connID, room)
	if err != nil {
		return err
	}
	if !wasJoined {
		return nil
	}

	c.hub.Unsubscribe(room, connID)
	if c.presence.OnLeave(room, identity.Name) {
		c.notifier.PresenceChanged(room, identity.Name, false, c.presence.Snapshot(room))
	}
	return nil
}

// Disconnect drops the connection and reconciles every room it was joined
// to, emitting at most one departure notice per room. Safe to call for
// unknown connections. Returns the reconciled rooms.
func (c *Coordinator) Disconnect(connID string) []string {
	rooms, identity, bound := c.registry.Drop(connID)

	c.mu.Lock()
	delete(c.sinks, connID)
	c.mu.Unlock()

	for _, room := range rooms {
		c.hub.Unsubscribe(room, connID)
		if bound && c.presence.OnLeave(room, identity.Name) {
			c.notifier.PresenceChanged(room, identity.Name, false, c.presence.Snapshot(room))
		}
	}
	return rooms
}

// Chat runs a message from the connection through the pipeline. The
// sender must have joined the room.
func (c *Coordinator) Chat(ctx context.Context, connID, room string, req protocol.ChatSendRequest) (protocol.ChatMessage, error) {
	identity, bound := c.registry.Identity(connID)
	if !bound {
		return protocol.ChatMessage{}, ErrNotBound
	}
	if !c.registry.InRoom(connID, room) {
		return protocol.ChatMessage{}, ErrNotJoined
	}
	return c.pipeline.Submit(ctx, room, identity, req)
}

// Typing fans a typing indicator out to everyone in the room except the
// originator. Not persisted.
func (c *Coordinator) Typing(connID, room string) error {
	identity, bound := c.registry.Identity(connID)
	if !bound {
		return ErrNotBound
	}
	if !c.registry.InRoom(connID, room) {
		return ErrNotJoined
	}
	c.hub.BroadcastExcept(room, connID, newEvent(protocol.MessageTypeTyping, room, protocol.TypingPayload{
		Room: room,
		Name: identity.Name,
	}))
	return nil
}

// History pages room messages oldest-first, restartable via beforeSeq.
func (c *Coordinator) History(ctx context.Context, room string, limit int, beforeSeq int64) (protocol.ChatHistory, error) {
	if limit <= 0 || limit > c.cfg.HistoryLimit {
		limit = c.cfg.HistoryLimit
	}
	messages, err := c.messages.History(ctx, room, limit, beforeSeq)
	if err != nil {
		return protocol.ChatHistory{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	history := protocol.ChatHistory{
		Room:     room,
		Messages: make([]protocol.ChatMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		history.Messages = append(history.Messages, toChatMessage(msg))
	}
	return history, nil
}

// Members reports the current membership snapshot for the room.
func (c *Coordinator) Members(room string) protocol.MembersPayload {
	names := c.presence.Snapshot(room)
	return protocol.MembersPayload{Room: room, Names: names, Count: len(names)}
}

// CreateRoom registers a room record and announces it with a persisted
// system message. Admin role required.
func (c *Coordinator) CreateRoom(ctx context.Context, connID, name, description string) error {
	identity, bound := c.registry.Identity(connID)
	if !bound {
		return ErrNotBound
	}
	if identity.Role != RoleAdmin {
		return ErrPermissionDenied
	}

	room := storage.Room{
		Name:        name,
		Description: description,
		CreatedBy:   identity.Name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := c.rooms.CreateRoom(ctx, &room); err != nil {
		return err
	}

	if _, err := c.pipeline.SubmitSystem(ctx, name, identity, fmt.Sprintf("room %s created by %s", name, identity.Name)); err != nil {
		return err
	}
	return nil
}

func (c *Coordinator) strictGate(ctx context.Context, room string) error {
	if _, err := c.rooms.GetRoom(ctx, room); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("room lookup: %w", err)
	}
	return nil
}

func (c *Coordinator) ensureRoom(ctx context.Context, room, creator string) error {
	err := c.rooms.CreateRoom(ctx, &storage.Room{
		Name:      room,
		CreatedBy: creator,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil && !errors.Is(err, storage.ErrRoomExists) {
		return fmt.Errorf("ensure room: %w", err)
	}
	return nil
}

func (c *Coordinator) sink(connID string) chan<- protocol.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sinks[connID]
}
