package coordinator

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

// RoomGate validates that a room may receive messages. The strict policy
// rejects unknown rooms with ErrRoomNotFound; the lazy policy accepts
// everything.
type RoomGate func(ctx context.Context, room string) error

// Pipeline moves a message through validate, persist, and broadcast.
// Broadcast strictly follows a successful durable write: a client never
// sees a message that a concurrent history fetch would not return.
type Pipeline struct {
	store storage.MessageStore
	hub   *Hub
	gate  RoomGate

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline constructs a pipeline. A nil gate admits every room.
func NewPipeline(store storage.MessageStore, hub *Hub, gate RoomGate) *Pipeline {
	return &Pipeline{
		store: store,
		hub:   hub,
		gate:  gate,
		locks: make(map[string]*sync.Mutex),
	}
}

// Submit validates, persists, and broadcasts a chat or audio message from
// the given author. The per-room critical section covers only validation
// and the store append, so slow delivery never delays the next message's
// sequence assignment.
func (p *Pipeline) Submit(ctx context.Context, room string, author Identity, req protocol.ChatSendRequest) (protocol.ChatMessage, error) {
	kind := req.Kind
	if kind == "" {
		kind = protocol.MessageKindText
	}
	return p.submit(ctx, room, author, kind, req.Content, req.Attachment)
}

// SubmitSystem persists and broadcasts a system announcement for the room.
func (p *Pipeline) SubmitSystem(ctx context.Context, room string, author Identity, text string) (protocol.ChatMessage, error) {
	return p.submit(ctx, room, author, protocol.MessageKindSystem, text, "")
}

func (p *Pipeline) submit(ctx context.Context, room string, author Identity, kind protocol.MessageKind, content, attachment string) (protocol.ChatMessage, error) {
	if content == "" && attachment == "" {
		return protocol.ChatMessage{}, ErrEmptyContent
	}
	if p.gate != nil {
		if err := p.gate(ctx, room); err != nil {
			return protocol.ChatMessage{}, err
		}
	}

	msg := storage.Message{
		Room:       room,
		Author:     author.Name,
		Role:       string(author.Role),
		Kind:       string(kind),
		Content:    content,
		Attachment: attachment,
		CreatedAt:  time.Now().UTC(),
	}

	lock := p.roomLock(room)
	lock.Lock()
	seq, err := p.store.Append(ctx, &msg)
	lock.Unlock()
	if err != nil {
		return protocol.ChatMessage{}, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg.Seq = seq

	out := toChatMessage(msg)
	eventType := protocol.MessageTypeChat
	if kind == protocol.MessageKindSystem {
		eventType = protocol.MessageTypeSystem
	}
	p.hub.Broadcast(room, newEvent(eventType, room, out))
	log.Printf("message stored room=%s author=%s kind=%s seq=%d", room, author.Name, kind, seq)
	return out, nil
}

func (p *Pipeline) roomLock(room string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	lock, ok := p.locks[room]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[room] = lock
	}
	return lock
}
