package server

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/directory"
	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

func (a *App) route(ctx context.Context, session *clientSession, env protocol.Envelope) {
	a.coord.Touch(session.id)

	switch env.Type {
	case protocol.MessageTypeHello:
		a.handleHello(ctx, session, env)
	case protocol.MessageTypeJoin:
		a.handleJoin(ctx, session, env)
	case protocol.MessageTypeLeave:
		a.handleLeave(ctx, session, env)
	case protocol.MessageTypeChat:
		a.handleChat(ctx, session, env)
	case protocol.MessageTypeTyping:
		a.handleTyping(ctx, session, env)
	case protocol.MessageTypePing:
		a.sendAck(ctx, session, env.ID, ackStatusOK, "")
	case protocol.MessageTypeHistory:
		a.handleHistory(ctx, session, env)
	case protocol.MessageTypeRoomCreate:
		a.handleRoomCreate(ctx, session, env)
	default:
		a.sendAck(ctx, session, env.ID, ackStatusError, "unsupported event")
	}
}

func (a *App) handleHello(ctx context.Context, session *clientSession, env protocol.Envelope) {
	req, err := decodeHelloRequest(env.Payload)
	if err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, "invalid hello payload")
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		token = strings.TrimSpace(env.Token)
	}

	identity, err := a.dir.Resolve(ctx, directory.Credentials{
		Token:    token,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			a.sendAck(ctx, session, env.ID, ackStatusError, "unknown identity")
			return
		}
		log.Printf("directory resolve conn=%s err=%v", session.id, err)
		a.sendAck(ctx, session, env.ID, ackStatusError, "directory unavailable")
		return
	}

	if err := a.coord.Bind(session.id, identity); err != nil {
		if errors.Is(err, coordinator.ErrIdentityConflict) {
			a.sendAck(ctx, session, env.ID, ackStatusError, "identity conflict")
			return
		}
		a.sendAck(ctx, session, env.ID, ackStatusError, "bind failed")
		return
	}

	welcome := protocol.WelcomePayload{
		Name:  identity.Name,
		Role:  string(identity.Role),
		Badge: identity.Badge,
	}
	if a.tokens != nil {
		if minted, expiresAt, err := a.tokens.IssueToken(identity); err == nil {
			welcome.Token = minted
			welcome.ExpiresAt = expiresAt.Unix()
		} else {
			log.Printf("token issue conn=%s err=%v", session.id, err)
		}
	}

	a.sendAck(ctx, session, env.ID, ackStatusOK, "")
	log.Printf("hello user=%s role=%s conn=%s remote=%s", identity.Name, identity.Role, session.id, session.remoteAddr())
	if err := session.send(ctx, outboundEvent(protocol.MessageTypeWelcome, "", welcome)); err != nil {
		log.Printf("welcome send conn=%s err=%v", session.id, err)
	}
}

func (a *App) handleJoin(ctx context.Context, session *clientSession, env protocol.Envelope) {
	room := strings.TrimSpace(env.Room)
	if room == "" {
		a.sendAck(ctx, session, env.ID, ackStatusError, "room required")
		return
	}

	if err := a.coord.Join(ctx, session.id, room); err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, reasonFor(err))
		return
	}
	a.sendAck(ctx, session, env.ID, ackStatusOK, "")

	// The joiner gets history and the current roster directly; the rest
	// of the room already heard about the join from the notifier.
	history, err := a.coord.History(ctx, room, a.cfg.HistoryLimit, 0)
	if err != nil {
		log.Printf("history fetch room=%s err=%v", room, err)
	} else if err := session.send(ctx, outboundEvent(protocol.MessageTypeHistory, room, history)); err != nil {
		return
	}
	members := a.coord.Members(room)
	if err := session.send(ctx, outboundEvent(protocol.MessageTypeMembers, room, members)); err != nil {
		return
	}
}

func (a *App) handleLeave(ctx context.Context, session *clientSession, env protocol.Envelope) {
	room := strings.TrimSpace(env.Room)
	if room == "" {
		a.sendAck(ctx, session, env.ID, ackStatusError, "room required")
		return
	}
	if err := a.coord.Leave(ctx, session.id, room); err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, reasonFor(err))
		return
	}
	a.sendAck(ctx, session, env.ID, ackStatusOK, "")
}

func (a *App) handleChat(ctx context.Context, session *clientSession, env protocol.Envelope) {
	room := strings.TrimSpace(env.Room)
	if room == "" {
		a.sendAck(ctx, session, env.ID, ackStatusError, "room required")
		return
	}
	req, err := decodeChatSendRequest(env.Payload)
	if err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, "invalid message payload")
		return
	}
	switch req.Kind {
	case "", protocol.MessageKindText, protocol.MessageKindAudio:
	default:
		a.sendAck(ctx, session, env.ID, ackStatusError, "unsupported message kind")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	req.Attachment = strings.TrimSpace(req.Attachment)

	if _, err := a.coord.Chat(ctx, session.id, room, req); err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, reasonFor(err))
		return
	}
	a.sendAck(ctx, session, env.ID, ackStatusOK, "")
}

func (a *App) handleTyping(ctx context.Context, session *clientSession, env protocol.Envelope) {
	room := strings.TrimSpace(env.Room)
	if room == "" {
		return
	}
	// Fire and forget; a stale typing indicator is not worth an ack
	// round-trip.
	_ = a.coord.Typing(session.id, room)
}

func (a *App) handleHistory(ctx context.Context, session *clientSession, env protocol.Envelope) {
	room := strings.TrimSpace(env.Room)
	if room == "" {
		a.sendAck(ctx, session, env.ID, ackStatusError, "room required")
		return
	}
	req, err := decodeHistoryRequest(env.Payload)
	if err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, "invalid history payload")
		return
	}

	history, err := a.coord.History(ctx, room, req.Limit, req.BeforeSeq)
	if err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, "history unavailable")
		return
	}
	a.sendAck(ctx, session, env.ID, ackStatusOK, "")
	if err := session.send(ctx, outboundEvent(protocol.MessageTypeHistory, room, history)); err != nil {
		log.Printf("history send conn=%s err=%v", session.id, err)
	}
}

func (a *App) handleRoomCreate(ctx context.Context, session *clientSession, env protocol.Envelope) {
	req, err := decodeRoomCreateRequest(env.Payload)
	if err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, "invalid room payload")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		a.sendAck(ctx, session, env.ID, ackStatusError, "room name required")
		return
	}

	if err := a.coord.CreateRoom(ctx, session.id, name, strings.TrimSpace(req.Description)); err != nil {
		a.sendAck(ctx, session, env.ID, ackStatusError, reasonFor(err))
		return
	}
	a.sendAck(ctx, session, env.ID, ackStatusOK, "")
	log.Printf("room created name=%s conn=%s", name, session.id)
}

// reasonFor maps coordinator errors to client-facing ack reasons.
func reasonFor(err error) string {
	switch {
	case errors.Is(err, coordinator.ErrNotBound):
		return "hello first"
	case errors.Is(err, coordinator.ErrNotJoined):
		return "join room first"
	case errors.Is(err, coordinator.ErrRoomNotFound):
		return "room not found"
	case errors.Is(err, coordinator.ErrEmptyContent):
		return "message empty"
	case errors.Is(err, coordinator.ErrPersistence):
		return "message not stored"
	case errors.Is(err, coordinator.ErrPermissionDenied):
		return "admin role required"
	case errors.Is(err, coordinator.ErrServerFull):
		return "server full"
	case errors.Is(err, storage.ErrRoomExists):
		return "room already exists"
	default:
		return "request failed"
	}
}

func outboundEvent(kind protocol.MessageType, room string, payload interface{}) protocol.Envelope {
	return protocol.Envelope{
		ID:        uuid.NewString(),
		Type:      kind,
		Room:      room,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}
