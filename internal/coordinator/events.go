package coordinator

import (
	"time"

	"github.com/google/uuid"

	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

func newEvent(kind protocol.MessageType, room string, payload interface{}) protocol.Envelope {
	return protocol.Envelope{
		ID:        uuid.NewString(),
		Type:      kind,
		Room:      room,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

func toChatMessage(msg storage.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		Room:       msg.Room,
		Author:     msg.Author,
		Role:       msg.Role,
		Kind:       protocol.MessageKind(msg.Kind),
		Content:    msg.Content,
		Attachment: msg.Attachment,
		Seq:        msg.Seq,
		SentAt:     msg.CreatedAt,
	}
}
