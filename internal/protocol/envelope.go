package protocol

import "time"

// MessageType enumerates the closed set of wire events. Anything outside
// this set is rejected at the transport boundary.
type MessageType string

const (
	// Inbound (client to server).
	MessageTypeHello      MessageType = "hello"
	MessageTypeJoin       MessageType = "join"
	MessageTypeLeave      MessageType = "leave"
	MessageTypeChat       MessageType = "chat"
	MessageTypeTyping     MessageType = "typing"
	MessageTypePing       MessageType = "ping"
	MessageTypeHistory    MessageType = "history"
	MessageTypeRoomCreate MessageType = "room_create"

	// Outbound (server to client). MessageTypeChat and MessageTypeHistory
	// travel both directions.
	MessageTypeAck      MessageType = "ack"
	MessageTypeWelcome  MessageType = "welcome"
	MessageTypeNotice   MessageType = "notice"
	MessageTypeMembers  MessageType = "members"
	MessageTypePresence MessageType = "presence"
	MessageTypeSystem   MessageType = "system"
)

// MessageKind classifies persisted message content.
type MessageKind string

const (
	MessageKindText   MessageKind = "text"
	MessageKindAudio  MessageKind = "audio"
	MessageKindSystem MessageKind = "system"
)

// Envelope wraps every payload sent over the wire. Room scopes the event
// when it targets or originates from a room.
type Envelope struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Room      string      `json:"room,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	Token     string      `json:"token,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// AckPayload represents acknowledgement semantics.
type AckPayload struct {
	ReferenceID string `json:"reference_id"`
	Status      string `json:"status"`
	Reason      string `json:"reason,omitempty"`
}

// HelloRequest declares who the connection speaks for: a bearer token, a
// username/password pair, or a bare display name (guest).
type HelloRequest struct {
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// WelcomePayload confirms identity binding and carries a reconnect token.
type WelcomePayload struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	Badge     string `json:"badge,omitempty"`
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// ChatSendRequest submits message content to a room. Attachment is a
// reference to externally stored media, never the media itself.
type ChatSendRequest struct {
	Content    string      `json:"content,omitempty"`
	Attachment string      `json:"attachment,omitempty"`
	Kind       MessageKind `json:"kind,omitempty"`
}

// ChatMessage is the outbound form of a persisted message.
type ChatMessage struct {
	Room       string      `json:"room"`
	Author     string      `json:"author"`
	Role       string      `json:"role"`
	Kind       MessageKind `json:"kind"`
	Content    string      `json:"content,omitempty"`
	Attachment string      `json:"attachment,omitempty"`
	Seq        int64       `json:"seq"`
	SentAt     time.Time   `json:"sent_at"`
}

// HistoryRequest pages room history backwards from BeforeSeq. Zero means
// start from the latest message.
type HistoryRequest struct {
	Limit     int   `json:"limit,omitempty"`
	BeforeSeq int64 `json:"before_seq,omitempty"`
}

// ChatHistory returns an oldest-first slice of room messages.
type ChatHistory struct {
	Room     string        `json:"room"`
	Messages []ChatMessage `json:"messages"`
}

// NoticePayload is a human-readable room announcement.
type NoticePayload struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

// MembersPayload is the structured membership snapshot for a room.
type MembersPayload struct {
	Room  string   `json:"room"`
	Names []string `json:"names"`
	Count int      `json:"count"`
}

// PresencePayload carries only the live presence count.
type PresencePayload struct {
	Room  string `json:"room"`
	Count int    `json:"count"`
}

// TypingPayload signals that someone is composing a message.
type TypingPayload struct {
	Room string `json:"room"`
	Name string `json:"name"`
}

// RoomCreateRequest registers a named room. Admin only.
type RoomCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
