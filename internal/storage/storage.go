package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// ErrRoomExists reports a duplicate room name.
var ErrRoomExists = errors.New("room already exists")

// Message is a persisted room message. Immutable once appended; Seq is
// assigned by the store and is gapless per room for successful appends.
type Message struct {
	Room       string
	Author     string
	Role       string
	Kind       string
	Content    string
	Attachment string
	Seq        int64
	CreatedAt  time.Time
}

// Room is a persistent named channel.
type Room struct {
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
}

// User is a persisted account record consumed by the directory.
type User struct {
	Username  string
	Password  string
	Role      string
	Badge     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MessageStore durably appends and retrieves room history.
type MessageStore interface {
	// Append assigns the next per-room sequence number and persists the
	// message, returning the assigned sequence.
	Append(ctx context.Context, msg *Message) (int64, error)
	// History returns up to limit messages oldest-first. A beforeSeq > 0
	// restricts results to messages with a lower sequence number.
	History(ctx context.Context, room string, limit int, beforeSeq int64) ([]Message, error)
}

// RoomStore manages room records.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *Room) error
	GetRoom(ctx context.Context, name string) (*Room, error)
	ListRooms(ctx context.Context) ([]Room, error)
}

// UserStore manages account records for the reference directory.
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Store defines the full persistence surface used by the server.
type Store interface {
	MessageStore
	RoomStore
	UserStore

	Close() error
	Migrate(ctx context.Context) error
}
