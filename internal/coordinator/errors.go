package coordinator

import "errors"

var (
	// ErrIdentityConflict reports an attempt to rebind a connection to a
	// different identity. First bind wins.
	ErrIdentityConflict = errors.New("connection already bound to another identity")
	// ErrRoomNotFound reports an unknown room under the strict room policy.
	ErrRoomNotFound = errors.New("room not found")
	// ErrEmptyContent reports a message with neither text nor attachment.
	ErrEmptyContent = errors.New("message has no content")
	// ErrPersistence wraps a message store failure. The message is not
	// broadcast.
	ErrPersistence = errors.New("message persistence failed")
	// ErrServerFull reports the connection cap being reached.
	ErrServerFull = errors.New("connection limit reached")
	// ErrUnknownConnection reports an operation on an unregistered
	// connection.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrNotBound reports an operation that requires a bound identity.
	ErrNotBound = errors.New("connection has no identity")
	// ErrNotJoined reports a room-scoped operation from a connection that
	// has not joined the room.
	ErrNotJoined = errors.New("connection has not joined the room")
	// ErrPermissionDenied reports a role check failure.
	ErrPermissionDenied = errors.New("permission denied")
)
