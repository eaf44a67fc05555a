package coordinator

import (
	"errors"
	"sync"
	"time"
)

// connection is the registry's private per-connection record. The registry
// owns these exclusively; other components only ever see copies.
type connection struct {
	id         string
	identity   *Identity
	rooms      map[string]struct{}
	lastActive time.Time
}

// Registry tracks live connections, their bound identities, and their
// joined-room sets. It mutates only its own state; callers orchestrate
// membership reconciliation and fan-out.
type Registry struct {
	mu       sync.Mutex
	conns    map[string]*connection
	maxConns int
}

// NewRegistry creates a registry capped at maxConns live connections.
// maxConns <= 0 disables the cap.
func NewRegistry(maxConns int) *Registry {
	return &Registry{
		conns:    make(map[string]*connection),
		maxConns: maxConns,
	}
}

// Register creates an unauthenticated connection. Fails only on resource
// exhaustion or a duplicate ID.
func (r *Registry) Register(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[id]; ok {
		return errors.New("connection already registered")
	}
	if r.maxConns > 0 && len(r.conns) >= r.maxConns {
		return ErrServerFull
	}
	r.conns[id] = &connection{
		id:         id,
		rooms:      make(map[string]struct{}),
		lastActive: time.Now(),
	}
	return nil
}

// BindIdentity attaches an identity to the connection. Binding the same
// name again is a no-op; a different name fails with ErrIdentityConflict.
func (r *Registry) BindIdentity(id string, identity Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return ErrUnknownConnection
	}
	if conn.identity != nil {
		if conn.identity.Name == identity.Name {
			return nil
		}
		return ErrIdentityConflict
	}
	bound := identity
	conn.identity = &bound
	conn.lastActive = time.Now()
	return nil
}

// Identity returns the bound identity, if any.
func (r *Registry) Identity(id string) (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok || conn.identity == nil {
		return Identity{}, false
	}
	return *conn.identity, true
}

// Join adds the room to the connection's joined set. Reports whether the
// room was newly joined by this connection.
func (r *Registry) Join(id, room string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false, ErrUnknownConnection
	}
	conn.lastActive = time.Now()
	if _, joined := conn.rooms[room]; joined {
		return false, nil
	}
	conn.rooms[room] = struct{}{}
	return true, nil
}

// Leave removes the room from the connection's joined set. Reports whether
// the connection had actually joined it.
func (r *Registry) Leave(id, room string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false, ErrUnknownConnection
	}
	conn.lastActive = time.Now()
	if _, joined := conn.rooms[room]; !joined {
		return false, nil
	}
	delete(conn.rooms, room)
	return true, nil
}

// InRoom reports whether the connection currently has an active join to
// the room.
func (r *Registry) InRoom(id, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	_, joined := conn.rooms[room]
	return joined
}

// Drop removes the connection entirely and returns the exact set of rooms
// it was joined to, so the caller can reconcile membership exactly once
// per room. The second return is the bound identity, if any.
func (r *Registry) Drop(id string) ([]string, Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return nil, Identity{}, false
	}
	delete(r.conns, id)

	rooms := make([]string, 0, len(conn.rooms))
	for room := range conn.rooms {
		rooms = append(rooms, room)
	}
	if conn.identity == nil {
		return rooms, Identity{}, false
	}
	return rooms, *conn.identity, true
}

// Touch records activity on the connection.
func (r *Registry) Touch(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn, ok := r.conns[id]; ok {
		conn.lastActive = time.Now()
	}
}

// LastActive returns the connection's last recorded activity.
func (r *Registry) LastActive(id string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[id]
	if !ok {
		return time.Time{}, false
	}
	return conn.lastActive, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
