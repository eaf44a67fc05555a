package coordinator

import (
	"log"
	"sort"
	"sync"
)

// MembershipIndex maintains, per room, the count of live joined
// connections per identity. An identity is present in a room iff its
// count is at least one, so a second device neither duplicates a join
// notice nor evicts the identity when only one of its connections drops.
//
// The index is derived state: it is patched from registry transitions,
// never consulted as a source of truth for connections.
type MembershipIndex struct {
	mu     sync.Mutex
	counts map[string]map[string]int
}

// NewMembershipIndex initializes an empty index.
func NewMembershipIndex() *MembershipIndex {
	return &MembershipIndex{counts: make(map[string]map[string]int)}
}

// OnJoin increments the identity's connection count for the room. Reports
// true when the identity transitioned from absent to present.
func (m *MembershipIndex) OnJoin(room, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	identities, ok := m.counts[room]
	if !ok {
		identities = make(map[string]int)
		m.counts[room] = identities
	}
	identities[name]++
	return identities[name] == 1
}

// OnLeave decrements the identity's connection count for the room. Reports
// true when the identity transitioned from present to absent. A decrement
// below zero indicates an upstream bookkeeping bug; the count is clamped
// and the inconsistency logged rather than propagated.
func (m *MembershipIndex) OnLeave(room, name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	identities, ok := m.counts[room]
	if !ok {
		log.Printf("membership inconsistency: leave for untracked room=%s identity=%s", room, name)
		return false
	}
	count, ok := identities[name]
	if !ok || count <= 0 {
		log.Printf("membership inconsistency: leave below zero room=%s identity=%s", room, name)
		delete(identities, name)
		if len(identities) == 0 {
			delete(m.counts, room)
		}
		return false
	}

	count--
	if count == 0 {
		delete(identities, name)
		if len(identities) == 0 {
			delete(m.counts, room)
		}
		return true
	}
	identities[name] = count
	return false
}

// Snapshot returns the sorted set of identities present in the room.
func (m *MembershipIndex) Snapshot(room string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	identities := m.counts[room]
	names := make([]string, 0, len(identities))
	for name := range identities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of identities present in the room.
func (m *MembershipIndex) Count(room string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts[room])
}
