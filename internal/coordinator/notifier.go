package coordinator

import (
	"fmt"

	"github.com/chatwave/chatwave/internal/protocol"
)

// Notifier announces membership transitions to the affected room: a
// textual notice, then the structured membership snapshot, then the bare
// presence count. All three go out after the index mutation committed.
type Notifier struct {
	hub *Hub
}

// NewNotifier constructs a notifier over the given hub.
func NewNotifier(hub *Hub) *Notifier {
	return &Notifier{hub: hub}
}

// PresenceChanged emits the notice/members/presence trio for a room whose
// membership set just gained or lost an identity.
func (n *Notifier) PresenceChanged(room, name string, joined bool, names []string) {
	verb := "left"
	if joined {
		verb = "joined"
	}

	n.hub.Broadcast(room, newEvent(protocol.MessageTypeNotice, room, protocol.NoticePayload{
		Room: room,
		Text: fmt.Sprintf("%s %s", name, verb),
	}))
	n.hub.Broadcast(room, newEvent(protocol.MessageTypeMembers, room, protocol.MembersPayload{
		Room:  room,
		Names: names,
		Count: len(names),
	}))
	n.hub.Broadcast(room, newEvent(protocol.MessageTypePresence, room, protocol.PresencePayload{
		Room:  room,
		Count: len(names),
	}))
}
