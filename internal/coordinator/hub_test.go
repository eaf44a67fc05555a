package coordinator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwave/chatwave/internal/protocol"
)

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	a := make(chan protocol.Envelope, 4)
	b := make(chan protocol.Envelope, 4)
	hub.Subscribe("general", "c1", a)
	hub.Subscribe("general", "c2", b)

	hub.Broadcast("general", newEvent(protocol.MessageTypeNotice, "general", protocol.NoticePayload{Text: "hi"}))

	require.Len(t, a, 1)
	require.Len(t, b, 1)
}

func TestHubBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	a := make(chan protocol.Envelope, 4)
	b := make(chan protocol.Envelope, 4)
	hub.Subscribe("general", "c1", a)
	hub.Subscribe("general", "c2", b)

	hub.BroadcastExcept("general", "c1", newEvent(protocol.MessageTypeTyping, "general", protocol.TypingPayload{Name: "alice"}))

	assert.Empty(t, a)
	assert.Len(t, b, 1)
}

func TestHubDropsOnFullSink(t *testing.T) {
	hub := NewHub()
	full := make(chan protocol.Envelope, 1)
	healthy := make(chan protocol.Envelope, 4)
	hub.Subscribe("general", "c1", full)
	hub.Subscribe("general", "c2", healthy)

	full <- protocol.Envelope{}

	// Must not block and must still reach the healthy subscriber.
	done := make(chan struct{})
	go func() {
		hub.Broadcast("general", newEvent(protocol.MessageTypeNotice, "general", protocol.NoticePayload{Text: "hi"}))
		close(done)
	}()
	<-done

	assert.Len(t, healthy, 1)
	assert.Len(t, full, 1)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub()
	sink := make(chan protocol.Envelope, 4)
	hub.Subscribe("general", "c1", sink)
	require.Equal(t, 1, hub.Subscribers("general"))

	hub.Unsubscribe("general", "c1")
	assert.Zero(t, hub.Subscribers("general"))

	hub.Broadcast("general", newEvent(protocol.MessageTypeNotice, "general", protocol.NoticePayload{Text: "hi"}))
	assert.Empty(t, sink)

	// Unsubscribing again is harmless.
	hub.Unsubscribe("general", "c1")
}

type capturePublisher struct {
	mu     sync.Mutex
	frames []protocol.Envelope
}

func (c *capturePublisher) Publish(_ string, env protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, env)
}

func TestHubRelay(t *testing.T) {
	hub := NewHub()
	relay := &capturePublisher{}
	hub.SetRelay(relay)

	sink := make(chan protocol.Envelope, 4)
	hub.Subscribe("general", "c1", sink)

	hub.Broadcast("general", newEvent(protocol.MessageTypeNotice, "general", protocol.NoticePayload{Text: "hi"}))
	assert.Len(t, relay.frames, 1)
	assert.Len(t, sink, 1)

	// Frames arriving from another process are delivered but never republished.
	hub.DeliverLocal("general", newEvent(protocol.MessageTypeNotice, "general", protocol.NoticePayload{Text: "remote"}))
	assert.Len(t, relay.frames, 1)
	assert.Len(t, sink, 2)
}
