package relay

import (
	"context"
	"encoding/json"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/protocol"
)

const broadcastChannel = "chatwave:broadcast"

// Relay bridges room broadcasts across server processes over Redis
// pub/sub. Each process publishes its local broadcasts and injects remote
// ones into its own hub; frames tagged with the process's own origin ID
// are skipped on receipt.
type Relay struct {
	client *redis.Client
	origin string
	hub    *coordinator.Hub
}

type frame struct {
	Origin   string            `json:"origin"`
	Room     string            `json:"room"`
	Envelope protocol.Envelope `json:"envelope"`
}

// New connects a relay to the Redis instance at addr.
func New(addr string, hub *coordinator.Hub) *Relay {
	return &Relay{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		origin: uuid.NewString(),
		hub:    hub,
	}
}

// Publish forwards a local room broadcast to the other processes. Best
// effort, off the broadcast path.
func (r *Relay) Publish(room string, env protocol.Envelope) {
	data, err := json.Marshal(frame{Origin: r.origin, Room: room, Envelope: env})
	if err != nil {
		log.Printf("relay marshal: %v", err)
		return
	}
	go func() {
		if err := r.client.Publish(context.Background(), broadcastChannel, data).Err(); err != nil {
			log.Printf("relay publish room=%s err=%v", room, err)
		}
	}()
}

// Run consumes remote broadcasts until the context is canceled.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, broadcastChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var f frame
			if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
				log.Printf("relay decode: %v", err)
				continue
			}
			if f.Origin == r.origin {
				continue
			}
			r.hub.DeliverLocal(f.Room, f.Envelope)
		}
	}
}

// Close releases the Redis connection.
func (r *Relay) Close() error {
	return r.client.Close()
}
