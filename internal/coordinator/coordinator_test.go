package coordinator

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwave/chatwave/internal/protocol"
	"github.com/chatwave/chatwave/internal/storage"
)

type fakeMessageStore struct {
	mu        sync.Mutex
	seqs      map[string]int64
	messages  []storage.Message
	appendErr error
}

func newFakeMessageStore() *fakeMessageStore {
	return &fakeMessageStore{seqs: make(map[string]int64)}
}

func (f *fakeMessageStore) Append(_ context.Context, msg *storage.Message) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return 0, f.appendErr
	}
	f.seqs[msg.Room]++
	msg.Seq = f.seqs[msg.Room]
	f.messages = append(f.messages, *msg)
	return msg.Seq, nil
}

func (f *fakeMessageStore) History(_ context.Context, room string, limit int, beforeSeq int64) ([]storage.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []storage.Message
	for _, msg := range f.messages {
		if msg.Room != room {
			continue
		}
		if beforeSeq > 0 && msg.Seq >= beforeSeq {
			continue
		}
		matched = append(matched, msg)
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (f *fakeMessageStore) stored() []storage.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Message, len(f.messages))
	copy(out, f.messages)
	return out
}

type fakeRoomStore struct {
	mu    sync.Mutex
	rooms map[string]storage.Room
}

func newFakeRoomStore() *fakeRoomStore {
	return &fakeRoomStore{rooms: make(map[string]storage.Room)}
}

func (f *fakeRoomStore) CreateRoom(_ context.Context, room *storage.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.Name]; ok {
		return storage.ErrRoomExists
	}
	f.rooms[room.Name] = *room
	return nil
}

func (f *fakeRoomStore) GetRoom(_ context.Context, name string) (*storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[name]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &room, nil
}

func (f *fakeRoomStore) ListRooms(_ context.Context) ([]storage.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]storage.Room, 0, len(f.rooms))
	for _, room := range f.rooms {
		out = append(out, room)
	}
	return out, nil
}

type testRig struct {
	coord *Coordinator
	store *fakeMessageStore
	rooms *fakeRoomStore
}

func newTestRig(cfg Config) *testRig {
	store := newFakeMessageStore()
	rooms := newFakeRoomStore()
	return &testRig{
		coord: New(cfg, store, rooms),
		store: store,
		rooms: rooms,
	}
}

func (r *testRig) connect(t *testing.T, connID string, identity Identity) chan protocol.Envelope {
	t.Helper()
	sink := make(chan protocol.Envelope, 256)
	require.NoError(t, r.coord.Connect(connID, sink))
	require.NoError(t, r.coord.Bind(connID, identity))
	return sink
}

func drain(sink chan protocol.Envelope) []protocol.Envelope {
	var out []protocol.Envelope
	for {
		select {
		case env := <-sink:
			out = append(out, env)
		default:
			return out
		}
	}
}

func countType(envs []protocol.Envelope, kind protocol.MessageType) int {
	n := 0
	for _, env := range envs {
		if env.Type == kind {
			n++
		}
	}
	return n
}

func TestJoinEmitsNoticeThenMembersThenPresence(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	sink := rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))

	envs := drain(sink)
	require.Len(t, envs, 3)
	assert.Equal(t, protocol.MessageTypeNotice, envs[0].Type)
	assert.Equal(t, protocol.MessageTypeMembers, envs[1].Type)
	assert.Equal(t, protocol.MessageTypePresence, envs[2].Type)

	notice := envs[0].Payload.(protocol.NoticePayload)
	assert.Equal(t, "alice joined", notice.Text)
	members := envs[1].Payload.(protocol.MembersPayload)
	assert.Equal(t, []string{"alice"}, members.Names)
	assert.Equal(t, 1, members.Count)
}

func TestRepeatedJoinIsNoOp(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	sink := rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	drain(sink)

	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	assert.Empty(t, drain(sink))
}

func TestChatScenario(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	alice := rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	bob := rig.connect(t, "c2", Identity{Name: "bob", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	require.NoError(t, rig.coord.Join(ctx, "c2", "general"))
	drain(alice)
	drain(bob)

	sent, err := rig.coord.Chat(ctx, "c1", "general", protocol.ChatSendRequest{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), sent.Seq)

	stored := rig.store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "general", stored[0].Room)
	assert.Equal(t, "alice", stored[0].Author)
	assert.Equal(t, "user", stored[0].Role)
	assert.Equal(t, "hi", stored[0].Content)
	assert.Equal(t, "text", stored[0].Kind)

	for name, sink := range map[string]chan protocol.Envelope{"alice": alice, "bob": bob} {
		envs := drain(sink)
		require.Len(t, envs, 1, "recipient %s", name)
		require.Equal(t, protocol.MessageTypeChat, envs[0].Type)
		chat := envs[0].Payload.(protocol.ChatMessage)
		assert.Equal(t, int64(1), chat.Seq)
		assert.Equal(t, "hi", chat.Content)
	}

	rig.coord.Disconnect("c2")
	envs := drain(alice)
	assert.Equal(t, 1, countType(envs, protocol.MessageTypeNotice))
	assert.Equal(t, protocol.MembersPayload{Room: "general", Names: []string{"alice"}, Count: 1}, rig.coord.Members("general"))
}

func TestMultiDeviceIdentityStaysPresent(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	observer := rig.connect(t, "watcher", Identity{Name: "bob", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "watcher", "general"))

	rig.connect(t, "phone", Identity{Name: "alice", Role: RoleUser})
	rig.connect(t, "laptop", Identity{Name: "alice", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "phone", "general"))
	require.NoError(t, rig.coord.Join(ctx, "laptop", "general"))
	drain(observer)

	// First device disappearing must not evict the identity.
	rig.coord.Disconnect("phone")
	envs := drain(observer)
	assert.Zero(t, countType(envs, protocol.MessageTypeNotice))
	assert.Contains(t, rig.coord.Members("general").Names, "alice")

	rig.coord.Disconnect("laptop")
	envs = drain(observer)
	require.Equal(t, 1, countType(envs, protocol.MessageTypeNotice))
	assert.NotContains(t, rig.coord.Members("general").Names, "alice")
}

func TestDisconnectNoticesExactlyOncePerJoinedRoom(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	watchers := make(map[string]chan protocol.Envelope)
	for _, room := range []string{"a", "b", "c"} {
		connID := "watch-" + room
		sink := rig.connect(t, connID, Identity{Name: "watcher-" + room, Role: RoleUser})
		require.NoError(t, rig.coord.Join(ctx, connID, room))
		watchers[room] = sink
	}

	rig.connect(t, "target", Identity{Name: "carol", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "target", "a"))
	require.NoError(t, rig.coord.Join(ctx, "target", "b"))
	for _, sink := range watchers {
		drain(sink)
	}

	rooms := rig.coord.Disconnect("target")
	assert.ElementsMatch(t, []string{"a", "b"}, rooms)

	for room, sink := range watchers {
		envs := drain(sink)
		notices := countType(envs, protocol.MessageTypeNotice)
		if room == "c" {
			assert.Zero(t, notices, "room c heard a departure it should not have")
			continue
		}
		assert.Equal(t, 1, notices, "room %s", room)
	}
}

func TestChatRequiresJoin(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	_, err := rig.coord.Chat(ctx, "c1", "general", protocol.ChatSendRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotJoined)
}

func TestJoinRequiresIdentity(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	sink := make(chan protocol.Envelope, 8)
	require.NoError(t, rig.coord.Connect("c1", sink))
	assert.ErrorIs(t, rig.coord.Join(ctx, "c1", "general"), ErrNotBound)
}

func TestStrictRoomPolicy(t *testing.T) {
	rig := newTestRig(Config{StrictRooms: true})
	ctx := context.Background()

	rig.connect(t, "admin", Identity{Name: "root", Role: RoleAdmin})
	rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})

	assert.ErrorIs(t, rig.coord.Join(ctx, "c1", "general"), ErrRoomNotFound)
	_, err := rig.coord.Chat(ctx, "c1", "general", protocol.ChatSendRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrNotJoined)

	require.NoError(t, rig.coord.CreateRoom(ctx, "admin", "general", "town square"))
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
}

func TestCreateRoomRequiresAdmin(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	assert.ErrorIs(t, rig.coord.CreateRoom(ctx, "c1", "general", ""), ErrPermissionDenied)

	rig.connect(t, "c2", Identity{Name: "root", Role: RoleAdmin})
	require.NoError(t, rig.coord.CreateRoom(ctx, "c2", "general", ""))

	// Creation is announced with a persisted system message.
	stored := rig.store.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "system", stored[0].Kind)
	assert.Equal(t, int64(1), stored[0].Seq)

	assert.ErrorIs(t, rig.coord.CreateRoom(ctx, "c2", "general", ""), storage.ErrRoomExists)
}

func TestHistoryPagination(t *testing.T) {
	rig := newTestRig(Config{HistoryLimit: 50})
	ctx := context.Background()

	rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	for i := 0; i < 10; i++ {
		_, err := rig.coord.Chat(ctx, "c1", "general", protocol.ChatSendRequest{Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	page, err := rig.coord.History(ctx, "general", 5, 0)
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	assert.Equal(t, int64(6), page.Messages[0].Seq)
	assert.Equal(t, int64(10), page.Messages[4].Seq)

	page, err = rig.coord.History(ctx, "general", 5, page.Messages[0].Seq)
	require.NoError(t, err)
	require.Len(t, page.Messages, 5)
	assert.Equal(t, int64(1), page.Messages[0].Seq)
	assert.Equal(t, int64(5), page.Messages[4].Seq)
}

// The reported membership set must always equal the set of identities
// with at least one live joined connection, under arbitrary interleavings
// of join, leave, and disconnect.
func TestPresenceInvariantUnderRandomInterleavings(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	rooms := []string{"a", "b", "c"}
	identities := []string{"alice", "bob", "carol"}

	type modelConn struct {
		identity string
		rooms    map[string]bool
	}
	live := make(map[string]*modelConn)
	nextID := 0

	verify := func() {
		for _, room := range rooms {
			expected := make(map[string]bool)
			for _, conn := range live {
				if conn.rooms[room] {
					expected[conn.identity] = true
				}
			}
			got := rig.coord.Members(room).Names
			require.Len(t, got, len(expected), "room %s", room)
			for _, name := range got {
				require.True(t, expected[name], "room %s unexpectedly lists %s", room, name)
			}
		}
	}

	for step := 0; step < 2000; step++ {
		switch op := rng.Intn(4); {
		case op == 0 || len(live) == 0:
			connID := fmt.Sprintf("conn-%d", nextID)
			nextID++
			identity := identities[rng.Intn(len(identities))]
			rig.connect(t, connID, Identity{Name: identity, Role: RoleUser})
			live[connID] = &modelConn{identity: identity, rooms: make(map[string]bool)}
		case op == 1:
			connID := randomKey(rng, live)
			room := rooms[rng.Intn(len(rooms))]
			require.NoError(t, rig.coord.Join(ctx, connID, room))
			live[connID].rooms[room] = true
		case op == 2:
			connID := randomKey(rng, live)
			room := rooms[rng.Intn(len(rooms))]
			require.NoError(t, rig.coord.Leave(ctx, connID, room))
			delete(live[connID].rooms, room)
		default:
			connID := randomKey(rng, live)
			rig.coord.Disconnect(connID)
			delete(live, connID)
		}
		verify()
	}
}

func randomKey[V any](rng *rand.Rand, conns map[string]V) string {
	keys := make([]string, 0, len(conns))
	for key := range conns {
		keys = append(keys, key)
	}
	return keys[rng.Intn(len(keys))]
}

func TestConnectionCap(t *testing.T) {
	rig := newTestRig(Config{MaxConnections: 1})

	require.NoError(t, rig.coord.Connect("c1", make(chan protocol.Envelope, 1)))
	err := rig.coord.Connect("c2", make(chan protocol.Envelope, 1))
	assert.ErrorIs(t, err, ErrServerFull)

	// Dropping a connection frees capacity.
	rig.coord.Disconnect("c1")
	assert.NoError(t, rig.coord.Connect("c2", make(chan protocol.Envelope, 1)))
}

func TestTypingExcludesSender(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	alice := rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	bob := rig.connect(t, "c2", Identity{Name: "bob", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	require.NoError(t, rig.coord.Join(ctx, "c2", "general"))
	drain(alice)
	drain(bob)

	require.NoError(t, rig.coord.Typing("c1", "general"))
	assert.Empty(t, drain(alice))
	envs := drain(bob)
	require.Len(t, envs, 1)
	assert.Equal(t, protocol.MessageTypeTyping, envs[0].Type)
}

func TestPersistenceFailureIsNotBroadcast(t *testing.T) {
	rig := newTestRig(Config{})
	ctx := context.Background()

	alice := rig.connect(t, "c1", Identity{Name: "alice", Role: RoleUser})
	bob := rig.connect(t, "c2", Identity{Name: "bob", Role: RoleUser})
	require.NoError(t, rig.coord.Join(ctx, "c1", "general"))
	require.NoError(t, rig.coord.Join(ctx, "c2", "general"))
	drain(alice)
	drain(bob)

	rig.store.appendErr = errors.New("disk full")
	_, err := rig.coord.Chat(ctx, "c1", "general", protocol.ChatSendRequest{Content: "hi"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Empty(t, drain(alice))
	assert.Empty(t, drain(bob))
}
