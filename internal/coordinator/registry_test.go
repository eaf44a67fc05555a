package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBindFirstWins(t *testing.T) {
	reg := NewRegistry(0)
	require.NoError(t, reg.Register("c1"))

	require.NoError(t, reg.BindIdentity("c1", Identity{Name: "alice", Role: RoleUser}))
	// Same name again is a no-op.
	require.NoError(t, reg.BindIdentity("c1", Identity{Name: "alice", Role: RoleAdmin}))
	assert.ErrorIs(t, reg.BindIdentity("c1", Identity{Name: "bob", Role: RoleUser}), ErrIdentityConflict)

	identity, bound := reg.Identity("c1")
	require.True(t, bound)
	assert.Equal(t, "alice", identity.Name)
	assert.Equal(t, RoleUser, identity.Role)
}

func TestRegistryBindUnknownConnection(t *testing.T) {
	reg := NewRegistry(0)
	assert.ErrorIs(t, reg.BindIdentity("ghost", Identity{Name: "alice"}), ErrUnknownConnection)
}

func TestRegistryDuplicateRegister(t *testing.T) {
	reg := NewRegistry(0)
	require.NoError(t, reg.Register("c1"))
	assert.Error(t, reg.Register("c1"))
}

func TestRegistryCapacity(t *testing.T) {
	reg := NewRegistry(2)
	require.NoError(t, reg.Register("c1"))
	require.NoError(t, reg.Register("c2"))
	assert.ErrorIs(t, reg.Register("c3"), ErrServerFull)

	reg.Drop("c1")
	assert.NoError(t, reg.Register("c3"))
}

func TestRegistryJoinLeaveTransitions(t *testing.T) {
	reg := NewRegistry(0)
	require.NoError(t, reg.Register("c1"))

	newly, err := reg.Join("c1", "general")
	require.NoError(t, err)
	assert.True(t, newly)

	newly, err = reg.Join("c1", "general")
	require.NoError(t, err)
	assert.False(t, newly, "second join must not report a transition")

	assert.True(t, reg.InRoom("c1", "general"))
	assert.False(t, reg.InRoom("c1", "other"))

	was, err := reg.Leave("c1", "general")
	require.NoError(t, err)
	assert.True(t, was)

	was, err = reg.Leave("c1", "general")
	require.NoError(t, err)
	assert.False(t, was, "second leave must not report a transition")
}

func TestRegistryDropReturnsJoinedRooms(t *testing.T) {
	reg := NewRegistry(0)
	require.NoError(t, reg.Register("c1"))
	require.NoError(t, reg.BindIdentity("c1", Identity{Name: "alice", Role: RoleUser}))
	_, err := reg.Join("c1", "a")
	require.NoError(t, err)
	_, err = reg.Join("c1", "b")
	require.NoError(t, err)
	_, err = reg.Join("c1", "b")
	require.NoError(t, err)

	rooms, identity, bound := reg.Drop("c1")
	assert.ElementsMatch(t, []string{"a", "b"}, rooms)
	require.True(t, bound)
	assert.Equal(t, "alice", identity.Name)
	assert.Zero(t, reg.Len())

	rooms, _, bound = reg.Drop("c1")
	assert.Nil(t, rooms)
	assert.False(t, bound)
}

func TestRegistryDropUnbound(t *testing.T) {
	reg := NewRegistry(0)
	require.NoError(t, reg.Register("c1"))
	_, err := reg.Join("c1", "a")
	require.NoError(t, err)

	rooms, _, bound := reg.Drop("c1")
	assert.Equal(t, []string{"a"}, rooms)
	assert.False(t, bound)
}
