package directory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatwave/chatwave/internal/auth"
	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/storage"
)

type fakeUserStore struct {
	users map[string]storage.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]storage.User)}
}

func (f *fakeUserStore) CreateUser(_ context.Context, user *storage.User) error {
	f.users[user.Username] = *user
	return nil
}

func (f *fakeUserStore) GetUserByUsername(_ context.Context, username string) (*storage.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &user, nil
}

func testJWT() config.JWTConfig {
	return config.JWTConfig{Secret: "test-secret", Issuer: "chatwave-test", Expiration: time.Hour}
}

func TestResolvePassword(t *testing.T) {
	users := newFakeUserStore()
	dir := NewStoreDirectory(users, testJWT(), true)
	ctx := context.Background()

	require.NoError(t, dir.Register(ctx, "alice", "hunter2", coordinator.RoleUser))

	identity, err := dir.Resolve(ctx, Credentials{Username: "alice", Password: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Name)
	assert.Equal(t, coordinator.RoleUser, identity.Role)

	_, err = dir.Resolve(ctx, Credentials{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, ErrNotFound)

	// A registered name can never be claimed without its password, even
	// with guests enabled.
	_, err = dir.Resolve(ctx, Credentials{Username: "alice"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveGuest(t *testing.T) {
	ctx := context.Background()

	dir := NewStoreDirectory(newFakeUserStore(), testJWT(), true)
	identity, err := dir.Resolve(ctx, Credentials{Username: "drifter"})
	require.NoError(t, err)
	assert.Equal(t, coordinator.RoleGuest, identity.Role)

	strict := NewStoreDirectory(newFakeUserStore(), testJWT(), false)
	_, err = strict.Resolve(ctx, Credentials{Username: "drifter"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRejectsEmptyInput(t *testing.T) {
	dir := NewStoreDirectory(newFakeUserStore(), testJWT(), true)
	_, err := dir.Resolve(context.Background(), Credentials{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveToken(t *testing.T) {
	cfg := testJWT()
	dir := NewStoreDirectory(newFakeUserStore(), cfg, false)
	ctx := context.Background()

	token, expiresAt, err := dir.IssueToken(coordinator.Identity{Name: "alice", Role: coordinator.RoleAdmin, Badge: "founder"})
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	identity, err := dir.Resolve(ctx, Credentials{Token: token})
	require.NoError(t, err)
	assert.Equal(t, "alice", identity.Name)
	assert.Equal(t, coordinator.RoleAdmin, identity.Role)
	assert.Equal(t, "founder", identity.Badge)

	_, err = dir.Resolve(ctx, Credentials{Token: "not-a-token"})
	assert.ErrorIs(t, err, ErrNotFound)

	// Tokens signed with a different secret are foreign.
	foreign, err := auth.NewToken(config.JWTConfig{Secret: "other", Expiration: time.Hour}, "mallory", "admin", "")
	require.NoError(t, err)
	_, err = dir.Resolve(ctx, Credentials{Token: foreign})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterHashesPassword(t *testing.T) {
	users := newFakeUserStore()
	dir := NewStoreDirectory(users, testJWT(), true)
	ctx := context.Background()

	require.NoError(t, dir.Register(ctx, "alice", "hunter2", coordinator.RoleAdmin))

	stored := users.users["alice"]
	assert.NotEqual(t, "hunter2", stored.Password)
	assert.NoError(t, auth.ComparePassword(stored.Password, "hunter2"))
	assert.Equal(t, "admin", stored.Role)

	assert.Error(t, dir.Register(ctx, "  ", "x", coordinator.RoleUser))
}

func TestParseRoleDefaultsToGuest(t *testing.T) {
	users := newFakeUserStore()
	dir := NewStoreDirectory(users, testJWT(), true)
	ctx := context.Background()

	require.NoError(t, users.CreateUser(ctx, &storage.User{
		Username: "odd",
		Password: mustHash(t, "pw"),
		Role:     "superuser",
	}))

	identity, err := dir.Resolve(ctx, Credentials{Username: "odd", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, coordinator.RoleGuest, identity.Role)
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	require.NoError(t, err)
	return hashed
}
