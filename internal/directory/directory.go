package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatwave/chatwave/internal/auth"
	"github.com/chatwave/chatwave/internal/config"
	"github.com/chatwave/chatwave/internal/coordinator"
	"github.com/chatwave/chatwave/internal/storage"
)

// ErrNotFound reports that the raw login input resolved to no identity.
var ErrNotFound = errors.New("identity not found")

// Credentials is the raw login input a connection presents: a bearer
// token, a username/password pair, or a bare username (guest).
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Directory resolves raw login input to an identity and role. Account
// storage and credential policy live behind this interface.
type Directory interface {
	Resolve(ctx context.Context, creds Credentials) (coordinator.Identity, error)
}

// StoreDirectory is the reference Directory: JWT introspection plus a
// user table with bcrypt password hashes. Unknown usernames resolve as
// guests when permitted.
type StoreDirectory struct {
	users       storage.UserStore
	jwt         config.JWTConfig
	allowGuests bool
}

// NewStoreDirectory constructs the reference directory.
func NewStoreDirectory(users storage.UserStore, jwt config.JWTConfig, allowGuests bool) *StoreDirectory {
	return &StoreDirectory{users: users, jwt: jwt, allowGuests: allowGuests}
}

// Resolve maps credentials to an identity. Invalid tokens, unknown users,
// and password mismatches all collapse to ErrNotFound; the caller learns
// nothing about which check failed.
func (d *StoreDirectory) Resolve(ctx context.Context, creds Credentials) (coordinator.Identity, error) {
	if token := strings.TrimSpace(creds.Token); token != "" {
		claims, err := auth.ParseToken(d.jwt, token)
		if err != nil {
			return coordinator.Identity{}, ErrNotFound
		}
		return coordinator.Identity{
			Name:  claims.Name,
			Role:  parseRole(claims.Role),
			Badge: claims.Badge,
		}, nil
	}

	username := strings.TrimSpace(creds.Username)
	if username == "" {
		return coordinator.Identity{}, ErrNotFound
	}

	user, err := d.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			if d.allowGuests && creds.Password == "" {
				return coordinator.Identity{Name: username, Role: coordinator.RoleGuest}, nil
			}
			return coordinator.Identity{}, ErrNotFound
		}
		return coordinator.Identity{}, fmt.Errorf("user lookup: %w", err)
	}

	if err := auth.ComparePassword(user.Password, creds.Password); err != nil {
		return coordinator.Identity{}, ErrNotFound
	}
	return coordinator.Identity{
		Name:  user.Username,
		Role:  parseRole(user.Role),
		Badge: user.Badge,
	}, nil
}

// IssueToken mints a reconnect token for a resolved identity.
func (d *StoreDirectory) IssueToken(identity coordinator.Identity) (string, time.Time, error) {
	expiresAt := time.Now().Add(d.jwt.Expiration)
	token, err := auth.NewToken(d.jwt, identity.Name, string(identity.Role), identity.Badge)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Register creates an account record with a bcrypt password hash.
func (d *StoreDirectory) Register(ctx context.Context, username, password string, role coordinator.Role) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return errors.New("username required")
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	return d.users.CreateUser(ctx, &storage.User{
		Username:  username,
		Password:  hashed,
		Role:      string(role),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func parseRole(role string) coordinator.Role {
	switch coordinator.Role(strings.ToLower(strings.TrimSpace(role))) {
	case coordinator.RoleAdmin:
		return coordinator.RoleAdmin
	case coordinator.RoleUser:
		return coordinator.RoleUser
	default:
		return coordinator.RoleGuest
	}
}
