// Package session keeps one Redis entry per live refresh token, keyed by the
// token's jti. Refreshing consumes the entry, so a refresh token works once.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
)

var (
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	errMissingJTI          = errors.New("session: jti is required")
	errNilStore            = errors.New("session: store is required")
)

// Store is the part of pkg/redis.Client the manager needs.
type Store interface {
	RefreshSessionKey(jti string) string
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

type Manager struct {
	store Store
}

func NewManager(store Store) (*Manager, error) {
	if store == nil {
		return nil, errNilStore
	}
	return &Manager{store: store}, nil
}

// Register stores jti -> user for ttl, normally the refresh token's lifetime.
func (m *Manager) Register(ctx context.Context, jti string, userID uuid.UUID, ttl time.Duration) error {
	key, err := m.key(jti)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return ErrInvalidRefreshToken
	}
	return m.store.Set(ctx, key, userID.String(), ttl)
}

// Rotate atomically consumes oldJTI and registers a fresh jti for the same
// user. The old entry is gone even when the owner check fails.
func (m *Manager) Rotate(ctx context.Context, oldJTI string, userID uuid.UUID, ttl time.Duration) (string, error) {
	oldKey, err := m.key(oldJTI)
	if err != nil || ttl <= 0 {
		return "", ErrInvalidRefreshToken
	}

	owner, err := m.store.GetDel(ctx, oldKey)
	switch {
	case errors.Is(err, redislib.Nil):
		return "", ErrInvalidRefreshToken
	case err != nil:
		return "", err
	case owner != userID.String():
		return "", ErrInvalidRefreshToken
	}

	next := NewSessionID()
	if err := m.Register(ctx, next, userID, ttl); err != nil {
		return "", err
	}
	return next, nil
}

// Revoke is idempotent.
func (m *Manager) Revoke(ctx context.Context, jti string) error {
	key, err := m.key(jti)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(jti string) (string, error) {
	jti = strings.TrimSpace(jti)
	if jti == "" {
		return "", errMissingJTI
	}
	return m.store.RefreshSessionKey(jti), nil
}

// NewSessionID mints a jti.
func NewSessionID() string {
	return uuid.NewString()
}
