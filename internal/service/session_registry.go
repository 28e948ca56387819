package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/spec-kit/course-platform/internal/persistence"
)

const sessionKeyPrefix = "TOKEN:"

// SessionRegistry remembers the token most recently issued to each user.
type SessionRegistry struct {
	store persistence.KeyValueStore
}

// NewSessionRegistry builds a registry on top of store.
func NewSessionRegistry(store persistence.KeyValueStore) *SessionRegistry {
	return &SessionRegistry{store: store}
}

// Save records token as the active session of userID until ttl elapses.
func (r *SessionRegistry) Save(ctx context.Context, userID int64, token string, ttl time.Duration) error {
	return r.store.Set(ctx, sessionKey(userID), token, ttl)
}

// Get returns the active session token; ok is false when none is stored.
func (r *SessionRegistry) Get(ctx context.Context, userID int64) (string, bool, error) {
	token, err := r.store.Get(ctx, sessionKey(userID))
	if errors.Is(err, persistence.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

// Delete forgets the active session of userID.
func (r *SessionRegistry) Delete(ctx context.Context, userID int64) error {
	return r.store.Delete(ctx, sessionKey(userID))
}

// IsActive reports whether token is the stored session of userID.
func (r *SessionRegistry) IsActive(ctx context.Context, userID int64, token string) (bool, error) {
	stored, ok, err := r.Get(ctx, userID)
	if err != nil || !ok {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(token)) == 1, nil
}

func sessionKey(userID int64) string {
	return sessionKeyPrefix + strconv.FormatInt(userID, 10)
}
