// Package cache provides a Redis lookaside for validated sessions so the
// hot path of access-token validation does not hit MySQL on every
// request. The cache is strictly optional: a nil Redis client disables
// it and every error degrades to a miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/automlhq/auth-service/internal/model"
)

const keyPrefix = "session:jti:"

// entry is the wire form of a cached session. Only the fields consulted
// during validation are stored.
type entry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expires_at"`
	IsRevoked bool      `json:"is_revoked"`
}

// SessionCache caches session rows keyed by access-token jti. Entries
// expire with the session itself, and revocation invalidates eagerly, so
// a cached entry can never outlive the row's authority by more than the
// call that revoked it.
type SessionCache struct {
	rdb *redis.Client
}

// New returns a SessionCache, or nil when rdb is nil so callers can pass
// the result straight through as an optional dependency.
func New(rdb *redis.Client) *SessionCache {
	if rdb == nil {
		return nil
	}
	return &SessionCache{rdb: rdb}
}

// Get returns the cached session for jti, if present.
func (c *SessionCache) Get(ctx context.Context, jti string) (model.UserSession, bool) {
	bs, err := c.rdb.Get(ctx, keyPrefix+jti).Bytes()
	if err != nil {
		return model.UserSession{}, false
	}
	var e entry
	if err := json.Unmarshal(bs, &e); err != nil {
		return model.UserSession{}, false
	}
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return model.UserSession{}, false
	}
	uid, err := uuid.Parse(e.UserID)
	if err != nil {
		return model.UserSession{}, false
	}
	return model.UserSession{
		ID:             id,
		UserID:         uid,
		AccessTokenJTI: e.JTI,
		ExpiresAt:      e.ExpiresAt,
		IsRevoked:      e.IsRevoked,
	}, true
}

// Set stores a validated session until its own expiry. Failures are
// ignored; the database remains authoritative.
func (c *SessionCache) Set(ctx context.Context, s model.UserSession) {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return
	}
	bs, err := json.Marshal(entry{
		ID:        s.ID.String(),
		UserID:    s.UserID.String(),
		JTI:       s.AccessTokenJTI,
		ExpiresAt: s.ExpiresAt,
		IsRevoked: s.IsRevoked,
	})
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, keyPrefix+s.AccessTokenJTI, bs, ttl).Err()
}

// Invalidate drops the cached entry for jti. Called on revocation before
// the revoke is acknowledged.
func (c *SessionCache) Invalidate(ctx context.Context, jti string) {
	_ = c.rdb.Del(ctx, keyPrefix+jti).Err()
}
