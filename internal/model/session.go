package model

import (
	"time"

	"github.com/google/uuid"
)

// UserSession models a row in the `user_sessions` table. A session is
// created whenever an access token is issued and is bound to that token
// through the unique jti claim. IP address and user agent are recorded
// for audit, never consulted for authorization.
type UserSession struct {
	ID             uuid.UUID // user_sessions.id
	UserID         uuid.UUID // user_sessions.user_id
	AccessTokenJTI string    // user_sessions.access_token_jti
	IPAddress      string    // user_sessions.ip_address
	UserAgent      string    // user_sessions.user_agent
	ExpiresAt      time.Time // user_sessions.expires_at
	IsRevoked      bool      // user_sessions.is_revoked
	CreatedAt      time.Time // user_sessions.created_at
}

// Expired reports whether the session is past its expiry at the given
// instant.
func (s UserSession) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
