package model

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken models an entry in the `refresh_tokens` table. Each token
// belongs to one user and is cascade-deleted with it. The raw secret is
// never stored; only its SHA-256 hash, which is unique so a given secret
// maps to at most one live grant.
type RefreshToken struct {
	ID         uuid.UUID  // refresh_tokens.id
	UserID     uuid.UUID  // refresh_tokens.user_id
	TokenHash  string     // refresh_tokens.token_hash
	ExpiresAt  time.Time  // refresh_tokens.expires_at
	IsRevoked  bool       // refresh_tokens.is_revoked
	CreatedAt  time.Time  // refresh_tokens.created_at
	LastUsedAt *time.Time // refresh_tokens.last_used_at (nullable)
}

// Expired reports whether the token is past its expiry at the given
// instant. Expiry is enforced lazily at read time; expired rows stay in
// place until externally purged.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}
