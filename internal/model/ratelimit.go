package model

import (
	"time"

	"github.com/google/uuid"
)

// RateLimitWindow models a row in the `rate_limits` table: one counter
// per (user, tool, window_start), enforced unique by the schema. Rows
// from past windows are kept for audit until externally purged.
type RateLimitWindow struct {
	ID           uint64    // rate_limits.id
	UserID       uuid.UUID // rate_limits.user_id
	Tool         string    // rate_limits.tool
	WindowStart  time.Time // rate_limits.window_start
	RequestCount uint32    // rate_limits.request_count
	CreatedAt    time.Time // rate_limits.created_at
}

// WindowStart computes the fixed-window bucket boundary containing now.
// Buckets are aligned to multiples of the window duration since the Unix
// epoch, so all nodes agree on boundaries without coordination.
func WindowStart(now time.Time, window time.Duration) time.Time {
	return now.UTC().Truncate(window)
}
