package repository

import (
	"context"
	"errors"
	"time"

	"github.com/automlhq/auth-service/internal/store"
)

// ErrWindowExists is returned by CreateWindow when another request
// created the counter row first. The caller retries as an increment;
// the race loser must never surface this to users.
var ErrWindowExists = errors.New("rate limit window already exists")

// RateLimitRepo persists fixed-window counters in the rate_limits table.
// The uniqueness key (user_id, tool, window_start) plus two conditional
// single-statement writes give insert-or-increment semantics without a
// read-modify-write cycle: each statement is individually atomic in
// MySQL, so concurrent requests can never lose an update or create a
// duplicate counter row.
type RateLimitRepo struct {
	st *store.Store
}

func NewRateLimitRepo(st *store.Store) *RateLimitRepo { return &RateLimitRepo{st: st} }

// IncrementIfBelow bumps the counter for the acting user's (tool,
// window) row, but only while it is still below limit. It returns the
// new count and true when the increment happened; (0, false) when the
// row is missing or already at the limit. The LAST_INSERT_ID binding is
// the standard MySQL idiom for reading back the value written by an
// UPDATE without a second round trip.
func (r *RateLimitRepo) IncrementIfBelow(ctx context.Context, tool string, windowStart time.Time, limit int) (uint32, bool, error) {
	res, err := r.st.Scoped().Exec(ctx,
		`UPDATE rate_limits SET request_count = LAST_INSERT_ID(request_count + 1)
		 WHERE user_id = :owner AND tool=? AND window_start=? AND request_count < ?`,
		tool, windowStart.UTC(), limit)
	if err != nil {
		return 0, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	newCount, err := res.LastInsertId()
	if err != nil {
		return 0, false, err
	}
	return uint32(newCount), true, nil
}

// CreateWindow inserts the first-request counter row (count = 1) for the
// acting user's (tool, window). A duplicate-key violation means a
// concurrent request won the insert race and is reported as
// ErrWindowExists so the caller can fall back to IncrementIfBelow.
func (r *RateLimitRepo) CreateWindow(ctx context.Context, tool string, windowStart time.Time) error {
	_, err := r.st.Scoped().Exec(ctx,
		`INSERT INTO rate_limits (user_id, tool, window_start, request_count)
		 VALUES (:owner, ?, ?, 1)`,
		tool, windowStart.UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrWindowExists
		}
		return err
	}
	return nil
}
