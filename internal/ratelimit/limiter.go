// Package ratelimit implements per-user fixed-window admission control
// over durable counter rows. Windows are non-overlapping buckets of the
// configured duration; the counter resets by rolling to a new row at
// each boundary rather than by mutating the old one, so exhausted
// windows remain behind as an audit trail.
package ratelimit

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/automlhq/auth-service/internal/config"
	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/repository"
)

// Store is the slice of the rate-limit repository the limiter needs.
// Both operations are single atomic statements; the limiter composes
// them but never does a read-modify-write of its own.
type Store interface {
	IncrementIfBelow(ctx context.Context, tool string, windowStart time.Time, limit int) (uint32, bool, error)
	CreateWindow(ctx context.Context, tool string, windowStart time.Time) error
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // zero when allowed
}

// Limiter applies the configured per-tool policies for the acting user
// bound to the request context.
type Limiter struct {
	store Store
	cfg   config.RateLimitConfig
	log   *zap.Logger
}

func NewLimiter(store Store, cfg config.RateLimitConfig, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Limiter{store: store, cfg: cfg, log: log}
}

// CheckAndIncrement admits or denies one request for the acting user
// against the named tool's quota, consuming one unit when admitted.
//
// The sequence is: try the conditional increment; if no row matched, try
// to create the window's first-request row; if another request created
// it concurrently, retry the increment once. Every step is a single
// conditional write, so two racing first-requests end up with one
// created row and one increment, never a duplicate window or a lost
// update. A denial mutates nothing.
func (l *Limiter) CheckAndIncrement(ctx context.Context, tool string, now time.Time) (Decision, error) {
	policy := l.cfg.For(tool)
	if !l.cfg.Enabled {
		return Decision{Allowed: true, Limit: policy.Limit, Remaining: policy.Limit}, nil
	}
	windowStart := model.WindowStart(now, policy.Window)

	count, ok, err := l.store.IncrementIfBelow(ctx, tool, windowStart, policy.Limit)
	if err != nil {
		return Decision{}, err
	}
	if ok {
		return l.allowed(policy, count), nil
	}

	// No matching row: either this is the window's first request or the
	// window is already exhausted. The insert disambiguates atomically.
	err = l.store.CreateWindow(ctx, tool, windowStart)
	switch {
	case err == nil:
		return l.allowed(policy, 1), nil
	case errors.Is(err, repository.ErrWindowExists):
		// Lost the insert race; the row now exists, so increment.
		count, ok, err = l.store.IncrementIfBelow(ctx, tool, windowStart, policy.Limit)
		if err != nil {
			return Decision{}, err
		}
		if ok {
			return l.allowed(policy, count), nil
		}
	case err != nil:
		return Decision{}, err
	}

	l.log.Debug("rate limit exceeded",
		zap.String("tool", tool),
		zap.Time("window_start", windowStart),
		zap.Int("limit", policy.Limit))
	return Decision{
		Allowed:    false,
		Limit:      policy.Limit,
		Remaining:  0,
		RetryAfter: windowStart.Add(policy.Window).Sub(now.UTC()),
	}, nil
}

func (l *Limiter) allowed(policy config.ToolLimit, count uint32) Decision {
	remaining := policy.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Limit: policy.Limit, Remaining: remaining}
}
