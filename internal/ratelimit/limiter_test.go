package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automlhq/auth-service/internal/config"
	"github.com/automlhq/auth-service/internal/repository"
)

// memStore reproduces the repository's conditional-write contract over an
// in-memory map: IncrementIfBelow only touches an existing row below the
// limit, CreateWindow only inserts a missing row.
type memStore struct {
	mu      sync.Mutex
	windows map[string]uint32

	incrCalls   int
	createCalls int
}

func newMemStore() *memStore {
	return &memStore{windows: map[string]uint32{}}
}

func key(tool string, ws time.Time) string {
	return tool + "|" + ws.UTC().Format(time.RFC3339)
}

func (m *memStore) IncrementIfBelow(_ context.Context, tool string, ws time.Time, limit int) (uint32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incrCalls++
	k := key(tool, ws)
	count, exists := m.windows[k]
	if !exists || int(count) >= limit {
		return 0, false, nil
	}
	m.windows[k] = count + 1
	return count + 1, true, nil
}

func (m *memStore) CreateWindow(_ context.Context, tool string, ws time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	k := key(tool, ws)
	if _, exists := m.windows[k]; exists {
		return repository.ErrWindowExists
	}
	m.windows[k] = 1
	return nil
}

func testConfig(limit int, window time.Duration) config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled: true,
		Default: config.ToolLimit{Limit: limit, Window: window},
		Tools: map[string]config.ToolLimit{
			"train": {Limit: limit, Window: window},
		},
	}
}

func TestCheckAndIncrementWithinWindow(t *testing.T) {
	store := newMemStore()
	l := NewLimiter(store, testConfig(3, time.Minute), nil)

	base := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)
	want := []bool{true, true, true, false}
	for i, exp := range want {
		d, err := l.CheckAndIncrement(context.Background(), "train", base.Add(time.Duration(i)*10*time.Second))
		require.NoError(t, err)
		assert.Equal(t, exp, d.Allowed, "call %d", i+1)
	}
}

func TestCheckAndIncrementRemainingCountsDown(t *testing.T) {
	store := newMemStore()
	l := NewLimiter(store, testConfig(3, time.Minute), nil)
	now := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)

	for _, want := range []int{2, 1, 0} {
		d, err := l.CheckAndIncrement(context.Background(), "train", now)
		require.NoError(t, err)
		require.True(t, d.Allowed)
		assert.Equal(t, 3, d.Limit)
		assert.Equal(t, want, d.Remaining)
	}
}

func TestCheckAndIncrementWindowRollover(t *testing.T) {
	store := newMemStore()
	l := NewLimiter(store, testConfig(3, time.Minute), nil)
	base := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)

	for i := 0; i < 3; i++ {
		d, err := l.CheckAndIncrement(context.Background(), "train", base)
		require.NoError(t, err)
		require.True(t, d.Allowed)
	}
	d, err := l.CheckAndIncrement(context.Background(), "train", base)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// 61 seconds after the first call lands in the next window; the quota
	// is fresh and the old window's row is left untouched.
	d, err = l.CheckAndIncrement(context.Background(), "train", base.Add(61*time.Second))
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 2, d.Remaining)
	assert.Len(t, store.windows, 2)
}

func TestCheckAndIncrementDenialReportsRetryAfter(t *testing.T) {
	store := newMemStore()
	l := NewLimiter(store, testConfig(1, time.Minute), nil)
	now := time.Date(2026, 3, 10, 12, 0, 15, 0, time.UTC)

	_, err := l.CheckAndIncrement(context.Background(), "train", now)
	require.NoError(t, err)

	d, err := l.CheckAndIncrement(context.Background(), "train", now)
	require.NoError(t, err)
	require.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	// Window started at 12:00:00, so the next one opens 45s from now.
	assert.Equal(t, 45*time.Second, d.RetryAfter)
}

func TestCheckAndIncrementDenialMutatesNothing(t *testing.T) {
	store := newMemStore()
	l := NewLimiter(store, testConfig(2, time.Minute), nil)
	now := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)

	for i := 0; i < 2; i++ {
		_, err := l.CheckAndIncrement(context.Background(), "train", now)
		require.NoError(t, err)
	}
	before := store.windows[key("train", now.Truncate(time.Minute))]
	for i := 0; i < 5; i++ {
		d, err := l.CheckAndIncrement(context.Background(), "train", now)
		require.NoError(t, err)
		require.False(t, d.Allowed)
	}
	assert.Equal(t, before, store.windows[key("train", now.Truncate(time.Minute))])
}

func TestCheckAndIncrementRetriesAfterLostInsertRace(t *testing.T) {
	store := newMemStore()
	now := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)
	k := key("train", now.Truncate(time.Minute))

	// The wrapper plays a concurrent first request that creates the row
	// between this caller's failed increment and its own insert attempt.
	raced := false
	r := &racingStore{memStore: store, k: k, raced: &raced}
	l := NewLimiter(r, testConfig(3, time.Minute), nil)

	d, err := l.CheckAndIncrement(context.Background(), "train", now)
	require.NoError(t, err)
	assert.True(t, raced)
	assert.True(t, d.Allowed)
	assert.Equal(t, uint32(2), store.windows[k])
}

// racingStore injects a competing CreateWindow just before the wrapped
// store's own insert, so the caller always loses the first-request race.
type racingStore struct {
	*memStore
	k     string
	raced *bool
}

func (r *racingStore) CreateWindow(ctx context.Context, tool string, ws time.Time) error {
	if !*r.raced {
		*r.raced = true
		r.mu.Lock()
		r.windows[r.k] = 1
		r.mu.Unlock()
	}
	return r.memStore.CreateWindow(ctx, tool, ws)
}

func TestCheckAndIncrementDisabled(t *testing.T) {
	store := newMemStore()
	cfg := testConfig(1, time.Minute)
	cfg.Enabled = false
	l := NewLimiter(store, cfg, nil)

	for i := 0; i < 10; i++ {
		d, err := l.CheckAndIncrement(context.Background(), "train", time.Now())
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	assert.Zero(t, store.incrCalls)
	assert.Zero(t, store.createCalls)
}

func TestCheckAndIncrementToolsAreIndependent(t *testing.T) {
	store := newMemStore()
	cfg := config.RateLimitConfig{
		Enabled: true,
		Default: config.ToolLimit{Limit: 10, Window: time.Minute},
		Tools: map[string]config.ToolLimit{
			"train": {Limit: 1, Window: time.Minute},
		},
	}
	l := NewLimiter(store, cfg, nil)
	now := time.Date(2026, 3, 10, 12, 0, 5, 0, time.UTC)

	d, err := l.CheckAndIncrement(context.Background(), "train", now)
	require.NoError(t, err)
	require.True(t, d.Allowed)
	d, err = l.CheckAndIncrement(context.Background(), "train", now)
	require.NoError(t, err)
	require.False(t, d.Allowed)

	// Exhausting train does not touch research's quota.
	d, err = l.CheckAndIncrement(context.Background(), "research", now)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 9, d.Remaining)
}
