package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingQuerier captures the statement and arguments a Scope actually
// sends to the driver.
type recordingQuerier struct {
	query string
	args  []any
}

func (r *recordingQuerier) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.query, r.args = query, args
	return nil, nil
}

func (r *recordingQuerier) QueryContext(_ context.Context, query string, args ...any) (*sql.Rows, error) {
	r.query, r.args = query, args
	return nil, nil
}

func (r *recordingQuerier) QueryRowContext(_ context.Context, query string, args ...any) *sql.Row {
	r.query, r.args = query, args
	return nil
}

func TestScopeRefusesUnscopedStatement(t *testing.T) {
	q := &recordingQuerier{}
	sc := NewScope(q)
	ctx := WithActor(context.Background(), uuid.New())

	_, err := sc.Exec(ctx, "DELETE FROM refresh_tokens WHERE token_hash=?", "abc")
	require.ErrorIs(t, err, ErrUnscopedQuery)
	assert.Empty(t, q.query, "statement must never reach the driver")

	// QueryRow reports the refusal directly, before anything is scanned.
	_, err = sc.QueryRow(ctx, "SELECT 1 FROM user_sessions WHERE id=?", "s1")
	require.ErrorIs(t, err, ErrUnscopedQuery)
	assert.Empty(t, q.query)
}

func TestScopeRefusesMissingActor(t *testing.T) {
	q := &recordingQuerier{}
	sc := NewScope(q)

	_, err := sc.Exec(context.Background(),
		"UPDATE users SET is_active=0 WHERE id = :owner")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Empty(t, q.query)
}

func TestScopeBindsActorInPosition(t *testing.T) {
	actor := uuid.New()
	ctx := WithActor(context.Background(), actor)

	tests := []struct {
		name      string
		query     string
		args      []any
		wantQuery string
		wantArgs  []any
	}{
		{
			name:      "marker after placeholder",
			query:     "UPDATE refresh_tokens SET is_revoked=1 WHERE token_hash=? AND user_id = :owner",
			args:      []any{"h1"},
			wantQuery: "UPDATE refresh_tokens SET is_revoked=1 WHERE token_hash=? AND user_id = ?",
			wantArgs:  []any{"h1", actor.String()},
		},
		{
			name:      "marker before placeholders",
			query:     "INSERT INTO rate_limits (user_id, tool, window_start, request_count) VALUES (:owner, ?, ?, 1)",
			args:      []any{"train", "2026-01-01"},
			wantQuery: "INSERT INTO rate_limits (user_id, tool, window_start, request_count) VALUES (?, ?, ?, 1)",
			wantArgs:  []any{actor.String(), "train", "2026-01-01"},
		},
		{
			name:      "marker only",
			query:     "DELETE FROM users WHERE id = :owner",
			wantQuery: "DELETE FROM users WHERE id = ?",
			wantArgs:  []any{actor.String()},
		},
		{
			name:      "marker repeated",
			query:     "SELECT 1 FROM user_sessions WHERE user_id = :owner AND id=? AND user_id = :owner",
			args:      []any{"s1"},
			wantQuery: "SELECT 1 FROM user_sessions WHERE user_id = ? AND id=? AND user_id = ?",
			wantArgs:  []any{actor.String(), "s1", actor.String()},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &recordingQuerier{}
			_, err := NewScope(q).Exec(ctx, tt.query, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.wantQuery, q.query)
			assert.Equal(t, tt.wantArgs, q.args)
		})
	}
}

func TestScopeMarkerIsNotAPrefixMatch(t *testing.T) {
	ctx := WithActor(context.Background(), uuid.New())
	// ":ownership" is an ordinary token, not the marker.
	_, err := NewScope(&recordingQuerier{}).Exec(ctx,
		"SELECT :ownership FROM users")
	require.ErrorIs(t, err, ErrUnscopedQuery)
}

func TestScopeArgumentCountMismatch(t *testing.T) {
	ctx := WithActor(context.Background(), uuid.New())

	_, err := NewScope(&recordingQuerier{}).Exec(ctx,
		"UPDATE users SET name=? WHERE id = :owner")
	require.Error(t, err)

	_, err = NewScope(&recordingQuerier{}).Exec(ctx,
		"UPDATE users SET is_active=0 WHERE id = :owner", "extra")
	require.Error(t, err)
}

func TestActorRoundTrip(t *testing.T) {
	id := uuid.New()
	ctx := WithActor(context.Background(), id)

	got, ok := ActorFrom(ctx)
	require.True(t, ok)
	assert.Equal(t, id, got)

	_, ok = ActorFrom(context.Background())
	assert.False(t, ok)
}
