package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/store"
)

// CredentialRepo persists refresh tokens and user sessions. The two
// tables always change together – a credential pair is issued, rotated
// or revoked as a unit – so the repository owns the transaction for
// each of those operations.
//
// Scoping: the refresh-token lookup by hash is the one public read (it
// runs before an identity exists, exactly like the original row policy
// that leaves refresh-token SELECT open). Everything that writes, and
// every session read, carries the owner marker.
type CredentialRepo struct {
	st *store.Store
}

func NewCredentialRepo(st *store.Store) *CredentialRepo { return &CredentialRepo{st: st} }

// IssuedPair describes the rows created when a credential pair is handed
// out: one refresh token (hash only) and one session bound to the new
// access token's jti.
type IssuedPair struct {
	TokenID    uuid.UUID
	TokenHash  string
	TokenExp   time.Time
	SessionID  uuid.UUID
	JTI        string
	SessionExp time.Time
	IPAddress  string
	UserAgent  string
}

// Issue stores a new credential pair for the acting user. Both inserts
// commit or neither does; an abandoned request cannot leave a session
// without its refresh token or vice versa.
func (r *CredentialRepo) Issue(ctx context.Context, p IssuedPair) error {
	return r.st.InTx(ctx, func(sc *store.Scope) error {
		if err := insertPair(ctx, sc, p); err != nil {
			return err
		}
		return nil
	})
}

// LookupRefresh finds a refresh token row by the hash of the presented
// secret. The row is returned regardless of revocation or expiry so the
// caller can distinguish TokenRevoked from TokenExpired; only a missing
// row maps to ErrTokenNotFound.
func (r *CredentialRepo) LookupRefresh(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var (
		t          model.RefreshToken
		id, userID string
		lastUsed   sql.NullTime
	)
	err := r.st.Public().QueryRow(ctx,
		`SELECT id, user_id, token_hash, expires_at, is_revoked, created_at, last_used_at
		 FROM refresh_tokens WHERE token_hash=? LIMIT 1`, tokenHash).
		Scan(&id, &userID, &t.TokenHash, &t.ExpiresAt, &t.IsRevoked, &t.CreatedAt, &lastUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RefreshToken{}, ErrTokenNotFound
		}
		return model.RefreshToken{}, err
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return model.RefreshToken{}, err
	}
	if t.UserID, err = uuid.Parse(userID); err != nil {
		return model.RefreshToken{}, err
	}
	if lastUsed.Valid {
		t.LastUsedAt = &lastUsed.Time
	}
	return t, nil
}

// Rotate exchanges an old refresh token for a new credential pair in one
// transaction: revoke old, insert new token, insert new session. The
// conditional revoke is the linearization point – of two concurrent
// rotations presenting the same secret, exactly one updates the row and
// commits; the other sees zero rows affected and fails with
// ErrTokenRevoked, leaving no partial state behind.
func (r *CredentialRepo) Rotate(ctx context.Context, oldHash string, p IssuedPair) error {
	return r.st.InTx(ctx, func(sc *store.Scope) error {
		res, err := sc.Exec(ctx,
			`UPDATE refresh_tokens SET is_revoked=1, last_used_at=UTC_TIMESTAMP()
			 WHERE token_hash=? AND user_id = :owner AND is_revoked=0`, oldHash)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrTokenRevoked
		}
		return insertPair(ctx, sc, p)
	})
}

// insertPair writes the refresh token and session rows for the acting
// user inside the supplied scope.
func insertPair(ctx context.Context, sc *store.Scope, p IssuedPair) error {
	if _, err := sc.Exec(ctx,
		`INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at)
		 VALUES (?, :owner, ?, ?)`,
		p.TokenID.String(), p.TokenHash, p.TokenExp.UTC()); err != nil {
		return err
	}
	_, err := sc.Exec(ctx,
		`INSERT INTO user_sessions (id, user_id, access_token_jti, ip_address, user_agent, expires_at)
		 VALUES (?, :owner, ?, NULLIF(?,''), NULLIF(?,''), ?)`,
		p.SessionID.String(), p.JTI, p.IPAddress, p.UserAgent, p.SessionExp.UTC())
	return err
}

// RevokeRefresh marks the acting user's refresh token revoked. Revoking
// an already-revoked or unknown token is not an error (idempotent).
func (r *CredentialRepo) RevokeRefresh(ctx context.Context, tokenHash string) error {
	_, err := r.st.Scoped().Exec(ctx,
		`UPDATE refresh_tokens SET is_revoked=1 WHERE token_hash=? AND user_id = :owner AND is_revoked=0`,
		tokenHash)
	return err
}

// RevokeAll revokes every live refresh token and session of the acting
// user, in one transaction. Used for logout-everywhere.
func (r *CredentialRepo) RevokeAll(ctx context.Context) error {
	return r.st.InTx(ctx, func(sc *store.Scope) error {
		if _, err := sc.Exec(ctx,
			`UPDATE refresh_tokens SET is_revoked=1 WHERE user_id = :owner AND is_revoked=0`); err != nil {
			return err
		}
		_, err := sc.Exec(ctx,
			`UPDATE user_sessions SET is_revoked=1 WHERE user_id = :owner AND is_revoked=0`)
		return err
	})
}

// SessionByJTI fetches the acting user's session bound to the given
// access-token jti. A session belonging to anyone else is invisible here
// – the owner predicate is injected by the scope, not by this query's
// arguments.
func (r *CredentialRepo) SessionByJTI(ctx context.Context, jti string) (model.UserSession, error) {
	row, err := r.st.Scoped().QueryRow(ctx,
		`SELECT id, user_id, access_token_jti, COALESCE(ip_address,''), COALESCE(user_agent,''),
		        expires_at, is_revoked, created_at
		 FROM user_sessions WHERE access_token_jti=? AND user_id = :owner LIMIT 1`, jti)
	if err != nil {
		return model.UserSession{}, err
	}
	var (
		s          model.UserSession
		id, userID string
	)
	err = row.Scan(&id, &userID, &s.AccessTokenJTI, &s.IPAddress, &s.UserAgent,
		&s.ExpiresAt, &s.IsRevoked, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.UserSession{}, ErrSessionNotFound
		}
		return model.UserSession{}, err
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return model.UserSession{}, err
	}
	if s.UserID, err = uuid.Parse(userID); err != nil {
		return model.UserSession{}, err
	}
	return s, nil
}

// RevokeSession marks the acting user's session with the given jti
// revoked. Idempotent like RevokeRefresh.
func (r *CredentialRepo) RevokeSession(ctx context.Context, jti string) error {
	_, err := r.st.Scoped().Exec(ctx,
		`UPDATE user_sessions SET is_revoked=1 WHERE access_token_jti=? AND user_id = :owner AND is_revoked=0`,
		jti)
	return err
}
