package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/automlhq/auth-service/internal/model"
	"github.com/automlhq/auth-service/internal/store"
)

// UserRepo persists user accounts. Reads go through the public executor –
// the user registry is deliberately read-open ("public profile") – while
// every mutation is owner-scoped, so only the acting user can update,
// deactivate or delete their own row ("private mutation").
type UserRepo struct {
	st *store.Store
}

func NewUserRepo(st *store.Store) *UserRepo { return &UserRepo{st: st} }

const userColumns = "id, email, email_hash, password_hash, COALESCE(name,''), is_active, is_verified, created_at, updated_at"

// Create inserts a new user. A collision on email_hash is reported as
// ErrDuplicateEmail; the unique key decides races between concurrent
// registrations of the same address.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	_, err := r.st.Public().Exec(ctx,
		"INSERT INTO users (id, email, email_hash, password_hash, name) VALUES (?,?,?,?,NULLIF(?,''))",
		u.ID.String(), u.Email, u.EmailHash, u.PasswordHash, u.Name)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// GetByEmailHash fetches a user by the hash of the normalized email.
func (r *UserRepo) GetByEmailHash(ctx context.Context, emailHash string) (model.User, error) {
	row := r.st.Public().QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE email_hash=? LIMIT 1", emailHash)
	return scanUser(row)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.st.Public().QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id.String())
	return scanUser(row)
}

// Deactivate clears is_active on the acting user's own row. The owner
// marker is the only user predicate; no caller-supplied id is accepted.
func (r *UserRepo) Deactivate(ctx context.Context) error {
	_, err := r.st.Scoped().Exec(ctx,
		"UPDATE users SET is_active=0 WHERE id = :owner")
	return err
}

// Delete removes the acting user's own row. The ON DELETE CASCADE
// constraints take the user's refresh tokens, sessions and rate-limit
// windows with it in the same statement.
func (r *UserRepo) Delete(ctx context.Context) error {
	_, err := r.st.Scoped().Exec(ctx,
		"DELETE FROM users WHERE id = :owner")
	return err
}

func scanUser(row *sql.Row) (model.User, error) {
	var (
		u         model.User
		id        string
		updatedAt time.Time
	)
	err := row.Scan(&id, &u.Email, &u.EmailHash, &u.PasswordHash, &u.Name,
		&u.IsActive, &u.IsVerified, &u.CreatedAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, err
	}
	u.UpdatedAt = updatedAt
	uid, err := uuid.Parse(id)
	if err != nil {
		return model.User{}, err
	}
	u.ID = uid
	return u, nil
}

// isDuplicateKey reports whether err is a MySQL duplicate-key violation
// (error 1062).
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "1062")
}
