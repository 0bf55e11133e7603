package model

import (
	"time"

	"github.com/google/uuid"
)

// User represents a row in the `users` table. The email column holds the
// display form; uniqueness is enforced on EmailHash (SHA-256 of the
// normalized email) so the plaintext is never indexed or compared.
//
// Fields:
//  ID           – primary key, immutable after creation.
//  Email        – display email address.
//  EmailHash    – deterministic hash of the normalized email, unique.
//  PasswordHash – bcrypt hash, opaque to this layer.
//  Name         – optional display name.
//  IsActive     – cleared on deactivation; inactive accounts cannot log in.
//  IsVerified   – email verification flag, informational here.
type User struct {
	ID           uuid.UUID // users.id
	Email        string    // users.email
	EmailHash    string    // users.email_hash
	PasswordHash string    // users.password_hash
	Name         string    // users.name (empty when null)
	IsActive     bool      // users.is_active
	IsVerified   bool      // users.is_verified
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
