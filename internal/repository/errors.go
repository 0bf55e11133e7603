// Package repository implements data access over the scoped store. The
// sentinel errors below are the storage half of the service's error
// taxonomy: constraint violations and lookup misses are translated here
// into named conditions, so raw driver errors never cross a repository
// boundary. Higher layers match them with errors.Is and map each one to
// a distinct outward signal.
package repository

import "errors"

// ErrDuplicateEmail is returned when a registration collides with an
// existing email_hash. The uniqueness constraint in the schema is the
// arbiter; concurrent registrations resolve to exactly one success.
var ErrDuplicateEmail = errors.New("email already registered")

// ErrUserNotFound is returned when no user matches the lookup key.
var ErrUserNotFound = errors.New("user not found")

// ErrTokenNotFound is returned when no refresh token row matches the
// presented secret's hash.
var ErrTokenNotFound = errors.New("refresh token not found")

// ErrTokenRevoked is returned when the matched refresh token has already
// been revoked — including the case where a concurrent rotation of the
// same secret committed first.
var ErrTokenRevoked = errors.New("refresh token revoked")

// ErrTokenExpired is returned when the matched refresh token is past its
// expiry. Expired rows are inert but stay in place (lazy expiry).
var ErrTokenExpired = errors.New("refresh token expired")

// ErrSessionNotFound is returned when no session row matches the
// presented access token's jti within the acting user's scope.
var ErrSessionNotFound = errors.New("session not found")

// ErrSessionRevoked is returned when the matched session was revoked.
var ErrSessionRevoked = errors.New("session revoked")

// ErrSessionExpired is returned when the matched session is past its
// expiry.
var ErrSessionExpired = errors.New("session expired")
