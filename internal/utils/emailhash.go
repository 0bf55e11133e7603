package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// NormalizeEmail lowercases and trims an email address so that the same
// mailbox always produces the same hash.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashEmail returns the SHA-256 hex digest of the normalized email.
// The digest is the uniqueness key for the users table; the plaintext
// email is stored for display only and never indexed or compared.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}
