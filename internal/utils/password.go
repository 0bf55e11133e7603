package utils

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// MaxPasswordBytes is the hard upper bound on password length. bcrypt
// only consumes the first 72 bytes of its input, so anything longer is
// rejected up front instead of silently truncated or erroring mid-hash.
const MaxPasswordBytes = 72

// ErrPasswordPolicy wraps every password-requirement failure so callers
// can match the class with errors.Is while still surfacing the specific
// requirement in the message.
var ErrPasswordPolicy = errors.New("password does not meet requirements")

const passwordSpecials = "!@#$%^&*()_+-=[]{}|;:,.<>?"

var passwordChecks = []struct {
	ok  func(string) bool
	msg string
}{
	{func(p string) bool { return utf8.RuneCountInString(p) >= 8 },
		"password must be at least 8 characters long"},
	{func(p string) bool { return len(p) <= MaxPasswordBytes },
		fmt.Sprintf("password cannot be longer than %d bytes", MaxPasswordBytes)},
	{containsClass(unicode.IsUpper),
		"password must contain at least one uppercase letter"},
	{containsClass(unicode.IsLower),
		"password must contain at least one lowercase letter"},
	{containsClass(unicode.IsDigit),
		"password must contain at least one number"},
	{func(p string) bool { return strings.ContainsAny(p, passwordSpecials) },
		"password must contain at least one special character"},
}

func containsClass(class func(rune) bool) func(string) bool {
	return func(p string) bool {
		for _, r := range p {
			if class(r) {
				return true
			}
		}
		return false
	}
}

// ValidatePassword checks a candidate password against the requirement
// list and reports the first unmet requirement, wrapped in
// ErrPasswordPolicy. Run before hashing; bcrypt never sees a password
// that fails here.
func ValidatePassword(plain string) error {
	for _, check := range passwordChecks {
		if !check.ok(plain) {
			return fmt.Errorf("%w: %s", ErrPasswordPolicy, check.msg)
		}
	}
	return nil
}

// HashPassword returns a bcrypt hash of plain using the given cost.
// The hash is opaque to the rest of the system; only VerifyPassword
// ever interprets it.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword compares a bcrypt hash against a plain password in
// constant time.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
