package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessToken is a signed HS256 JWT plus the metadata the session store
// needs: the jti that binds the token to exactly one user_sessions row,
// and the expiry recorded on that row.
type AccessToken struct {
	Token string
	JTI   string
	Exp   time.Time
}

// RefreshToken carries the raw secret handed back to the client and its
// expiry. Only the SHA-256 hash of Raw is ever persisted.
type RefreshToken struct {
	Raw string
	Exp time.Time
}

// AccessClaims are the verified claims of a presented access token.
type AccessClaims struct {
	UserID uuid.UUID
	JTI    string
}

var (
	errBadSigningMethod = errors.New("unexpected signing method")
	errBadTokenType     = errors.New("unexpected token type")
	errBadClaims        = errors.New("malformed token claims")
)

// NewAccessToken builds and signs an access JWT for a user. Claims follow
// the issuing convention used across the service: sub is the user UUID,
// jti a fresh UUID, type is always "access", plus exp and iat.
func NewAccessToken(secret string, userID uuid.UUID, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	jti := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"jti":  jti,
		"type": "access",
		"exp":  exp.Unix(),
		"iat":  time.Now().UTC().Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, JTI: jti, Exp: exp}, nil
}

// ParseAccessToken verifies signature, expiry and token type, and returns
// the subject and jti. Any failure is reported as a single error; the
// caller maps it to the invalid-credentials taxonomy, never to raw JWT
// library errors.
func ParseAccessToken(secret, raw string) (AccessClaims, error) {
	tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errBadSigningMethod
		}
		return []byte(secret), nil
	})
	if err != nil || !tok.Valid {
		if err == nil {
			err = errBadClaims
		}
		return AccessClaims{}, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return AccessClaims{}, errBadClaims
	}
	if typ, _ := claims["type"].(string); typ != "access" {
		return AccessClaims{}, errBadTokenType
	}
	sub, _ := claims["sub"].(string)
	uid, err := uuid.Parse(sub)
	if err != nil {
		return AccessClaims{}, errBadClaims
	}
	jti, _ := claims["jti"].(string)
	if jti == "" {
		return AccessClaims{}, errBadClaims
	}
	return AccessClaims{UserID: uid, JTI: jti}, nil
}

// NewRefreshToken returns a cryptographically random secret (96 hex chars)
// and its expiry. The ttlDays parameter controls how long the refresh
// token stays exchangeable.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	raw, err := randomHex(48)
	if err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: raw,
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA-256 hex digest of a raw refresh secret.
// Storing only the hash means a read of the database alone cannot be
// replayed against the refresh endpoint.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
