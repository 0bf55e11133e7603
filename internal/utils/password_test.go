package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("s3cret", 4) // min cost keeps the test fast
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	assert.True(t, VerifyPassword(hash, "s3cret"))
	assert.False(t, VerifyPassword(hash, "wrong"))
	assert.False(t, VerifyPassword("not-a-hash", "s3cret"))
}

func TestValidatePassword(t *testing.T) {
	require.NoError(t, ValidatePassword("S3cret!pw"))

	cases := []struct {
		name     string
		password string
		wantMsg  string
	}{
		{"too short", "S3c!ret", "at least 8 characters"},
		{"over byte cap", strings.Repeat("Aa1!", 25), "longer than 72 bytes"},
		{"no uppercase", "s3cret!pw", "uppercase letter"},
		{"no lowercase", "S3CRET!PW", "lowercase letter"},
		{"no digit", "Secret!pw", "one number"},
		{"no special", "S3cretpwd", "special character"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePassword(tc.password)
			require.ErrorIs(t, err, ErrPasswordPolicy)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestValidatePasswordCountsBytesNotRunes(t *testing.T) {
	// 24 three-byte runes plus the required classes: 32 runes, 80 bytes.
	p := "S3cret!p" + strings.Repeat("日", 24)
	err := ValidatePassword(p)
	require.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Contains(t, err.Error(), "72 bytes")
}
