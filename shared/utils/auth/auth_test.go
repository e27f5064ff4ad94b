package utils

import (
	"testing"

	"backoffice-backend/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	config.SetConfig(&config.Config{JWT: config.JWTOptions{Secret: "s3cret", ExpireHours: 1}})
	t.Cleanup(func() { config.SetConfig(nil) })

	token, err := GenerateJWT(7, "0888000001", "admin", 1, true)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.UserID)
	assert.Equal(t, "0888000001", claims.Userno)
	assert.True(t, claims.IsSuper)

	config.SetConfig(&config.Config{JWT: config.JWTOptions{Secret: "other", ExpireHours: 1}})
	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestPasswordStrength(t *testing.T) {
	tests := []struct {
		pw    string
		level PasswordLevel
		ok    bool
	}{
		{"12345", PasswordSimple, false},
		{"123456", PasswordSimple, true},
		{"abcdefgh", PasswordMiddle, false},
		{"abcdefg1", PasswordMiddle, true},
		{"Abcdefg12", PasswordStrong, false},
		{"Abcdefg12!", PasswordStrong, true},
		{"abcdefg12!", PasswordStrong, false},
		{"123456", "unknown", false},
		{"abcdefg1", "unknown", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, PasswordStrongEnough(tt.pw, tt.level), "%s/%s", tt.pw, tt.level)
	}
}

func TestHashPassword(t *testing.T) {
	hashed, err := HashPassword("secret1", 4)
	require.NoError(t, err)
	assert.True(t, ComparePassword(hashed, "secret1"))
	assert.False(t, ComparePassword(hashed, "secret2"))

	assert.Equal(t, DefaultEncryptRounds, NormalizeRounds(1))
	assert.Equal(t, DefaultEncryptRounds, NormalizeRounds(20))
	assert.Equal(t, 19, NormalizeRounds(19))
}

func TestValidatePhoneAndEmail(t *testing.T) {
	assert.NoError(t, ValidatePhone("13800138000"))
	assert.NoError(t, ValidatePhone("+8613800138000"))
	assert.Error(t, ValidatePhone("12800138000"))
	assert.Error(t, ValidatePhone(""))

	assert.NoError(t, ValidateEmail("ops@example.com"))
	assert.Error(t, ValidateEmail("Ops <ops@example.com>"))
	assert.Error(t, ValidateEmail("not-an-email"))
}
