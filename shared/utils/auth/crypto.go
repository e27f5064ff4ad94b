package utils

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultEncryptRounds = 10
	MinEncryptRounds     = 2
	MaxEncryptRounds     = 19
)

type PasswordLevel string

const (
	PasswordSimple PasswordLevel = "simple"
	PasswordMiddle PasswordLevel = "middle"
	PasswordStrong PasswordLevel = "strong"
)

// NormalizeRounds falls back to DefaultEncryptRounds outside [2, 19].
func NormalizeRounds(rounds int) int {
	if rounds < MinEncryptRounds || rounds > MaxEncryptRounds {
		return DefaultEncryptRounds
	}
	return rounds
}

func HashPassword(password string, rounds int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), NormalizeRounds(rounds))
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ComparePassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// PasswordStrongEnough checks password against level. Unknown levels are treated as middle.
func PasswordStrongEnough(password string, level PasswordLevel) bool {
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	n := len([]rune(password))

	switch level {
	case PasswordSimple:
		return n >= 6
	case PasswordStrong:
		return n >= 10 && upper && lower && digit && symbol
	default:
		return n >= 8 && (upper || lower) && digit
	}
}
