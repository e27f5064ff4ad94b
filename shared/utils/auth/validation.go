package utils

import (
	"net/mail"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var phoneRegex = regexp.MustCompile(`^(\+?86)?1[3-9]\d{9}$`)

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return errors.New("email is required")
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return errors.New("invalid email format")
	}

	return nil
}

// ValidatePhone accepts mainland mobile numbers with an optional +86 prefix.
func ValidatePhone(phone string) error {
	if phone == "" {
		return errors.New("phone is required")
	}

	if !phoneRegex.MatchString(phone) {
		return errors.New("invalid phone number format")
	}

	return nil
}
