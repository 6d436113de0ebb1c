package utils

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password the back office accepts.
const MinPasswordLen = 8

// ErrWeakPassword is returned by CheckPasswordPolicy.
var ErrWeakPassword = errors.New("password must have at least 8 characters and one uppercase letter")

// HashPassword returns bcrypt hash using the given cost.
func HashPassword(plain string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifyPassword safely compares bcrypt hash and plain password.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// CheckPasswordPolicy enforces the registration/reset policy: at least
// MinPasswordLen characters and one uppercase letter.
func CheckPasswordPolicy(plain string) error {
	if len([]rune(plain)) < MinPasswordLen {
		return ErrWeakPassword
	}
	for _, r := range plain {
		if unicode.IsUpper(r) {
			return nil
		}
	}
	return ErrWeakPassword
}
