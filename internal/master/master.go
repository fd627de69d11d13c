// Package master verifies and rotates the shared administrative secret.
// The secret carries no identity; it is a single authorization boolean
// gating every destructive service operation.
package master

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Verify reports whether supplied matches the configured secret. The
// configured value may be a bcrypt hash or, on bootstrap setups, the
// plain secret; an empty supplied secret never verifies.
func Verify(configured, supplied string) bool {
	if configured == "" || supplied == "" {
		return false
	}
	if isBcryptHash(configured) {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(supplied)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(configured), []byte(supplied)) == 1
}

// Hash derives the stored form of a new master password.
func Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func isBcryptHash(v string) bool {
	return strings.HasPrefix(v, "$2a$") || strings.HasPrefix(v, "$2b$") || strings.HasPrefix(v, "$2y$")
}
