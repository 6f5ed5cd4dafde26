package utils

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashSecret returns a bcrypt hash using the given cost.
func HashSecret(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifySecret compares a bcrypt hash with a plain secret.
func VerifySecret(hash, plain string) bool {
	if hash == "" || plain == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// IsBcryptHash reports whether stored looks like a bcrypt hash.
func IsBcryptHash(stored string) bool {
	return len(stored) == 60 && (strings.HasPrefix(stored, "$2a$") ||
		strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$"))
}

// VerifyStoredSecret checks a secret held by a tenant-local store, which may
// predate hashing. Plaintext values only match when allowPlaintext is set.
func VerifyStoredSecret(stored, plain string, allowPlaintext bool) bool {
	if IsBcryptHash(stored) {
		return VerifySecret(stored, plain)
	}
	if !allowPlaintext || stored == "" || plain == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(plain)) == 1
}
