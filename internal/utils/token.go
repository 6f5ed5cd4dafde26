package utils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// SessionTokenBytes is the entropy of a session token; the hex form is twice as long.
const SessionTokenBytes = 48

// NewSessionToken returns a random 96 character hex token read from r.
// A nil r means crypto/rand.
func NewSessionToken(r io.Reader) (string, error) {
	if r == nil {
		r = rand.Reader
	}
	return randomHex(r, SessionTokenBytes)
}

// HashToken returns the SHA-256 hex of a raw token. Only this value is
// persisted, so a leaked sessions table cannot be replayed.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func randomHex(r io.Reader, n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
