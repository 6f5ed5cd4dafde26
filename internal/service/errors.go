package service

import (
	"errors"
	"fmt"
)

// Login and ledger failures. Handlers collapse ErrAuthenticationFailed and
// ErrInvalidCredentials into one client-facing answer; the distinction is
// only logged.
var (
	ErrMissingCredentials   = errors.New("missing credentials")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrSessionLimitExceeded = errors.New("session limit exceeded")
	ErrTenantUnreachable    = errors.New("tenant unreachable")
	ErrStorageUnavailable   = errors.New("session storage unavailable")
)

// SessionLimitError names the ceiling that rejected a login.
type SessionLimitError struct {
	Limit int
}

func (e *SessionLimitError) Error() string {
	return fmt.Sprintf("session limit exceeded: at most %d concurrent sessions", e.Limit)
}

// Is lets errors.Is match ErrSessionLimitExceeded.
func (e *SessionLimitError) Is(target error) bool { return target == ErrSessionLimitExceeded }
