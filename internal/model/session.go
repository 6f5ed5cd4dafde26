package model

import "time"

// Authority names the store that vouched for a session's user.
type Authority string

const (
	AuthorityMaster Authority = "master"
	AuthorityTenant Authority = "tenant"
)

// Valid reports whether a is one of the known authorities.
func (a Authority) Valid() bool {
	return a == AuthorityMaster || a == AuthorityTenant
}

// Session is a row of the `sessions` table. Only the SHA-256 hex of the
// token is stored. Rows are never deleted; logout flips Active.
type Session struct {
	TokenHash    string    // sessions.token_hash
	TenantID     int64     // sessions.tenant_id
	UserID       int64     // sessions.user_id
	Authority    Authority // sessions.authority
	Active       bool      // sessions.active
	LastActivity time.Time // sessions.last_activity
	CreatedAt    time.Time // sessions.created_at
}

// LiveAt reports whether the session is active and its last activity falls
// inside window before now. Liveness is computed on read, never stored.
func (s Session) LiveAt(now time.Time, window time.Duration) bool {
	return s.Active && !s.LastActivity.Before(now.Add(-window))
}
