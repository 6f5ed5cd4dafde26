package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/repository"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

// SessionStore is the persistence the ledger needs; *repository.SessionRepo implements it.
type SessionStore interface {
	Insert(ctx context.Context, s model.Session) error
	Get(ctx context.Context, tokenHash string) (model.Session, error)
	Touch(ctx context.Context, tokenHash string, now, cutoff time.Time) (bool, error)
	Expire(ctx context.Context, tokenHash string, cutoff time.Time) (bool, error)
	Deactivate(ctx context.Context, tokenHash string) error
	CountLive(ctx context.Context, tenantID int64, cutoff time.Time) (int, error)
}

var _ SessionStore = (*repository.SessionRepo)(nil)

// SessionLedger issues and tracks session tokens. A session is live while it
// is active and its last activity is inside the window; liveness is computed
// on every read, nothing sweeps expired rows.
//
// Heartbeats extend live sessions only. A heartbeat that reaches an active
// session already outside the window retires it, so an expired session stays
// expired.
type SessionLedger struct {
	store  SessionStore
	window time.Duration
	now    func() time.Time
	rand   io.Reader
}

// LedgerOption customizes a SessionLedger.
type LedgerOption func(*SessionLedger)

// WithNow replaces the clock.
func WithNow(now func() time.Time) LedgerOption {
	return func(l *SessionLedger) { l.now = now }
}

// WithRandom replaces the token entropy source.
func WithRandom(r io.Reader) LedgerOption {
	return func(l *SessionLedger) { l.rand = r }
}

// NewSessionLedger creates a ledger over store. window is the inactivity
// window after which a session is no longer live.
func NewSessionLedger(store SessionStore, window time.Duration, opts ...LedgerOption) (*SessionLedger, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if window <= 0 {
		return nil, errors.New("session window must be positive")
	}
	l := &SessionLedger{store: store, window: window, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Window is the liveness window.
func (l *SessionLedger) Window() time.Duration { return l.window }

func (l *SessionLedger) cutoff(now time.Time) time.Time { return now.Add(-l.window) }

// Create inserts an active session and returns its raw token. Storage
// failures propagate: a login never succeeds without a recorded session.
func (l *SessionLedger) Create(ctx context.Context, tenantID, userID int64, authority model.Authority) (string, error) {
	if !authority.Valid() {
		return "", fmt.Errorf("unknown authority %q", authority)
	}
	token, err := utils.NewSessionToken(l.rand)
	if err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	now := l.now().UTC()
	err = l.store.Insert(ctx, model.Session{
		TokenHash:    utils.HashToken(token),
		TenantID:     tenantID,
		UserID:       userID,
		Authority:    authority,
		Active:       true,
		LastActivity: now,
		CreatedAt:    now,
	})
	if err != nil {
		return "", fmt.Errorf("%w: insert session: %w", ErrStorageUnavailable, err)
	}
	return token, nil
}

// Heartbeat records activity on a live session. Unknown tokens are a no-op
// and storage errors are only logged.
func (l *SessionLedger) Heartbeat(ctx context.Context, token string) {
	if token == "" {
		return
	}
	hash := utils.HashToken(token)
	now := l.now().UTC()
	cutoff := l.cutoff(now)

	touched, err := l.store.Touch(ctx, hash, now, cutoff)
	if err != nil {
		log.Warn().Err(err).Str("token_hash", shortHash(hash)).Msg("session heartbeat failed")
		return
	}
	if touched {
		return
	}
	expired, err := l.store.Expire(ctx, hash, cutoff)
	if err != nil {
		log.Warn().Err(err).Str("token_hash", shortHash(hash)).Msg("session expiry on heartbeat failed")
		return
	}
	if expired {
		log.Debug().Str("token_hash", shortHash(hash)).Msg("heartbeat on expired session, retired")
	}
}

// Lookup returns the session behind token when it is live. Any storage
// failure reads as "not live".
func (l *SessionLedger) Lookup(ctx context.Context, token string) (model.Session, bool) {
	if token == "" {
		return model.Session{}, false
	}
	hash := utils.HashToken(token)
	s, err := l.store.Get(ctx, hash)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("token_hash", shortHash(hash)).Msg("session lookup failed")
		}
		return model.Session{}, false
	}
	if !s.LiveAt(l.now().UTC(), l.window) {
		return model.Session{}, false
	}
	return s, true
}

// IsValid reports whether token names a live session. It never fails.
func (l *SessionLedger) IsValid(ctx context.Context, token string) bool {
	_, ok := l.Lookup(ctx, token)
	return ok
}

// Invalidate logs a session out. It is idempotent and unknown tokens are a no-op.
func (l *SessionLedger) Invalidate(ctx context.Context, token string) {
	if token == "" {
		return
	}
	hash := utils.HashToken(token)
	if err := l.store.Deactivate(ctx, hash); err != nil {
		log.Warn().Err(err).Str("token_hash", shortHash(hash)).Msg("session invalidate failed")
	}
}

// CountLive counts the tenant's live sessions.
func (l *SessionLedger) CountLive(ctx context.Context, tenantID int64) (int, error) {
	n, err := l.store.CountLive(ctx, tenantID, l.cutoff(l.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("%w: count sessions: %w", ErrStorageUnavailable, err)
	}
	return n, nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
