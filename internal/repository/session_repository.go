package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// SessionRepo persists session rows (single 'token_hash' key) in the master store.
type SessionRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

// NewSessionRepo creates a SessionRepo over the master pool; d rebinds placeholders.
func NewSessionRepo(db *sql.DB, d database.Dialect) *SessionRepo {
	return &SessionRepo{DB: db, Dialect: d}
}

// Insert stores a new session row.
func (r *SessionRepo) Insert(ctx context.Context, s model.Session) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		"INSERT INTO sessions (token_hash, tenant_id, user_id, authority, active, last_activity, created_at) VALUES (?,?,?,?,?,?,?)"),
		s.TokenHash, s.TenantID, s.UserID, string(s.Authority), s.Active, s.LastActivity.UTC(), s.CreatedAt.UTC())
	return err
}

// Get loads a session by token hash, live or not.
func (r *SessionRepo) Get(ctx context.Context, tokenHash string) (model.Session, error) {
	var (
		s         model.Session
		authority string
	)
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(
		"SELECT token_hash, tenant_id, user_id, authority, active, last_activity, created_at FROM sessions WHERE token_hash=? LIMIT 1"),
		tokenHash).Scan(&s.TokenHash, &s.TenantID, &s.UserID, &authority, &s.Active, &s.LastActivity, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, err
	}
	s.Authority = model.Authority(authority)
	return s, nil
}

// Touch moves last_activity to now for a session that is still live at
// cutoff. It reports whether a row was updated.
func (r *SessionRepo) Touch(ctx context.Context, tokenHash string, now, cutoff time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		"UPDATE sessions SET last_activity=? WHERE token_hash=? AND active=TRUE AND last_activity>=?"),
		now.UTC(), tokenHash, cutoff.UTC())
	return affected(res, err)
}

// Expire retires an active session whose last activity is older than cutoff.
func (r *SessionRepo) Expire(ctx context.Context, tokenHash string, cutoff time.Time) (bool, error) {
	res, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		"UPDATE sessions SET active=FALSE WHERE token_hash=? AND active=TRUE AND last_activity<?"),
		tokenHash, cutoff.UTC())
	return affected(res, err)
}

// Deactivate marks a session logged out. Unknown or inactive tokens are a no-op.
func (r *SessionRepo) Deactivate(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, r.Dialect.Rebind(
		"UPDATE sessions SET active=FALSE WHERE token_hash=? AND active=TRUE"),
		tokenHash)
	return err
}

// CountLive counts the tenant's sessions that are active with activity at or after cutoff.
func (r *SessionRepo) CountLive(ctx context.Context, tenantID int64, cutoff time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(
		"SELECT COUNT(*) FROM sessions WHERE tenant_id=? AND active=TRUE AND last_activity>=?"),
		tenantID, cutoff.UTC()).Scan(&n)
	return n, err
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
