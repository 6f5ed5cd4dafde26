package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var tenantColumns = []string{
	"id", "tax_id", "legal_name", "active",
	"db_host", "db_name", "db_schema", "db_user", "db_secret", "db_port",
	"max_concurrent_sessions", "session_limit_enforced",
}

func TestResolveTenantNormalizesTaxID(t *testing.T) {
	for _, in := range []string{"12.345.678/0001-90", "12345678000190"} {
		t.Run(in, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(regexp.QuoteMeta("WHERE tax_id = ? AND active = TRUE")).
				WithArgs("12345678000190").
				WillReturnRows(sqlmock.NewRows(tenantColumns).AddRow(
					int64(7), "12345678000190", "Acme Ltda", true,
					"db1", "acme", nil, "app", "pw", nil,
					int64(2), true,
				))

			got, err := NewTenantRepo(db, database.MySQL).ResolveTenant(context.Background(), in)
			require.NoError(t, err)
			require.Equal(t, int64(7), got.ID)
			require.Equal(t, "Acme Ltda", got.LegalName)
			require.Equal(t, model.ConnParams{Host: "db1", Database: "acme", User: "app", Secret: "pw"}, got.Conn)
			require.Equal(t, 2, got.MaxConcurrentSessions)
			require.True(t, got.SessionLimitEnforced)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestResolveTenantDefaultsSessionCeiling(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE tax_id = $1 AND active = TRUE")).
		WithArgs("12345678000190").
		WillReturnRows(sqlmock.NewRows(tenantColumns).AddRow(
			int64(7), "12345678000190", "Acme Ltda", true,
			"pg", "acme", "empresa_7", "app", "pw", int64(6432),
			nil, false,
		))

	got, err := NewTenantRepo(db, database.Postgres).ResolveTenant(context.Background(), "12345678000190")
	require.NoError(t, err)
	require.Equal(t, model.DefaultMaxConcurrentSessions, got.MaxConcurrentSessions)
	require.Equal(t, "empresa_7", got.Conn.Schema)
	require.Equal(t, 6432, got.Conn.Port)
}

func TestResolveTenantNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants")).
		WithArgs("99999999000199").
		WillReturnRows(sqlmock.NewRows(tenantColumns))

	repo := NewTenantRepo(db, database.MySQL)
	_, err := repo.ResolveTenant(context.Background(), "99.999.999/0001-99")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = repo.ResolveTenant(context.Background(), "n/a")
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveTenantPropagatesStorageErrors(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM tenants")).WillReturnError(errors.New("connection reset"))

	_, err := NewTenantRepo(db, database.MySQL).ResolveTenant(context.Background(), "12345678000190")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotFound)
}

var masterUserRowColumns = []string{"id", "tenant_id", "email", "first_name", "last_name", "secret_hash", "is_admin", "active"}

func TestFindMasterCandidates(t *testing.T) {
	t.Run("by email", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("LOWER(email) = ?")).
			WithArgs(int64(7), "ana@x.com").
			WillReturnRows(sqlmock.NewRows(masterUserRowColumns).
				AddRow(int64(3), int64(7), "ana@x.com", "Ana", "Silva", "$2a$hash", true, true))

		got, err := NewUserRepo(db, database.MySQL).FindMasterCandidates(context.Background(), 7,
			model.NewLoginIdentifier("Ana@X.com", "", ""))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Equal(t, int64(3), got[0].ID)
		require.True(t, got[0].IsAdmin)
	})

	t.Run("by name", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectQuery(regexp.QuoteMeta("LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)")).
			WithArgs(int64(7), "Ana", "Silva").
			WillReturnRows(sqlmock.NewRows(masterUserRowColumns).
				AddRow(int64(4), int64(7), nil, "Ana", "Silva", "$2a$hash", false, true))

		got, err := NewUserRepo(db, database.MySQL).FindMasterCandidates(context.Background(), 7,
			model.NewLoginIdentifier("", "Ana", "Silva"))
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.Empty(t, got[0].Email)
	})
}

type stubPools struct {
	db  *sql.DB
	err error
}

func (s stubPools) GetPool(context.Context, model.ConnParams) (*sql.DB, error) { return s.db, s.err }
func (s stubPools) Dialect() database.Dialect                                  { return database.MySQL }

func TestFindLocalUsers(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).
		WithArgs("ana", "silva").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "secret", "user_group", "is_master", "is_management"}).
			AddRow(int64(11), "Ana", "Silva", "legacy", "financeiro", false, true))

	got, err := NewTenantUserRepo(stubPools{db: db}).FindLocalUsers(context.Background(), model.Tenant{ID: 7}, "ana", "silva")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "financeiro", got[0].Group)
	require.True(t, got[0].IsManagement)
}

func TestFindLocalUsersUnreachable(t *testing.T) {
	_, err := NewTenantUserRepo(stubPools{err: errors.New("dial tcp: i/o timeout")}).
		FindLocalUsers(context.Background(), model.Tenant{ID: 7}, "ana", "silva")
	require.ErrorIs(t, err, ErrTenantUnreachable)

	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users")).WillReturnError(errors.New("bad connection"))
	_, err = NewTenantUserRepo(stubPools{db: db}).FindLocalUsers(context.Background(), model.Tenant{ID: 7}, "ana", "silva")
	require.ErrorIs(t, err, ErrTenantUnreachable)
}

func TestSessionRepoLifecycle(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, database.MySQL)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cutoff := now.Add(-15 * time.Minute)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO sessions")).
		WithArgs("h1", int64(7), int64(3), "master", true, now, now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.Insert(ctx, model.Session{
		TokenHash: "h1", TenantID: 7, UserID: 3, Authority: model.AuthorityMaster,
		Active: true, LastActivity: now, CreatedAt: now,
	}))

	mock.ExpectExec(regexp.QuoteMeta("SET last_activity=?")).
		WithArgs(now, "h1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 1))
	touched, err := repo.Touch(ctx, "h1", now, cutoff)
	require.NoError(t, err)
	require.True(t, touched)

	mock.ExpectExec(regexp.QuoteMeta("last_activity<?")).
		WithArgs("h1", cutoff).
		WillReturnResult(sqlmock.NewResult(0, 0))
	expired, err := repo.Expire(ctx, "h1", cutoff)
	require.NoError(t, err)
	require.False(t, expired)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM sessions")).
		WithArgs(int64(7), cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.CountLive(ctx, 7, cutoff)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	mock.ExpectExec(regexp.QuoteMeta("SET active=FALSE WHERE token_hash=? AND active=TRUE")).
		WithArgs("h1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Deactivate(ctx, "h1"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions WHERE token_hash=?")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "tenant_id", "user_id", "authority", "active", "last_activity", "created_at"}).
			AddRow("h1", int64(7), int64(3), "master", false, now, now))
	s, err := repo.Get(ctx, "h1")
	require.NoError(t, err)
	require.Equal(t, model.AuthorityMaster, s.Authority)
	require.False(t, s.Active)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepoGetUnknown(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM sessions")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token_hash", "tenant_id", "user_id", "authority", "active", "last_activity", "created_at"}))

	_, err := NewSessionRepo(db, database.MySQL).Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}
