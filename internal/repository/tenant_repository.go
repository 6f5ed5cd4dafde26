package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

// TenantRepo reads the tenant directory from the master store.
type TenantRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

// NewTenantRepo creates a TenantRepo reading the master tenants table.
func NewTenantRepo(db *sql.DB, d database.Dialect) *TenantRepo {
	return &TenantRepo{DB: db, Dialect: d}
}

// ResolveTenant looks up an active tenant by tax id in any human format.
// Inactive and unknown tenants both yield ErrNotFound.
func (r *TenantRepo) ResolveTenant(ctx context.Context, taxID string) (model.Tenant, error) {
	digits := utils.NormalizeTaxID(taxID)
	if digits == "" {
		return model.Tenant{}, ErrNotFound
	}

	var (
		t          model.Tenant
		schema     sql.NullString
		port       sql.NullInt64
		maxSession sql.NullInt64
	)
	err := r.DB.QueryRowContext(ctx, r.Dialect.Rebind(`
		SELECT id, tax_id, legal_name, active,
		       db_host, db_name, db_schema, db_user, db_secret, db_port,
		       max_concurrent_sessions, session_limit_enforced
		FROM tenants
		WHERE tax_id = ? AND active = TRUE
		LIMIT 1`), digits).Scan(
		&t.ID, &t.TaxID, &t.LegalName, &t.Active,
		&t.Conn.Host, &t.Conn.Database, &schema, &t.Conn.User, &t.Conn.Secret, &port,
		&maxSession, &t.SessionLimitEnforced,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Tenant{}, ErrNotFound
	}
	if err != nil {
		return model.Tenant{}, err
	}
	t.Conn.Schema = schema.String
	t.Conn.Port = int(port.Int64)
	t.MaxConcurrentSessions = model.DefaultMaxConcurrentSessions
	if maxSession.Valid {
		t.MaxConcurrentSessions = int(maxSession.Int64)
	}
	return t, nil
}
