package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// PoolProvider hands out tenant pools; *database.Registry implements it.
type PoolProvider interface {
	GetPool(ctx context.Context, p model.ConnParams) (*sql.DB, error)
	Dialect() database.Dialect
}

// TenantUserRepo reads the legacy users table inside a tenant's own database.
type TenantUserRepo struct {
	Pools PoolProvider
}

// NewTenantUserRepo creates a TenantUserRepo that reaches each tenant through pools.
func NewTenantUserRepo(pools PoolProvider) *TenantUserRepo {
	return &TenantUserRepo{Pools: pools}
}

// FindLocalUsers returns the tenant-local users whose first and last name
// match case-insensitively. Any failure to obtain the pool or run the query
// is reported as ErrTenantUnreachable.
func (r *TenantUserRepo) FindLocalUsers(ctx context.Context, tenant model.Tenant, firstName, lastName string) ([]model.TenantLocalUser, error) {
	db, err := r.Pools.GetPool(ctx, tenant.Conn)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %d: %w", ErrTenantUnreachable, tenant.ID, err)
	}

	rows, err := db.QueryContext(ctx, r.Pools.Dialect().Rebind(`
		SELECT id, first_name, last_name, secret, user_group, is_master, is_management
		FROM users
		WHERE LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?)
		ORDER BY id`), firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("%w: tenant %d: %w", ErrTenantUnreachable, tenant.ID, err)
	}
	defer rows.Close()

	var out []model.TenantLocalUser
	for rows.Next() {
		var (
			u     model.TenantLocalUser
			group sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Secret, &group, &u.IsMaster, &u.IsManagement); err != nil {
			return nil, fmt.Errorf("%w: tenant %d: %w", ErrTenantUnreachable, tenant.ID, err)
		}
		u.Group = group.String
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: tenant %d: %w", ErrTenantUnreachable, tenant.ID, err)
	}
	return out, nil
}
