package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/tenant-session-gateway/internal/database"
	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// UserRepo reads master users from the master store.
type UserRepo struct {
	DB      *sql.DB
	Dialect database.Dialect
}

// NewUserRepo creates a UserRepo reading master users.
func NewUserRepo(db *sql.DB, d database.Dialect) *UserRepo {
	return &UserRepo{DB: db, Dialect: d}
}

const masterUserColumns = `id, tenant_id, email, first_name, last_name, secret_hash, is_admin, active`

// FindMasterCandidates returns the active users of tenantID matching the
// identifier: by email when one was given, else by first and last name.
// Names compare case-insensitively. Secrets are checked by the caller.
func (r *UserRepo) FindMasterCandidates(ctx context.Context, tenantID int64, id model.LoginIdentifier) ([]model.MasterUser, error) {
	var (
		query string
		args  []any
	)
	if id.ByEmail() {
		query = `SELECT ` + masterUserColumns + ` FROM users
			WHERE tenant_id = ? AND LOWER(email) = ? AND active = TRUE
			ORDER BY id`
		args = []any{tenantID, id.Email}
	} else {
		query = `SELECT ` + masterUserColumns + ` FROM users
			WHERE tenant_id = ? AND LOWER(first_name) = LOWER(?) AND LOWER(last_name) = LOWER(?) AND active = TRUE
			ORDER BY id`
		args = []any{tenantID, id.FirstName, id.LastName}
	}

	rows, err := r.DB.QueryContext(ctx, r.Dialect.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MasterUser
	for rows.Next() {
		var (
			u     model.MasterUser
			email sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.TenantID, &email, &u.FirstName, &u.LastName, &u.SecretHash, &u.IsAdmin, &u.Active); err != nil {
			return nil, err
		}
		u.Email = email.String
		out = append(out, u)
	}
	return out, rows.Err()
}
