// Package repository holds the SQL stores of the master database and of the
// tenant databases. The sentinel values below let the service layer tell a
// missing row from an infrastructure failure without looking at driver errors.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row. For tenants this
// includes rows that exist but are inactive.
var ErrNotFound = errors.New("not found")

// ErrTenantUnreachable wraps any failure to reach or query a tenant's own
// database. It never means the credentials were wrong.
var ErrTenantUnreachable = errors.New("tenant database unreachable")
