package model

// ConnParams are the connection parameters of a tenant's own database.
// They are handed back to the client verbatim on login so that business
// requests can be routed to the right database without resolving the
// tenant again.
//
// Fields:
//  Host     – database host name or address.
//  Database – database name.
//  Schema   – schema inside the database (search_path on postgres, unused on mysql).
//  User     – database user.
//  Secret   – database password.
//  Port     – port; zero means the driver's standard port.
type ConnParams struct {
	Host     string // tenants.db_host
	Database string // tenants.db_name
	Schema   string // tenants.db_schema
	User     string // tenants.db_user
	Secret   string // tenants.db_secret
	Port     int    // tenants.db_port (nullable)
}

// PoolKey identifies a cached pool. Credentials and port are not part of the
// key: one tenant owns one database with one credential set.
func (p ConnParams) PoolKey() string {
	return p.Host + ":" + p.Database
}

// DefaultMaxConcurrentSessions applies when a tenant row carries no ceiling.
const DefaultMaxConcurrentSessions = 3

// Tenant is a row of the `tenants` table in the master store. It is read-only
// to this service; provisioning happens elsewhere.
type Tenant struct {
	ID                    int64      // tenants.id
	TaxID                 string     // tenants.tax_id, digits only
	LegalName             string     // tenants.legal_name
	Active                bool       // tenants.active
	Conn                  ConnParams // tenants.db_*
	MaxConcurrentSessions int        // tenants.max_concurrent_sessions
	SessionLimitEnforced  bool       // tenants.session_limit_enforced
}

// SessionLimit reports the ceiling to apply and whether it applies at all.
func (t Tenant) SessionLimit() (int, bool) {
	limit := t.MaxConcurrentSessions
	if limit <= 0 {
		limit = DefaultMaxConcurrentSessions
	}
	return limit, t.SessionLimitEnforced
}
