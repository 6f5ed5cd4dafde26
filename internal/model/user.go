package model

import "strings"

// MasterUser is a row of the `users` table in the master store. A master user
// only authenticates inside its own tenant.
type MasterUser struct {
	ID         int64  // users.id
	TenantID   int64  // users.tenant_id
	Email      string // users.email (nullable)
	FirstName  string // users.first_name
	LastName   string // users.last_name
	SecretHash string // users.secret_hash, bcrypt
	IsAdmin    bool   // users.is_admin
	Active     bool   // users.active
}

// TenantLocalUser lives in a tenant's own database. It is the legacy
// authority for tenants whose users were never migrated to the master store.
type TenantLocalUser struct {
	ID           int64  // users.id
	FirstName    string // users.first_name
	LastName     string // users.last_name
	Secret       string // users.secret, bcrypt or legacy plaintext
	Group        string // users.user_group
	IsMaster     bool   // users.is_master
	IsManagement bool   // users.is_management
}

// LoginIdentifier is the user half of a login attempt. Email wins when
// present; otherwise the first and last name pair identifies the user.
type LoginIdentifier struct {
	Email     string
	FirstName string
	LastName  string
}

// NewLoginIdentifier trims the inputs and lowercases the email.
func NewLoginIdentifier(email, firstName, lastName string) LoginIdentifier {
	return LoginIdentifier{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
	}
}

// ByEmail reports whether the identifier matches on email.
func (id LoginIdentifier) ByEmail() bool { return id.Email != "" }

// String is the email, or "first last" when no email was supplied.
// It is empty when neither form is complete.
func (id LoginIdentifier) String() string {
	if id.ByEmail() {
		return id.Email
	}
	if id.FirstName == "" || id.LastName == "" {
		return ""
	}
	return id.FirstName + " " + id.LastName
}
