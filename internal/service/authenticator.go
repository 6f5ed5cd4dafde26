package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/queue"
	"github.com/iliyamo/tenant-session-gateway/internal/repository"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

// TenantDirectory resolves active tenants; *repository.TenantRepo implements it.
type TenantDirectory interface {
	ResolveTenant(ctx context.Context, taxID string) (model.Tenant, error)
}

// MasterUserFinder lists master-store login candidates.
type MasterUserFinder interface {
	FindMasterCandidates(ctx context.Context, tenantID int64, id model.LoginIdentifier) ([]model.MasterUser, error)
}

// LocalUserFinder lists tenant-local login candidates.
type LocalUserFinder interface {
	FindLocalUsers(ctx context.Context, tenant model.Tenant, firstName, lastName string) ([]model.TenantLocalUser, error)
}

// SessionIssuer is the part of the ledger a login needs.
type SessionIssuer interface {
	CountLive(ctx context.Context, tenantID int64) (int, error)
	Create(ctx context.Context, tenantID, userID int64, authority model.Authority) (string, error)
}

// EventPublisher receives audit events. Implementations must not block.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.SessionEvent)
}

var (
	_ TenantDirectory  = (*repository.TenantRepo)(nil)
	_ MasterUserFinder = (*repository.UserRepo)(nil)
	_ LocalUserFinder  = (*repository.TenantUserRepo)(nil)
	_ SessionIssuer    = (*SessionLedger)(nil)
	_ EventPublisher   = (*queue.Publisher)(nil)
	_ EventPublisher   = queue.NopPublisher{}
)

// LoginRequest is one login attempt as received from the client.
type LoginRequest struct {
	TaxID     string
	Email     string
	FirstName string
	LastName  string
	Secret    string
	ClientIP  string
}

// UserSummary describes the authenticated user to the client.
type UserSummary struct {
	ID         int64           `json:"id"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email,omitempty"`
	Role       string          `json:"role"`
	Group      string          `json:"group"`
	Management bool            `json:"management"`
	Authority  model.Authority `json:"authority"`
	TenantName string          `json:"tenantName"`
	TaxID      string          `json:"cnpj"`
}

// TenantConfig is the tenant's connection parameters as handed to the client.
type TenantConfig struct {
	Host     string `json:"host"`
	Database string `json:"database"`
	Schema   string `json:"schema"`
	User     string `json:"user"`
	Password string `json:"password,omitempty"`
	Port     int    `json:"port"`
}

// LoginResult is returned on a successful login.
type LoginResult struct {
	Token        string
	User         UserSummary
	TenantConfig TenantConfig
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// AuthorityResult is the outcome of checking one authority. The zero value
// means no user matched.
type AuthorityResult struct {
	Kind   model.Authority
	Master model.MasterUser
	Local  model.TenantLocalUser
}

// Found reports whether an authority vouched for the credentials.
func (r AuthorityResult) Found() bool { return r.Kind != "" }

func (r AuthorityResult) userID() int64 {
	if r.Kind == model.AuthorityMaster {
		return r.Master.ID
	}
	return r.Local.ID
}

type authorityCheck func(ctx context.Context, tenant model.Tenant, id model.LoginIdentifier, secret string) (AuthorityResult, error)

// Deps groups the collaborators of an Authenticator.
type Deps struct {
	Tenants  TenantDirectory
	Masters  MasterUserFinder
	Locals   LocalUserFinder
	Sessions SessionIssuer
	Events   EventPublisher
}

// Authenticator runs the login protocol: resolve the tenant, check the
// session ceiling, try the master store then the tenant-local store, and
// issue a session.
type Authenticator struct {
	tenants  TenantDirectory
	masters  MasterUserFinder
	locals   LocalUserFinder
	sessions SessionIssuer
	events   EventPublisher

	allowPlaintext     bool
	exposeTenantSecret bool
}

// AuthOption customizes an Authenticator.
type AuthOption func(*Authenticator)

// WithPlaintextSecrets lets tenant-local users with legacy plaintext secrets log in.
func WithPlaintextSecrets(allow bool) AuthOption {
	return func(a *Authenticator) { a.allowPlaintext = allow }
}

// WithTenantSecret controls whether the tenant db secret is part of TenantConfig.
func WithTenantSecret(expose bool) AuthOption {
	return func(a *Authenticator) { a.exposeTenantSecret = expose }
}

// NewAuthenticator checks that every required dependency is set. A nil
// Events publisher drops audit events.
func NewAuthenticator(d Deps, opts ...AuthOption) (*Authenticator, error) {
	if d.Tenants == nil || d.Masters == nil || d.Locals == nil || d.Sessions == nil {
		return nil, errors.New("authenticator needs tenants, masters, locals and sessions")
	}
	a := &Authenticator{
		tenants:            d.Tenants,
		masters:            d.Masters,
		locals:             d.Locals,
		sessions:           d.Sessions,
		events:             d.Events,
		exposeTenantSecret: true,
	}
	if a.events == nil {
		a.events = queue.NopPublisher{}
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Login authenticates req and issues a session token.
func (a *Authenticator) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	taxID := utils.NormalizeTaxID(req.TaxID)
	id := model.NewLoginIdentifier(req.Email, req.FirstName, req.LastName)
	if taxID == "" || id.String() == "" || req.Secret == "" {
		return LoginResult{}, ErrMissingCredentials
	}

	ev := queue.NewSessionEvent(queue.LoginFailed)
	ev.TaxID = taxID
	ev.ClientIP = req.ClientIP

	tenant, err := a.tenants.ResolveTenant(ctx, taxID)
	if errors.Is(err, repository.ErrNotFound) {
		a.reject(ctx, ev, "tenant_not_found")
		return LoginResult{}, ErrAuthenticationFailed
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("%w: resolve tenant: %w", ErrStorageUnavailable, err)
	}
	ev.TenantID = tenant.ID

	// Advisory check: not atomic with the insert below, so concurrent logins
	// can overshoot the ceiling by a few sessions.
	if limit, enforced := tenant.SessionLimit(); enforced {
		live, err := a.sessions.CountLive(ctx, tenant.ID)
		if err != nil {
			return LoginResult{}, err
		}
		if live >= limit {
			ev.Type = queue.SessionLimitExceeded
			a.reject(ctx, ev, fmt.Sprintf("live=%d limit=%d", live, limit))
			return LoginResult{}, &SessionLimitError{Limit: limit}
		}
	}

	res, err := a.authenticate(ctx, tenant, id, req.Secret)
	if errors.Is(err, ErrTenantUnreachable) {
		a.reject(ctx, ev, "tenant_unreachable")
		log.Error().Err(err).Int64("tenant_id", tenant.ID).Msg("tenant store unreachable during login")
		return LoginResult{}, err
	}
	if err != nil {
		return LoginResult{}, err
	}
	if !res.Found() {
		a.reject(ctx, ev, "invalid_credentials")
		return LoginResult{}, ErrInvalidCredentials
	}

	token, err := a.sessions.Create(ctx, tenant.ID, res.userID(), res.Kind)
	if err != nil {
		return LoginResult{}, err
	}

	out := LoginResult{
		Token:        token,
		User:         a.summarize(tenant, res),
		TenantConfig: a.tenantConfig(tenant),
	}
	ev.Type = queue.LoginSucceeded
	ev.UserID = out.User.ID
	ev.Authority = string(res.Kind)
	a.events.Publish(ctx, ev)
	log.Info().Int64("tenant_id", tenant.ID).Int64("user_id", out.User.ID).
		Str("authority", string(res.Kind)).Msg("login succeeded")
	return out, nil
}

// authenticate tries each authority in priority order and stops at the first match.
func (a *Authenticator) authenticate(ctx context.Context, tenant model.Tenant, id model.LoginIdentifier, secret string) (AuthorityResult, error) {
	for _, check := range []authorityCheck{a.checkMaster, a.checkTenantLocal} {
		res, err := check(ctx, tenant, id, secret)
		if err != nil || res.Found() {
			return res, err
		}
	}
	return AuthorityResult{}, nil
}

// checkMaster verifies the secret against master users of the tenant.
func (a *Authenticator) checkMaster(ctx context.Context, tenant model.Tenant, id model.LoginIdentifier, secret string) (AuthorityResult, error) {
	candidates, err := a.masters.FindMasterCandidates(ctx, tenant.ID, id)
	if err != nil {
		return AuthorityResult{}, fmt.Errorf("%w: master users: %w", ErrStorageUnavailable, err)
	}
	for _, u := range candidates {
		if utils.VerifySecret(u.SecretHash, secret) {
			return AuthorityResult{Kind: model.AuthorityMaster, Master: u}, nil
		}
	}
	return AuthorityResult{}, nil
}

// checkTenantLocal falls back to the tenant's own users table.
func (a *Authenticator) checkTenantLocal(ctx context.Context, tenant model.Tenant, id model.LoginIdentifier, secret string) (AuthorityResult, error) {
	// tenant-local users are only known by name
	if id.FirstName == "" || id.LastName == "" {
		return AuthorityResult{}, nil
	}
	candidates, err := a.locals.FindLocalUsers(ctx, tenant, id.FirstName, id.LastName)
	if errors.Is(err, repository.ErrTenantUnreachable) {
		return AuthorityResult{}, fmt.Errorf("%w: %w", ErrTenantUnreachable, err)
	}
	if err != nil {
		return AuthorityResult{}, err
	}
	for _, u := range candidates {
		if utils.VerifyStoredSecret(u.Secret, secret, a.allowPlaintext) {
			return AuthorityResult{Kind: model.AuthorityTenant, Local: u}, nil
		}
	}
	return AuthorityResult{}, nil
}

// summarize builds the user block of the login response.
func (a *Authenticator) summarize(tenant model.Tenant, res AuthorityResult) UserSummary {
	s := UserSummary{Authority: res.Kind, TenantName: tenant.LegalName, TaxID: tenant.TaxID, Role: RoleUser}
	switch res.Kind {
	case model.AuthorityMaster:
		u := res.Master
		s.ID, s.FirstName, s.LastName, s.Email = u.ID, u.FirstName, u.LastName, u.Email
		if u.IsAdmin {
			s.Role = RoleAdmin
		}
	case model.AuthorityTenant:
		u := res.Local
		s.ID, s.FirstName, s.LastName = u.ID, u.FirstName, u.LastName
		s.Group, s.Management = u.Group, u.IsManagement
		if u.IsMaster {
			s.Role = RoleAdmin
		}
	}
	return s
}

// tenantConfig echoes the tenant connection params, secret included when enabled.
func (a *Authenticator) tenantConfig(t model.Tenant) TenantConfig {
	c := TenantConfig{
		Host:     t.Conn.Host,
		Database: t.Conn.Database,
		Schema:   t.Conn.Schema,
		User:     t.Conn.User,
		Port:     t.Conn.Port,
	}
	if a.exposeTenantSecret {
		c.Password = t.Conn.Secret
	}
	return c
}

// reject publishes and logs a failed login.
func (a *Authenticator) reject(ctx context.Context, ev queue.SessionEvent, reason string) {
	ev.Reason = reason
	a.events.Publish(ctx, ev)
	log.Warn().Str("tax_id", ev.TaxID).Int64("tenant_id", ev.TenantID).
		Str("reason", reason).Msg("login rejected")
}
