// Package repofake provides in-memory stand-ins for the SQL repositories.
package repofake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/repository"
	"github.com/iliyamo/tenant-session-gateway/internal/service"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

var (
	_ service.TenantDirectory  = (*FakeTenantRepo)(nil)
	_ service.MasterUserFinder = (*FakeUserRepo)(nil)
	_ service.LocalUserFinder  = (*FakeTenantUserRepo)(nil)
	_ service.SessionStore     = (*FakeSessionRepo)(nil)
)

// FakeTenantRepo resolves tenants from memory, honoring the active flag.
type FakeTenantRepo struct {
	mu      sync.Mutex
	tenants map[string]model.Tenant
	Err     error
}

func NewFakeTenantRepo(tenants ...model.Tenant) *FakeTenantRepo {
	f := &FakeTenantRepo{tenants: make(map[string]model.Tenant)}
	for _, t := range tenants {
		f.Put(t)
	}
	return f
}

func (f *FakeTenantRepo) Put(t model.Tenant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.TaxID = utils.NormalizeTaxID(t.TaxID)
	f.tenants[t.TaxID] = t
}

func (f *FakeTenantRepo) ResolveTenant(_ context.Context, taxID string) (model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Tenant{}, f.Err
	}
	t, ok := f.tenants[utils.NormalizeTaxID(taxID)]
	if !ok || !t.Active {
		return model.Tenant{}, repository.ErrNotFound
	}
	return t, nil
}

// FakeUserRepo holds master users.
type FakeUserRepo struct {
	mu    sync.Mutex
	users []model.MasterUser
	Err   error
}

func NewFakeUserRepo(users ...model.MasterUser) *FakeUserRepo {
	return &FakeUserRepo{users: users}
}

func (f *FakeUserRepo) Add(u model.MasterUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = append(f.users, u)
}

func (f *FakeUserRepo) FindMasterCandidates(_ context.Context, tenantID int64, id model.LoginIdentifier) ([]model.MasterUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	var out []model.MasterUser
	for _, u := range f.users {
		if u.TenantID != tenantID || !u.Active {
			continue
		}
		if id.ByEmail() {
			if strings.EqualFold(u.Email, id.Email) {
				out = append(out, u)
			}
			continue
		}
		if strings.EqualFold(u.FirstName, id.FirstName) && strings.EqualFold(u.LastName, id.LastName) {
			out = append(out, u)
		}
	}
	return out, nil
}

// FakeTenantUserRepo holds tenant-local users per tenant id. Unreachable
// tenants fail with repository.ErrTenantUnreachable.
type FakeTenantUserRepo struct {
	mu          sync.Mutex
	users       map[int64][]model.TenantLocalUser
	unreachable map[int64]bool
	Calls       int
}

func NewFakeTenantUserRepo() *FakeTenantUserRepo {
	return &FakeTenantUserRepo{
		users:       make(map[int64][]model.TenantLocalUser),
		unreachable: make(map[int64]bool),
	}
}

func (f *FakeTenantUserRepo) Add(tenantID int64, u model.TenantLocalUser) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[tenantID] = append(f.users[tenantID], u)
}

func (f *FakeTenantUserRepo) SetUnreachable(tenantID int64, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unreachable[tenantID] = down
}

func (f *FakeTenantUserRepo) FindLocalUsers(_ context.Context, tenant model.Tenant, firstName, lastName string) ([]model.TenantLocalUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.unreachable[tenant.ID] {
		return nil, repository.ErrTenantUnreachable
	}
	var out []model.TenantLocalUser
	for _, u := range f.users[tenant.ID] {
		if strings.EqualFold(u.FirstName, firstName) && strings.EqualFold(u.LastName, lastName) {
			out = append(out, u)
		}
	}
	return out, nil
}

// FakeSessionRepo keeps session rows in memory. Setting Err simulates an
// unreachable master store for every call.
type FakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	Err      error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{sessions: make(map[string]model.Session)}
}

// Seed stores a row as-is, for tests that need aged sessions.
func (f *FakeSessionRepo) Seed(s model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.TokenHash] = s
}

func (f *FakeSessionRepo) Insert(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.sessions[s.TokenHash] = s
	return nil
}

func (f *FakeSessionRepo) Get(_ context.Context, tokenHash string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Session{}, f.Err
	}
	s, ok := f.sessions[tokenHash]
	if !ok {
		return model.Session{}, repository.ErrNotFound
	}
	return s, nil
}

func (f *FakeSessionRepo) Touch(_ context.Context, tokenHash string, now, cutoff time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	s, ok := f.sessions[tokenHash]
	if !ok || !s.Active || s.LastActivity.Before(cutoff) {
		return false, nil
	}
	s.LastActivity = now
	f.sessions[tokenHash] = s
	return true, nil
}

func (f *FakeSessionRepo) Expire(_ context.Context, tokenHash string, cutoff time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return false, f.Err
	}
	s, ok := f.sessions[tokenHash]
	if !ok || !s.Active || !s.LastActivity.Before(cutoff) {
		return false, nil
	}
	s.Active = false
	f.sessions[tokenHash] = s
	return true, nil
}

func (f *FakeSessionRepo) Deactivate(_ context.Context, tokenHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if s, ok := f.sessions[tokenHash]; ok {
		s.Active = false
		f.sessions[tokenHash] = s
	}
	return nil
}

func (f *FakeSessionRepo) CountLive(_ context.Context, tenantID int64, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return 0, f.Err
	}
	n := 0
	for _, s := range f.sessions {
		if s.TenantID == tenantID && s.Active && !s.LastActivity.Before(cutoff) {
			n++
		}
	}
	return n, nil
}

// Len is the number of stored rows, live or not.
func (f *FakeSessionRepo) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}
