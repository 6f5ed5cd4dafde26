package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
	"github.com/iliyamo/tenant-session-gateway/internal/queue"
	"github.com/iliyamo/tenant-session-gateway/internal/repository/repofake"
	"github.com/iliyamo/tenant-session-gateway/internal/service"
	"github.com/iliyamo/tenant-session-gateway/internal/utils"
)

const (
	acmeTaxID  = "12345678000190"
	acmeID     = int64(7)
	sessionTTL = 15 * time.Minute
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.SessionEvent
}

func (r *recordingPublisher) Publish(_ context.Context, ev queue.SessionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) last() queue.SessionEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return queue.SessionEvent{}
	}
	return r.events[len(r.events)-1]
}

type fixture struct {
	clock   *clock
	tenants *repofake.FakeTenantRepo
	users   *repofake.FakeUserRepo
	locals  *repofake.FakeTenantUserRepo
	store   *repofake.FakeSessionRepo
	events  *recordingPublisher
	ledger  *service.SessionLedger
	auth    *service.Authenticator
}

func hash(t *testing.T, secret string) string {
	t.Helper()
	h, err := utils.HashSecret(secret, bcrypt.MinCost)
	require.NoError(t, err)
	return h
}

func acmeTenant() model.Tenant {
	return model.Tenant{
		ID:        acmeID,
		TaxID:     acmeTaxID,
		LegalName: "Acme Comercio Ltda",
		Active:    true,
		Conn: model.ConnParams{
			Host: "tenant-db", Database: "acme", Schema: "empresa_7",
			User: "acme_app", Secret: "acme-db-pw", Port: 3306,
		},
		MaxConcurrentSessions: 3,
	}
}

func setupFixture(t *testing.T, opts ...service.AuthOption) *fixture {
	t.Helper()
	f := &fixture{
		clock:   &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		tenants: repofake.NewFakeTenantRepo(acmeTenant()),
		users:   repofake.NewFakeUserRepo(),
		locals:  repofake.NewFakeTenantUserRepo(),
		store:   repofake.NewFakeSessionRepo(),
		events:  &recordingPublisher{},
	}
	var err error
	f.ledger, err = service.NewSessionLedger(f.store, sessionTTL, service.WithNow(f.clock.Now))
	require.NoError(t, err)
	f.auth, err = service.NewAuthenticator(service.Deps{
		Tenants:  f.tenants,
		Masters:  f.users,
		Locals:   f.locals,
		Sessions: f.ledger,
		Events:   f.events,
	}, opts...)
	require.NoError(t, err)
	return f
}
