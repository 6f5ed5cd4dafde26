package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

var (
	// ErrInvalidConnParams is returned when host or database is empty.
	ErrInvalidConnParams = errors.New("connection params need host and database")
	// ErrRegistryClosed is returned by GetPool after CloseAll.
	ErrRegistryClosed = errors.New("pool registry closed")
)

// Opener builds a verified pool. Open is the production opener.
type Opener func(ctx context.Context, d Dialect, p model.ConnParams, pc PoolConfig) (*sql.DB, error)

// Registry caches one pool per tenant database, keyed by host:database, next
// to the dedicated master pool. Pools are created lazily and live until
// CloseAll.
//
// The key carries no credentials: the first caller's credentials win for every
// later caller of the same host and database. Insertion is not serialized; two
// concurrent misses may both open a pool, in which case the first stored pool
// is kept and the other is closed.
type Registry struct {
	dialect Dialect
	tenant  PoolConfig
	master  *sql.DB
	open    Opener

	pools  sync.Map // string -> *sql.DB
	closed atomic.Bool
}

// RegistryOption customizes a Registry.
type RegistryOption func(*Registry)

// WithOpener replaces Open, mostly for tests.
func WithOpener(open Opener) RegistryOption {
	return func(r *Registry) {
		if open != nil {
			r.open = open
		}
	}
}

// NewRegistry wraps an already opened master pool. tenant sizes every pool
// the registry opens.
func NewRegistry(d Dialect, master *sql.DB, tenant PoolConfig, opts ...RegistryOption) *Registry {
	r := &Registry{dialect: d, tenant: tenant, master: master, open: Open}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Master returns the shared master pool.
func (r *Registry) Master() *sql.DB { return r.master }

// Dialect returns the dialect used for every pool.
func (r *Registry) Dialect() Dialect { return r.dialect }

// GetPool returns the cached pool for p, opening one on a miss. A cache hit
// does not re-validate credentials.
func (r *Registry) GetPool(ctx context.Context, p model.ConnParams) (*sql.DB, error) {
	if r.closed.Load() {
		return nil, ErrRegistryClosed
	}
	if strings.TrimSpace(p.Host) == "" || strings.TrimSpace(p.Database) == "" {
		return nil, ErrInvalidConnParams
	}
	key := p.PoolKey()
	if db, ok := r.pools.Load(key); ok {
		return db.(*sql.DB), nil
	}

	if p.Port == 0 {
		p.Port = r.dialect.DefaultPort()
	}
	db, err := r.open(ctx, r.dialect, p, r.tenant)
	if err != nil {
		return nil, fmt.Errorf("open pool %s: %w", key, err)
	}
	existing, loaded := r.pools.LoadOrStore(key, db)
	if r.closed.Load() {
		// CloseAll ran while the pool was opening
		if !loaded {
			r.pools.CompareAndDelete(key, db)
		}
		_ = db.Close()
		return nil, ErrRegistryClosed
	}
	if loaded {
		_ = db.Close()
		return existing.(*sql.DB), nil
	}
	log.Debug().Str("pool", key).Int("max_open", r.tenant.MaxOpen).Msg("tenant pool opened")
	return db, nil
}

// Len is the number of cached tenant pools.
func (r *Registry) Len() int {
	n := 0
	r.pools.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// CloseAll drains every cached tenant pool and then the master pool.
// Later GetPool calls fail with ErrRegistryClosed.
func (r *Registry) CloseAll() error {
	r.closed.Store(true)
	var errs []error
	r.pools.Range(func(k, v any) bool {
		r.pools.Delete(k)
		if err := v.(*sql.DB).Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pool %s: %w", k, err))
		}
		return true
	})
	if r.master != nil {
		if err := r.master.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close master pool: %w", err))
		}
	}
	return errors.Join(errs...)
}
