package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-session-gateway/internal/model"
)

// mockOpener hands out sqlmock pools and remembers the params it was called with.
type mockOpener struct {
	mu     sync.Mutex
	calls  atomic.Int32
	params []model.ConnParams
	mocks  []sqlmock.Sqlmock
	err    error
}

func (m *mockOpener) open(_ context.Context, _ Dialect, p model.ConnParams, _ PoolConfig) (*sql.DB, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, err
	}
	mock.ExpectClose()
	m.mu.Lock()
	m.params = append(m.params, p)
	m.mocks = append(m.mocks, mock)
	m.mu.Unlock()
	return db, nil
}

func newTestRegistry(t *testing.T, op *mockOpener) (*Registry, sqlmock.Sqlmock) {
	t.Helper()
	master, masterMock, err := sqlmock.New()
	require.NoError(t, err)
	masterMock.ExpectClose()
	return NewRegistry(MySQL, master, PoolConfig{MaxOpen: 5}, WithOpener(op.open)), masterMock
}

func TestGetPoolCachesByHostAndDatabase(t *testing.T) {
	op := &mockOpener{}
	reg, _ := newTestRegistry(t, op)
	ctx := context.Background()

	first, err := reg.GetPool(ctx, model.ConnParams{Host: "db1", Database: "acme", User: "a", Secret: "x"})
	require.NoError(t, err)
	again, err := reg.GetPool(ctx, model.ConnParams{Host: "db1", Database: "acme", User: "b", Secret: "y", Port: 3307})
	require.NoError(t, err)
	require.Same(t, first, again)

	other, err := reg.GetPool(ctx, model.ConnParams{Host: "db1", Database: "globex"})
	require.NoError(t, err)
	require.NotSame(t, first, other)

	require.EqualValues(t, 2, op.calls.Load())
	require.Equal(t, 2, reg.Len())
	require.Equal(t, "a", op.params[0].User)
	require.Equal(t, 3306, op.params[0].Port)
	require.NoError(t, reg.CloseAll())
}

func TestGetPoolRejectsIncompleteParams(t *testing.T) {
	op := &mockOpener{}
	reg, _ := newTestRegistry(t, op)

	cases := []model.ConnParams{
		{Database: "acme"},
		{Host: "db1"},
		{Host: "  ", Database: "acme"},
	}
	for _, p := range cases {
		_, err := reg.GetPool(context.Background(), p)
		require.ErrorIs(t, err, ErrInvalidConnParams)
	}
	require.Zero(t, op.calls.Load())
}

func TestGetPoolDoesNotCacheFailures(t *testing.T) {
	op := &mockOpener{err: errors.New("dial tcp: connection refused")}
	reg, _ := newTestRegistry(t, op)
	p := model.ConnParams{Host: "db1", Database: "acme"}

	_, err := reg.GetPool(context.Background(), p)
	require.Error(t, err)
	require.Zero(t, reg.Len())

	op.err = nil
	db, err := reg.GetPool(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, db)
	require.EqualValues(t, 2, op.calls.Load())
}

func TestGetPoolConcurrentMissesShareOnePool(t *testing.T) {
	op := &mockOpener{}
	reg, _ := newTestRegistry(t, op)
	p := model.ConnParams{Host: "db1", Database: "acme"}

	const n = 8
	got := make([]*sql.DB, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := reg.GetPool(context.Background(), p)
			if err == nil {
				got[i] = db
			}
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		require.NotNil(t, got[i])
		require.Same(t, got[0], got[i])
	}
	require.Equal(t, 1, reg.Len())
}

func TestCloseAllDrainsTenantPoolsAndMaster(t *testing.T) {
	op := &mockOpener{}
	reg, masterMock := newTestRegistry(t, op)
	ctx := context.Background()

	for _, name := range []string{"acme", "globex", "initech"} {
		_, err := reg.GetPool(ctx, model.ConnParams{Host: "db1", Database: name})
		require.NoError(t, err)
	}

	require.NoError(t, reg.CloseAll())
	require.Zero(t, reg.Len())
	require.NoError(t, masterMock.ExpectationsWereMet())
	for _, m := range op.mocks {
		require.NoError(t, m.ExpectationsWereMet())
	}

	_, err := reg.GetPool(ctx, model.ConnParams{Host: "db1", Database: "acme"})
	require.ErrorIs(t, err, ErrRegistryClosed)
}

func TestGetPoolRacingCloseAllDoesNotLeak(t *testing.T) {
	op := &mockOpener{}
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := func(ctx context.Context, d Dialect, p model.ConnParams, pc PoolConfig) (*sql.DB, error) {
		close(entered)
		<-release
		return op.open(ctx, d, p, pc)
	}
	master, masterMock, err := sqlmock.New()
	require.NoError(t, err)
	masterMock.ExpectClose()
	reg := NewRegistry(MySQL, master, PoolConfig{MaxOpen: 5}, WithOpener(blocking))

	type result struct {
		db  *sql.DB
		err error
	}
	done := make(chan result, 1)
	go func() {
		db, err := reg.GetPool(context.Background(), model.ConnParams{Host: "db1", Database: "acme"})
		done <- result{db, err}
	}()

	<-entered
	require.NoError(t, reg.CloseAll())
	close(release)

	res := <-done
	require.ErrorIs(t, res.err, ErrRegistryClosed)
	require.Nil(t, res.db)
	require.Zero(t, reg.Len())
	require.Len(t, op.mocks, 1)
	require.NoError(t, op.mocks[0].ExpectationsWereMet())
}
