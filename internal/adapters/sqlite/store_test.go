package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"breachx/internal/adapters/backendtest"
	"breachx/internal/migrations"
	"breachx/internal/ports"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "accounts.sqlite"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) ports.AccountBackend { return open(t) })
}

func TestOpenMigrates(t *testing.T) {
	s := open(t)
	defer s.Close()

	v, err := migrations.Version(context.Background(), s.DB(), "sqlite")
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.sqlite")
	ctx := context.Background()

	s, err := Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		return tx.Insert(ctx, backendtest.Account(1, 9))
	}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		_, found, err := tx.Get(ctx, backendtest.Account(1, 9).Address)
		assert.True(t, found)
		return err
	}))
}
