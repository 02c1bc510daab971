package bolt

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/adapters/backendtest"
	"breachx/internal/ports"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) ports.AccountBackend { return open(t) })
}

func TestReopenKeepsAccounts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accounts.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		return tx.Insert(ctx, backendtest.Account(1, 9))
	}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		got, found, err := tx.Get(ctx, backendtest.Account(1, 9).Address)
		require.True(t, found)
		assert.Equal(t, backendtest.Account(1, 9), got)
		return err
	}))
}
