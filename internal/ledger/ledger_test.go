package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/adapters/memory"
	"breachx/internal/domain"
	"breachx/internal/ledger"
	"breachx/internal/ports"
)

func inTx(t *testing.T, s *memory.Store, fn func(ctx context.Context, l *ledger.Ledger) error) error {
	t.Helper()
	return s.Atomically(context.Background(), func(ctx context.Context, tx ports.AccountTx) error {
		return fn(ctx, ledger.New(tx))
	})
}

func TestAllocateReadWrite(t *testing.T) {
	s := memory.New()
	addr := domain.Address{1}
	program := domain.Address{2}

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		if err := l.Allocate(ctx, addr, 8, program); err != nil {
			return err
		}
		return l.Write(ctx, addr, []byte("abc"))
	}))

	require.NoError(t, inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		acct, found, err := l.Read(ctx, addr)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte{'a', 'b', 'c', 0, 0, 0, 0, 0}, acct.Data)
		assert.Equal(t, program, acct.Owner)
		assert.Equal(t, ledger.RentExemptMinimum(8), acct.Lamports)
		return nil
	}))
}

func TestAllocateTwiceIsAlreadyExists(t *testing.T) {
	s := memory.New()
	addr := domain.Address{1}
	require.NoError(t, inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		return l.Allocate(ctx, addr, 4, domain.Address{2})
	}))
	err := inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		return l.Allocate(ctx, addr, 4, domain.Address{2})
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	require.ErrorIs(t, err, ports.ErrAddressInUse)
}

func TestWriteBeyondSpace(t *testing.T) {
	s := memory.New()
	addr := domain.Address{1}
	err := inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		if err := l.Allocate(ctx, addr, 4, domain.Address{2}); err != nil {
			return err
		}
		return l.Write(ctx, addr, []byte("12345"))
	})
	require.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Equal(t, 0, s.Len(), "failed unit must not leave the allocation behind")
}

func TestWriteUnallocated(t *testing.T) {
	s := memory.New()
	err := inTx(t, s, func(ctx context.Context, l *ledger.Ledger) error {
		return l.Write(ctx, domain.Address{1}, []byte("x"))
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRentExemptMinimum(t *testing.T) {
	assert.Equal(t, uint64(890880), ledger.RentExemptMinimum(0))
	assert.Equal(t, uint64((128+165)*3480*2), ledger.RentExemptMinimum(165))
}
