// Package backendtest is a conformance suite every account backend runs.
package backendtest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

// Open returns a fresh, empty backend. The suite closes it.
type Open func(t *testing.T) ports.AccountBackend

// Account builds a small account at address {b} owned by {owner}.
func Account(b, owner byte) domain.Account {
	var a domain.Account
	a.Address[0] = b
	a.Owner[0] = owner
	a.Lamports = uint64(b) * 1000
	a.Data = []byte{b, b, b}
	return a
}

func Run(t *testing.T, open Open) {
	t.Run("InsertIfAbsent", func(t *testing.T) { testInsertIfAbsent(t, open(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, open(t)) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, open(t)) })
	t.Run("UpdateAndList", func(t *testing.T) { testUpdateAndList(t, open(t)) })
	t.Run("StagedVisibleInUnit", func(t *testing.T) { testStagedVisible(t, open(t)) })
	t.Run("ConcurrentInsertIfAbsent", func(t *testing.T) { testConcurrentInsert(t, open(t)) })
}

func count(t *testing.T, b ports.AccountBackend, owner byte) int {
	t.Helper()
	var n int
	require.NoError(t, b.Atomically(context.Background(), func(ctx context.Context, tx ports.AccountTx) error {
		owned, err := tx.ListByOwner(ctx, Account(0, owner).Owner)
		n = len(owned)
		return err
	}))
	return n
}

func testInsertIfAbsent(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		return tx.Insert(ctx, Account(1, 9))
	}))
	err := b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		dup := Account(1, 9)
		dup.Data = []byte("other")
		return tx.Insert(ctx, dup)
	})
	require.ErrorIs(t, err, ports.ErrAddressInUse)
	assert.Equal(t, 1, count(t, b, 9))
}

func testRoundTrip(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	ctx := context.Background()
	want := Account(4, 9)
	want.Lamports = 1<<63 - 1

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		return tx.Insert(ctx, want)
	}))
	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		got, found, err := tx.Get(ctx, want.Address)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want, got)

		_, found, err = tx.Get(ctx, Account(5, 9).Address)
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func testRollback(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	ctx := context.Background()
	boom := errors.New("boom")

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		return tx.Insert(ctx, Account(1, 9))
	}))
	err := b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		if err := tx.Insert(ctx, Account(2, 9)); err != nil {
			return err
		}
		changed := Account(1, 9)
		changed.Data = []byte("changed")
		if err := tx.Update(ctx, changed); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		got, _, err := tx.Get(ctx, Account(1, 9).Address)
		require.NoError(t, err)
		assert.Equal(t, Account(1, 9).Data, got.Data)
		_, found, err := tx.Get(ctx, Account(2, 9).Address)
		require.NoError(t, err)
		assert.False(t, found)
		return nil
	}))
}

func testUpdateAndList(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		for _, a := range []domain.Account{Account(3, 9), Account(1, 9), Account(2, 8)} {
			if err := tx.Insert(ctx, a); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		a := Account(1, 9)
		a.Data = []byte("updated")
		require.NoError(t, tx.Update(ctx, a))
		require.ErrorIs(t, tx.Update(ctx, Account(7, 9)), ports.ErrAccountNotFound)
		return nil
	}))

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		owned, err := tx.ListByOwner(ctx, Account(0, 9).Owner)
		require.NoError(t, err)
		require.Len(t, owned, 2)
		assert.Equal(t, byte(1), owned[0].Address[0])
		assert.Equal(t, []byte("updated"), owned[0].Data)
		assert.Equal(t, byte(3), owned[1].Address[0])

		none, err := tx.ListByOwner(ctx, Account(0, 7).Owner)
		require.NoError(t, err)
		assert.Empty(t, none)
		return nil
	}))
}

func testStagedVisible(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	ctx := context.Background()

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		require.NoError(t, tx.Insert(ctx, Account(1, 9)))
		got, found, err := tx.Get(ctx, Account(1, 9).Address)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, Account(1, 9), got)

		require.ErrorIs(t, tx.Insert(ctx, Account(1, 9)), ports.ErrAddressInUse)

		owned, err := tx.ListByOwner(ctx, Account(0, 9).Owner)
		require.NoError(t, err)
		assert.Len(t, owned, 1)
		return nil
	}))
}

// testConcurrentInsert races units that insert the same address. Exactly one
// commits; each loser sees the address taken or loses the commit race.
func testConcurrentInsert(t *testing.T, b ports.AccountBackend) {
	defer b.Close()
	const n = 8
	ctx := context.Background()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
				a := Account(1, 9)
				a.Data = []byte{byte(i)}
				return tx.Insert(ctx, a)
			})
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one unit committed")
			winner = i
			continue
		}
		if !errors.Is(err, ports.ErrAddressInUse) && !errors.Is(err, ports.ErrConflict) {
			t.Fatalf("unit %d: unexpected error %v", i, err)
		}
	}
	require.NotEqual(t, -1, winner, "no unit committed")

	require.NoError(t, b.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
		got, found, err := tx.Get(ctx, Account(1, 9).Address)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, []byte{byte(winner)}, got.Data)
		return nil
	}))
	assert.Equal(t, 1, count(t, b, 9))
}
