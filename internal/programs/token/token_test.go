package token_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/adapters/memory"
	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ledger"
	"breachx/internal/ports"
	"breachx/internal/programs/token"
)

var (
	owner    = domain.Address{7}
	stranger = domain.Address{8}
	mintAddr = domain.Address{9}
)

func run(t *testing.T, s *memory.Store, fn func(ctx context.Context, p *token.Program) error) error {
	t.Helper()
	return s.Atomically(context.Background(), func(ctx context.Context, tx ports.AccountTx) error {
		return fn(ctx, token.New(ledger.New(tx)))
	})
}

func holdingFor(t *testing.T, o, m domain.Address) domain.Address {
	t.Helper()
	h, err := address.Holding(o, m)
	require.NoError(t, err)
	return h
}

func TestMintUnitSupply(t *testing.T) {
	s := memory.New()
	holding := holdingFor(t, owner, mintAddr)

	require.NoError(t, run(t, s, func(ctx context.Context, p *token.Program) error {
		if err := p.CreateMint(ctx, mintAddr, 0, owner); err != nil {
			return err
		}
		return p.MintTo(ctx, mintAddr, holding, owner, owner, 1)
	}))

	require.NoError(t, run(t, s, func(ctx context.Context, p *token.Program) error {
		bal, err := p.Balance(ctx, holding)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), bal)

		m, err := p.Mint(ctx, mintAddr)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), m.Supply)
		assert.Equal(t, uint8(0), m.Decimals)
		require.NotNil(t, m.Authority)
		assert.Equal(t, owner, *m.Authority)
		assert.Nil(t, m.FreezeAuthority)
		return nil
	}))
}

func TestCreateMintCollision(t *testing.T) {
	s := memory.New()
	require.NoError(t, run(t, s, func(ctx context.Context, p *token.Program) error {
		return p.CreateMint(ctx, mintAddr, 0, owner)
	}))
	err := run(t, s, func(ctx context.Context, p *token.Program) error {
		return p.CreateMint(ctx, mintAddr, 0, owner)
	})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestMintToRequiresAuthority(t *testing.T) {
	s := memory.New()
	err := run(t, s, func(ctx context.Context, p *token.Program) error {
		if err := p.CreateMint(ctx, mintAddr, 0, owner); err != nil {
			return err
		}
		return p.MintTo(ctx, mintAddr, holdingFor(t, owner, mintAddr), owner, stranger, 1)
	})
	require.ErrorIs(t, err, token.ErrOwnerMismatch)
	require.ErrorIs(t, err, domain.ErrDependencyFailure)
}

func TestMintToRejectsForeignHolding(t *testing.T) {
	s := memory.New()
	err := run(t, s, func(ctx context.Context, p *token.Program) error {
		if err := p.CreateMint(ctx, mintAddr, 0, owner); err != nil {
			return err
		}
		return p.MintTo(ctx, mintAddr, holdingFor(t, stranger, mintAddr), owner, owner, 1)
	})
	require.ErrorIs(t, err, token.ErrInvalidHolding)
}

func TestMintToUnknownMint(t *testing.T) {
	s := memory.New()
	err := run(t, s, func(ctx context.Context, p *token.Program) error {
		return p.MintTo(ctx, mintAddr, holdingFor(t, owner, mintAddr), owner, owner, 1)
	})
	require.ErrorIs(t, err, token.ErrUninitializedMint)
}

func TestBalanceOfMissingHolding(t *testing.T) {
	s := memory.New()
	require.NoError(t, run(t, s, func(ctx context.Context, p *token.Program) error {
		bal, err := p.Balance(ctx, domain.Address{1})
		assert.Zero(t, bal)
		return err
	}))
}
