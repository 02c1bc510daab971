package metadata_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/adapters/memory"
	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ledger"
	"breachx/internal/ports"
	"breachx/internal/programs/metadata"
	"breachx/internal/programs/token"
)

var (
	authority = domain.Address{7}
	mintAddr  = domain.Address{9}
)

func run(t *testing.T, s *memory.Store, fn func(ctx context.Context, l ports.Ledger) error) error {
	t.Helper()
	return s.Atomically(context.Background(), func(ctx context.Context, tx ports.AccountTx) error {
		return fn(ctx, ledger.New(tx))
	})
}

func metadataAddr(t *testing.T) domain.Address {
	t.Helper()
	a, err := address.Metadata(mintAddr)
	require.NoError(t, err)
	return a
}

func record() domain.MetadataRecord {
	return domain.MetadataRecord{
		Mint:            mintAddr,
		Name:            "Security Badge - widgets",
		Symbol:          "BXSB",
		URI:             "https://example.test/badge.json",
		MintAuthority:   authority,
		UpdateAuthority: authority,
	}
}

func withMint(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.New()
	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		return token.New(l).CreateMint(ctx, mintAddr, 0, authority)
	}))
	return s
}

func TestCreateAndReadRecord(t *testing.T) {
	s := withMint(t)
	addr := metadataAddr(t)

	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		return metadata.New(l).CreateRecord(ctx, addr, record())
	}))

	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		got, found, err := metadata.New(l).Record(ctx, addr)
		require.NoError(t, err)
		require.True(t, found)
		if diff := cmp.Diff(record(), got); diff != "" {
			t.Errorf("record mismatch (-want +got):\n%s", diff)
		}
		return nil
	}))
}

func TestRecordRoundTripsOptionalFields(t *testing.T) {
	s := withMint(t)
	addr := metadataAddr(t)
	rec := record()
	coll := domain.Address{3}
	rec.Collection = &coll
	rec.Uses = &domain.Uses{Method: 1, Remaining: 2, Total: 3}
	rec.Creators = []domain.Creator{{Address: authority, Verified: true, Share: 100}}
	rec.SellerFeeBasisPoints = 250

	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		return metadata.New(l).CreateRecord(ctx, addr, rec)
	}))
	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		got, _, err := metadata.New(l).Record(ctx, addr)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(rec, got))
		return nil
	}))
}

func TestCreateRecordRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.MetadataRecord)
		want   error
	}{
		{"wrong authority", func(r *domain.MetadataRecord) { r.MintAuthority = domain.Address{8} }, metadata.ErrInvalidAuthority},
		{"long name", func(r *domain.MetadataRecord) { r.Name = strings.Repeat("n", metadata.MaxNameLen+1) }, metadata.ErrNameTooLong},
		{"long symbol", func(r *domain.MetadataRecord) { r.Symbol = strings.Repeat("s", metadata.MaxSymbolLen+1) }, metadata.ErrSymbolTooLong},
		{"long uri", func(r *domain.MetadataRecord) { r.URI = strings.Repeat("u", metadata.MaxURILen+1) }, metadata.ErrURITooLong},
		{"fee", func(r *domain.MetadataRecord) { r.SellerFeeBasisPoints = 10001 }, metadata.ErrInvalidFee},
		{"creator shares", func(r *domain.MetadataRecord) {
			r.Creators = []domain.Creator{{Address: authority, Share: 50}}
		}, metadata.ErrInvalidCreators},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := withMint(t)
			rec := record()
			tt.mutate(&rec)
			err := run(t, s, func(ctx context.Context, l ports.Ledger) error {
				return metadata.New(l).CreateRecord(ctx, metadataAddr(t), rec)
			})
			require.ErrorIs(t, err, tt.want)
			require.ErrorIs(t, err, domain.ErrDependencyFailure)
		})
	}
}

func TestCreateRecordWrongAddress(t *testing.T) {
	s := withMint(t)
	err := run(t, s, func(ctx context.Context, l ports.Ledger) error {
		return metadata.New(l).CreateRecord(ctx, domain.Address{1}, record())
	})
	require.ErrorIs(t, err, metadata.ErrInvalidAddress)
}

func TestCreateRecordWithoutMint(t *testing.T) {
	s := memory.New()
	err := run(t, s, func(ctx context.Context, l ports.Ledger) error {
		return metadata.New(l).CreateRecord(ctx, metadataAddr(t), record())
	})
	require.ErrorIs(t, err, token.ErrUninitializedMint)
}

func TestRecordMissing(t *testing.T) {
	s := memory.New()
	require.NoError(t, run(t, s, func(ctx context.Context, l ports.Ledger) error {
		_, found, err := metadata.New(l).Record(ctx, metadataAddr(t))
		assert.False(t, found)
		return err
	}))
}
