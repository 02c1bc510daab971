// Package token issues fungible and non-fungible units. Mints and holding
// accounts are ledger accounts owned by the token program, laid out the way
// the token program lays them out (82-byte mints, 165-byte holdings).
package token

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ports"
)

const (
	MintSize    = 82
	HoldingSize = 165
)

var (
	ErrUninitializedMint = errors.New("token: mint is not initialized")
	ErrOwnerMismatch     = errors.New("token: authority does not match")
	ErrInvalidHolding    = errors.New("token: holding is not the associated account of owner and mint")
	ErrInvalidAccount    = errors.New("token: account is not owned by the token program")
	ErrOverflow          = errors.New("token: amount overflow")
)

// Mint is the decoded state of a mint account.
type Mint struct {
	Authority       *domain.Address
	Supply          uint64
	Decimals        uint8
	Initialized     bool
	FreezeAuthority *domain.Address
}

// Holding is the decoded state of a holding account.
type Holding struct {
	Mint   domain.Address
	Owner  domain.Address
	Amount uint64
}

// Program implements ports.TokenIssuer on a ledger.
type Program struct {
	ledger ports.Ledger
}

var _ ports.TokenIssuer = (*Program)(nil)

func New(l ports.Ledger) *Program { return &Program{ledger: l} }

func (p *Program) CreateMint(ctx context.Context, mint domain.Address, decimals uint8, authority domain.Address) error {
	const op = "token.CreateMint"
	if err := p.ledger.Allocate(ctx, mint, MintSize, address.TokenProgramID); err != nil {
		return err
	}
	m := Mint{Authority: &authority, Decimals: decimals, Initialized: true}
	if err := p.ledger.Write(ctx, mint, m.encode()); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	return nil
}

func (p *Program) MintTo(ctx context.Context, mint, holding, owner, authority domain.Address, amount uint64) error {
	const op = "token.MintTo"
	m, err := p.mint(ctx, mint)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if m.Authority == nil || *m.Authority != authority {
		return domain.E(op, domain.KindDependencyFailure, ErrOwnerMismatch)
	}
	want, err := address.Holding(owner, mint)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if want != holding {
		return domain.E(op, domain.KindDependencyFailure, fmt.Errorf("%w: %s", ErrInvalidHolding, holding))
	}

	h, found, err := p.holding(ctx, holding)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if !found {
		if err := p.ledger.Allocate(ctx, holding, HoldingSize, address.TokenProgramID); err != nil {
			return err
		}
		h = Holding{Mint: mint, Owner: owner}
	}
	if h.Mint != mint || h.Owner != owner {
		return domain.E(op, domain.KindDependencyFailure, ErrInvalidHolding)
	}
	if amount > math.MaxUint64-h.Amount || amount > math.MaxUint64-m.Supply {
		return domain.E(op, domain.KindDependencyFailure, ErrOverflow)
	}
	h.Amount += amount
	m.Supply += amount

	if err := p.ledger.Write(ctx, holding, h.encode()); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if err := p.ledger.Write(ctx, mint, m.encode()); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	return nil
}

func (p *Program) Balance(ctx context.Context, holding domain.Address) (uint64, error) {
	h, found, err := p.holding(ctx, holding)
	if err != nil {
		return 0, domain.E("token.Balance", domain.KindDependencyFailure, err)
	}
	if !found {
		return 0, nil
	}
	return h.Amount, nil
}

func (p *Program) Supply(ctx context.Context, mint domain.Address) (uint64, error) {
	m, err := p.mint(ctx, mint)
	if err != nil {
		return 0, domain.E("token.Supply", domain.KindDependencyFailure, err)
	}
	return m.Supply, nil
}

// Mint reads the decoded mint state.
func (p *Program) Mint(ctx context.Context, mint domain.Address) (Mint, error) {
	return p.mint(ctx, mint)
}

func (p *Program) mint(ctx context.Context, addr domain.Address) (Mint, error) {
	acct, found, err := p.ledger.Read(ctx, addr)
	if err != nil {
		return Mint{}, err
	}
	if !found {
		return Mint{}, fmt.Errorf("%w: %s", ErrUninitializedMint, addr)
	}
	if acct.Owner != address.TokenProgramID || len(acct.Data) < MintSize {
		return Mint{}, fmt.Errorf("%w: %s", ErrInvalidAccount, addr)
	}
	m := decodeMint(acct.Data)
	if !m.Initialized {
		return Mint{}, fmt.Errorf("%w: %s", ErrUninitializedMint, addr)
	}
	return m, nil
}

func (p *Program) holding(ctx context.Context, addr domain.Address) (Holding, bool, error) {
	acct, found, err := p.ledger.Read(ctx, addr)
	if err != nil || !found {
		return Holding{}, false, err
	}
	if acct.Owner != address.TokenProgramID || len(acct.Data) < HoldingSize {
		return Holding{}, false, fmt.Errorf("%w: %s", ErrInvalidAccount, addr)
	}
	return decodeHolding(acct.Data), true, nil
}

// Layouts. Optional keys are a u32 tag followed by 32 bytes.

func putOptionalKey(b []byte, k *domain.Address) {
	if k == nil {
		return
	}
	binary.LittleEndian.PutUint32(b, 1)
	copy(b[4:36], k[:])
}

func optionalKey(b []byte) *domain.Address {
	if binary.LittleEndian.Uint32(b) == 0 {
		return nil
	}
	var k domain.Address
	copy(k[:], b[4:36])
	return &k
}

func (m Mint) encode() []byte {
	b := make([]byte, MintSize)
	putOptionalKey(b[0:36], m.Authority)
	binary.LittleEndian.PutUint64(b[36:44], m.Supply)
	b[44] = m.Decimals
	if m.Initialized {
		b[45] = 1
	}
	putOptionalKey(b[46:82], m.FreezeAuthority)
	return b
}

func decodeMint(b []byte) Mint {
	return Mint{
		Authority:       optionalKey(b[0:36]),
		Supply:          binary.LittleEndian.Uint64(b[36:44]),
		Decimals:        b[44],
		Initialized:     b[45] == 1,
		FreezeAuthority: optionalKey(b[46:82]),
	}
}

const holdingInitialized = 1

func (h Holding) encode() []byte {
	b := make([]byte, HoldingSize)
	copy(b[0:32], h.Mint[:])
	copy(b[32:64], h.Owner[:])
	binary.LittleEndian.PutUint64(b[64:72], h.Amount)
	// delegate option [72:108]
	b[108] = holdingInitialized
	// is_native [109:121], delegated amount [121:129], close authority [129:165]
	return b
}

func decodeHolding(b []byte) Holding {
	var h Holding
	copy(h.Mint[:], b[0:32])
	copy(h.Owner[:], b[32:64])
	h.Amount = binary.LittleEndian.Uint64(b[64:72])
	return h
}
