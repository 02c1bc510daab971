// Package ledger exposes allocate/read/write over the accounts of a single
// unit of work.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

const (
	// accountOverhead is the per-account storage the ledger charges for on top
	// of the data space.
	accountOverhead     = 128
	lamportsPerByteYear = 3480
	exemptionYears      = 2
)

// RentExemptMinimum is the prepaid storage cost of an account of space bytes.
func RentExemptMinimum(space int) uint64 {
	return uint64(accountOverhead+space) * lamportsPerByteYear * exemptionYears
}

// Ledger implements ports.Ledger on top of an AccountTx.
type Ledger struct {
	tx ports.AccountTx
}

var _ ports.Ledger = (*Ledger)(nil)

func New(tx ports.AccountTx) *Ledger { return &Ledger{tx: tx} }

func (l *Ledger) Allocate(ctx context.Context, addr domain.Address, space int, program domain.Address) error {
	const op = "ledger.Allocate"
	if space < 0 {
		return domain.E(op, domain.KindInvalidArgument, fmt.Errorf("negative space %d", space))
	}
	err := l.tx.Insert(ctx, domain.Account{
		Address:  addr,
		Owner:    program,
		Lamports: RentExemptMinimum(space),
		Data:     make([]byte, space),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ports.ErrAddressInUse):
		return domain.E(op, domain.KindAlreadyExists, fmt.Errorf("account %s: %w", addr, err))
	default:
		return domain.E(op, domain.KindDependencyFailure, err)
	}
}

func (l *Ledger) Read(ctx context.Context, addr domain.Address) (domain.Account, bool, error) {
	acct, found, err := l.tx.Get(ctx, addr)
	if err != nil {
		return domain.Account{}, false, domain.E("ledger.Read", domain.KindDependencyFailure, err)
	}
	return acct, found, nil
}

// Write overwrites the head of the account buffer and zeroes the rest. The
// failure for oversized data is deliberately generic: it names the account,
// not the field that did not fit.
func (l *Ledger) Write(ctx context.Context, addr domain.Address, data []byte) error {
	const op = "ledger.Write"
	acct, found, err := l.tx.Get(ctx, addr)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if !found {
		return domain.E(op, domain.KindNotFound, fmt.Errorf("account %s: %w", addr, ports.ErrAccountNotFound))
	}
	if len(data) > len(acct.Data) {
		return domain.E(op, domain.KindCapacityExceeded,
			fmt.Errorf("account %s: data too large for allocated space (%d > %d)", addr, len(data), len(acct.Data)))
	}
	buf := make([]byte, len(acct.Data))
	copy(buf, data)
	acct.Data = buf
	if err := l.tx.Update(ctx, acct); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	return nil
}

func (l *Ledger) Owned(ctx context.Context, program domain.Address) ([]domain.Account, error) {
	accts, err := l.tx.ListByOwner(ctx, program)
	if err != nil {
		return nil, domain.E("ledger.Owned", domain.KindDependencyFailure, err)
	}
	return accts, nil
}
