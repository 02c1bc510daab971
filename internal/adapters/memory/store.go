// Package memory is an in-process account backend. A single mutex serializes
// units of work; writes are staged and applied only when the unit succeeds.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

type Store struct {
	mu       sync.Mutex
	accounts map[domain.Address]domain.Account
	closed   bool
}

var _ ports.AccountBackend = (*Store)(nil)

func New() *Store {
	return &Store{accounts: make(map[domain.Address]domain.Account)}
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx ports.AccountTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &stagedTx{base: s.accounts, staged: make(map[domain.Address]domain.Account)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for addr, acct := range tx.staged {
		s.accounts[addr] = acct
	}
	return nil
}

// Len returns the number of committed accounts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type stagedTx struct {
	base   map[domain.Address]domain.Account
	staged map[domain.Address]domain.Account
}

func (t *stagedTx) lookup(addr domain.Address) (domain.Account, bool) {
	if a, ok := t.staged[addr]; ok {
		return a, true
	}
	a, ok := t.base[addr]
	return a, ok
}

func (t *stagedTx) Get(_ context.Context, addr domain.Address) (domain.Account, bool, error) {
	a, ok := t.lookup(addr)
	if !ok {
		return domain.Account{}, false, nil
	}
	return clone(a), true, nil
}

func (t *stagedTx) Insert(_ context.Context, acct domain.Account) error {
	if _, ok := t.lookup(acct.Address); ok {
		return ports.ErrAddressInUse
	}
	t.staged[acct.Address] = clone(acct)
	return nil
}

func (t *stagedTx) Update(_ context.Context, acct domain.Account) error {
	if _, ok := t.lookup(acct.Address); !ok {
		return ports.ErrAccountNotFound
	}
	t.staged[acct.Address] = clone(acct)
	return nil
}

func (t *stagedTx) ListByOwner(_ context.Context, owner domain.Address) ([]domain.Account, error) {
	seen := make(map[domain.Address]bool)
	var out []domain.Account
	for _, m := range []map[domain.Address]domain.Account{t.staged, t.base} {
		for addr, a := range m {
			if seen[addr] {
				continue
			}
			seen[addr] = true
			if a.Owner != owner {
				continue
			}
			out = append(out, clone(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func clone(a domain.Account) domain.Account {
	a.Data = bytes.Clone(a.Data)
	return a
}

var errClosed = errors.New("memory store closed")
