package ports

import (
	"context"
	"errors"

	"breachx/internal/domain"
)

// Errors every account backend reports in the same way.
var (
	// ErrAddressInUse is returned by Insert when the address already holds an
	// account. It is the only duplicate guard the registry relies on.
	ErrAddressInUse = errors.New("address already in use")
	// ErrAccountNotFound is returned by Update for an unknown address.
	ErrAccountNotFound = errors.New("account not found")
	// ErrConflict is returned by optimistic backends when a concurrent unit of
	// work committed first. The host retries the invocation a bounded number
	// of times.
	ErrConflict = errors.New("concurrent unit of work conflict")
)

// AccountTx is raw account access inside one unit of work.
type AccountTx interface {
	Get(ctx context.Context, addr domain.Address) (acct domain.Account, found bool, err error)
	// Insert initializes a new account; ErrAddressInUse if one exists.
	Insert(ctx context.Context, acct domain.Account) error
	// Update replaces the data of an existing account.
	Update(ctx context.Context, acct domain.Account) error
	// ListByOwner returns every account owned by the given program.
	ListByOwner(ctx context.Context, owner domain.Address) ([]domain.Account, error)
}

// AccountBackend persists accounts. Atomically commits every effect of fn or
// none of them; a non-nil error from fn rolls back.
type AccountBackend interface {
	Atomically(ctx context.Context, fn func(ctx context.Context, tx AccountTx) error) error
	Close() error
}
