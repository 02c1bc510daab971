package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

const serializationFailure = "40001"

var _ ports.AccountBackend = (*DB)(nil)

func (db *DB) Atomically(ctx context.Context, fn func(ctx context.Context, tx ports.AccountTx) error) (err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
		if isSerializationFailure(err) {
			err = ports.ErrConflict
		}
	}()
	return fn(ctx, accountTx{tx: tx})
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

type accountTx struct {
	tx pgx.Tx
}

func (t accountTx) Get(ctx context.Context, addr domain.Address) (domain.Account, bool, error) {
	acct := domain.Account{Address: addr}
	var owner []byte
	var lamports int64
	err := t.tx.QueryRow(ctx,
		`SELECT owner, lamports, data FROM accounts WHERE address = $1`, addr[:],
	).Scan(&owner, &lamports, &acct.Data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	copy(acct.Owner[:], owner)
	acct.Lamports = uint64(lamports)
	return acct, true, nil
}

// Insert relies on the primary key: a conflicting row leaves the insert a
// no-op, which is reported as ports.ErrAddressInUse.
func (t accountTx) Insert(ctx context.Context, acct domain.Account) error {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (address, owner, lamports, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (address) DO NOTHING
	`, acct.Address[:], acct.Owner[:], int64(acct.Lamports), acct.Data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAddressInUse
	}
	return nil
}

func (t accountTx) Update(ctx context.Context, acct domain.Account) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE accounts SET owner = $2, lamports = $3, data = $4 WHERE address = $1`,
		acct.Address[:], acct.Owner[:], int64(acct.Lamports), acct.Data)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrAccountNotFound
	}
	return nil
}

func (t accountTx) ListByOwner(ctx context.Context, owner domain.Address) ([]domain.Account, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT address, lamports, data FROM accounts WHERE owner = $1 ORDER BY address`, owner[:])
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Account, error) {
		acct := domain.Account{Owner: owner}
		var addr []byte
		var lamports int64
		if err := row.Scan(&addr, &lamports, &acct.Data); err != nil {
			return domain.Account{}, err
		}
		copy(acct.Address[:], addr)
		acct.Lamports = uint64(lamports)
		return acct, nil
	})
}
