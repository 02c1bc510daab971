// Package sqlite is an embedded account backend on modernc.org/sqlite. Every
// unit of work is one IMMEDIATE transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"breachx/internal/domain"
	"breachx/internal/migrations"
	"breachx/internal/ports"
)

type Store struct {
	db *sql.DB
}

var _ ports.AccountBackend = (*Store)(nil)

// Open opens the database file at path and applies pending migrations.
func Open(ctx context.Context, path string, log *zap.Logger) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.Up(ctx, db, "sqlite", log); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// DB exposes the handle for schema tooling.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx ports.AccountTx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(ctx, accountTx{tx: tx})
}

type accountTx struct {
	tx *sql.Tx
}

func (t accountTx) Get(ctx context.Context, addr domain.Address) (domain.Account, bool, error) {
	acct := domain.Account{Address: addr}
	var owner []byte
	var lamports int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT owner, lamports, data FROM accounts WHERE address = ?`, addr[:],
	).Scan(&owner, &lamports, &acct.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	copy(acct.Owner[:], owner)
	acct.Lamports = uint64(lamports)
	return acct, true, nil
}

func (t accountTx) Insert(ctx context.Context, acct domain.Account) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO accounts (address, owner, lamports, data)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (address) DO NOTHING
	`, acct.Address[:], acct.Owner[:], int64(acct.Lamports), acct.Data)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ports.ErrAddressInUse
	}
	return nil
}

func (t accountTx) Update(ctx context.Context, acct domain.Account) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE accounts SET owner = ?, lamports = ?, data = ? WHERE address = ?`,
		acct.Owner[:], int64(acct.Lamports), acct.Data, acct.Address[:])
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ports.ErrAccountNotFound
	}
	return nil
}

func (t accountTx) ListByOwner(ctx context.Context, owner domain.Address) ([]domain.Account, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT address, lamports, data FROM accounts WHERE owner = ? ORDER BY address`, owner[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Account
	for rows.Next() {
		acct := domain.Account{Owner: owner}
		var addr []byte
		var lamports int64
		if err := rows.Scan(&addr, &lamports, &acct.Data); err != nil {
			return nil, err
		}
		copy(acct.Address[:], addr)
		acct.Lamports = uint64(lamports)
		out = append(out, acct)
	}
	return out, rows.Err()
}
