// Package bolt is a single-file embedded account backend. Units of work are
// bolt read-write transactions, which the database serializes.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

var bucketName = []byte("accounts")

type Store struct {
	db *bolt.DB
}

var _ ports.AccountBackend = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the accounts
// bucket exists.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx ports.AccountTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(ctx, accountTx{b: tx.Bucket(bucketName)})
	})
}

type accountTx struct {
	b *bolt.Bucket
}

func (t accountTx) Get(_ context.Context, addr domain.Address) (domain.Account, bool, error) {
	v := t.b.Get(addr[:])
	if v == nil {
		return domain.Account{}, false, nil
	}
	var a domain.Account
	if err := json.Unmarshal(v, &a); err != nil {
		return domain.Account{}, false, err
	}
	return a, true, nil
}

func (t accountTx) Insert(_ context.Context, acct domain.Account) error {
	if t.b.Get(acct.Address[:]) != nil {
		return ports.ErrAddressInUse
	}
	return t.put(acct)
}

func (t accountTx) Update(_ context.Context, acct domain.Account) error {
	if t.b.Get(acct.Address[:]) == nil {
		return ports.ErrAccountNotFound
	}
	return t.put(acct)
}

// ListByOwner scans the bucket in key order.
func (t accountTx) ListByOwner(_ context.Context, owner domain.Address) ([]domain.Account, error) {
	var out []domain.Account
	err := t.b.ForEach(func(_, v []byte) error {
		var a domain.Account
		if err := json.Unmarshal(v, &a); err != nil {
			return err
		}
		if bytes.Equal(a.Owner[:], owner[:]) {
			out = append(out, a)
		}
		return nil
	})
	return out, err
}

func (t accountTx) put(acct domain.Account) error {
	data, err := json.Marshal(acct)
	if err != nil {
		return err
	}
	return t.b.Put(acct.Address[:], data)
}
