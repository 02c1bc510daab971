// Package redis is an account backend on Redis. Units of work are optimistic:
// every key read is WATCHed, writes are staged locally and applied in one
// MULTI/EXEC. A unit that loses the race fails with ports.ErrConflict.
package redis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

const defaultPrefix = "breachx"

type Options struct {
	// URL is the connection string, e.g. "redis://localhost:6379/0".
	URL string
	// Prefix namespaces every key. Defaults to "breachx".
	Prefix         string
	ConnectTimeout time.Duration
}

type Store struct {
	client *goredis.Client
	prefix string
}

var _ ports.AccountBackend = (*Store)(nil)

func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Prefix == "" {
		opts.Prefix = defaultPrefix
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	ropts, err := goredis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	ropts.DialTimeout = opts.ConnectTimeout
	client := goredis.NewClient(ropts)

	pctx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Store{client: client, prefix: opts.Prefix}, nil
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) accountKey(addr domain.Address) string {
	return s.prefix + ":account:" + addr.String()
}

func (s *Store) ownerKey(owner domain.Address) string {
	return s.prefix + ":owner:" + owner.String()
}

func (s *Store) Atomically(ctx context.Context, fn func(ctx context.Context, tx ports.AccountTx) error) error {
	return s.client.Watch(ctx, func(rtx *goredis.Tx) error {
		tx := &accountTx{store: s, rtx: rtx, staged: make(map[domain.Address]staged)}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return tx.commit(ctx)
	})
}

type staged struct {
	acct      domain.Account
	prevOwner *domain.Address
}

type accountTx struct {
	store  *Store
	rtx    *goredis.Tx
	staged map[domain.Address]staged
}

func (t *accountTx) load(ctx context.Context, addr domain.Address) (domain.Account, bool, error) {
	key := t.store.accountKey(addr)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return domain.Account{}, false, err
	}
	raw, err := t.rtx.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	var a domain.Account
	if err := json.Unmarshal(raw, &a); err != nil {
		return domain.Account{}, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return a, true, nil
}

func (t *accountTx) Get(ctx context.Context, addr domain.Address) (domain.Account, bool, error) {
	if st, ok := t.staged[addr]; ok {
		return clone(st.acct), true, nil
	}
	return t.load(ctx, addr)
}

func (t *accountTx) Insert(ctx context.Context, acct domain.Account) error {
	_, found, err := t.Get(ctx, acct.Address)
	if err != nil {
		return err
	}
	if found {
		return ports.ErrAddressInUse
	}
	t.staged[acct.Address] = staged{acct: clone(acct)}
	return nil
}

func (t *accountTx) Update(ctx context.Context, acct domain.Account) error {
	if st, ok := t.staged[acct.Address]; ok {
		t.staged[acct.Address] = staged{acct: clone(acct), prevOwner: st.prevOwner}
		return nil
	}
	prev, found, err := t.load(ctx, acct.Address)
	if err != nil {
		return err
	}
	if !found {
		return ports.ErrAccountNotFound
	}
	owner := prev.Owner
	t.staged[acct.Address] = staged{acct: clone(acct), prevOwner: &owner}
	return nil
}

func (t *accountTx) ListByOwner(ctx context.Context, owner domain.Address) ([]domain.Account, error) {
	key := t.store.ownerKey(owner)
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return nil, err
	}
	members, err := t.rtx.SMembers(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	byAddr := make(map[domain.Address]domain.Account)
	for _, m := range members {
		addr, err := domain.ParseAddress(m)
		if err != nil {
			return nil, fmt.Errorf("owner index %s: %w", key, err)
		}
		a, found, err := t.Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		if found && a.Owner == owner {
			byAddr[addr] = a
		}
	}
	for addr, st := range t.staged {
		if st.acct.Owner == owner {
			byAddr[addr] = clone(st.acct)
		} else {
			delete(byAddr, addr)
		}
	}
	out := make([]domain.Account, 0, len(byAddr))
	for _, a := range byAddr {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Address[:], out[j].Address[:]) < 0
	})
	return out, nil
}

func (t *accountTx) commit(ctx context.Context) error {
	if len(t.staged) == 0 {
		return nil
	}
	payloads := make(map[domain.Address][]byte, len(t.staged))
	for addr, st := range t.staged {
		raw, err := json.Marshal(st.acct)
		if err != nil {
			return err
		}
		payloads[addr] = raw
	}
	_, err := t.rtx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		for addr, st := range t.staged {
			pipe.Set(ctx, t.store.accountKey(addr), payloads[addr], 0)
			pipe.SAdd(ctx, t.store.ownerKey(st.acct.Owner), addr.String())
			if st.prevOwner != nil && *st.prevOwner != st.acct.Owner {
				pipe.SRem(ctx, t.store.ownerKey(*st.prevOwner), addr.String())
			}
		}
		return nil
	})
	if errors.Is(err, goredis.TxFailedErr) {
		return ports.ErrConflict
	}
	return err
}

func clone(a domain.Account) domain.Account {
	a.Data = bytes.Clone(a.Data)
	return a
}
