// Package metadata attaches descriptive records to mints.
package metadata

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ports"
	"breachx/internal/programs/token"
)

// Field bounds enforced by the registry.
const (
	MaxNameLen        = 32
	MaxSymbolLen      = 10
	MaxURILen         = 200
	MaxCreators       = 5
	MaxSellerFeeBasis = 10000

	// RecordSize is the space reserved for every record.
	RecordSize = 679

	keyMetadataV1 = 4
)

var (
	ErrNameTooLong      = errors.New("metadata: name too long")
	ErrSymbolTooLong    = errors.New("metadata: symbol too long")
	ErrURITooLong       = errors.New("metadata: uri too long")
	ErrInvalidFee       = errors.New("metadata: seller fee basis points out of range")
	ErrInvalidCreators  = errors.New("metadata: invalid creators")
	ErrInvalidAuthority = errors.New("metadata: mint authority does not match")
	ErrInvalidAddress   = errors.New("metadata: record address does not derive from mint")
	ErrMalformedRecord  = errors.New("metadata: malformed record")
)

// Registry implements ports.MetadataRegistry on a ledger.
type Registry struct {
	ledger ports.Ledger
	tokens *token.Program
}

var _ ports.MetadataRegistry = (*Registry)(nil)

func New(l ports.Ledger) *Registry {
	return &Registry{ledger: l, tokens: token.New(l)}
}

func (r *Registry) CreateRecord(ctx context.Context, addr domain.Address, rec domain.MetadataRecord) error {
	const op = "metadata.CreateRecord"
	if err := validate(rec); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	want, err := address.Metadata(rec.Mint)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if want != addr {
		return domain.E(op, domain.KindDependencyFailure, fmt.Errorf("%w: %s", ErrInvalidAddress, addr))
	}
	mint, err := r.tokens.Mint(ctx, rec.Mint)
	if err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	if mint.Authority == nil || *mint.Authority != rec.MintAuthority {
		return domain.E(op, domain.KindDependencyFailure, ErrInvalidAuthority)
	}
	if err := r.ledger.Allocate(ctx, addr, RecordSize, address.MetadataProgramID); err != nil {
		return err
	}
	if err := r.ledger.Write(ctx, addr, encode(rec)); err != nil {
		return domain.E(op, domain.KindDependencyFailure, err)
	}
	return nil
}

func (r *Registry) Record(ctx context.Context, addr domain.Address) (domain.MetadataRecord, bool, error) {
	const op = "metadata.Record"
	acct, found, err := r.ledger.Read(ctx, addr)
	if err != nil {
		return domain.MetadataRecord{}, false, err
	}
	if !found {
		return domain.MetadataRecord{}, false, nil
	}
	if acct.Owner != address.MetadataProgramID {
		return domain.MetadataRecord{}, false, domain.E(op, domain.KindDependencyFailure, ErrMalformedRecord)
	}
	rec, err := decode(acct.Data)
	if err != nil {
		return domain.MetadataRecord{}, false, domain.E(op, domain.KindDependencyFailure, err)
	}
	mint, err := r.tokens.Mint(ctx, rec.Mint)
	if err != nil {
		return domain.MetadataRecord{}, false, domain.E(op, domain.KindDependencyFailure, err)
	}
	if mint.Authority != nil {
		rec.MintAuthority = *mint.Authority
	}
	return rec, true, nil
}

func validate(rec domain.MetadataRecord) error {
	switch {
	case len(rec.Name) > MaxNameLen:
		return fmt.Errorf("%w: %d > %d", ErrNameTooLong, len(rec.Name), MaxNameLen)
	case len(rec.Symbol) > MaxSymbolLen:
		return fmt.Errorf("%w: %d > %d", ErrSymbolTooLong, len(rec.Symbol), MaxSymbolLen)
	case len(rec.URI) > MaxURILen:
		return fmt.Errorf("%w: %d > %d", ErrURITooLong, len(rec.URI), MaxURILen)
	case rec.SellerFeeBasisPoints > MaxSellerFeeBasis:
		return ErrInvalidFee
	case len(rec.Creators) > MaxCreators:
		return fmt.Errorf("%w: at most %d", ErrInvalidCreators, MaxCreators)
	}
	if len(rec.Creators) > 0 {
		total := 0
		for _, c := range rec.Creators {
			total += int(c.Share)
		}
		if total != 100 {
			return fmt.Errorf("%w: shares sum to %d", ErrInvalidCreators, total)
		}
	}
	return nil
}

type writer struct{ b []byte }

func (w *writer) u8(v uint8)           { w.b = append(w.b, v) }
func (w *writer) u16(v uint16)         { w.b = binary.LittleEndian.AppendUint16(w.b, v) }
func (w *writer) u64(v uint64)         { w.b = binary.LittleEndian.AppendUint64(w.b, v) }
func (w *writer) key(k domain.Address) { w.b = append(w.b, k[:]...) }
func (w *writer) str(s string) {
	w.b = binary.LittleEndian.AppendUint32(w.b, uint32(len(s)))
	w.b = append(w.b, s...)
}
func (w *writer) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func encode(rec domain.MetadataRecord) []byte {
	w := &writer{b: make([]byte, 0, RecordSize)}
	w.u8(keyMetadataV1)
	w.key(rec.UpdateAuthority)
	w.key(rec.Mint)
	w.str(rec.Name)
	w.str(rec.Symbol)
	w.str(rec.URI)
	w.u16(rec.SellerFeeBasisPoints)
	w.flag(len(rec.Creators) > 0)
	if len(rec.Creators) > 0 {
		w.b = binary.LittleEndian.AppendUint32(w.b, uint32(len(rec.Creators)))
		for _, c := range rec.Creators {
			w.key(c.Address)
			w.flag(c.Verified)
			w.u8(c.Share)
		}
	}
	w.flag(false) // primary sale happened
	w.flag(true)  // is mutable
	w.flag(rec.Collection != nil)
	if rec.Collection != nil {
		w.flag(false)
		w.key(*rec.Collection)
	}
	w.flag(rec.Uses != nil)
	if rec.Uses != nil {
		w.u8(rec.Uses.Method)
		w.u64(rec.Uses.Remaining)
		w.u64(rec.Uses.Total)
	}
	return w.b
}

type reader struct {
	b   []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.b) < n {
		r.err = ErrMalformedRecord
		return nil
	}
	out := r.b[:n]
	r.b = r.b[n:]
	return out
}

func (r *reader) u8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *reader) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *reader) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *reader) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *reader) key() domain.Address {
	var k domain.Address
	copy(k[:], r.take(domain.AddressLen))
	return k
}

func (r *reader) str() string { return string(r.take(int(r.u32()))) }

func decode(b []byte) (domain.MetadataRecord, error) {
	r := &reader{b: b}
	var rec domain.MetadataRecord
	if r.u8() != keyMetadataV1 {
		return rec, ErrMalformedRecord
	}
	rec.UpdateAuthority = r.key()
	rec.Mint = r.key()
	rec.Name = r.str()
	rec.Symbol = r.str()
	rec.URI = r.str()
	rec.SellerFeeBasisPoints = r.u16()
	if r.u8() == 1 {
		n := r.u32()
		if n > MaxCreators {
			return rec, ErrMalformedRecord
		}
		for i := uint32(0); i < n; i++ {
			rec.Creators = append(rec.Creators, domain.Creator{Address: r.key(), Verified: r.u8() == 1, Share: r.u8()})
		}
	}
	r.u8()
	r.u8()
	if r.u8() == 1 {
		r.u8()
		c := r.key()
		rec.Collection = &c
	}
	if r.u8() == 1 {
		rec.Uses = &domain.Uses{Method: r.u8(), Remaining: r.u64(), Total: r.u64()}
	}
	return rec, r.err
}
