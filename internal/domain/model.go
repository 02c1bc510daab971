package domain

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// Core domain models. Wire types for the HTTP surface live in
// internal/adapters/http; keep these decoupled from JSON.

// AddressLen is the size of every identity and storage address.
const AddressLen = 32

// Address identifies an account, a program or a principal.
type Address [AddressLen]byte

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) Bytes() []byte { return a[:] }

func (a Address) IsZero() bool { return a == Address{} }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(b []byte) error {
	v, err := ParseAddress(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := base58.Decode(s)
	if err != nil {
		return a, fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != AddressLen {
		return a, fmt.Errorf("decode address %q: want %d bytes, got %d", s, AddressLen, len(raw))
	}
	copy(a[:], raw)
	return a, nil
}

// MustParseAddress is ParseAddress for compile-time constants.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Account is a byte buffer at a derived address, as kept by the ledger.
type Account struct {
	Address  Address `json:"address"`
	Owner    Address `json:"owner"`    // owning program
	Lamports uint64  `json:"lamports"` // prepaid storage cost
	Data     []byte  `json:"data"`     // len(Data) is the allocated space
}

// Report is one vulnerability report per (reporter, repository) pair.
type Report struct {
	Address        Address
	RepositoryID   string
	ReportLocation string
	Reporter       Address
	CreatedAt      int64    // unix seconds, set once
	BadgeMint      *Address // nil until a badge is issued
}

// State reports where the record sits in Unreported -> Reported -> Badged.
func (r *Report) State() ReportState {
	switch {
	case r == nil:
		return StateUnreported
	case r.BadgeMint != nil:
		return StateBadged
	default:
		return StateReported
	}
}

type ReportState string

const (
	StateUnreported ReportState = "unreported"
	StateReported   ReportState = "reported"
	StateBadged     ReportState = "badged"
)

// Badge describes an issued unit-supply token and its attached metadata.
type Badge struct {
	Mint     Address
	Holding  Address
	Metadata Address
	Title    string
	Symbol   string
	URI      string
}

// MetadataRecord is the descriptive record attached to a mint.
type MetadataRecord struct {
	Mint                 Address
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator
	Collection           *Address
	Uses                 *Uses
	MintAuthority        Address
	UpdateAuthority      Address
}

type Creator struct {
	Address  Address
	Verified bool
	Share    uint8
}

type Uses struct {
	Method    uint8
	Remaining uint64
	Total     uint64
}

// BadgeDocument is the off-chain JSON description a badge's URI points at.
type BadgeDocument struct {
	Name        string           `json:"name"`
	Symbol      string           `json:"symbol"`
	Description string           `json:"description"`
	Image       string           `json:"image"`
	Attributes  []BadgeAttribute `json:"attributes"`
	Properties  BadgeProperties  `json:"properties"`
}

type BadgeAttribute struct {
	TraitType string `json:"trait_type"`
	Value     string `json:"value"`
}

type BadgeProperties struct {
	Files    []BadgeFile `json:"files"`
	Category string      `json:"category"`
}

type BadgeFile struct {
	URI  string `json:"uri"`
	Type string `json:"type"`
}
