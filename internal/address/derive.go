package address

import (
	"crypto/sha256"
	"fmt"

	"breachx/internal/domain"
)

// Well-known program identities.
var (
	SystemProgramID          = domain.MustParseAddress("11111111111111111111111111111111")
	TokenProgramID           = domain.MustParseAddress("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA")
	AssociatedTokenProgramID = domain.MustParseAddress("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
	MetadataProgramID        = domain.MustParseAddress("metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s")
)

// DefaultRegistryProgramID is the registry's deployment identity.
const DefaultRegistryProgramID = "CT2TbWY3ny6wn6jRq3RPdqh4gnmtupzNhdJHeWCkzaKw"

// Namespace tags.
const (
	TagReport   = "vulnerability_report"
	TagMint     = "mint"
	TagMetadata = "metadata"
)

// Deriver maps (tag, owner, repository id) to addresses under one registry
// program. It holds no mutable state and is safe for concurrent use.
type Deriver struct {
	program domain.Address
}

func NewDeriver(program domain.Address) Deriver { return Deriver{program: program} }

func (d Deriver) Program() domain.Address { return d.program }

// RepositorySeed reduces a repository identifier to its 32-byte digest.
// No normalization is applied: "Repo" and "repo" are distinct.
func RepositorySeed(repositoryID string) [32]byte {
	return sha256.Sum256([]byte(repositoryID))
}

// Derive returns the address for tag, owner and the hashed repository id.
func (d Deriver) Derive(tag string, owner domain.Address, repositoryID string) (domain.Address, error) {
	seed := RepositorySeed(repositoryID)
	addr, _, err := FindProgramAddress([][]byte{[]byte(tag), owner[:], seed[:]}, d.program)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive %s address: %w", tag, err)
	}
	return addr, nil
}

func (d Deriver) Report(owner domain.Address, repositoryID string) (domain.Address, error) {
	return d.Derive(TagReport, owner, repositoryID)
}

func (d Deriver) Mint(owner domain.Address, repositoryID string) (domain.Address, error) {
	return d.Derive(TagMint, owner, repositoryID)
}

// Holding returns the owner's associated token account for mint.
func Holding(owner, mint domain.Address) (domain.Address, error) {
	addr, _, err := FindProgramAddress([][]byte{owner[:], TokenProgramID[:], mint[:]}, AssociatedTokenProgramID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive holding address: %w", err)
	}
	return addr, nil
}

// Metadata returns the metadata record address for mint.
func Metadata(mint domain.Address) (domain.Address, error) {
	addr, _, err := FindProgramAddress([][]byte{[]byte(TagMetadata), MetadataProgramID[:], mint[:]}, MetadataProgramID)
	if err != nil {
		return domain.Address{}, fmt.Errorf("derive metadata address: %w", err)
	}
	return addr, nil
}

// BadgeAddresses bundles the three addresses a badge occupies.
type BadgeAddresses struct {
	Mint     domain.Address
	Holding  domain.Address
	Metadata domain.Address
}

func (d Deriver) Badge(owner domain.Address, repositoryID string) (BadgeAddresses, error) {
	var out BadgeAddresses
	var err error
	if out.Mint, err = d.Mint(owner, repositoryID); err != nil {
		return out, err
	}
	if out.Holding, err = Holding(owner, out.Mint); err != nil {
		return out, err
	}
	if out.Metadata, err = Metadata(out.Mint); err != nil {
		return out, err
	}
	return out, nil
}
