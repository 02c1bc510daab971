// Package address derives deterministic storage addresses from seeds.
//
// An address is the SHA-256 of the seeds, a one-byte bump, the owning program
// and a fixed marker. Only digests that do not decode to an ed25519 point are
// accepted, so no derived address can ever have a private key.
package address

import (
	"crypto/sha256"
	"errors"

	"filippo.io/edwards25519"

	"breachx/internal/domain"
)

const (
	// MaxSeedLen bounds each individual seed.
	MaxSeedLen = 32
	// MaxSeeds bounds the number of seeds, bump included.
	MaxSeeds = 16

	pdaMarker = "ProgramDerivedAddress"
)

var (
	ErrMaxSeedLength = errors.New("address: seed exceeds maximum length")
	ErrTooManySeeds  = errors.New("address: too many seeds")
	ErrOnCurve       = errors.New("address: derived address lies on the ed25519 curve")
	ErrNoViableBump  = errors.New("address: unable to find a viable bump")
)

// CreateProgramAddress hashes seeds under program. It fails with ErrOnCurve
// when the digest is a valid curve point.
func CreateProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, error) {
	var out domain.Address
	if len(seeds) > MaxSeeds {
		return out, ErrTooManySeeds
	}
	h := sha256.New()
	for _, s := range seeds {
		if len(s) > MaxSeedLen {
			return out, ErrMaxSeedLength
		}
		h.Write(s)
	}
	h.Write(program[:])
	h.Write([]byte(pdaMarker))
	copy(out[:], h.Sum(nil))
	if IsOnCurve(out) {
		return domain.Address{}, ErrOnCurve
	}
	return out, nil
}

// FindProgramAddress walks the bump from 255 down and returns the first
// off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, program domain.Address) (domain.Address, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return domain.Address{}, 0, ErrTooManySeeds
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	for bump := 255; bump >= 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, program)
		switch {
		case err == nil:
			return addr, uint8(bump), nil
		case errors.Is(err, ErrOnCurve):
			continue
		default:
			return domain.Address{}, 0, err
		}
	}
	return domain.Address{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether a decodes to an ed25519 point.
func IsOnCurve(a domain.Address) bool {
	_, err := new(edwards25519.Point).SetBytes(a[:])
	return err == nil
}
