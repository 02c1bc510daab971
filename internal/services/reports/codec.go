package reports

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"breachx/internal/domain"
)

// Record layout, little endian:
//
//	discriminator   [8]byte
//	repository id   u32 length + bytes
//	report location u32 length + bytes
//	reporter        [32]byte
//	created at      i64
//	badge mint      u8 tag (0 none, 1 some) + [32]byte
const (
	discriminatorLen = 8
	lenPrefix        = 4
	timestampLen     = 8
	badgeOptionLen   = 1 + domain.AddressLen
)

var discriminator = func() [discriminatorLen]byte {
	sum := sha256.Sum256([]byte("account:VulnerabilityReport"))
	var d [discriminatorLen]byte
	copy(d[:], sum[:discriminatorLen])
	return d
}()

var (
	ErrMalformedRecord = errors.New("reports: malformed record")
	ErrNotAReport      = errors.New("reports: account is not a report")
)

// Space is the number of bytes reserved for a report under the given limits.
func Space(l Limits) int {
	return discriminatorLen +
		lenPrefix + l.MaxRepositoryIDLen +
		lenPrefix + l.MaxReportLocationLen +
		domain.AddressLen +
		timestampLen +
		badgeOptionLen
}

func encode(r domain.Report) []byte {
	b := make([]byte, 0, discriminatorLen+2*lenPrefix+len(r.RepositoryID)+len(r.ReportLocation)+domain.AddressLen+timestampLen+badgeOptionLen)
	b = append(b, discriminator[:]...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.RepositoryID)))
	b = append(b, r.RepositoryID...)
	b = binary.LittleEndian.AppendUint32(b, uint32(len(r.ReportLocation)))
	b = append(b, r.ReportLocation...)
	b = append(b, r.Reporter[:]...)
	b = binary.LittleEndian.AppendUint64(b, uint64(r.CreatedAt))
	if r.BadgeMint != nil {
		b = append(b, 1)
		b = append(b, r.BadgeMint[:]...)
	} else {
		b = append(b, 0)
		b = append(b, make([]byte, domain.AddressLen)...)
	}
	return b
}

func decode(addr domain.Address, data []byte) (domain.Report, error) {
	r := domain.Report{Address: addr}
	if len(data) < discriminatorLen || !bytes.Equal(data[:discriminatorLen], discriminator[:]) {
		return r, ErrNotAReport
	}
	rest := data[discriminatorLen:]

	str := func() (string, error) {
		if len(rest) < lenPrefix {
			return "", ErrMalformedRecord
		}
		n := binary.LittleEndian.Uint32(rest)
		rest = rest[lenPrefix:]
		if uint64(n) > uint64(len(rest)) {
			return "", fmt.Errorf("%w: string length %d exceeds record", ErrMalformedRecord, n)
		}
		s := string(rest[:n])
		rest = rest[n:]
		return s, nil
	}

	var err error
	if r.RepositoryID, err = str(); err != nil {
		return r, err
	}
	if r.ReportLocation, err = str(); err != nil {
		return r, err
	}
	if len(rest) < domain.AddressLen+timestampLen+badgeOptionLen {
		return r, ErrMalformedRecord
	}
	copy(r.Reporter[:], rest[:domain.AddressLen])
	rest = rest[domain.AddressLen:]
	r.CreatedAt = int64(binary.LittleEndian.Uint64(rest))
	rest = rest[timestampLen:]
	switch rest[0] {
	case 0:
	case 1:
		var mint domain.Address
		copy(mint[:], rest[1:badgeOptionLen])
		r.BadgeMint = &mint
	default:
		return r, fmt.Errorf("%w: badge tag %d", ErrMalformedRecord, rest[0])
	}
	return r, nil
}
