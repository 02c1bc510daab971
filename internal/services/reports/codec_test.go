package reports

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"breachx/internal/domain"
)

func TestEncodeLayout(t *testing.T) {
	r := domain.Report{
		RepositoryID:   "acme/w",
		ReportLocation: "https://r",
		Reporter:       domain.Address{1, 2, 3},
		CreatedAt:      -5,
	}
	b := encode(r)

	assert.Equal(t, discriminator[:], b[:8])
	assert.Equal(t, uint32(6), binary.LittleEndian.Uint32(b[8:12]))
	assert.Equal(t, "acme/w", string(b[12:18]))
	assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(b[18:22]))
	assert.Equal(t, "https://r", string(b[22:31]))
	assert.Equal(t, r.Reporter[:], b[31:63])
	assert.Equal(t, int64(-5), int64(binary.LittleEndian.Uint64(b[63:71])))
	assert.Equal(t, byte(0), b[71])
	assert.Equal(t, make([]byte, 32), b[72:104])
	assert.Len(t, b, 104)
}

func TestDecodeIgnoresTrailingSpace(t *testing.T) {
	mint := domain.Address{9}
	r := domain.Report{RepositoryID: "x", ReportLocation: "y", Reporter: domain.Address{1}, CreatedAt: 7, BadgeMint: &mint}
	buf := make([]byte, Space(DefaultLimits))
	copy(buf, encode(r))

	got, err := decode(domain.Address{4}, buf)
	require.NoError(t, err)
	r.Address = domain.Address{4}
	assert.Equal(t, r, got)
}

func TestDecodeRejects(t *testing.T) {
	valid := encode(domain.Report{RepositoryID: "x"})

	_, err := decode(domain.Address{}, make([]byte, 64))
	require.ErrorIs(t, err, ErrNotAReport)

	_, err = decode(domain.Address{}, valid[:20])
	require.ErrorIs(t, err, ErrMalformedRecord)

	bad := append([]byte(nil), valid...)
	binary.LittleEndian.PutUint32(bad[8:], 1<<30)
	_, err = decode(domain.Address{}, bad)
	require.ErrorIs(t, err, ErrMalformedRecord)

	bad = append([]byte(nil), valid...)
	bad[len(bad)-domain.AddressLen-1] = 7
	_, err = decode(domain.Address{}, bad)
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestSpace(t *testing.T) {
	assert.Equal(t, 8+4+50+4+200+32+8+33, Space(LegacyLimits))
}
