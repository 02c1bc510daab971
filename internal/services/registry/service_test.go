package registry_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"breachx/internal/adapters/memory"
	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/host"
	"breachx/internal/ports"
	"breachx/internal/programs/metadata"
	"breachx/internal/services/badges"
	"breachx/internal/services/registry"
	"breachx/internal/services/reports"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	alice = domain.Address{0xa1}
	bob   = domain.Address{0xb0}
	epoch = time.Unix(1_700_000_000, 0)
)

type fixture struct {
	svc     *registry.Service
	backend *memory.Store
	clock   *clockwork.FakeClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	backend := memory.New()
	clock := clockwork.NewFakeClockAt(epoch)
	svc, err := registry.New(host.New(backend, host.WithClock(clock)), registry.Config{
		Program:  domain.MustParseAddress(address.DefaultRegistryProgramID),
		Limits:   reports.DefaultLimits,
		Defaults: badges.Defaults{BaseURL: "https://breachx.test", ImageURL: "https://breachx.test/badge.png"},
	}, nil)
	require.NoError(t, err)
	return fixture{svc: svc, backend: backend, clock: clock}
}

func TestStoreReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.StoreReport(ctx, alice, "repo1", "https://reports.test/1")
	require.NoError(t, err)
	assert.Equal(t, alice, r.Reporter)
	assert.Equal(t, "repo1", r.RepositoryID)
	assert.Equal(t, "https://reports.test/1", r.ReportLocation)
	assert.Equal(t, epoch.Unix(), r.CreatedAt)
	assert.Nil(t, r.BadgeMint)

	want, err := f.svc.Deriver().Report(alice, "repo1")
	require.NoError(t, err)
	assert.Equal(t, want, r.Address)

	got, found, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)
	assert.Equal(t, domain.StateReported, got.State())
}

func TestStoreReportDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.StoreReport(ctx, alice, "repo1", "L1")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	_, err = f.svc.StoreReport(ctx, alice, "repo1", "L2")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	got, _, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestStoreReportSameRepositoryDifferentReporters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ra, err := f.svc.StoreReport(ctx, alice, "repo1", "L")
	require.NoError(t, err)
	rb, err := f.svc.StoreReport(ctx, bob, "repo1", "L")
	require.NoError(t, err)
	assert.NotEqual(t, ra.Address, rb.Address)
}

func TestStoreReportCapacity(t *testing.T) {
	ctx := context.Background()
	limits := reports.DefaultLimits

	t.Run("location too long", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StoreReport(ctx, alice, "repo1", strings.Repeat("x", limits.MaxReportLocationLen+1))
		require.ErrorIs(t, err, domain.ErrCapacityExceeded)
		assert.Equal(t, 0, f.backend.Len())

		_, found, err := f.svc.GetReport(ctx, alice, "repo1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("repository id too long", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StoreReport(ctx, alice, strings.Repeat("r", limits.MaxRepositoryIDLen+1), "L")
		require.ErrorIs(t, err, domain.ErrCapacityExceeded)
		assert.Equal(t, 0, f.backend.Len())
	})

	t.Run("at the bounds", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StoreReport(ctx, alice,
			strings.Repeat("r", limits.MaxRepositoryIDLen),
			strings.Repeat("x", limits.MaxReportLocationLen))
		require.NoError(t, err)
	})
}

func TestStoreReportLongRepositoryIDsAreDistinct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	prefix := strings.Repeat("github.com/acme/", 6)

	r1, err := f.svc.StoreReport(ctx, alice, prefix+"one", "L")
	require.NoError(t, err)
	r2, err := f.svc.StoreReport(ctx, alice, prefix+"two", "L")
	require.NoError(t, err)
	assert.NotEqual(t, r1.Address, r2.Address)
}

func TestIssueBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	stored, err := f.svc.StoreReport(ctx, alice, "acme/widgets", "L")
	require.NoError(t, err)

	report, badge, err := f.svc.IssueBadge(ctx, alice, "acme/widgets", ports.BadgeSpec{})
	require.NoError(t, err)
	require.NotNil(t, report.BadgeMint)
	assert.Equal(t, badge.Mint, *report.BadgeMint)
	assert.Equal(t, stored.Address, report.Address)
	assert.Equal(t, stored.CreatedAt, report.CreatedAt)
	assert.Equal(t, "Security Badge - widgets", badge.Title)
	assert.Equal(t, badges.DefaultSymbol, badge.Symbol)
	assert.Equal(t, "https://breachx.test/v1/reports/"+report.Address.String()+"/badge.json", badge.URI)

	want, err := f.svc.Deriver().Badge(alice, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, want.Mint, badge.Mint)
	assert.Equal(t, want.Holding, badge.Holding)
	assert.Equal(t, want.Metadata, badge.Metadata)

	got, _, err := f.svc.GetReport(ctx, alice, "acme/widgets")
	require.NoError(t, err)
	assert.Equal(t, domain.StateBadged, got.State())
}

func TestIssueBadgeWithoutReport(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.IssueBadge(context.Background(), alice, "missing", ports.BadgeSpec{Title: "T"})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, f.backend.Len())
}

func TestIssueBadgeTwiceCollides(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StoreReport(ctx, alice, "repo1", "L")
	require.NoError(t, err)
	first, _, err := f.svc.IssueBadge(ctx, alice, "repo1", ports.BadgeSpec{})
	require.NoError(t, err)
	accounts := f.backend.Len()

	_, _, err = f.svc.IssueBadge(ctx, alice, "repo1", ports.BadgeSpec{})
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Equal(t, accounts, f.backend.Len())

	got, _, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	assert.Equal(t, first, got)
}

func TestIssueBadgeFailureLeavesReportUnbadged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.StoreReport(ctx, alice, "repo1", "L")
	require.NoError(t, err)
	accounts := f.backend.Len()

	_, _, err = f.svc.IssueBadge(ctx, alice, "repo1", ports.BadgeSpec{Title: strings.Repeat("T", metadata.MaxNameLen+1)})
	require.ErrorIs(t, err, metadata.ErrNameTooLong)
	assert.Equal(t, accounts, f.backend.Len())

	got, _, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateReported, got.State())
}

func TestStoreReportAndIssueBadge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, badge, err := f.svc.StoreReportAndIssueBadge(ctx, alice, "repo1", "L", ports.BadgeSpec{Title: "T", Symbol: "S", ContentURI: "u"})
	require.NoError(t, err)
	assert.Equal(t, epoch.Unix(), report.CreatedAt)
	require.NotNil(t, report.BadgeMint)
	assert.Equal(t, badge.Mint, *report.BadgeMint)

	got, found, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, report, got)
}

func TestStoreReportAndIssueBadgeIsAtomic(t *testing.T) {
	ctx := context.Background()

	t.Run("metadata failure discards the report", func(t *testing.T) {
		f := newFixture(t)
		_, _, err := f.svc.StoreReportAndIssueBadge(ctx, alice, "repo1", "L",
			ports.BadgeSpec{Symbol: strings.Repeat("S", metadata.MaxSymbolLen+1)})
		require.ErrorIs(t, err, metadata.ErrSymbolTooLong)
		assert.Equal(t, 0, f.backend.Len())

		_, found, err := f.svc.GetReport(ctx, alice, "repo1")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("existing report", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.StoreReport(ctx, alice, "repo1", "L")
		require.NoError(t, err)

		_, _, err = f.svc.StoreReportAndIssueBadge(ctx, alice, "repo1", "L", ports.BadgeSpec{})
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
		assert.Equal(t, 1, f.backend.Len())
	})
}

func TestListReports(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.svc.ListReports(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)

	for _, id := range []string{"a", "b", "c"} {
		_, err := f.svc.StoreReport(ctx, alice, id, "L")
		require.NoError(t, err)
	}
	_, err = f.svc.StoreReport(ctx, bob, "a", "L")
	require.NoError(t, err)
	_, _, err = f.svc.IssueBadge(ctx, alice, "b", ports.BadgeSpec{})
	require.NoError(t, err)

	list, err := f.svc.ListReports(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 3)
	ids := make([]string, 0, len(list))
	for _, r := range list {
		assert.Equal(t, alice, r.Reporter)
		ids = append(ids, r.RepositoryID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, ids)
}

func TestGetReportAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r, err := f.svc.StoreReport(ctx, alice, "repo1", "L")
	require.NoError(t, err)

	got, found, err := f.svc.GetReportAt(ctx, r.Address)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, r, got)

	_, found, err = f.svc.GetReportAt(ctx, domain.Address{0xff})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetReportAtRejectsForeignAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, badge, err := f.svc.StoreReportAndIssueBadge(ctx, alice, "repo1", "L", ports.BadgeSpec{})
	require.NoError(t, err)

	_, _, err = f.svc.GetReportAt(ctx, badge.Mint)
	require.ErrorIs(t, err, reports.ErrNotAReport)
	assert.Equal(t, domain.KindInvalidArgument, domain.KindOf(err))
}

func TestBadgeDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.BadgeDocument(ctx, domain.Address{0xff})
	require.ErrorIs(t, err, domain.ErrNotFound)

	report, badge, err := f.svc.StoreReportAndIssueBadge(ctx, alice, "acme/widgets", "L", ports.BadgeSpec{})
	require.NoError(t, err)

	doc, err := f.svc.BadgeDocument(ctx, report.Address)
	require.NoError(t, err)
	assert.Equal(t, badge.Title, doc.Name)
	assert.Equal(t, badge.Symbol, doc.Symbol)
	assert.Equal(t, "https://breachx.test/badge.png", doc.Image)
	assert.Contains(t, doc.Description, "acme/widgets")
	assert.Contains(t, doc.Description, "2023-11-14")
}

func TestBadgeDocumentForUnbadgedReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	report, err := f.svc.StoreReport(ctx, alice, "acme/widgets", "L")
	require.NoError(t, err)

	doc, err := f.svc.BadgeDocument(ctx, report.Address)
	require.NoError(t, err)
	assert.Equal(t, "BreachX Security Badge - widgets", doc.Name)
	assert.Equal(t, badges.DefaultSymbol, doc.Symbol)
}

func TestConcurrentStoreReportHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const n = 8

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = f.svc.StoreReport(ctx, alice, "repo1", fmt.Sprintf("https://reports.test/%d", i))
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "more than one report stored")
			winner = i
			continue
		}
		require.ErrorIs(t, err, domain.ErrAlreadyExists)
	}
	require.NotEqual(t, -1, winner)

	got, found, err := f.svc.GetReport(ctx, alice, "repo1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, fmt.Sprintf("https://reports.test/%d", winner), got.ReportLocation)
}
