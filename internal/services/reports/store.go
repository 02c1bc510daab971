// Package reports manages report records at derived addresses.
package reports

import (
	"context"
	"fmt"

	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ports"
)

// Limits bounds the encoded length, in bytes, of the two string fields.
type Limits struct {
	MaxRepositoryIDLen   int
	MaxReportLocationLen int
}

// DefaultLimits are the bounds of the current deployment. LegacyLimits are the
// bounds of the first one.
var (
	DefaultLimits = Limits{MaxRepositoryIDLen: 200, MaxReportLocationLen: 1000}
	LegacyLimits  = Limits{MaxRepositoryIDLen: 50, MaxReportLocationLen: 200}
)

// Store creates and reads reports. It is stateless; every call works on the
// ledger of the caller's unit of work.
type Store struct {
	deriver address.Deriver
	limits  Limits
}

func New(d address.Deriver, limits Limits) *Store {
	return &Store{deriver: d, limits: limits}
}

func (s *Store) Address(owner domain.Address, repositoryID string) (domain.Address, error) {
	addr, err := s.deriver.Report(owner, repositoryID)
	if err != nil {
		return domain.Address{}, domain.E("reports.Address", domain.KindInvalidArgument, err)
	}
	return addr, nil
}

// Create allocates the report at its derived address and writes it. The
// allocation is the duplicate guard: a second Create for the same owner and
// repository id fails with domain.ErrAlreadyExists. Fields longer than their
// bound fail with domain.ErrCapacityExceeded.
func (s *Store) Create(ctx context.Context, env ports.Env, owner domain.Address, repositoryID, reportLocation string) (domain.Report, error) {
	const op = "reports.Create"
	addr, err := s.Address(owner, repositoryID)
	if err != nil {
		return domain.Report{}, err
	}
	if err := env.Ledger.Allocate(ctx, addr, Space(s.limits), s.deriver.Program()); err != nil {
		return domain.Report{}, err
	}
	if err := s.checkBounds(repositoryID, reportLocation); err != nil {
		return domain.Report{}, domain.E(op, domain.KindCapacityExceeded, err)
	}
	r := domain.Report{
		Address:        addr,
		RepositoryID:   repositoryID,
		ReportLocation: reportLocation,
		Reporter:       owner,
		CreatedAt:      env.Now,
	}
	if err := env.Ledger.Write(ctx, addr, encode(r)); err != nil {
		return domain.Report{}, err
	}
	return r, nil
}

// Get reads the report for owner and repository id.
func (s *Store) Get(ctx context.Context, l ports.Ledger, owner domain.Address, repositoryID string) (domain.Report, bool, error) {
	addr, err := s.Address(owner, repositoryID)
	if err != nil {
		return domain.Report{}, false, err
	}
	return s.GetAt(ctx, l, addr)
}

func (s *Store) GetAt(ctx context.Context, l ports.Ledger, addr domain.Address) (domain.Report, bool, error) {
	const op = "reports.Get"
	acct, found, err := l.Read(ctx, addr)
	if err != nil || !found {
		return domain.Report{}, false, err
	}
	if acct.Owner != s.deriver.Program() {
		return domain.Report{}, false, domain.E(op, domain.KindInvalidArgument, fmt.Errorf("%w: %s", ErrNotAReport, addr))
	}
	r, err := decode(addr, acct.Data)
	if err != nil {
		return domain.Report{}, false, domain.E(op, domain.KindDependencyFailure, err)
	}
	return r, true, nil
}

// Save rewrites an existing report in place.
func (s *Store) Save(ctx context.Context, l ports.Ledger, r domain.Report) error {
	return l.Write(ctx, r.Address, encode(r))
}

// List returns every report created by reporter.
func (s *Store) List(ctx context.Context, l ports.Ledger, reporter domain.Address) ([]domain.Report, error) {
	accts, err := l.Owned(ctx, s.deriver.Program())
	if err != nil {
		return nil, err
	}
	out := []domain.Report{}
	for _, a := range accts {
		r, err := decode(a.Address, a.Data)
		if err != nil {
			continue
		}
		if r.Reporter == reporter {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) checkBounds(repositoryID, reportLocation string) error {
	if n := len(repositoryID); n > s.limits.MaxRepositoryIDLen {
		return fmt.Errorf("repository id is %d bytes, limit %d", n, s.limits.MaxRepositoryIDLen)
	}
	if n := len(reportLocation); n > s.limits.MaxReportLocationLen {
		return fmt.Errorf("report location is %d bytes, limit %d", n, s.limits.MaxReportLocationLen)
	}
	return nil
}
