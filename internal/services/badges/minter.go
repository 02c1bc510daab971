// Package badges issues unit-supply tokens bound to reports.
package badges

import (
	"context"
	"errors"

	"breachx/internal/domain"
	"breachx/internal/ports"
)

// ReportWriter persists the badge reference on a report.
type ReportWriter interface {
	Save(ctx context.Context, l ports.Ledger, r domain.Report) error
}

// Request names the report and the three addresses the badge will occupy.
type Request struct {
	Report     domain.Report
	Mint       domain.Address
	Holding    domain.Address
	Metadata   domain.Address
	Title      string
	Symbol     string
	ContentURI string
}

type Minter struct {
	reports ReportWriter
}

func NewMinter(reports ReportWriter) *Minter { return &Minter{reports: reports} }

// IssueBadge creates the mint, issues one unit to the reporter's holding
// account, attaches the metadata record and points the report at the mint.
//
// The steps must run inside one unit of work: the mint precedes both the unit
// issuance and the metadata record, and nothing of a failed sequence may
// remain. A report that already carries a badge is overwritten when called
// with a different mint address.
func (m *Minter) IssueBadge(ctx context.Context, env ports.Env, req Request) (domain.Report, domain.Badge, error) {
	const op = "badges.IssueBadge"
	reporter := req.Report.Reporter

	if err := env.Tokens.CreateMint(ctx, req.Mint, 0, reporter); err != nil {
		return domain.Report{}, domain.Badge{}, dependency(op, err)
	}
	if err := env.Tokens.MintTo(ctx, req.Mint, req.Holding, reporter, reporter, 1); err != nil {
		return domain.Report{}, domain.Badge{}, dependency(op, err)
	}
	rec := domain.MetadataRecord{
		Mint:            req.Mint,
		Name:            req.Title,
		Symbol:          req.Symbol,
		URI:             req.ContentURI,
		MintAuthority:   reporter,
		UpdateAuthority: reporter,
	}
	if err := env.Metadata.CreateRecord(ctx, req.Metadata, rec); err != nil {
		return domain.Report{}, domain.Badge{}, dependency(op, err)
	}

	report := req.Report
	mint := req.Mint
	report.BadgeMint = &mint
	if err := m.reports.Save(ctx, env.Ledger, report); err != nil {
		return domain.Report{}, domain.Badge{}, dependency(op, err)
	}
	return report, domain.Badge{
		Mint:     req.Mint,
		Holding:  req.Holding,
		Metadata: req.Metadata,
		Title:    req.Title,
		Symbol:   req.Symbol,
		URI:      req.ContentURI,
	}, nil
}

// dependency keeps classified errors and marks everything else as a
// collaborator failure.
func dependency(op string, err error) error {
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.E(op, domain.KindDependencyFailure, err)
}
