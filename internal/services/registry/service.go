// Package registry is the externally callable surface: store a report, issue
// a badge for it, or both in one unit of work.
package registry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"breachx/internal/address"
	"breachx/internal/domain"
	"breachx/internal/ports"
	"breachx/internal/services/badges"
	"breachx/internal/services/reports"
)

const meterName = "breachx/internal/services/registry"

type Config struct {
	Program  domain.Address
	Limits   reports.Limits
	Defaults badges.Defaults
	// Meter records the invocation counters. Nil uses the global provider.
	Meter metric.MeterProvider
}

type Service struct {
	host     ports.Host
	deriver  address.Deriver
	reports  *reports.Store
	minter   *badges.Minter
	defaults badges.Defaults
	log      *zap.Logger

	stored metric.Int64Counter
	issued metric.Int64Counter
	failed metric.Int64Counter
}

var _ ports.Registry = (*Service)(nil)

func New(h ports.Host, cfg Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	d := address.NewDeriver(cfg.Program)
	rs := reports.New(d, cfg.Limits)
	s := &Service{
		host:     h,
		deriver:  d,
		reports:  rs,
		minter:   badges.NewMinter(rs),
		defaults: cfg.Defaults,
		log:      log,
	}

	mp := cfg.Meter
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(meterName)
	var err error
	if s.stored, err = meter.Int64Counter("breachx.reports.stored", metric.WithDescription("Reports created")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if s.issued, err = meter.Int64Counter("breachx.badges.issued", metric.WithDescription("Badges issued")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if s.failed, err = meter.Int64Counter("breachx.invocations.failed", metric.WithDescription("Aborted invocations by kind")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	return s, nil
}

// Deriver exposes the address scheme the service stores under.
func (s *Service) Deriver() address.Deriver { return s.deriver }

func (s *Service) StoreReport(ctx context.Context, reporter domain.Address, repositoryID, reportLocation string) (domain.Report, error) {
	const op = "registry.StoreReport"
	var out domain.Report
	err := s.host.Execute(ctx, op, func(ctx context.Context, env ports.Env) error {
		r, err := s.reports.Create(ctx, env, reporter, repositoryID, reportLocation)
		if err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return domain.Report{}, s.fail(ctx, op, err, reporter, repositoryID)
	}
	s.stored.Add(ctx, 1)
	s.log.Info("report stored",
		zap.Stringer("reporter", reporter),
		zap.String("repository_id", repositoryID),
		zap.Stringer("report", out.Address))
	return out, nil
}

func (s *Service) IssueBadge(ctx context.Context, reporter domain.Address, repositoryID string, spec ports.BadgeSpec) (domain.Report, domain.Badge, error) {
	const op = "registry.IssueBadge"
	var (
		report domain.Report
		badge  domain.Badge
	)
	err := s.host.Execute(ctx, op, func(ctx context.Context, env ports.Env) error {
		r, found, err := s.reports.Get(ctx, env.Ledger, reporter, repositoryID)
		if err != nil {
			return err
		}
		if !found {
			return domain.E(op, domain.KindNotFound, fmt.Errorf("no report for repository %q", repositoryID))
		}
		report, badge, err = s.issue(ctx, env, r, spec)
		return err
	})
	if err != nil {
		return domain.Report{}, domain.Badge{}, s.fail(ctx, op, err, reporter, repositoryID)
	}
	s.issued.Add(ctx, 1)
	s.logBadge(report, badge)
	return report, badge, nil
}

func (s *Service) StoreReportAndIssueBadge(ctx context.Context, reporter domain.Address, repositoryID, reportLocation string, spec ports.BadgeSpec) (domain.Report, domain.Badge, error) {
	const op = "registry.StoreReportAndIssueBadge"
	var (
		report domain.Report
		badge  domain.Badge
	)
	err := s.host.Execute(ctx, op, func(ctx context.Context, env ports.Env) error {
		r, err := s.reports.Create(ctx, env, reporter, repositoryID, reportLocation)
		if err != nil {
			return err
		}
		report, badge, err = s.issue(ctx, env, r, spec)
		return err
	})
	if err != nil {
		return domain.Report{}, domain.Badge{}, s.fail(ctx, op, err, reporter, repositoryID)
	}
	s.stored.Add(ctx, 1)
	s.issued.Add(ctx, 1)
	s.logBadge(report, badge)
	return report, badge, nil
}

func (s *Service) GetReport(ctx context.Context, reporter domain.Address, repositoryID string) (domain.Report, bool, error) {
	var (
		out   domain.Report
		found bool
	)
	err := s.host.Execute(ctx, "registry.GetReport", func(ctx context.Context, env ports.Env) error {
		var err error
		out, found, err = s.reports.Get(ctx, env.Ledger, reporter, repositoryID)
		return err
	})
	return out, found, err
}

func (s *Service) GetReportAt(ctx context.Context, addr domain.Address) (domain.Report, bool, error) {
	var (
		out   domain.Report
		found bool
	)
	err := s.host.Execute(ctx, "registry.GetReportAt", func(ctx context.Context, env ports.Env) error {
		var err error
		out, found, err = s.reports.GetAt(ctx, env.Ledger, addr)
		return err
	})
	return out, found, err
}

func (s *Service) ListReports(ctx context.Context, reporter domain.Address) ([]domain.Report, error) {
	var out []domain.Report
	err := s.host.Execute(ctx, "registry.ListReports", func(ctx context.Context, env ports.Env) error {
		var err error
		out, err = s.reports.List(ctx, env.Ledger, reporter)
		return err
	})
	return out, err
}

// BadgeDocument renders the off-chain description of the badge on the report
// at addr.
func (s *Service) BadgeDocument(ctx context.Context, addr domain.Address) (domain.BadgeDocument, error) {
	const op = "registry.BadgeDocument"
	var doc domain.BadgeDocument
	err := s.host.Execute(ctx, op, func(ctx context.Context, env ports.Env) error {
		r, found, err := s.reports.GetAt(ctx, env.Ledger, addr)
		if err != nil {
			return err
		}
		if !found {
			return domain.E(op, domain.KindNotFound, fmt.Errorf("no report at %s", addr))
		}
		var rec domain.MetadataRecord
		if r.BadgeMint != nil {
			metaAddr, err := address.Metadata(*r.BadgeMint)
			if err != nil {
				return domain.E(op, domain.KindDependencyFailure, err)
			}
			if rec, _, err = env.Metadata.Record(ctx, metaAddr); err != nil {
				return err
			}
		}
		doc = s.defaults.Document(r, rec)
		return nil
	})
	return doc, err
}

// issue derives the badge addresses from the report and runs the minter.
func (s *Service) issue(ctx context.Context, env ports.Env, r domain.Report, spec ports.BadgeSpec) (domain.Report, domain.Badge, error) {
	ba, err := s.deriver.Badge(r.Reporter, r.RepositoryID)
	if err != nil {
		return domain.Report{}, domain.Badge{}, domain.E("registry.issue", domain.KindInvalidArgument, err)
	}
	spec = s.defaults.Apply(r, spec)
	return s.minter.IssueBadge(ctx, env, badges.Request{
		Report:     r,
		Mint:       ba.Mint,
		Holding:    ba.Holding,
		Metadata:   ba.Metadata,
		Title:      spec.Title,
		Symbol:     spec.Symbol,
		ContentURI: spec.ContentURI,
	})
}

func (s *Service) fail(ctx context.Context, op string, err error, reporter domain.Address, repositoryID string) error {
	kind := domain.KindOf(err)
	s.failed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("kind", string(kind))))
	s.log.Warn("invocation failed",
		zap.String("operation", op),
		zap.String("kind", string(kind)),
		zap.Stringer("reporter", reporter),
		zap.String("repository_id", repositoryID),
		zap.Error(err))
	return err
}

func (s *Service) logBadge(r domain.Report, b domain.Badge) {
	s.log.Info("badge issued",
		zap.Stringer("reporter", r.Reporter),
		zap.String("repository_id", r.RepositoryID),
		zap.Stringer("report", r.Address),
		zap.Stringer("mint", b.Mint),
		zap.Stringer("holding", b.Holding),
		zap.Stringer("metadata", b.Metadata))
}
