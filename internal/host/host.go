// Package host runs registry invocations as all-or-nothing units of work.
//
// Every collaborator an invocation touches (ledger, token issuer, metadata
// registry) is bound to a single backend transaction, so a failure at any step
// discards the effects of every earlier step.
package host

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"breachx/internal/domain"
	"breachx/internal/ledger"
	"breachx/internal/ports"
	"breachx/internal/programs/metadata"
	"breachx/internal/programs/token"
)

const tracerName = "breachx/internal/host"

// TokenFactory and MetadataFactory bind a collaborator to a unit's ledger.
type (
	TokenFactory    func(ports.Ledger) ports.TokenIssuer
	MetadataFactory func(ports.Ledger) ports.MetadataRegistry
)

type Host struct {
	backend  ports.AccountBackend
	backoff  func() retry.Backoff
	clock    clockwork.Clock
	log      *zap.Logger
	tracer   trace.Tracer
	tokens   TokenFactory
	metadata MetadataFactory
}

var _ ports.Host = (*Host)(nil)

type Option func(*Host)

// WithClock sets the trusted clock source.
func WithClock(c clockwork.Clock) Option { return func(h *Host) { h.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(h *Host) { h.log = l } }

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Host) { h.tracer = tp.Tracer(tracerName) }
}

// WithConflictRetries sets how many times a unit that lost an optimistic
// commit race is rerun.
func WithConflictRetries(n uint64, base time.Duration) Option {
	return func(h *Host) {
		h.backoff = func() retry.Backoff {
			return retry.WithMaxRetries(n, retry.WithJitterPercent(20, retry.NewExponential(base)))
		}
	}
}

// WithTokenIssuer replaces the token collaborator.
func WithTokenIssuer(f TokenFactory) Option { return func(h *Host) { h.tokens = f } }

// WithMetadataRegistry replaces the metadata collaborator.
func WithMetadataRegistry(f MetadataFactory) Option { return func(h *Host) { h.metadata = f } }

func defaultBackoff() retry.Backoff {
	return retry.WithMaxRetries(3, retry.WithJitterPercent(20, retry.NewExponential(10*time.Millisecond)))
}

func New(backend ports.AccountBackend, opts ...Option) *Host {
	h := &Host{
		backend: backend,
		backoff: defaultBackoff,
		clock:   clockwork.NewRealClock(),
		log:     zap.NewNop(),
		tracer:  otel.Tracer(tracerName),
		tokens: func(l ports.Ledger) ports.TokenIssuer {
			return token.New(l)
		},
		metadata: func(l ports.Ledger) ports.MetadataRegistry {
			return metadata.New(l)
		},
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Execute runs fn in one backend transaction. The clock is read once, before
// the unit starts, so every effect of the unit sees the same timestamp.
func (h *Host) Execute(ctx context.Context, op string, fn func(ctx context.Context, env ports.Env) error) error {
	id := uuid.NewString()
	ctx, span := h.tracer.Start(ctx, op, trace.WithAttributes(attribute.String("invocation.id", id)))
	defer span.End()

	started := h.clock.Now()
	log := h.log.With(zap.String("invocation_id", id), zap.String("operation", op))

	attempts := 0
	err := retry.Do(ctx, h.backoff(), func(ctx context.Context) error {
		attempts++
		err := h.backend.Atomically(ctx, func(ctx context.Context, tx ports.AccountTx) error {
			l := ledger.New(tx)
			return fn(ctx, ports.Env{
				InvocationID: id,
				Now:          started.Unix(),
				Ledger:       l,
				Tokens:       h.tokens(l),
				Metadata:     h.metadata(l),
			})
		})
		if errors.Is(err, ports.ErrConflict) {
			log.Debug("unit of work lost commit race", zap.Int("attempt", attempts))
			return retry.RetryableError(err)
		}
		return err
	})
	elapsed := h.clock.Since(started)
	if err != nil {
		var de *domain.Error
		if !errors.As(err, &de) {
			err = domain.E(op, domain.KindDependencyFailure, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		log.Info("unit of work aborted",
			zap.String("kind", string(domain.KindOf(err))),
			zap.Int("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return err
	}
	log.Debug("unit of work committed", zap.Duration("elapsed", elapsed.Round(time.Microsecond)))
	return nil
}
