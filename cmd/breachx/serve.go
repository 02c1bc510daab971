package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadapter "breachx/internal/adapters/http"
	"breachx/internal/app"
	"breachx/internal/telemetry"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	tp := telemetry.NewTracerProvider(c.log)
	otel.SetTracerProvider(tp)
	mp := telemetry.NewMeterProvider(c.log, c.cfg.MetricsInterval)
	otel.SetMeterProvider(mp)
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			c.log.Warn("tracer shutdown", zap.Error(err))
		}
		if err := mp.Shutdown(sctx); err != nil {
			c.log.Warn("meter shutdown", zap.Error(err))
		}
	}()

	reg, err := app.Open(ctx, c.cfg, c.log, app.Telemetry{Tracer: tp, Meter: mp})
	if err != nil {
		return err
	}
	defer reg.Close()

	srv := &http.Server{
		Addr:              c.cfg.ListenAddr,
		Handler:           httpadapter.New(reg, c.log).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.log.Info("listening",
			zap.String("addr", c.cfg.ListenAddr),
			zap.String("backend", c.cfg.Backend),
			zap.String("program_id", c.cfg.ProgramID))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c.log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), c.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	return g.Wait()
}
