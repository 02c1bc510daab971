// Package telemetry installs the OpenTelemetry tracer and meter providers for
// the server. Finished spans and collected metrics are written to the process
// logger.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.uber.org/zap"
)

const serviceName = "breachx"

// NewTracerProvider returns a provider that batches spans into a zap-backed
// exporter. Callers own Shutdown.
func NewTracerProvider(log *zap.Logger) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(&LogExporter{log: log}),
		sdktrace.WithResource(newResource(log)),
	)
}

func newResource(log *zap.Logger) *resource.Resource {
	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String(serviceName)),
	)
	if err != nil {
		log.Warn("failed to create resource, using default", zap.Error(err))
		return resource.Default()
	}
	return res
}

// LogExporter writes each span as one debug log line.
type LogExporter struct {
	log *zap.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

func NewLogExporter(log *zap.Logger) *LogExporter { return &LogExporter{log: log} }

func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, s := range spans {
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.Stringer("trace_id", s.SpanContext().TraceID()),
			zap.Stringer("span_id", s.SpanContext().SpanID()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", s.Status().Code.String()),
		}
		if d := s.Status().Description; d != "" {
			fields = append(fields, zap.String("status_description", d))
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String("attr."+string(kv.Key), kv.Value.Emit()))
		}
		e.log.Debug("span", fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error { return nil }
