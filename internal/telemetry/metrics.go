package telemetry

import (
	"context"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
)

// NewMeterProvider returns a provider that collects every interval and hands
// the snapshot to a zap-backed exporter. Callers own Shutdown.
func NewMeterProvider(log *zap.Logger, interval time.Duration) *sdkmetric.MeterProvider {
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(NewMetricLogExporter(log), sdkmetric.WithInterval(interval))),
		sdkmetric.WithResource(newResource(log)),
	)
}

// MetricLogExporter writes each integer sum data point as one debug log line.
// Other aggregations are skipped.
type MetricLogExporter struct {
	log *zap.Logger
}

var _ sdkmetric.Exporter = (*MetricLogExporter)(nil)

func NewMetricLogExporter(log *zap.Logger) *MetricLogExporter { return &MetricLogExporter{log: log} }

func (e *MetricLogExporter) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (e *MetricLogExporter) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (e *MetricLogExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				fields := []zap.Field{
					zap.String("metric", m.Name),
					zap.String("scope", sm.Scope.Name),
					zap.Int64("value", dp.Value),
				}
				for _, kv := range dp.Attributes.ToSlice() {
					fields = append(fields, zap.String("attr."+string(kv.Key), kv.Value.Emit()))
				}
				e.log.Debug("metric", fields...)
			}
		}
	}
	return nil
}

func (e *MetricLogExporter) ForceFlush(context.Context) error { return nil }

func (e *MetricLogExporter) Shutdown(context.Context) error { return nil }
