package observability

import (
	"context"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/kestrelpay/banking-backend"

// Enabled reports whether metric export is switched on for this process.
func Enabled() bool {
	v := strings.TrimSpace(os.Getenv("METRICS_ENABLED"))
	if v == "" {
		return false
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

// Setup installs a periodic stdout exporter as the global meter provider.
// Returns a shutdown func for process teardown.
func Setup(ctx context.Context, interval time.Duration) (func(context.Context) error, error) {
	exporter, err := stdoutmetric.New()
	if err != nil {
		return nil, err
	}
	if interval <= 0 {
		interval = time.Minute
	}
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}

// Metrics holds the instruments for aggregate writes and dispatcher cycles.
type Metrics struct {
	opDuration     metric.Float64Histogram
	opTotal        metric.Int64Counter
	conflictTotal  metric.Int64Counter
	retryTotal     metric.Int64Counter
	cycleDuration  metric.Float64Histogram
	cycleFetched   metric.Int64Counter
	cyclePublished metric.Int64Counter
	cycleFailed    metric.Int64Counter
	cycleAbandoned metric.Int64Counter
}

func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	opDuration, err := meter.Float64Histogram("aggregate_operation_seconds",
		metric.WithDescription("Aggregate write operation duration"))
	if err != nil {
		return nil, err
	}
	opTotal, err := meter.Int64Counter("aggregate_operation_total",
		metric.WithDescription("Aggregate write operations by op and status"))
	if err != nil {
		return nil, err
	}
	conflictTotal, err := meter.Int64Counter("aggregate_conflict_total",
		metric.WithDescription("Optimistic concurrency conflicts by op"))
	if err != nil {
		return nil, err
	}
	retryTotal, err := meter.Int64Counter("aggregate_retryable_total",
		metric.WithDescription("Retryable aggregate failures by op"))
	if err != nil {
		return nil, err
	}
	cycleDuration, err := meter.Float64Histogram("outbox_cycle_seconds",
		metric.WithDescription("Outbox dispatch cycle duration"))
	if err != nil {
		return nil, err
	}
	cycleFetched, err := meter.Int64Counter("outbox_fetched_total",
		metric.WithDescription("Outbox messages fetched for dispatch"))
	if err != nil {
		return nil, err
	}
	cyclePublished, err := meter.Int64Counter("outbox_published_total",
		metric.WithDescription("Outbox messages published downstream"))
	if err != nil {
		return nil, err
	}
	cycleFailed, err := meter.Int64Counter("outbox_failed_total",
		metric.WithDescription("Outbox publish failures pending retry"))
	if err != nil {
		return nil, err
	}
	cycleAbandoned, err := meter.Int64Counter("outbox_abandoned_total",
		metric.WithDescription("Outbox messages that became terminal"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		opDuration:     opDuration,
		opTotal:        opTotal,
		conflictTotal:  conflictTotal,
		retryTotal:     retryTotal,
		cycleDuration:  cycleDuration,
		cycleFetched:   cycleFetched,
		cyclePublished: cyclePublished,
		cycleFailed:    cycleFailed,
		cycleAbandoned: cycleAbandoned,
	}, nil
}

func (m *Metrics) ObserveAggregateOperation(name, status string, dur time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("op", name),
		attribute.String("status", status),
	)
	ctx := context.Background()
	m.opTotal.Add(ctx, 1, attrs)
	m.opDuration.Record(ctx, dur.Seconds(), attrs)
}

func (m *Metrics) IncAggregateConflict(name string) {
	if m == nil {
		return
	}
	m.conflictTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", name)))
}

func (m *Metrics) IncAggregateRetry(name string) {
	if m == nil {
		return
	}
	m.retryTotal.Add(context.Background(), 1, metric.WithAttributes(attribute.String("op", name)))
}

func (m *Metrics) ObserveDispatchCycle(fetched, published, failed, abandoned int, dur time.Duration) {
	if m == nil {
		return
	}
	ctx := context.Background()
	m.cycleFetched.Add(ctx, int64(fetched))
	m.cyclePublished.Add(ctx, int64(published))
	m.cycleFailed.Add(ctx, int64(failed))
	m.cycleAbandoned.Add(ctx, int64(abandoned))
	m.cycleDuration.Record(ctx, dur.Seconds())
}
