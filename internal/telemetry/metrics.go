package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/greenhouse-labs/catalog-bff/sync"

// Record outcomes reported by RecordRecords
const (
	OutcomeKept     = "kept"
	OutcomeDropped  = "dropped"
	OutcomeStored   = "stored"
	OutcomeRejected = "rejected"
)

// SyncMetrics holds the OpenTelemetry instruments for catalog sync runs
type SyncMetrics struct {
	syncDuration metric.Float64Histogram
	records      metric.Int64Counter
	pages        metric.Int64Counter
	itemsTotal   metric.Int64Gauge
	skipped      metric.Int64Counter
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"catalog_sync_duration_seconds",
		metric.WithDescription("Duration of catalog sync runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 5, 10, 30, 60, 120, 300, 600, 900),
	)
	if err != nil {
		return nil, err
	}

	records, err := meter.Int64Counter(
		"catalog_sync_records",
		metric.WithDescription("Catalog records processed by sync runs, by outcome"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	pages, err := meter.Int64Counter(
		"catalog_upstream_pages",
		metric.WithDescription("Upstream catalog pages fetched"),
		metric.WithUnit("{page}"),
	)
	if err != nil {
		return nil, err
	}

	itemsTotal, err := meter.Int64Gauge(
		"catalog_items_total",
		metric.WithDescription("Number of items in the stored catalog snapshot"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	skipped, err := meter.Int64Counter(
		"catalog_sync_skipped",
		metric.WithDescription("Sync triggers skipped because a run was already in progress"),
		metric.WithUnit("{trigger}"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration: syncDuration,
		records:      records,
		pages:        pages,
		itemsTotal:   itemsTotal,
		skipped:      skipped,
	}, nil
}

// RecordSyncDuration records the duration of a sync run
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
}

// RecordRecords adds count records with the given outcome
func (m *SyncMetrics) RecordRecords(ctx context.Context, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.Add(ctx, int64(count), metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordPages adds fetched upstream pages
func (m *SyncMetrics) RecordPages(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.pages.Add(ctx, int64(count))
}

// RecordItemsTotal records the size of the stored snapshot
func (m *SyncMetrics) RecordItemsTotal(ctx context.Context, count int) {
	if m == nil {
		return
	}
	m.itemsTotal.Record(ctx, int64(count))
}

// RecordSkipped counts a trigger skipped by the overlap guard
func (m *SyncMetrics) RecordSkipped(ctx context.Context, trigger string) {
	if m == nil {
		return
	}
	m.skipped.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}
