package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// IngestionMetrics tracks the webhook ingestion funnel: what arrived, what
// was rejected at which gate, and how resolution and retries went.
type IngestionMetrics struct {
	webhooksReceived  metric.Int64Counter
	webhooksRejected  metric.Int64Counter
	duplicatesSkipped metric.Int64Counter
	entitiesResolved  metric.Int64Counter
	conflictsQueued   metric.Int64Counter
	retriesScheduled  metric.Int64Counter
	deadLettersTotal  metric.Int64Counter
	ingestionDuration metric.Float64Histogram
}

// NewIngestionMetrics registers the ingestion instruments on a meter
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	m := &IngestionMetrics{}
	var err error

	if m.webhooksReceived, err = meter.Int64Counter("webhooks_received_total",
		metric.WithDescription("Webhook envelopes accepted by the transport layer")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.webhooksRejected, err = meter.Int64Counter("webhooks_rejected_total",
		metric.WithDescription("Webhook envelopes rejected before processing, by reason")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.duplicatesSkipped, err = meter.Int64Counter("webhooks_duplicates_total",
		metric.WithDescription("Redelivered envelopes acknowledged without processing")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.entitiesResolved, err = meter.Int64Counter("entities_resolved_total",
		metric.WithDescription("Entities written after conflict resolution, by strategy")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.conflictsQueued, err = meter.Int64Counter("conflicts_queued_total",
		metric.WithDescription("Updates parked for manual review")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.retriesScheduled, err = meter.Int64Counter("retries_scheduled_total",
		metric.WithDescription("Transient failures rescheduled by the worker pool")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.deadLettersTotal, err = meter.Int64Counter("dead_letters_total",
		metric.WithDescription("Items that exhausted their retries")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	if m.ingestionDuration, err = meter.Float64Histogram("ingestion_duration_seconds",
		metric.WithDescription("End-to-end processing time of one envelope"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return m, nil
}

// RecordReceived counts one accepted envelope
func (m *IngestionMetrics) RecordReceived(ctx context.Context, platform string) {
	m.webhooksReceived.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordRejected counts one rejected envelope with its gate
func (m *IngestionMetrics) RecordRejected(ctx context.Context, platform, reason string) {
	m.webhooksRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("reason", reason),
	))
}

// RecordDuplicate counts one acknowledged redelivery
func (m *IngestionMetrics) RecordDuplicate(ctx context.Context, platform string) {
	m.duplicatesSkipped.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordResolved counts one resolved entity write
func (m *IngestionMetrics) RecordResolved(ctx context.Context, platform, strategy string) {
	m.entitiesResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("platform", platform),
		attribute.String("strategy", strategy),
	))
}

// RecordConflictQueued counts one manual-review parking
func (m *IngestionMetrics) RecordConflictQueued(ctx context.Context, platform string) {
	m.conflictsQueued.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordRetryScheduled counts one retry
func (m *IngestionMetrics) RecordRetryScheduled(ctx context.Context, platform string) {
	m.retriesScheduled.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordDeadLetter counts one dead-lettered item
func (m *IngestionMetrics) RecordDeadLetter(ctx context.Context, platform string) {
	m.deadLettersTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("platform", platform)))
}

// RecordDuration records one envelope's processing time
func (m *IngestionMetrics) RecordDuration(ctx context.Context, platform string, d time.Duration) {
	m.ingestionDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("platform", platform)))
}
