package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/infrastructure/config"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := make(map[string]metricdata.Metrics)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func counterValue(t *testing.T, m metricdata.Metrics) int64 {
	t.Helper()
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum for %s", m.Name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestIngestionMetrics_Counters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	metrics, err := NewIngestionMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	metrics.RecordReceived(ctx, "SHOPIFY")
	metrics.RecordReceived(ctx, "ECWID")
	metrics.RecordRejected(ctx, "SHOPIFY", "SIGNATURE_MISMATCH")
	metrics.RecordDuplicate(ctx, "SHOPIFY")
	metrics.RecordResolved(ctx, "SHOPIFY", "TIMESTAMP_WINS")
	metrics.RecordConflictQueued(ctx, "ECWID")
	metrics.RecordRetryScheduled(ctx, "GUMROAD")
	metrics.RecordDeadLetter(ctx, "GUMROAD")
	metrics.RecordDuration(ctx, "SHOPIFY", 25*time.Millisecond)

	collected := collect(t, reader)
	assert.EqualValues(t, 2, counterValue(t, collected["webhooks_received_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["webhooks_rejected_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["webhooks_duplicates_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["entities_resolved_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["conflicts_queued_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["retries_scheduled_total"]))
	assert.EqualValues(t, 1, counterValue(t, collected["dead_letters_total"]))

	hist, ok := collected["ingestion_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.EqualValues(t, 1, hist.DataPoints[0].Count)
}

func TestMeterProvider_DisabledIsNoop(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), config.TelemetryConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)

	// A disabled provider still hands out usable meters and shuts down clean.
	_, err = NewIngestionMetrics(mp.Meter("test"))
	require.NoError(t, err)
	assert.NoError(t, mp.Shutdown(context.Background()))
}
