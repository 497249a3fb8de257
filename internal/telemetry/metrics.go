// Package telemetry wires OpenTelemetry instruments for the gateway.
// All constructors accept a nil MeterProvider and then return nil metrics;
// nil metrics are safe to record on and do nothing.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ValidationMetrics tracks credential validation outcomes.
type ValidationMetrics struct {
	attempts metric.Int64Counter
}

// NewValidationMetrics creates validation instruments on the given provider.
func NewValidationMetrics(provider metric.MeterProvider) (*ValidationMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter("modelgate/auth")

	attempts, err := meter.Int64Counter("auth_validation_attempts_total",
		metric.WithDescription("Credential validation attempts by outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create validation counter: %w", err)
	}

	return &ValidationMetrics{attempts: attempts}, nil
}

// RecordValidation records one validation attempt. The outcome is "ok" for
// accepted requests and the error code otherwise.
func (m *ValidationMetrics) RecordValidation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
	))
}

// SyncMetrics tracks catalog sync cycles.
type SyncMetrics struct {
	duration      metric.Float64Histogram
	activeEntries metric.Int64Gauge
}

// NewSyncMetrics creates sync instruments on the given provider.
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}
	meter := provider.Meter("modelgate/sync")

	duration, err := meter.Float64Histogram("catalog_sync_duration_seconds",
		metric.WithDescription("Duration of catalog sync cycles"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create sync duration histogram: %w", err)
	}

	activeEntries, err := meter.Int64Gauge("catalog_active_entries",
		metric.WithDescription("Number of active catalog entries after the last sync"))
	if err != nil {
		return nil, fmt.Errorf("failed to create active entries gauge: %w", err)
	}

	return &SyncMetrics{
		duration:      duration,
		activeEntries: activeEntries,
	}, nil
}

// RecordSync records the outcome of one sync cycle.
func (m *SyncMetrics) RecordSync(ctx context.Context, elapsed time.Duration, success bool) {
	if m == nil {
		return
	}
	m.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(
		attribute.Bool("success", success),
	))
}

// RecordActiveEntries records the active entry count after a sync.
func (m *SyncMetrics) RecordActiveEntries(ctx context.Context, count int64) {
	if m == nil {
		return
	}
	m.activeEntries.Record(ctx, count)
}
