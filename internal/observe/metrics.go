// Package observe provides application-wide observability primitives for
// the narrative engine: OpenTelemetry metrics, distributed tracing,
// structured logging, and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all narrative-engine metrics.
const meterName = "github.com/MrWong99/playwright-engine"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// LLMDuration tracks LLM call latency, one sample per Complete/
	// CompleteStructured invocation.
	LLMDuration metric.Float64Histogram

	// BeatDuration tracks wall-clock time to resolve a single beat
	// (dice + narration + prose + delta substeps combined).
	BeatDuration metric.Float64Histogram

	// HTTPRequestDuration tracks HTTP request processing time.
	HTTPRequestDuration metric.Float64Histogram

	// --- Counters ---

	// LLMRequests counts LLM calls by provider, tier, and status.
	LLMRequests metric.Int64Counter

	// LLMErrors counts LLM call failures by provider and tier.
	LLMErrors metric.Int64Counter

	// DiceRolls counts resolved dice rolls by outcome tier — a direct
	// operational view onto the roll-uniformity property.
	DiceRolls metric.Int64Counter

	// DirectorInterventions counts director operations by intervention type.
	DirectorInterventions metric.Int64Counter

	// --- Gauges ---

	// ActiveWorlds tracks the number of worlds currently held in the store.
	ActiveWorlds metric.Int64UpDownCounter

	// SSEConnections tracks the number of open progress-stream connections.
	SSEConnections metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds).
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.LLMDuration, err = m.Float64Histogram("narrative.llm.duration",
		metric.WithDescription("Latency of LLM completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.BeatDuration, err = m.Float64Histogram("narrative.beat.duration",
		metric.WithDescription("Wall-clock time to resolve a single beat."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("narrative.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if met.LLMRequests, err = m.Int64Counter("narrative.llm.requests",
		metric.WithDescription("Total LLM calls by provider, tier, and status."),
	); err != nil {
		return nil, err
	}
	if met.LLMErrors, err = m.Int64Counter("narrative.llm.errors",
		metric.WithDescription("Total LLM call failures by provider and tier."),
	); err != nil {
		return nil, err
	}
	if met.DiceRolls, err = m.Int64Counter("narrative.dice.rolls",
		metric.WithDescription("Total resolved dice rolls by outcome tier."),
	); err != nil {
		return nil, err
	}
	if met.DirectorInterventions, err = m.Int64Counter("narrative.director.interventions",
		metric.WithDescription("Total director interventions by type."),
	); err != nil {
		return nil, err
	}

	if met.ActiveWorlds, err = m.Int64UpDownCounter("narrative.active_worlds",
		metric.WithDescription("Number of worlds currently held in the store."),
	); err != nil {
		return nil, err
	}
	if met.SSEConnections, err = m.Int64UpDownCounter("narrative.sse.connections",
		metric.WithDescription("Number of open progress-stream connections."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordLLMRequest is a convenience method that records an LLM request
// counter increment with the standard attribute set.
func (m *Metrics) RecordLLMRequest(ctx context.Context, provider, tier, status string) {
	m.LLMRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("tier", tier),
			attribute.String("status", status),
		),
	)
}

// RecordLLMError is a convenience method that records an LLM error counter
// increment.
func (m *Metrics) RecordLLMError(ctx context.Context, provider, tier string) {
	m.LLMErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("tier", tier),
		),
	)
}

// RecordDiceRoll is a convenience method that records a dice roll counter
// increment, tagged by its outcome tier.
func (m *Metrics) RecordDiceRoll(ctx context.Context, outcome string) {
	m.DiceRolls.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}

// RecordDirectorIntervention is a convenience method that records a director
// intervention counter increment, tagged by its intervention type.
func (m *Metrics) RecordDirectorIntervention(ctx context.Context, interventionType string) {
	m.DirectorInterventions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("type", interventionType)),
	)
}
