// Package observe provides application-wide observability primitives:
// OpenTelemetry metrics and a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all coldcall metrics.
const meterName = "github.com/kronitek/coldcall"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// TurnDuration tracks end-to-end gatekeeper turn generation latency.
	TurnDuration metric.Float64Histogram

	// FeedbackDuration tracks feedback generation latency.
	FeedbackDuration metric.Float64Histogram

	// LiveCallDuration tracks the wall-clock duration of live voice calls.
	LiveCallDuration metric.Float64Histogram

	// ConnectOutcomes counts finished simulations. Use with attributes:
	//   attribute.String("difficulty", ...), attribute.String("outcome", ...)
	ConnectOutcomes metric.Int64Counter

	// Fallbacks counts degradations to canned content by component.
	Fallbacks metric.Int64Counter

	// ProviderErrors counts backend errors by provider and kind.
	ProviderErrors metric.Int64Counter

	// ActiveSessions tracks the number of running training sessions.
	ActiveSessions metric.Int64UpDownCounter

	// ActiveLiveCalls tracks the number of open live voice calls.
	ActiveLiveCalls metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) optimised
// for conversational latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// callDurationBuckets defines bucket boundaries (in seconds) for live call
// wall-clock durations.
var callDurationBuckets = []float64{
	5, 15, 30, 60, 120, 300, 600, 900,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.TurnDuration, err = m.Float64Histogram("coldcall.turn.duration",
		metric.WithDescription("Latency of gatekeeper turn generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.FeedbackDuration, err = m.Float64Histogram("coldcall.feedback.duration",
		metric.WithDescription("Latency of feedback generation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LiveCallDuration, err = m.Float64Histogram("coldcall.livecall.duration",
		metric.WithDescription("Wall-clock duration of live voice calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(callDurationBuckets...),
	); err != nil {
		return nil, err
	}

	if met.ConnectOutcomes, err = m.Int64Counter("coldcall.connect.outcomes",
		metric.WithDescription("Finished simulations by difficulty and outcome."),
	); err != nil {
		return nil, err
	}
	if met.Fallbacks, err = m.Int64Counter("coldcall.fallbacks",
		metric.WithDescription("Degradations to canned content by component."),
	); err != nil {
		return nil, err
	}
	if met.ProviderErrors, err = m.Int64Counter("coldcall.provider.errors",
		metric.WithDescription("Backend errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	if met.ActiveSessions, err = m.Int64UpDownCounter("coldcall.active_sessions",
		metric.WithDescription("Number of running training sessions."),
	); err != nil {
		return nil, err
	}
	if met.ActiveLiveCalls, err = m.Int64UpDownCounter("coldcall.active_livecalls",
		metric.WithDescription("Number of open live voice calls."),
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

// RecordTurn records one generated gatekeeper turn with its latency in
// seconds and whether the reply came from a fallback.
func (m *Metrics) RecordTurn(ctx context.Context, difficulty string, seconds float64, fallback bool) {
	m.TurnDuration.Record(ctx, seconds,
		metric.WithAttributes(attribute.String("difficulty", difficulty)),
	)
	if fallback {
		m.RecordFallback(ctx, "gatekeeper")
	}
}

// RecordFeedback records one feedback generation with its latency in seconds.
func (m *Metrics) RecordFeedback(ctx context.Context, seconds float64, fallback bool) {
	m.FeedbackDuration.Record(ctx, seconds)
	if fallback {
		m.RecordFallback(ctx, "coach")
	}
}

// RecordConnectOutcome records a finished simulation.
func (m *Metrics) RecordConnectOutcome(ctx context.Context, difficulty string, connected bool) {
	outcome := "blocked"
	if connected {
		outcome = "connected"
	}
	m.ConnectOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("difficulty", difficulty),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordFallback counts one degradation to canned content for a component.
func (m *Metrics) RecordFallback(ctx context.Context, component string) {
	m.Fallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("component", component)),
	)
}

// RecordProviderError counts one backend error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordLiveCall records the wall-clock duration of one finished live call.
func (m *Metrics) RecordLiveCall(ctx context.Context, seconds float64) {
	m.LiveCallDuration.Record(ctx, seconds)
}
