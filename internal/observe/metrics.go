// Package observe provides application-wide observability primitives for
// goalhorn: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware for the optional diagnostics endpoint.
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

// meterName is the instrumentation scope name used for all goalhorn metrics.
const meterName = "github.com/MrWong99/goalhorn"

// Cycle stages used as the "stage" attribute of [Metrics.CycleErrors].
const (
	StageCapture   = "capture"
	StageRecognize = "recognize"
	StagePlayback  = "playback"
	StagePanic     = "panic"
)

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CycleDuration tracks the wall time of one detection cycle.
	CycleDuration metric.Float64Histogram

	// CaptureDuration tracks frame acquisition latency.
	CaptureDuration metric.Float64Histogram

	// RecognizeDuration tracks text recognition latency, including
	// preprocessing.
	RecognizeDuration metric.Float64Histogram

	// TriggerLatency tracks the time from the start of the cycle that saw the
	// trigger until playback was handed to the audio output.
	TriggerLatency metric.Float64Histogram

	// --- Counters ---

	// Cycles counts completed detection cycles.
	Cycles metric.Int64Counter

	// Triggers counts celebrations handed to the audio output. Use with
	// attribute:
	//   attribute.String("track", ...)
	Triggers metric.Int64Counter

	// UnplayedTriggers counts accepted triggers that could not be played. Use
	// with attribute:
	//   attribute.String("reason", ...)
	UnplayedTriggers metric.Int64Counter

	// CycleErrors counts failed cycle stages. Use with attribute:
	//   attribute.String("stage", ...)
	CycleErrors metric.Int64Counter

	// --- Gauges ---

	// ActiveDetectors tracks the number of running detection loops.
	ActiveDetectors metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) around the
// 100ms trigger-to-sound budget.
var latencyBuckets = []float64{
	0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 1,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CycleDuration, err = m.Float64Histogram("goalhorn.cycle.duration",
		metric.WithDescription("Wall time of one detection cycle."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CaptureDuration, err = m.Float64Histogram("goalhorn.capture.duration",
		metric.WithDescription("Latency of frame acquisition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RecognizeDuration, err = m.Float64Histogram("goalhorn.recognize.duration",
		metric.WithDescription("Latency of preprocessing and text recognition."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TriggerLatency, err = m.Float64Histogram("goalhorn.trigger.latency",
		metric.WithDescription("Time from cycle start to playback submission for accepted triggers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Cycles, err = m.Int64Counter("goalhorn.cycles",
		metric.WithDescription("Total detection cycles."),
	); err != nil {
		return nil, err
	}
	if met.Triggers, err = m.Int64Counter("goalhorn.triggers",
		metric.WithDescription("Total celebrations played by track."),
	); err != nil {
		return nil, err
	}
	if met.UnplayedTriggers, err = m.Int64Counter("goalhorn.triggers.unplayed",
		metric.WithDescription("Total accepted triggers that could not be played, by reason."),
	); err != nil {
		return nil, err
	}
	if met.CycleErrors, err = m.Int64Counter("goalhorn.cycle.errors",
		metric.WithDescription("Total failed cycle stages by stage."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveDetectors, err = m.Int64UpDownCounter("goalhorn.active_detectors",
		metric.WithDescription("Number of running detection loops."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("goalhorn.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// RecordCycleError records a failed cycle stage.
func (m *Metrics) RecordCycleError(ctx context.Context, stage string) {
	m.CycleErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

// RecordTrigger records a played celebration.
func (m *Metrics) RecordTrigger(ctx context.Context, track string) {
	m.Triggers.Add(ctx, 1, metric.WithAttributes(attribute.String("track", track)))
}

// RecordUnplayed records an accepted trigger that could not be played.
func (m *Metrics) RecordUnplayed(ctx context.Context, reason string) {
	m.UnplayedTriggers.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}
