// Package observe provides podsite's OpenTelemetry metrics and the HTTP
// middleware that records them.
//
// Instruments are created from a metric.MeterProvider. InitProvider installs
// a Prometheus-backed provider globally so /metrics can be scraped; tests
// should build their own provider with a ManualReader and call NewMetrics.
package observe

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/nadzzz/podsite"

// Status attribute values.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the instruments used by the synthesis pipeline, the engine
// lifecycle manager and the HTTP transport.
type Metrics struct {
	// PhaseDuration tracks one backend synthesis call. Attribute: engine.
	PhaseDuration metric.Float64Histogram

	// RunDuration tracks one generation run end to end. Attribute: engine.
	RunDuration metric.Float64Histogram

	// Segments counts narration lines. Attributes: engine, status.
	Segments metric.Int64Counter

	// Runs counts generation runs. Attributes: engine, status.
	Runs metric.Int64Counter

	// EngineReloads counts voice-cloning engine reconstructions.
	// Attribute: status.
	EngineReloads metric.Int64Counter

	// HTTPRequestDuration tracks HTTP requests. Attributes: method, path.
	HTTPRequestDuration metric.Float64Histogram
}

// synthesisBuckets are histogram boundaries in seconds. Synthesis of a
// long phase on CPU can take minutes.
var synthesisBuckets = []float64{
	0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.PhaseDuration, err = m.Float64Histogram("podsite.tts.phase.duration",
		metric.WithDescription("Latency of one text-to-speech phase."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(synthesisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RunDuration, err = m.Float64Histogram("podsite.run.duration",
		metric.WithDescription("Duration of a podcast generation run."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(synthesisBuckets...),
	); err != nil {
		return nil, err
	}
	if met.Segments, err = m.Int64Counter("podsite.segments",
		metric.WithDescription("Narration lines processed by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.Runs, err = m.Int64Counter("podsite.runs",
		metric.WithDescription("Generation runs by engine and status."),
	); err != nil {
		return nil, err
	}
	if met.EngineReloads, err = m.Int64Counter("podsite.engine.reloads",
		metric.WithDescription("Voice-cloning engine reconstructions by status."),
	); err != nil {
		return nil, err
	}
	if met.HTTPRequestDuration, err = m.Float64Histogram("podsite.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level Metrics, created on first call
// from the global meter provider.
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

func status(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// RecordPhase records one synthesis call.
func (m *Metrics) RecordPhase(ctx context.Context, engine string, d time.Duration) {
	m.PhaseDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("engine", engine)))
}

// RecordSegment counts one narration line; err is the line's failure, if any.
func (m *Metrics) RecordSegment(ctx context.Context, engine string, err error) {
	m.Segments.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status(err)),
	))
}

// RecordRun records a finished generation run.
func (m *Metrics) RecordRun(ctx context.Context, engine string, d time.Duration, err error) {
	m.RunDuration.Record(ctx, d.Seconds(),
		metric.WithAttributes(attribute.String("engine", engine)))
	m.Runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status(err)),
	))
}

// RecordReload counts one engine reconstruction attempt.
func (m *Metrics) RecordReload(ctx context.Context, err error) {
	m.EngineReloads.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status(err))))
}
