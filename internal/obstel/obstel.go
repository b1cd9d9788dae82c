// Package obstel wires OpenTelemetry tracing and metrics around the phase
// engine and the Auto-Connection Pipeline, owning a TracerProvider and
// MeterProvider pair and exposing narrow helpers rather than the raw SDK.
package obstel

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "ironmanus-orchestrator"

// Provider owns the tracer, meter, and the counters the FSM and pipeline
// record against. It is safe for concurrent use.
type Provider struct {
	tracer trace.Tracer
	meter  metric.Meter

	tp *sdktrace.TracerProvider
	mp *sdkmetric.MeterProvider

	phaseTransitions metric.Int64Counter
	rateLimitRejects metric.Int64Counter
	ssrfRejects      metric.Int64Counter
	fetchDuration    metric.Float64Histogram

	mu       sync.Mutex
	shutdown bool
}

// New builds a Provider. When otlpEndpoint is empty, traces are written to
// an in-process stdout exporter instead of shipped over gRPC — useful for
// local runs and tests where no collector is listening.
func New(ctx context.Context, serviceName, otlpEndpoint string) (*Provider, error) {
	exporter, err := newTraceExporter(ctx, otlpEndpoint)
	if err != nil {
		return nil, fmt.Errorf("obstel: creating trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	mp := sdkmetric.NewMeterProvider()

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	meter := mp.Meter(instrumentationName)

	phaseTransitions, err := meter.Int64Counter("ironmanus.phase.transitions",
		metric.WithDescription("count of FSM phase transitions, labeled from/to"))
	if err != nil {
		return nil, err
	}
	rateLimitRejects, err := meter.Int64Counter("ironmanus.pipeline.rate_limit_rejections",
		metric.WithDescription("count of Auto-Connection fetches denied by the per-host limiter"))
	if err != nil {
		return nil, err
	}
	ssrfRejects, err := meter.Int64Counter("ironmanus.pipeline.ssrf_rejections",
		metric.WithDescription("count of catalog URLs rejected by the SSRF guard"))
	if err != nil {
		return nil, err
	}
	fetchDuration, err := meter.Float64Histogram("ironmanus.pipeline.fetch_duration_ms",
		metric.WithDescription("Auto-Connection per-source fetch duration"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &Provider{
		tracer:           tp.Tracer(instrumentationName),
		meter:            meter,
		tp:               tp,
		mp:               mp,
		phaseTransitions: phaseTransitions,
		rateLimitRejects: rateLimitRejects,
		ssrfRejects:      ssrfRejects,
		fetchDuration:    fetchDuration,
	}, nil
}

func newTraceExporter(ctx context.Context, otlpEndpoint string) (sdktrace.SpanExporter, error) {
	if otlpEndpoint == "" {
		return stdouttrace.New(stdouttrace.WithoutTimestamps())
	}
	return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(otlpEndpoint), otlptracegrpc.WithInsecure())
}

// StartPhaseSpan opens a span around one FSM call.
func (p *Provider) StartPhaseSpan(ctx context.Context, sessionID string, phase string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "fsm.phase",
		trace.WithAttributes(
			attribute.String("ironmanus.session_id", sessionID),
			attribute.String("ironmanus.phase", phase),
		))
}

// StartFetchSpan opens a span around one Auto-Connection source fetch.
func (p *Provider) StartFetchSpan(ctx context.Context, source string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "pipeline.fetch", trace.WithAttributes(attribute.String("ironmanus.source", source)))
}

// RecordPhaseTransition increments the transition counter.
func (p *Provider) RecordPhaseTransition(ctx context.Context, from, to string) {
	p.phaseTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordRateLimitRejection increments the rate-limit rejection counter.
func (p *Provider) RecordRateLimitRejection(ctx context.Context, host string) {
	p.rateLimitRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("host", host)))
}

// RecordSSRFRejection increments the SSRF rejection counter.
func (p *Provider) RecordSSRFRejection(ctx context.Context, reason string) {
	p.ssrfRejects.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// RecordFetchDuration records one source fetch's wall-clock time.
func (p *Provider) RecordFetchDuration(ctx context.Context, source string, d time.Duration) {
	p.fetchDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attribute.String("source", source)))
}

// Shutdown flushes and releases the underlying exporters. Safe to call once.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.shutdown {
		return nil
	}
	p.shutdown = true
	if err := p.tp.Shutdown(ctx); err != nil {
		return err
	}
	return p.mp.Shutdown(ctx)
}

// NoOp returns a Provider whose spans and counters are all no-ops, for
// tests and for runs with telemetry disabled.
func NoOp() *Provider {
	tp := sdktrace.NewTracerProvider()
	mp := sdkmetric.NewMeterProvider()
	meter := mp.Meter(instrumentationName)
	phaseTransitions, _ := meter.Int64Counter("ironmanus.phase.transitions")
	rateLimitRejects, _ := meter.Int64Counter("ironmanus.pipeline.rate_limit_rejections")
	ssrfRejects, _ := meter.Int64Counter("ironmanus.pipeline.ssrf_rejections")
	fetchDuration, _ := meter.Float64Histogram("ironmanus.pipeline.fetch_duration_ms")
	return &Provider{
		tracer:           tp.Tracer(instrumentationName),
		meter:            meter,
		tp:               tp,
		mp:               mp,
		phaseTransitions: phaseTransitions,
		rateLimitRejects: rateLimitRejects,
		ssrfRejects:      ssrfRejects,
		fetchDuration:    fetchDuration,
	}
}
