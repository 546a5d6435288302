// Package telemetry traces the solver: one span per ComputeMaxflow run,
// with global relabel rounds as span events and the flow/work counters as
// end-of-span attributes.
//
// Init wires the process to an OTLP/gRPC collector and returns a shutdown
// function; without it the span helpers run against the default no-op
// provider, so the solver can always call them. The library has no wire
// surface of its own, so no context propagators are installed.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this library's tracer.
const instrumentationName = "gridflow"

// Span names and events emitted by the solver.
const (
	spanSolve          = "gridflow.compute_maxflow"
	spanReturnExcess   = "gridflow.return_excess"
	spanSegmentation   = "gridflow.segmentation"
	eventGlobalRelabel = "global_relabel"
)

// Config describes the export setup.
type Config struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
	Version     string
	Environment string
	SampleRate  float64
}

// Init installs a tracer provider exporting to an OTLP/gRPC collector and
// returns its shutdown function. When disabled it installs nothing and the
// returned shutdown is a no-op.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// samplerFor maps a configured rate to a sampler; child spans follow their
// parent's decision so one solve is traced whole or not at all.
func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// tracer resolves against the current global provider, so spans started
// before Init stay no-ops and spans started after it are exported.
func tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(instrumentationName)
}

// SolveSpan is the span of one ComputeMaxflow run. Exactly one of Fail or
// End must be called.
type SolveSpan struct {
	span trace.Span
}

// StartSolve opens the span of a solve run, tagged with the run id and the
// grid shape.
func StartSolve(ctx context.Context, runID string, nodes, blocks, dims int) (context.Context, *SolveSpan) {
	attrs := append(GridAttributes(nodes, blocks, dims), attribute.String(AttrRunID, runID))
	ctx, span := tracer().Start(ctx, spanSolve, trace.WithAttributes(attrs...))
	return ctx, &SolveSpan{span: span}
}

// RelabelRound records one global relabel barrier as a span event, with the
// size of the rebuilt active set.
func (s *SolveSpan) RelabelRound(activeBlocks int) {
	s.span.AddEvent(eventGlobalRelabel,
		trace.WithAttributes(attribute.Int(AttrActiveBlocks, activeBlocks)))
}

// Fail closes the span for a solve that errored or was canceled.
func (s *SolveSpan) Fail(err error) {
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
	s.span.End()
}

// End closes the span of a completed solve, attaching the flow value and
// the work counters.
func (s *SolveSpan) End(flow, discharges, globalRelabels, messages int64) {
	s.span.SetAttributes(SolveAttributes(flow, discharges, globalRelabels, messages)...)
	s.span.SetStatus(codes.Ok, "")
	s.span.End()
}

// StartReturnExcess opens the span of the excess-return drain that follows
// a successful solve.
func StartReturnExcess(ctx context.Context) (context.Context, trace.Span) {
	return tracer().Start(ctx, spanReturnExcess)
}

// StartSegmentation opens the span of the lazy segmentation BFS.
func StartSegmentation(ctx context.Context) (context.Context, trace.Span) {
	return tracer().Start(ctx, spanSegmentation)
}
