// Package telemetry records submission metrics and spans with OpenTelemetry.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mintkit/sdk-go/types"
)

// DefaultInstrumentationName is the scope used when none is configured.
const DefaultInstrumentationName = "github.com/mintkit/sdk-go"

// Recorder holds the submission instruments.
type Recorder struct {
	tracer trace.Tracer

	outcomes     metric.Int64Counter
	duration     metric.Float64Histogram
	rebroadcasts metric.Int64Counter
}

// Option customizes a Recorder.
type Option func(*settings)

type settings struct {
	name           string
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) { s.meterProvider = mp }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *settings) { s.tracerProvider = tp }
}

// WithInstrumentationName sets the meter and tracer scope name.
func WithInstrumentationName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// New creates a Recorder. Without options it uses the global providers,
// which are no-ops until the application installs real ones.
func New(opts ...Option) (*Recorder, error) {
	s := settings{
		name:           DefaultInstrumentationName,
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(&s)
	}

	meter := s.meterProvider.Meter(s.name)
	r := &Recorder{tracer: s.tracerProvider.Tracer(s.name)}

	var err error
	r.outcomes, err = meter.Int64Counter("mintkit.submit.outcomes",
		metric.WithDescription("Submissions by terminal outcome"))
	if err != nil {
		return nil, fmt.Errorf("outcomes counter: %w", err)
	}
	r.duration, err = meter.Float64Histogram("mintkit.submit.duration",
		metric.WithDescription("Time from broadcast to verdict"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("duration histogram: %w", err)
	}
	r.rebroadcasts, err = meter.Int64Counter("mintkit.submit.rebroadcasts",
		metric.WithDescription("Raw transaction resubmissions"))
	if err != nil {
		return nil, fmt.Errorf("rebroadcasts counter: %w", err)
	}
	return r, nil
}

// Nop returns a Recorder backed by the global providers, ignoring errors.
func Nop() *Recorder {
	r, err := New()
	if err != nil {
		return &Recorder{}
	}
	return r
}

// StartSubmission opens the span covering one submission.
func (r *Recorder) StartSubmission(ctx context.Context, submissionID string) (context.Context, trace.Span) {
	if r == nil || r.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return r.tracer.Start(ctx, "mintkit.submit",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("mintkit.submission_id", submissionID)))
}

// RecordOutcome closes span and records the outcome metrics.
func (r *Recorder) RecordOutcome(ctx context.Context, span trace.Span, out types.Outcome) {
	kind := attribute.String("outcome", out.Kind.String())
	if span != nil {
		span.SetAttributes(
			attribute.String("mintkit.signature", out.Signature.String()),
			attribute.Int64("mintkit.slot", int64(out.Slot)),
			attribute.Int("mintkit.rebroadcasts", out.Rebroadcasts),
			kind,
		)
		if err := out.AsError(); err != nil {
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
	if r == nil || r.outcomes == nil {
		return
	}
	set := metric.WithAttributes(kind)
	r.outcomes.Add(ctx, 1, set)
	r.duration.Record(ctx, out.Elapsed.Seconds(), set)
	r.rebroadcasts.Add(ctx, int64(out.Rebroadcasts))
}
