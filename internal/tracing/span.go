package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/swarmpace/internal/pacer"
)

const (
	AttrRunID       = attribute.Key("swarmpace.run_id")
	AttrStep        = attribute.Key("swarmpace.step")
	AttrMultiplier  = attribute.Key("swarmpace.multiplier")
	AttrTargetRPS   = attribute.Key("swarmpace.target_rps")
	AttrBucketLevel = attribute.Key("swarmpace.bucket_level")
	AttrWaitMs      = attribute.Key("swarmpace.wait_ms")
	AttrJitterMs    = attribute.Key("swarmpace.jitter_ms")
)

// AdmissionAttributes describes a pacer decision as span attributes.
func AdmissionAttributes(runID string, res pacer.Result) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrStep.String(res.Sample.StepID),
		AttrMultiplier.Float64(res.Sample.Multiplier),
		AttrTargetRPS.Float64(res.TargetRPS),
		AttrBucketLevel.Float64(res.BucketLevel),
		AttrWaitMs.Float64(float64(res.WaitDuration.Microseconds()) / 1000),
		AttrJitterMs.Float64(float64(res.JitterDuration.Microseconds()) / 1000),
	}
	if runID != "" {
		attrs = append(attrs, AttrRunID.String(runID))
	}
	return attrs
}

// RecordAdmission emits a zero-length span marking an admission at
// res.ReadyAt. The returned context carries it as parent for the request.
func RecordAdmission(ctx context.Context, tracer trace.Tracer, runID string, res pacer.Result) context.Context {
	ctx, span := tracer.Start(ctx, "pacer.admit",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(res.ReadyAt.Add(-res.WaitDuration-res.JitterDuration)),
		trace.WithAttributes(AdmissionAttributes(runID, res)...),
	)
	span.End(trace.WithTimestamp(res.ReadyAt))
	return ctx
}

// StartRequestSpan starts a client span for one outgoing HTTP request.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, method, target string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.full", target),
		),
	)
}

// EndSpan finishes span, recording err when non-nil.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders writes W3C trace context into headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
