// Package telemetry provides the OpenTelemetry integration the Model
// Facade opens a span through on every Generate call; Stream opens no
// span. Disabled by
// default; never a package-level global, always threaded explicitly
// through a *Settings value.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName identifies modelkit's spans in any OpenTelemetry backend.
const TracerName = "modelkit"

// Settings configures telemetry for one Model. The zero value is fully
// disabled.
type Settings struct {
	// IsEnabled controls whether spans are opened at all.
	IsEnabled bool

	// RecordInputs is carried on Settings but not read anywhere in this
	// module: no span records request content, whatever its value.
	RecordInputs bool

	// RecordOutputs is likewise not read: no span records response content.
	RecordOutputs bool

	// FunctionID groups spans from the same logical call site.
	FunctionID string

	// Metadata is attached to every span this Settings value produces.
	Metadata map[string]attribute.Value

	// Tracer overrides the tracer implementation. If nil and IsEnabled,
	// the global otel tracer is used.
	Tracer trace.Tracer

	// OnResponse and OnPartial are a lighter-weight alternative to
	// OpenTelemetry for callers who just want a callback: OnResponse fires
	// once after Generate or after StreamReader.Drain; OnPartial fires
	// once per streamed PartialModelResponse that carries a content delta,
	// with that delta's index. Both may be nil.
	OnResponse func(ctx context.Context)
	OnPartial  func(ctx context.Context, index int)
}

// GetTracer returns a no-op tracer unless settings is enabled; when it is,
// it returns settings.Tracer if set, or else the global tracer.
func GetTracer(settings *Settings) trace.Tracer {
	if settings == nil || !settings.IsEnabled {
		return noop.NewTracerProvider().Tracer(TracerName)
	}
	if settings.Tracer != nil {
		return settings.Tracer
	}
	return otel.Tracer(TracerName)
}

// SpanOptions configures one RecordSpan call.
type SpanOptions struct {
	Name       string
	Attributes []attribute.KeyValue
}

// RecordSpan opens a span named opts.Name, runs fn, records any error on
// the span, and always ends the span before returning.
func RecordSpan[T any](ctx context.Context, tracer trace.Tracer, opts SpanOptions, fn func(context.Context, trace.Span) (T, error)) (T, error) {
	ctx, span := tracer.Start(ctx, opts.Name, trace.WithAttributes(opts.Attributes...))
	defer span.End()

	result, err := fn(ctx, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var zero T
		return zero, err
	}
	return result, nil
}

// BaseAttributes returns the attributes every Generate span carries:
// provider, model id, function id and metadata from settings.
func BaseAttributes(provider, modelID string, settings *Settings) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("modelkit.provider", provider),
		attribute.String("modelkit.model_id", modelID),
	}
	if settings == nil {
		return attrs
	}
	if settings.FunctionID != "" {
		attrs = append(attrs, attribute.String("modelkit.function_id", settings.FunctionID))
	}
	for k, v := range settings.Metadata {
		attrs = append(attrs, attribute.KeyValue{Key: attribute.Key("modelkit.metadata." + k), Value: v})
	}
	return attrs
}
