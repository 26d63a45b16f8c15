package telemetry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/kestrelai/modelkit/pkg/telemetry"
)

func TestGetTracer_DisabledReturnsNoop(t *testing.T) {
	assert.NotNil(t, telemetry.GetTracer(nil))
	assert.NotNil(t, telemetry.GetTracer(&telemetry.Settings{IsEnabled: false}))
}

func TestGetTracer_CustomTracerWins(t *testing.T) {
	custom := noop.NewTracerProvider().Tracer("custom")
	got := telemetry.GetTracer(&telemetry.Settings{IsEnabled: true, Tracer: custom})
	assert.Equal(t, custom, got)
}

func TestRecordSpan_Basic(t *testing.T) {
	tracer := telemetry.GetTracer(&telemetry.Settings{IsEnabled: true})
	val, err := telemetry.RecordSpan(context.Background(), tracer, telemetry.SpanOptions{Name: "op"},
		func(ctx context.Context, span trace.Span) (int, error) {
			return 7, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 7, val)

	boom := errors.New("boom")
	_, err = telemetry.RecordSpan(context.Background(), tracer, telemetry.SpanOptions{Name: "op"},
		func(ctx context.Context, span trace.Span) (int, error) {
			return 0, boom
		})
	assert.ErrorIs(t, err, boom)
}

func TestBaseAttributes(t *testing.T) {
	attrs := telemetry.BaseAttributes("anthropic", "claude-opus", &telemetry.Settings{FunctionID: "fn1"})
	assert.NotEmpty(t, attrs)
}
