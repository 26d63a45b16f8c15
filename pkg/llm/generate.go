package llm

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/streamacc"
	"github.com/kestrelai/modelkit/pkg/telemetry"
)

// ModelResponse is the result of Generate, or of a fully-drained Stream.
type ModelResponse struct {
	Content content.Parts
	Usage   *streamacc.ModelUsage
	Cost    *decimal.Decimal
}

func (m *Model) buildRequest(input LanguageModelInput, stream bool) (transport.Request, error) {
	req, err := m.adapter.ToRequest(input, m.modelID, stream)
	if err != nil {
		return transport.Request{}, err
	}
	return transport.Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: mergeHeaders(req.Headers, input.ExtraHeaders),
		Query:   req.Query,
		Body:    req.Body,
	}, nil
}

func mergeHeaders(base, extra map[string]string) map[string]string {
	if len(extra) == 0 {
		return base
	}
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return merged
}

// computeCost applies Pricing to usage as exact decimal arithmetic.
func computeCost(pricing Pricing, usage streamacc.ModelUsage) decimal.Decimal {
	input := pricing.InputPerToken.Mul(decimal.NewFromInt(usage.InputTokens))
	output := pricing.OutputPerToken.Mul(decimal.NewFromInt(usage.OutputTokens))
	return input.Add(output)
}

// Generate performs one synchronous, non-streaming request and returns the
// fully-formed ModelResponse.
func (m *Model) Generate(ctx context.Context, input LanguageModelInput) (*ModelResponse, error) {
	tracer := telemetry.GetTracer(m.telemetry)
	return telemetry.RecordSpan(ctx, tracer, telemetry.SpanOptions{
		Name:       "modelkit.generate",
		Attributes: telemetry.BaseAttributes(string(m.provider), m.modelID, m.telemetry),
	}, func(ctx context.Context, _ trace.Span) (*ModelResponse, error) {
		return m.generate(ctx, input)
	})
}

func (m *Model) generate(ctx context.Context, input LanguageModelInput) (*ModelResponse, error) {
	req, err := m.buildRequest(input, false)
	if err != nil {
		return nil, err
	}
	body, err := m.transport.DoJSON(ctx, req)
	if err != nil {
		return nil, err
	}
	parts, usage, err := m.adapter.FromResponse(body)
	if err != nil {
		return nil, err
	}

	resp := &ModelResponse{Content: parts, Usage: usage}
	if m.pricing != nil && usage != nil {
		cost := computeCost(*m.pricing, *usage)
		resp.Cost = &cost
	}
	if m.telemetry != nil && m.telemetry.OnResponse != nil {
		m.telemetry.OnResponse(ctx)
	}
	return resp, nil
}
