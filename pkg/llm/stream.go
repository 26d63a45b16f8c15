package llm

import (
	"context"
	"io"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/streamacc"
)

// PartialModelResponse is one yield of a Stream: a content delta, a usage
// increment, and/or a cost increment, matching streamacc.PartialModelResponse
// so a caller can feed it directly into a streamacc.Accumulator of their
// own if they want custom accumulation instead of relying on
// StreamReader.Drain.
type PartialModelResponse = streamacc.PartialModelResponse

// StreamReader is the pull-based iterator Stream returns. Next's only
// suspension point is reading the SSE body: it reads as many events as it
// takes to produce a yield, and none when earlier events left yields queued.
// Dropping a StreamReader without calling Close leaks the HTTP connection,
// the same contract as any unclosed io.ReadCloser.
type StreamReader struct {
	model   *Model
	parser  *transport.SSEParser
	state   *StreamState
	cancel  context.CancelFunc
	history []streamacc.ContentDelta
	// pending holds partials already assigned an index but not yet
	// returned to the caller: a single vendor event routinely maps to more
	// than one content delta (e.g. a Gemini candidate with a thought part
	// and a text part, or an OpenAI chunk with both text and tool-call
	// deltas), and every one of them must reach the caller, one per Next
	// call, in the order MapEvent produced them.
	pending  []*PartialModelResponse
	pricing  *Pricing
	closed   bool
	finished bool
}

// Stream performs one HTTP request with stream=true in the request body
// and returns a StreamReader that yields one PartialModelResponse per
// content delta the vendor events map to, plus one per event that carries
// usage, terminating on the vendor's `[DONE]` sentinel or a clean EOF.
func (m *Model) Stream(ctx context.Context, input LanguageModelInput) (*StreamReader, error) {
	req, err := m.buildRequest(input, true)
	if err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	body, err := m.transport.DoSSE(streamCtx, req)
	if err != nil {
		cancel()
		return nil, err
	}

	return &StreamReader{
		model:   m,
		parser:  transport.NewSSEParser(body),
		state:   &StreamState{},
		cancel:  cancel,
		pricing: m.pricing,
	}, nil
}

// Next reads and maps vendor events until one produces a PartialModelResponse,
// returning (nil, false, nil) once the stream is exhausted and (partial,
// true, nil) for each successive yield. A non-nil error always means the
// stream has also been closed. When one vendor event maps to several
// content deltas, Next returns them one at a time across successive calls,
// queued in r.pending, preserving the order MapEvent produced them in.
func (r *StreamReader) Next(ctx context.Context) (*PartialModelResponse, bool, error) {
	for {
		if len(r.pending) > 0 {
			partial := r.pending[0]
			r.pending = r.pending[1:]
			if r.model.telemetry != nil && r.model.telemetry.OnPartial != nil && partial.Delta != nil {
				r.model.telemetry.OnPartial(ctx, partial.Delta.Index)
			}
			return partial, true, nil
		}
		if r.finished {
			return nil, false, nil
		}

		select {
		case <-ctx.Done():
			_ = r.Close()
			return nil, false, ctx.Err()
		default:
		}

		event, err := r.parser.Next()
		if err == io.EOF {
			r.finished = true
			_ = r.Close()
			continue
		}
		if err != nil {
			_ = r.Close()
			return nil, false, err
		}
		if transport.IsDone(event) {
			r.finished = true
			_ = r.Close()
			continue
		}

		rawDeltas, usage, done, err := r.model.adapter.MapEvent(*event, r.state)
		if err != nil {
			_ = r.Close()
			return nil, false, err
		}

		r.enqueue(rawDeltas, usage)
		if done {
			r.finished = true
			_ = r.Close()
		}
	}
}

// enqueue assigns canonical indices to rawDeltas via the Delta Index
// Oracle, records them in history for future GuessIndex calls, and appends
// one pending partial per delta plus, when usage accompanies the event, one
// further pending partial carrying the usage/cost increment. Every delta
// MapEvent produces is queued — nothing is dropped when an event maps to
// more than one.
func (r *StreamReader) enqueue(rawDeltas []RawDelta, usage *streamacc.ModelUsage) {
	for _, rd := range rawDeltas {
		idx := streamacc.GuessIndex(rd.Delta, r.history, rd.ToolHint)
		cd := streamacc.ContentDelta{Index: idx, Delta: rd.Delta}
		r.history = append(r.history, cd)
		r.pending = append(r.pending, &PartialModelResponse{Delta: &cd})
	}

	if usage != nil {
		partial := &PartialModelResponse{UsageDelta: usage}
		if r.pricing != nil {
			cost := computeCost(*r.pricing, *usage)
			partial.CostDelta = &cost
		}
		r.pending = append(r.pending, partial)
	}
}

// Close cancels the in-flight request (if still active) and releases the
// underlying HTTP connection. Idempotent.
func (r *StreamReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.cancel()
	return r.parser.Close()
}

// Drain pulls every remaining yield from r into a streamacc.Accumulator and
// returns the finalized ModelResponse — a convenience for callers who don't
// need incremental access to partials.
func (r *StreamReader) Drain(ctx context.Context) (*ModelResponse, error) {
	defer r.Close()

	acc := streamacc.NewAccumulator()
	for {
		partial, ok, err := r.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if err := acc.AddPartial(*partial); err != nil {
			return nil, err
		}
	}

	computed, err := acc.ComputeResponse()
	if err != nil {
		return nil, err
	}
	resp := &ModelResponse{Content: computed.Content, Usage: computed.Usage, Cost: computed.Cost}
	if resp.Cost == nil && resp.Usage != nil && r.pricing != nil {
		cost := computeCost(*r.pricing, *resp.Usage)
		resp.Cost = &cost
	}
	if r.model.telemetry != nil && r.model.telemetry.OnResponse != nil {
		r.model.telemetry.OnResponse(ctx)
	}
	return resp, nil
}
