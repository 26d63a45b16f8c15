package llm

import (
	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/streamacc"
)

// Request is the vendor-shaped HTTP request an Adapter's ToRequest built.
// The Model facade owns the actual HTTP dance; Request only carries what
// it needs to drive transport.Client.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   map[string]string
	Body    []byte
}

// StreamState is private, per-stream scratch space an Adapter may use to
// track vendor-specific bookkeeping (e.g. Anthropic's content-block index
// map) across successive MapEvent calls. The Model facade allocates one
// per Stream call and never inspects its contents.
type StreamState struct {
	// Scratch is intentionally untyped: each adapter defines its own
	// concrete state type and type-asserts it back out.
	Scratch interface{}
}

// RawDelta is one content fragment an adapter extracted from a vendor
// stream event, not yet assigned a canonical index. ToolHint carries the
// vendor's own index/position for the fragment when it has one (e.g.
// OpenAI Chat's `delta.tool_calls[i].index`); the Stream Accumulator's
// Delta Index Oracle (streamacc.GuessIndex) consumes it to assign the
// canonical index, so adapters never need to reproduce the oracle's rules.
type RawDelta struct {
	Delta    streamacc.PartDelta
	ToolHint *int
}

// Adapter is the three-method contract every vendor wire protocol
// implements: translate a canonical request to the vendor's wire shape,
// translate a vendor response back to canonical parts, and translate one
// vendor stream event to zero or more canonical content deltas.
type Adapter interface {
	// ToRequest builds the vendor HTTP request for input against modelID.
	// stream selects the vendor's streaming vs non-streaming request shape
	// (e.g. `"stream": true`).
	ToRequest(input LanguageModelInput, modelID string, stream bool) (Request, error)

	// FromResponse decodes one complete, non-streaming vendor response
	// body into canonical parts plus usage.
	FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error)

	// MapEvent decodes one vendor SSE event into zero or more raw content
	// deltas, a usage delta when the event carries one, and whether the
	// stream has reached its vendor-defined terminal event. state is the
	// same *StreamState value across every call within one Stream
	// invocation.
	MapEvent(event transport.SSEEvent, state *StreamState) (deltas []RawDelta, usage *streamacc.ModelUsage, done bool, err error)
}
