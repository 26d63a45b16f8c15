package llm

import (
	"github.com/shopspring/decimal"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/llmerr"
	"github.com/kestrelai/modelkit/pkg/telemetry"
)

// ProviderTag names the vendor a Model talks to. NewModel records it for
// Provider(); the Adapter itself is passed to NewModel explicitly.
type ProviderTag string

const (
	ProviderOpenAIChat      ProviderTag = "openai-chat"
	ProviderOpenAIResponses ProviderTag = "openai-responses"
	ProviderAnthropic       ProviderTag = "anthropic"
	ProviderGoogle          ProviderTag = "google"
	ProviderMistral         ProviderTag = "mistral"
	ProviderCohere          ProviderTag = "cohere"
)

// Pricing expresses a model's $-per-token rates as exact decimals, so
// Generate/Stream can compute a Cost total without float drift across
// many accumulated deltas.
type Pricing struct {
	InputPerToken  decimal.Decimal
	OutputPerToken decimal.Decimal
}

// ModelOptions configures one Model instance.
type ModelOptions struct {
	Transport transport.Config
	Telemetry *telemetry.Settings
	Pricing   *Pricing
}

// Model binds one Adapter to a transport.Client, telemetry settings, and
// optional pricing, and is the sole entry point callers use: Generate and
// Stream.
type Model struct {
	provider  ProviderTag
	modelID   string
	adapter   Adapter
	transport *transport.Client
	telemetry *telemetry.Settings
	pricing   *Pricing
}

// NewModel constructs a Model bound to adapter, tagged with provider.
//
// modelkit has no internal provider registry, and the Adapter
// implementations live in providers/* packages that import llm for the
// Adapter interface — so llm cannot import them back without a cycle. Each
// providers/* package exposes its own convenience constructor (e.g.
// `openaichat.NewModel(modelID string, cfg openaichat.Config, opts
// llm.ModelOptions) (*llm.Model, error)`) that builds its Adapter and calls
// this constructor.
func NewModel(provider ProviderTag, modelID string, adapter Adapter, opts ModelOptions) (*Model, error) {
	if modelID == "" {
		return nil, llmerr.NewInvalidInput("model id must not be empty")
	}
	if adapter == nil {
		return nil, llmerr.NewInvalidInput("adapter must not be nil")
	}
	return &Model{
		provider:  provider,
		modelID:   modelID,
		adapter:   adapter,
		transport: transport.NewClient(opts.Transport),
		telemetry: opts.Telemetry,
		pricing:   opts.Pricing,
	}, nil
}

// Provider returns the vendor tag this Model was constructed with.
func (m *Model) Provider() ProviderTag { return m.provider }

// ModelID returns the vendor model identifier this Model was constructed
// with.
func (m *Model) ModelID() string { return m.modelID }
