// Package llm is the Model Facade (component F): the single entry point
// callers use to drive Generate/Stream against any of the six supported
// vendors through one shared contract, plus the call-shape types
// (LanguageModelInput, Tool, ToolChoiceOption, ...) that aren't part of
// the content model itself.
package llm

import (
	"fmt"
	"regexp"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llmerr"
)

// toolNamePattern is the allowed tool-name shape: a leading letter or
// underscore, then up to 63 more letters, digits, underscores, dots, or
// hyphens.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]{0,63}$`)

// Tool describes one function the model may call.
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object describing the tool's arguments.
	Parameters map[string]interface{}
}

// Validate checks Tool.Name against the allowed naming shape.
func (t Tool) Validate() error {
	if !toolNamePattern.MatchString(t.Name) {
		return llmerr.NewInvalidInput(fmt.Sprintf("tool name %q does not match ^[A-Za-z_][A-Za-z0-9_.-]{0,63}$", t.Name))
	}
	return nil
}

// ToolChoiceKind enumerates the ways a caller may constrain tool use.
type ToolChoiceKind string

const (
	ToolChoiceAuto     ToolChoiceKind = "auto"
	ToolChoiceNone     ToolChoiceKind = "none"
	ToolChoiceRequired ToolChoiceKind = "required"
	ToolChoiceSpecific ToolChoiceKind = "specific"
)

// ToolChoiceOption selects how the model should use the Tools list.
// ToolName is only meaningful when Kind is ToolChoiceSpecific.
type ToolChoiceOption struct {
	Kind     ToolChoiceKind
	ToolName string
}

// ResponseFormatKind enumerates the output shapes a caller may request.
type ResponseFormatKind string

const (
	ResponseFormatText       ResponseFormatKind = "text"
	ResponseFormatJSON       ResponseFormatKind = "json"
	ResponseFormatJSONSchema ResponseFormatKind = "json_schema"
)

// ResponseFormatOption constrains the shape of the model's text output.
type ResponseFormatOption struct {
	Kind        ResponseFormatKind
	Name        string
	Description string
	// Schema is a JSON Schema object; only meaningful when Kind is
	// ResponseFormatJSONSchema.
	Schema map[string]interface{}
	Strict bool
}

// ReasoningEffort enumerates the coarse reasoning-budget sentinel. The
// OpenAI Responses adapter maps it onto reasoning.effort; the other
// adapters do not read it.
type ReasoningEffort string

const (
	ReasoningMinimal ReasoningEffort = "minimal"
	ReasoningLow     ReasoningEffort = "low"
	ReasoningMedium  ReasoningEffort = "medium"
	ReasoningHigh    ReasoningEffort = "high"
)

// ReasoningOptions requests extended "thinking" from a model that
// supports it.
type ReasoningOptions struct {
	Enabled bool
	Effort  ReasoningEffort
	// BudgetTokens overrides the vendor's default token budget for
	// reasoning, where the vendor takes an explicit token count (Anthropic)
	// rather than an effort sentinel (OpenAI Responses).
	BudgetTokens *int
	// IncludeEncrypted is not read by any adapter in this module: the
	// OpenAI Responses adapter requests the encrypted reasoning trace
	// whenever Enabled is set, whatever this field's value.
	IncludeEncrypted bool
}

// AudioOptions requests audio output from a model that supports it.
type AudioOptions struct {
	Format     content.AudioFormat
	Voice      string
	SampleRate *int
}

// LanguageModelInput is everything one Generate or Stream call needs,
// independent of which vendor ultimately serves it.
type LanguageModelInput struct {
	// System is carried out-of-band, never as a content.Message (content.Role
	// has no RoleSystem).
	System   string
	Messages []content.Message

	Temperature      *float64
	MaxTokens        *int
	TopP             *float64
	TopK             *int
	FrequencyPenalty *float64
	PresencePenalty  *float64
	Seed             *int
	StopSequences    []string

	Tools      []Tool
	ToolChoice *ToolChoiceOption

	ResponseFormat *ResponseFormatOption
	Reasoning      *ReasoningOptions
	Audio          *AudioOptions

	// ExtraHeaders are merged into the outbound HTTP request, last-wins
	// against anything the adapter sets by default.
	ExtraHeaders map[string]string
}

// Warning is a non-fatal, surfaced-to-the-caller note about a best-effort
// decision an adapter made (e.g. a dropped event, a legacy field handled
// heuristically). Warnings never block a response.
type Warning struct {
	Type    string
	Message string
}
