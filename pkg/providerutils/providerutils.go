// Package providerutils holds the translation logic shared by more than
// one provider adapter: source-part flattening, tool-choice/response-format
// conversion, and the outbound part-to-wire dispatch table.
package providerutils

import (
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/llmerr"
)

// FlattenSources wraps content.Flatten for adapters whose vendor has no
// native citation block (every provider except Anthropic and Cohere).
func FlattenSources(parts []content.Part) []content.Part {
	return content.Flatten(parts)
}

// ConvertToolChoice renders a ToolChoiceOption into the provider's wire
// shape. provider is one of the llm.ProviderTag string values. Returns nil
// when the provider has no encoding for the requested kind here: "none" for
// Anthropic, and "auto" or a specific tool for Cohere.
func ConvertToolChoice(provider string, tc llm.ToolChoiceOption) interface{} {
	switch provider {
	case "anthropic":
		switch tc.Kind {
		case llm.ToolChoiceAuto:
			return map[string]interface{}{"type": "auto"}
		case llm.ToolChoiceNone:
			return nil
		case llm.ToolChoiceRequired:
			return map[string]interface{}{"type": "any"}
		case llm.ToolChoiceSpecific:
			return map[string]interface{}{"type": "tool", "name": tc.ToolName}
		default:
			return map[string]interface{}{"type": "auto"}
		}
	case "google":
		switch tc.Kind {
		case llm.ToolChoiceNone:
			return "NONE"
		case llm.ToolChoiceRequired:
			return "ANY"
		default:
			return "AUTO"
		}
	case "cohere":
		switch tc.Kind {
		case llm.ToolChoiceRequired:
			return "REQUIRED"
		case llm.ToolChoiceNone:
			return "NONE"
		default:
			return nil
		}
	default:
		// openaichat, openairesponses, mistral all share OpenAI's shape.
		switch tc.Kind {
		case llm.ToolChoiceAuto:
			return "auto"
		case llm.ToolChoiceNone:
			return "none"
		case llm.ToolChoiceRequired:
			return "required"
		case llm.ToolChoiceSpecific:
			return map[string]interface{}{
				"type":     "function",
				"function": map[string]interface{}{"name": tc.ToolName},
			}
		default:
			return "auto"
		}
	}
}

// ConvertResponseFormat renders a ResponseFormatOption into the provider's
// wire shape. Anthropic and Cohere return nil ("no native field" here), and
// the adapter decides what to send; nothing in this module folds the
// constraint into the system prompt instead.
func ConvertResponseFormat(provider string, rf *llm.ResponseFormatOption) interface{} {
	if rf == nil {
		return nil
	}
	switch provider {
	case "google":
		switch rf.Kind {
		case llm.ResponseFormatJSON, llm.ResponseFormatJSONSchema:
			return "application/json"
		default:
			return "text/plain"
		}
	case "anthropic", "cohere":
		return nil
	default:
		switch rf.Kind {
		case llm.ResponseFormatText:
			return map[string]interface{}{"type": "text"}
		case llm.ResponseFormatJSON:
			return map[string]interface{}{"type": "json_object"}
		case llm.ResponseFormatJSONSchema:
			schema := map[string]interface{}{
				"name":   rf.Name,
				"schema": rf.Schema,
				"strict": rf.Strict,
			}
			if rf.Description != "" {
				schema["description"] = rf.Description
			}
			return map[string]interface{}{
				"type":        "json_schema",
				"json_schema": schema,
			}
		default:
			return nil
		}
	}
}

// PartEncoder renders one canonical content.Part into a provider's wire
// shape. Adapters build one dispatch table per provider, keyed by
// content.PartKind, and fail closed (llmerr.Unsupported) on any part kind
// absent from the table instead of silently dropping it.
type PartEncoder func(content.Part) (map[string]interface{}, error)

// EncodeParts runs parts through table, in order, failing closed on the
// first part kind the provider has no encoder for.
func EncodeParts(provider string, parts []content.Part, table map[content.PartKind]PartEncoder) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		enc, ok := table[p.PartType()]
		if !ok {
			return nil, llmerr.NewUnsupported(provider, "part kind "+string(p.PartType())+" has no wire encoding")
		}
		wire, err := enc(p)
		if err != nil {
			return nil, err
		}
		out = append(out, wire)
	}
	return out, nil
}
