// Package mistral implements an llm.Adapter for Mistral's chat completions
// API: an OpenAI-Chat-shaped wire format with a synthetic system message,
// `random_seed` in place of `seed`, and no reasoning or audio support.
package mistral

import (
	"encoding/json"
	"net/http"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/llmerr"
	"github.com/kestrelai/modelkit/pkg/providerutils"
	"github.com/kestrelai/modelkit/pkg/streamacc"
)

const providerName = "mistral"

// Config holds connection settings for one Mistral account.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://api.mistral.ai/v1
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://api.mistral.ai/v1"
}

// NewModel builds an llm.Model bound to the Mistral chat adapter.
func NewModel(modelID string, cfg Config, opts llm.ModelOptions) (*llm.Model, error) {
	opts.Transport.BaseURL = cfg.baseURL()
	if opts.Transport.Headers == nil {
		opts.Transport.Headers = map[string]string{}
	}
	opts.Transport.Headers["Authorization"] = "Bearer " + cfg.APIKey
	return llm.NewModel(llm.ProviderMistral, modelID, &adapter{}, opts)
}

type adapter struct{}

func (a *adapter) ToRequest(input llm.LanguageModelInput, modelID string, stream bool) (llm.Request, error) {
	body := map[string]interface{}{
		"model":  modelID,
		"stream": stream,
	}

	messages := make([]map[string]interface{}, 0, len(input.Messages)+1)
	if input.System != "" {
		messages = append(messages, map[string]interface{}{"role": "system", "content": input.System})
	}
	for _, msg := range input.Messages {
		wire, err := toMistralMessage(msg)
		if err != nil {
			return llm.Request{}, err
		}
		messages = append(messages, wire...)
	}
	body["messages"] = messages

	if input.Temperature != nil {
		body["temperature"] = *input.Temperature
	}
	if input.MaxTokens != nil {
		body["max_tokens"] = *input.MaxTokens
	}
	if input.TopP != nil {
		body["top_p"] = *input.TopP
	}
	if input.Seed != nil {
		body["random_seed"] = *input.Seed
	}
	if len(input.StopSequences) > 0 {
		body["stop"] = input.StopSequences
	}
	if input.TopK != nil {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "top_k")
	}
	if input.PresencePenalty != nil {
		body["presence_penalty"] = *input.PresencePenalty
	}
	if input.FrequencyPenalty != nil {
		body["frequency_penalty"] = *input.FrequencyPenalty
	}

	if len(input.Tools) > 0 {
		tools := make([]map[string]interface{}, len(input.Tools))
		for i, t := range input.Tools {
			tools[i] = map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        t.Name,
					"description": t.Description,
					"parameters":  t.Parameters,
				},
			}
		}
		body["tools"] = tools
	}
	if input.ToolChoice != nil {
		body["tool_choice"] = providerutils.ConvertToolChoice(providerName, *input.ToolChoice)
	}

	if input.ResponseFormat != nil {
		if rf := providerutils.ConvertResponseFormat(providerName, input.ResponseFormat); rf != nil {
			body["response_format"] = rf
		}
	}

	if input.Reasoning != nil && input.Reasoning.Enabled {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "reasoning")
	}
	if input.Audio != nil {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "audio output")
	}

	payload, err := transport.MarshalJSON(body)
	if err != nil {
		return llm.Request{}, err
	}

	return llm.Request{
		Method:  http.MethodPost,
		Path:    "/chat/completions",
		Headers: map[string]string{"Accept": "text/event-stream"},
		Body:    payload,
	}, nil
}

func toMistralMessage(msg content.Message) ([]map[string]interface{}, error) {
	if msg.Role == content.RoleTool {
		out := make([]map[string]interface{}, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			tr, ok := p.(content.ToolResultPart)
			if !ok {
				return nil, llmerr.NewInvariant("tool message part is not a tool-result", nil)
			}
			out = append(out, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": tr.ToolCallID,
				"name":         tr.ToolName,
				"content":      toolResultText(tr),
			})
		}
		return out, nil
	}

	parts := providerutils.FlattenSources(msg.Parts)
	wireMsg := map[string]interface{}{"role": string(msg.Role)}

	var toolCalls []map[string]interface{}
	var inline []content.Part
	for _, p := range parts {
		if tc, ok := p.(content.ToolCallPart); ok {
			args, err := json.Marshal(tc.Args)
			if err != nil {
				return nil, err
			}
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   tc.ToolCallID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      tc.ToolName,
					"arguments": string(args),
				},
			})
			continue
		}
		inline = append(inline, p)
	}
	contentParts, err := providerutils.EncodeParts(providerName, inline, outboundPartEncoders)
	if err != nil {
		return nil, err
	}

	if len(contentParts) == 1 && contentParts[0]["type"] == "text" {
		wireMsg["content"] = contentParts[0]["text"]
	} else if len(contentParts) > 0 {
		wireMsg["content"] = contentParts
	}
	if len(toolCalls) > 0 {
		wireMsg["tool_calls"] = toolCalls
	}

	return []map[string]interface{}{wireMsg}, nil
}

// outboundPartEncoders renders the inline content parts of a chat message;
// tool calls ride the "tool_calls" field instead. Audio and reasoning parts
// have no Mistral wire shape and fall through to EncodeParts' fail-closed
// default.
var outboundPartEncoders = map[content.PartKind]providerutils.PartEncoder{
	content.PartText: func(p content.Part) (map[string]interface{}, error) {
		return map[string]interface{}{"type": "text", "text": p.(content.TextPart).Text}, nil
	},
	content.PartImage: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ImagePart)
		return map[string]interface{}{
			"type": "image_url",
			"image_url": map[string]interface{}{
				"url": "data:" + v.MimeType + ";base64," + v.ImageData,
			},
		}, nil
	},
}

func toolResultText(tr content.ToolResultPart) string {
	var text string
	for _, p := range tr.Content {
		if tp, ok := p.(content.TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage mistralUsage `json:"usage"`
}

type mistralUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

func (a *adapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var resp mistralResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, llmerr.NewInvariant("decoding chat completions response", err)
	}
	if len(resp.Choices) == 0 {
		return nil, nil, llmerr.NewInvariant("chat completions response has no choices", nil)
	}
	choice := resp.Choices[0]

	var parts content.Parts
	if choice.Message.Content != "" {
		tp, err := content.NewTextPart(choice.Message.Content)
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, tp)
	}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, nil, llmerr.NewInvariant("unparsable tool-call arguments", err)
			}
		}
		cp, err := content.NewToolCallPart(tc.ID, tc.Function.Name, args, "")
		if err != nil {
			return nil, nil, err
		}
		parts = append(parts, cp)
	}

	usage := &streamacc.ModelUsage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}

	return parts, usage, nil
}

type mistralChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				Index    int    `json:"index"`
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *mistralUsage `json:"usage"`
}

func (a *adapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	var chunk mistralChunk
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return nil, nil, false, llmerr.NewInvariant("decoding chat completions stream chunk", err)
	}

	var deltas []llm.RawDelta
	var usage *streamacc.ModelUsage
	done := false

	if chunk.Usage != nil {
		usage = &streamacc.ModelUsage{InputTokens: chunk.Usage.PromptTokens, OutputTokens: chunk.Usage.CompletionTokens}
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		if choice.Delta.Content != "" {
			text := choice.Delta.Content
			deltas = append(deltas, llm.RawDelta{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}})
		}
		for _, tc := range choice.Delta.ToolCalls {
			hint := tc.Index
			pd := streamacc.PartDelta{Kind: content.PartToolCall}
			if tc.ID != "" {
				id := tc.ID
				pd.ToolCallID = &id
			}
			if tc.Function.Name != "" {
				name := tc.Function.Name
				pd.ToolName = &name
			}
			if tc.Function.Arguments != "" {
				args := tc.Function.Arguments
				pd.Args = &args
			}
			deltas = append(deltas, llm.RawDelta{Delta: pd, ToolHint: &hint})
		}
		if choice.FinishReason != nil {
			done = true
		}
	}

	return deltas, usage, done, nil
}
