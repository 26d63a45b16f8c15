// Package cohere implements an llm.Adapter for Cohere's v2 chat API: a
// synthetic system message, native documents[] citation grounding (Source
// parts are never flattened), and a content-index-keyed streaming event
// dispatch (message-start/content-start/content-delta/tool-call-start/
// tool-call-delta/message-end).
package cohere

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

const providerName = "cohere"

// Config holds connection settings for one Cohere account.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://api.cohere.com/v2
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://api.cohere.com/v2"
}

// NewModel builds an llm.Model bound to the Cohere v2 chat adapter.
func NewModel(modelID string, cfg Config, opts llm.ModelOptions) (*llm.Model, error) {
	opts.Transport.BaseURL = cfg.baseURL()
	if opts.Transport.Headers == nil {
		opts.Transport.Headers = map[string]string{}
	}
	opts.Transport.Headers["Authorization"] = "Bearer " + cfg.APIKey
	return llm.NewModel(llm.ProviderCohere, modelID, &adapter{}, opts)
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
	var documents []map[string]interface{}
	for _, msg := range input.Messages {
		wire, docs, err := toCohereMessage(msg)
		if err != nil {
			return llm.Request{}, err
		}
		messages = append(messages, wire...)
		documents = append(documents, docs...)
	}
	body["messages"] = messages
	if len(documents) > 0 {
		body["documents"] = documents
	}

	if input.Temperature != nil {
		body["temperature"] = *input.Temperature
	}
	if input.MaxTokens != nil {
		body["max_tokens"] = *input.MaxTokens
	}
	if input.TopP != nil {
		body["p"] = *input.TopP
	}
	if input.TopK != nil {
		body["k"] = *input.TopK
	}
	if input.Seed != nil {
		body["seed"] = *input.Seed
	}
	if input.FrequencyPenalty != nil {
		body["frequency_penalty"] = *input.FrequencyPenalty
	}
	if input.PresencePenalty != nil {
		body["presence_penalty"] = *input.PresencePenalty
	}
	if len(input.StopSequences) > 0 {
		body["stop_sequences"] = input.StopSequences
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
		if tc := providerutils.ConvertToolChoice(providerName, *input.ToolChoice); tc != nil {
			body["tool_choice"] = tc
		}
	}

	if rf := convertResponseFormat(input.ResponseFormat); rf != nil {
		body["response_format"] = rf
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
		Method: http.MethodPost,
		Path:   "/chat",
		Body:   payload,
	}, nil
}

// convertResponseFormat renders a ResponseFormatOption into Cohere v2's
// native response_format field. Unlike the shared providerutils helper
// (which treats Cohere as having no such field, matching its v1 chat
// surface), v2 chat does expose one, so this adapter converts locally
// rather than widening the shared helper for every other provider.
func convertResponseFormat(rf *llm.ResponseFormatOption) map[string]interface{} {
	if rf == nil {
		return nil
	}
	switch rf.Kind {
	case llm.ResponseFormatJSON:
		return map[string]interface{}{"type": "json_object"}
	case llm.ResponseFormatJSONSchema:
		return map[string]interface{}{"type": "json_object", "json_schema": rf.Schema}
	default:
		return nil
	}
}

func toCohereMessage(msg content.Message) ([]map[string]interface{}, []map[string]interface{}, error) {
	if msg.Role == content.RoleTool {
		out := make([]map[string]interface{}, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			tr, ok := p.(content.ToolResultPart)
			if !ok {
				return nil, nil, llmerr.NewInvariant("tool message part is not a tool-result", nil)
			}
			out = append(out, map[string]interface{}{
				"role":         "tool",
				"tool_call_id": tr.ToolCallID,
				"content":      []map[string]interface{}{{"type": "text", "text": toolResultText(tr)}},
			})
		}
		return out, nil, nil
	}

	wireMsg := map[string]interface{}{"role": string(msg.Role)}
	var toolCalls []map[string]interface{}
	var documents []map[string]interface{}
	var inline []content.Part

	for _, p := range msg.Parts {
		switch v := p.(type) {
		case content.ToolCallPart:
			args, err := json.Marshal(v.Args)
			if err != nil {
				return nil, nil, err
			}
			toolCalls = append(toolCalls, map[string]interface{}{
				"id":   v.ToolCallID,
				"type": "function",
				"function": map[string]interface{}{
					"name":      v.ToolName,
					"arguments": string(args),
				},
			})
		case content.SourcePart:
			documents = append(documents, map[string]interface{}{
				"id":   v.SourceURI,
				"data": map[string]interface{}{"title": v.Title, "text": sourceText(v)},
			})
		default:
			inline = append(inline, p)
		}
	}

	contentBlocks, err := providerutils.EncodeParts(providerName, inline, outboundPartEncoders)
	if err != nil {
		return nil, nil, err
	}

	if len(contentBlocks) > 0 {
		wireMsg["content"] = contentBlocks
	}
	if len(toolCalls) > 0 {
		wireMsg["tool_calls"] = toolCalls
	}

	var messages []map[string]interface{}
	if len(contentBlocks) > 0 || len(toolCalls) > 0 {
		messages = append(messages, wireMsg)
	}
	return messages, documents, nil
}

// outboundPartEncoders covers the parts that render inline in a message's
// "content" array. Tool calls ride "tool_calls" and source parts ride the
// request's top-level "documents" field instead, so both are diverted
// before reaching this table.
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
	content.PartReasoning: func(p content.Part) (map[string]interface{}, error) {
		return map[string]interface{}{"type": "thinking", "thinking": p.(content.ReasoningPart).Text}, nil
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

func sourceText(sp content.SourcePart) string {
	var text string
	for _, p := range sp.Content {
		if tp, ok := p.(content.TextPart); ok {
			text += tp.Text
		}
	}
	return text
}

type cohereResponse struct {
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		ToolCalls []struct {
			ID       string `json:"id"`
			Function struct {
				Name      string `json:"name"`
				Arguments string `json:"arguments"`
			} `json:"function"`
		} `json:"tool_calls"`
	} `json:"message"`
	FinishReason string      `json:"finish_reason"`
	Usage        cohereUsage `json:"usage"`
}

type cohereUsage struct {
	BilledUnits struct {
		InputTokens  float64 `json:"input_tokens"`
		OutputTokens float64 `json:"output_tokens"`
	} `json:"billed_units"`
}

func (a *adapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var resp cohereResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, llmerr.NewInvariant("decoding chat response", err)
	}

	var parts content.Parts
	for _, block := range resp.Message.Content {
		if block.Type == "text" && block.Text != "" {
			tp, err := content.NewTextPart(block.Text)
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, tp)
		}
	}
	for _, tc := range resp.Message.ToolCalls {
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
		InputTokens:  int64(resp.Usage.BilledUnits.InputTokens),
		OutputTokens: int64(resp.Usage.BilledUnits.OutputTokens),
	}

	return parts, usage, nil
}

type streamState struct {
	// toolOrdinal counts the tool-call-start events seen so far. It is the
	// oracle's enumeration-position hint: each tool-call-start takes the
	// count before it, and each tool-call-delta takes the most recent
	// start's. Tool-call events with no content index are dropped before
	// they reach it (see MapEvent).
	toolOrdinal int
}

type cohereEvent struct {
	Type  string `json:"type"`
	Index *int   `json:"index"`
	Delta struct {
		Message struct {
			Content struct {
				Text string `json:"text"`
			} `json:"content"`
			ToolCalls struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		Usage *cohereUsage `json:"usage"`
	} `json:"delta"`
}

func (a *adapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	if state.Scratch == nil {
		state.Scratch = &streamState{}
	}
	ss := state.Scratch.(*streamState)

	var evt cohereEvent
	if err := json.Unmarshal([]byte(event.Data), &evt); err != nil {
		return nil, nil, false, llmerr.NewInvariant("decoding cohere stream event", err)
	}

	switch evt.Type {
	case "content-delta":
		text := evt.Delta.Message.Content.Text
		if text == "" {
			return nil, nil, false, nil
		}
		return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}}}, nil, false, nil

	case "tool-call-start":
		// Per spec.md's open question: this module takes the permissive
		// branch and drops tool-call events that carry no content index
		// instead of failing the stream with NotImplemented.
		if evt.Index == nil {
			return nil, nil, false, nil
		}
		ordinal := ss.toolOrdinal
		ss.toolOrdinal++
		pd := streamacc.PartDelta{Kind: content.PartToolCall}
		if evt.Delta.Message.ToolCalls.ID != "" {
			id := evt.Delta.Message.ToolCalls.ID
			pd.ToolCallID = &id
		}
		if evt.Delta.Message.ToolCalls.Function.Name != "" {
			name := evt.Delta.Message.ToolCalls.Function.Name
			pd.ToolName = &name
		}
		return []llm.RawDelta{{Delta: pd, ToolHint: &ordinal}}, nil, false, nil

	case "tool-call-delta":
		if evt.Index == nil {
			return nil, nil, false, nil
		}
		args := evt.Delta.Message.ToolCalls.Function.Arguments
		if args == "" {
			return nil, nil, false, nil
		}
		ordinal := ss.toolOrdinal - 1
		if ordinal < 0 {
			ordinal = 0
		}
		return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartToolCall, Args: &args}, ToolHint: &ordinal}}, nil, false, nil

	case "message-end":
		var usage *streamacc.ModelUsage
		if evt.Delta.Usage != nil {
			usage = &streamacc.ModelUsage{
				InputTokens:  int64(evt.Delta.Usage.BilledUnits.InputTokens),
				OutputTokens: int64(evt.Delta.Usage.BilledUnits.OutputTokens),
			}
		}
		return nil, usage, true, nil
	}

	return nil, nil, false, nil
}
