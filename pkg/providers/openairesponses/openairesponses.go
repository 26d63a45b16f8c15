// Package openairesponses implements an llm.Adapter for OpenAI's Responses
// API: output items (message/reasoning/function_call) translate to and
// from the canonical content model, and streaming dispatches on the
// vendor's per-output-item event types.
package openairesponses

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/llmerr"
	"github.com/kestrelai/modelkit/pkg/providerutils"
	"github.com/kestrelai/modelkit/pkg/streamacc"
)

const providerName = "openai-responses"

// Config holds connection settings for one OpenAI account.
type Config struct {
	APIKey string
	BaseURL string // defaults to https://api.openai.com/v1
	Org     string
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://api.openai.com/v1"
}

// NewModel builds an llm.Model bound to the OpenAI Responses adapter.
func NewModel(modelID string, cfg Config, opts llm.ModelOptions) (*llm.Model, error) {
	opts.Transport.BaseURL = cfg.baseURL()
	if opts.Transport.Headers == nil {
		opts.Transport.Headers = map[string]string{}
	}
	opts.Transport.Headers["Authorization"] = "Bearer " + cfg.APIKey
	if cfg.Org != "" {
		opts.Transport.Headers["OpenAI-Organization"] = cfg.Org
	}
	return llm.NewModel(llm.ProviderOpenAIResponses, modelID, &adapter{}, opts)
}

type adapter struct{}

// newItemID synthesizes an id satisfying OpenAI's ^[a-zA-Z0-9_-]+$ item-id
// shape for assistant/reasoning items reflected back into a later request,
// which the vendor requires but the canonical content model has no reason
// to carry on every part.
func newItemID() string {
	return "msg_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:15]
}

func mapReasoningEffort(effort llm.ReasoningEffort) string {
	switch effort {
	case llm.ReasoningMinimal:
		return "minimal"
	case llm.ReasoningLow:
		return "low"
	case llm.ReasoningHigh:
		return "high"
	default:
		return "medium"
	}
}

func (a *adapter) ToRequest(input llm.LanguageModelInput, modelID string, stream bool) (llm.Request, error) {
	items, err := toResponsesInput(input.Messages)
	if err != nil {
		return llm.Request{}, err
	}

	body := map[string]interface{}{
		"model":  modelID,
		"input":  items,
		"stream": stream,
	}
	if input.System != "" {
		body["instructions"] = input.System
	}
	if input.Temperature != nil {
		body["temperature"] = *input.Temperature
	}
	if input.MaxTokens != nil {
		body["max_output_tokens"] = *input.MaxTokens
	}
	if input.TopP != nil {
		body["top_p"] = *input.TopP
	}
	if input.TopK != nil {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "top_k")
	}
	if input.Seed != nil {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "seed")
	}
	if len(input.StopSequences) > 0 {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "stop_sequences")
	}

	if len(input.Tools) > 0 {
		tools := make([]map[string]interface{}, len(input.Tools))
		for i, t := range input.Tools {
			tools[i] = map[string]interface{}{
				"type":        "function",
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			}
		}
		body["tools"] = tools
		if input.ToolChoice != nil {
			body["tool_choice"] = providerutils.ConvertToolChoice(providerName, *input.ToolChoice)
		}
	}

	if input.ResponseFormat != nil {
		textConfig := map[string]interface{}{}
		switch input.ResponseFormat.Kind {
		case llm.ResponseFormatText:
			textConfig["format"] = map[string]interface{}{"type": "text"}
		case llm.ResponseFormatJSON:
			textConfig["format"] = map[string]interface{}{"type": "json_object"}
		case llm.ResponseFormatJSONSchema:
			textConfig["format"] = map[string]interface{}{
				"type":   "json_schema",
				"name":   input.ResponseFormat.Name,
				"schema": input.ResponseFormat.Schema,
				"strict": input.ResponseFormat.Strict,
			}
		}
		body["text"] = textConfig
	}

	if input.Reasoning != nil && input.Reasoning.Enabled {
		body["reasoning"] = map[string]interface{}{
			"effort": mapReasoningEffort(input.Reasoning.Effort),
		}
		body["include"] = []string{"reasoning.encrypted_content"}
	}

	payload, err := transport.MarshalJSON(body)
	if err != nil {
		return llm.Request{}, err
	}
	return llm.Request{Method: http.MethodPost, Path: "/responses", Body: payload}, nil
}

func toResponsesInput(messages []content.Message) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	for _, msg := range messages {
		switch msg.Role {
		case content.RoleTool:
			for _, p := range msg.Parts {
				tr, ok := p.(content.ToolResultPart)
				if !ok {
					return nil, llmerr.NewUnsupported(providerName, "non tool-result part in tool message")
				}
				items = append(items, map[string]interface{}{
					"type":    "function_call_output",
					"call_id": tr.ToolCallID,
					"output":  toolResultOutput(tr),
				})
			}
		case content.RoleUser:
			wireContent, err := encodeInputContent(providerutils.FlattenSources(msg.Parts))
			if err != nil {
				return nil, err
			}
			items = append(items, map[string]interface{}{
				"type":    "message",
				"role":    "user",
				"content": wireContent,
			})
		case content.RoleAssistant:
			assistantItems, err := encodeAssistantParts(msg.Parts)
			if err != nil {
				return nil, err
			}
			items = append(items, assistantItems...)
		}
	}
	return items, nil
}

func toolResultOutput(tr content.ToolResultPart) string {
	var b strings.Builder
	for _, p := range tr.Content {
		if tp, ok := p.(content.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func encodeInputContent(parts []content.Part) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case content.TextPart:
			out = append(out, map[string]interface{}{"type": "input_text", "text": v.Text})
		case content.ImagePart:
			out = append(out, map[string]interface{}{
				"type":      "input_image",
				"image_url": "data:" + v.MimeType + ";base64," + v.ImageData,
			})
		case content.AudioPart:
			out = append(out, map[string]interface{}{
				"type":       "input_audio",
				"audio_data": v.AudioData,
				"format":     string(v.Format),
			})
		default:
			return nil, llmerr.NewUnsupported(providerName, "part kind "+string(p.PartType())+" in user message")
		}
	}
	return out, nil
}

// encodeAssistantParts splits an assistant message's parts into the
// vendor's separate message/reasoning/function_call item types — the
// Responses API has no single "assistant message" container the way Chat
// Completions does.
func encodeAssistantParts(parts []content.Part) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	var text []map[string]interface{}
	for _, p := range parts {
		switch v := p.(type) {
		case content.TextPart:
			text = append(text, map[string]interface{}{"type": "output_text", "text": v.Text})
		case content.ReasoningPart:
			// Only a reasoning part carrying a Signature (this module's
			// stand-in for the vendor's opaque encrypted_content) can be
			// replayed into a later turn; the API cannot reconstruct
			// reasoning context without it.
			if v.Signature == "" {
				continue
			}
			item := map[string]interface{}{
				"type":              "reasoning",
				"id":                newItemID(),
				"encrypted_content": v.Signature,
			}
			if v.Text != "" {
				item["summary"] = []map[string]interface{}{{"type": "summary_text", "text": v.Text}}
			}
			items = append(items, item)
		case content.ToolCallPart:
			argsJSON, err := json.Marshal(v.Args)
			if err != nil {
				return nil, llmerr.NewInvariant("marshaling tool-call args", err)
			}
			items = append(items, map[string]interface{}{
				"type":      "function_call",
				"call_id":   v.ToolCallID,
				"name":      v.ToolName,
				"arguments": string(argsJSON),
			})
		default:
			return nil, llmerr.NewUnsupported(providerName, "part kind "+string(p.PartType())+" in assistant message")
		}
	}
	if len(text) > 0 {
		items = append([]map[string]interface{}{{
			"type":    "message",
			"role":    "assistant",
			"id":      newItemID(),
			"content": text,
		}}, items...)
	}
	return items, nil
}

type responsesResponse struct {
	Output []struct {
		Type      string `json:"type"`
		CallID    string `json:"call_id"`
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Summary []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"summary"`
		EncryptedContent string `json:"encrypted_content"`
	} `json:"output"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Usage *responsesUsage `json:"usage"`
}

type responsesUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	InputTokensDetails  *struct {
		CachedTokens int64 `json:"cached_tokens"`
	} `json:"input_tokens_details"`
	OutputTokensDetails *struct {
		ReasoningTokens int64 `json:"reasoning_tokens"`
	} `json:"output_tokens_details"`
}

func usageFromWire(u *responsesUsage) *streamacc.ModelUsage {
	if u == nil {
		return nil
	}
	usage := &streamacc.ModelUsage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
	if u.InputTokensDetails != nil {
		cached := u.InputTokensDetails.CachedTokens
		usage.InputCachedTokens = &cached
	}
	if u.OutputTokensDetails != nil {
		reasoning := u.OutputTokensDetails.ReasoningTokens
		textTokens := u.OutputTokens - reasoning
		usage.OutputTextTokens = &textTokens
	}
	return usage
}

func (a *adapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var resp responsesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, llmerr.NewInvariant("decoding responses response", err)
	}
	if resp.Error != nil {
		return nil, nil, llmerr.NewInvariant(resp.Error.Code+": "+resp.Error.Message, nil)
	}

	var parts content.Parts
	for _, item := range resp.Output {
		switch item.Type {
		case "message":
			for _, c := range item.Content {
				if c.Type == "output_text" {
					tp, err := content.NewTextPart(c.Text)
					if err != nil {
						return nil, nil, err
					}
					parts = append(parts, tp)
				}
			}
		case "reasoning":
			var summaryText strings.Builder
			for _, s := range item.Summary {
				summaryText.WriteString(s.Text)
			}
			if item.EncryptedContent != "" || summaryText.Len() > 0 {
				parts = append(parts, content.ReasoningPart{Text: summaryText.String(), Signature: item.EncryptedContent})
			}
		case "function_call":
			var args map[string]interface{}
			if item.Arguments != "" {
				if err := json.Unmarshal([]byte(item.Arguments), &args); err != nil {
					return nil, nil, llmerr.NewInvariant("decoding function_call arguments", err)
				}
			}
			cp, err := content.NewToolCallPart(item.CallID, item.Name, args, "")
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, cp)
		}
	}

	return parts, usageFromWire(resp.Usage), nil
}

// itemState tracks one in-flight output item across streaming events,
// keyed by the vendor's item_id. Reasoning summaries arrive as repeated
// response.reasoning_summary_text.delta fragments with no type-singleton
// reuse in the Delta Index Oracle (that rule covers text/audio only), so
// this module buffers them here and flushes one RawDelta at
// response.output_item.done, mirroring the Anthropic adapter's
// thinking-block buffering.
type itemState struct {
	kind        content.PartKind
	toolCallID  string
	toolName    string
	toolOrdinal int
	summaryText string
}

type streamState struct {
	items       map[string]*itemState
	toolOrdinal int
}

func (a *adapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	if state.Scratch == nil {
		state.Scratch = &streamState{items: make(map[string]*itemState)}
	}
	ss := state.Scratch.(*streamState)

	var envelope struct {
		Type   string `json:"type"`
		ItemID string `json:"item_id"`
		Delta  string `json:"delta"`
		Item   *struct {
			ID     string `json:"id"`
			CallID string `json:"call_id"`
			Type   string `json:"type"`
			Name   string `json:"name"`
		} `json:"item"`
		Response *responsesResponse `json:"response"`
		Error    *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(event.Data), &envelope); err != nil {
		return nil, nil, false, llmerr.NewInvariant("decoding responses stream event", err)
	}

	switch envelope.Type {
	case "response.output_item.added":
		if envelope.Item != nil && envelope.Item.Type == "function_call" {
			ordinal := ss.toolOrdinal
			ss.toolOrdinal++
			toolCallID := envelope.Item.CallID
			toolName := envelope.Item.Name
			ss.items[envelope.Item.ID] = &itemState{kind: content.PartToolCall, toolCallID: toolCallID, toolName: toolName, toolOrdinal: ordinal}
			return []llm.RawDelta{{
				Delta:    streamacc.PartDelta{Kind: content.PartToolCall, ToolCallID: &toolCallID, ToolName: &toolName},
				ToolHint: &ordinal,
			}}, nil, false, nil
		} else if envelope.Item != nil && envelope.Item.Type == "reasoning" {
			ss.items[envelope.Item.ID] = &itemState{kind: content.PartReasoning}
		}
		return nil, nil, false, nil

	case "response.output_text.delta":
		text := envelope.Delta
		return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}}}, nil, false, nil

	case "response.function_call_arguments.delta":
		item := ss.items[envelope.ItemID]
		if item == nil {
			return nil, nil, false, nil
		}
		args := envelope.Delta
		ordinal := item.toolOrdinal
		return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartToolCall, Args: &args}, ToolHint: &ordinal}}, nil, false, nil

	case "response.reasoning_summary_text.delta":
		item := ss.items[envelope.ItemID]
		if item != nil {
			item.summaryText += envelope.Delta
		}
		return nil, nil, false, nil

	case "response.output_item.done":
		item := ss.items[envelope.ItemID]
		delete(ss.items, envelope.ItemID)
		if item != nil && item.kind == content.PartReasoning && item.summaryText != "" {
			summary := item.summaryText
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartReasoning, Summary: &summary}}}, nil, false, nil
		}
		return nil, nil, false, nil

	case "response.completed", "response.incomplete":
		var usage *streamacc.ModelUsage
		if envelope.Response != nil {
			usage = usageFromWire(envelope.Response.Usage)
		}
		return nil, usage, true, nil

	case "response.failed", "error":
		if envelope.Error != nil {
			return nil, nil, false, llmerr.NewInvariant(envelope.Error.Code+": "+envelope.Error.Message, nil)
		}
		return nil, nil, true, nil

	default:
		return nil, nil, false, nil
	}
}
