// Package anthropic implements an llm.Adapter for Anthropic's Messages API:
// a content-block tracking map keyed by SSE index drives the streaming
// state machine, emitting canonical streamacc deltas.
package anthropic

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

const providerName = "anthropic"

// Config holds connection settings for one Anthropic account.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://api.anthropic.com/v1
	Version string // defaults to 2023-06-01
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://api.anthropic.com/v1"
}

func (c Config) version() string {
	if c.Version != "" {
		return c.Version
	}
	return "2023-06-01"
}

// NewModel builds an llm.Model bound to the Anthropic Messages adapter.
func NewModel(modelID string, cfg Config, opts llm.ModelOptions) (*llm.Model, error) {
	opts.Transport.BaseURL = cfg.baseURL()
	if opts.Transport.Headers == nil {
		opts.Transport.Headers = map[string]string{}
	}
	opts.Transport.Headers["x-api-key"] = cfg.APIKey
	opts.Transport.Headers["anthropic-version"] = cfg.version()
	return llm.NewModel(llm.ProviderAnthropic, modelID, &adapter{}, opts)
}

type adapter struct{}

const defaultMaxTokens = 4096

func (a *adapter) ToRequest(input llm.LanguageModelInput, modelID string, stream bool) (llm.Request, error) {
	body := map[string]interface{}{
		"model":  modelID,
		"stream": stream,
	}

	maxTokens := defaultMaxTokens
	if input.MaxTokens != nil {
		maxTokens = *input.MaxTokens
	}
	body["max_tokens"] = maxTokens

	if input.System != "" {
		body["system"] = input.System
	}

	messages, err := toAnthropicMessages(input.Messages)
	if err != nil {
		return llm.Request{}, err
	}
	body["messages"] = messages

	isThinking := input.Reasoning != nil && input.Reasoning.Enabled
	if !isThinking {
		if input.Temperature != nil {
			body["temperature"] = *input.Temperature
		}
		if input.TopK != nil {
			body["top_k"] = *input.TopK
		}
		if input.TopP != nil && input.Temperature == nil {
			body["top_p"] = *input.TopP
		}
	}
	if len(input.StopSequences) > 0 {
		body["stop_sequences"] = input.StopSequences
	}

	if len(input.Tools) > 0 {
		tools := make([]map[string]interface{}, len(input.Tools))
		for i, t := range input.Tools {
			tools[i] = map[string]interface{}{
				"name":         t.Name,
				"description":  t.Description,
				"input_schema": t.Parameters,
			}
		}
		body["tools"] = tools
	}
	if input.ToolChoice != nil {
		if tc := providerutils.ConvertToolChoice(providerName, *input.ToolChoice); tc != nil {
			body["tool_choice"] = tc
		}
	}

	if isThinking {
		budget := maxTokens - 1
		if input.Reasoning.BudgetTokens != nil {
			budget = *input.Reasoning.BudgetTokens
		}
		body["thinking"] = map[string]interface{}{
			"type":          "enabled",
			"budget_tokens": budget,
		}
	} else if input.Reasoning != nil {
		body["thinking"] = map[string]interface{}{"type": "disabled"}
	}

	payload, err := transport.MarshalJSON(body)
	if err != nil {
		return llm.Request{}, err
	}

	return llm.Request{
		Method: http.MethodPost,
		Path:   "/messages",
		Body:   payload,
	}, nil
}

func toAnthropicMessages(messages []content.Message) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		wireParts, err := providerutils.EncodeParts(providerName, msg.Parts, outboundPartEncoders)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"role":    wireRole(msg.Role),
			"content": wireParts,
		})
	}
	return out, nil
}

func wireRole(r content.Role) string {
	if r == content.RoleTool {
		return "user"
	}
	return string(r)
}

// outboundPartEncoders is the dispatch table behind every content block
// Anthropic's Messages API accepts. ToolResultPart and SourcePart nest
// their own sub-parts (a tool result's content, a search result's
// snippets), so their encoders recurse back through this same table via
// encodeInnerParts.
var outboundPartEncoders = map[content.PartKind]providerutils.PartEncoder{
	content.PartText: func(p content.Part) (map[string]interface{}, error) {
		return map[string]interface{}{"type": "text", "text": p.(content.TextPart).Text}, nil
	},
	content.PartImage: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ImagePart)
		return map[string]interface{}{
			"type": "image",
			"source": map[string]interface{}{
				"type":       "base64",
				"media_type": v.MimeType,
				"data":       v.ImageData,
			},
		}, nil
	},
	content.PartToolCall: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ToolCallPart)
		return map[string]interface{}{
			"type":  "tool_use",
			"id":    v.ToolCallID,
			"name":  v.ToolName,
			"input": v.Args,
		}, nil
	},
	content.PartToolResult: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ToolResultPart)
		inner, err := encodeInnerParts(v.Content)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":        "tool_result",
			"tool_use_id": v.ToolCallID,
			"content":     inner,
			"is_error":    v.IsError,
		}, nil
	},
	content.PartSource: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.SourcePart)
		inner, err := encodeInnerParts(v.Content)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"type":    "search_result",
			"source":  v.SourceURI,
			"title":   v.Title,
			"content": inner,
		}, nil
	},
	content.PartReasoning: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ReasoningPart)
		if v.IsRedacted() {
			return map[string]interface{}{"type": "redacted_thinking", "data": v.Signature}, nil
		}
		return map[string]interface{}{"type": "thinking", "thinking": v.Text, "signature": v.Signature}, nil
	},
}

func encodeInnerParts(parts []content.Part) ([]map[string]interface{}, error) {
	return providerutils.EncodeParts(providerName, parts, outboundPartEncoders)
}

type messagesResponse struct {
	Content []struct {
		Type      string                 `json:"type"`
		Text      string                 `json:"text"`
		ID        string                 `json:"id"`
		Name      string                 `json:"name"`
		Input     map[string]interface{} `json:"input"`
		Thinking  string                 `json:"thinking"`
		Signature string                 `json:"signature"`
		Data      string                 `json:"data"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens              int64 `json:"input_tokens"`
		OutputTokens             int64 `json:"output_tokens"`
		CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

func (a *adapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var resp messagesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, llmerr.NewInvariant("decoding messages response", err)
	}

	var parts content.Parts
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			tp, err := content.NewTextPart(block.Text)
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, tp)
		case "tool_use":
			cp, err := content.NewToolCallPart(block.ID, block.Name, block.Input, "")
			if err != nil {
				return nil, nil, err
			}
			parts = append(parts, cp)
		case "thinking":
			parts = append(parts, content.ReasoningPart{Text: block.Thinking, Signature: block.Signature})
		case "redacted_thinking":
			parts = append(parts, content.ReasoningPart{Signature: block.Data})
		}
	}

	input := resp.Usage.InputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.CacheCreationInputTokens
	cacheRead := resp.Usage.CacheReadInputTokens
	usage := &streamacc.ModelUsage{
		InputTokens:       input,
		OutputTokens:      resp.Usage.OutputTokens,
		InputCachedTokens: &cacheRead,
	}

	return parts, usage, nil
}

type blockState struct {
	kind        content.PartKind
	toolCallID  string
	toolName    string
	toolOrdinal int
	// reasoning is buffered across content_block_delta events and flushed as
	// a single RawDelta at content_block_stop: GuessIndex's type-singleton
	// reuse rule only covers text and audio, not reasoning, so emitting one
	// RawDelta per thinking_delta would allocate a fresh index per fragment
	// instead of merging them.
	thinkingText      string
	thinkingSignature string
}

type streamState struct {
	blocks           map[int]*blockState
	toolOrdinal      int
	inputTokens      int64
	cacheReadTokens  int64
	cacheWriteTokens int64
}

func (a *adapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	if state.Scratch == nil {
		state.Scratch = &streamState{blocks: make(map[int]*blockState)}
	}
	ss := state.Scratch.(*streamState)

	switch event.Event {
	case "ping", "message_stop":
		return nil, nil, event.Event == "message_stop", nil

	case "message_start":
		var msg struct {
			Message struct {
				Usage struct {
					InputTokens              int64 `json:"input_tokens"`
					CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
					CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
				} `json:"usage"`
			} `json:"message"`
		}
		if err := json.Unmarshal([]byte(event.Data), &msg); err != nil {
			return nil, nil, false, llmerr.NewInvariant("decoding message_start", err)
		}
		ss.inputTokens = msg.Message.Usage.InputTokens
		ss.cacheReadTokens = msg.Message.Usage.CacheReadInputTokens
		ss.cacheWriteTokens = msg.Message.Usage.CacheCreationInputTokens
		cacheRead := ss.cacheReadTokens
		startUsage := &streamacc.ModelUsage{
			InputTokens:       ss.inputTokens + ss.cacheReadTokens + ss.cacheWriteTokens,
			InputCachedTokens: &cacheRead,
		}
		return nil, startUsage, false, nil

	case "content_block_start":
		var start struct {
			Index        int `json:"index"`
			ContentBlock struct {
				Type string `json:"type"`
				ID   string `json:"id"`
				Name string `json:"name"`
				Data string `json:"data"`
			} `json:"content_block"`
		}
		if err := json.Unmarshal([]byte(event.Data), &start); err != nil {
			return nil, nil, false, llmerr.NewInvariant("decoding content_block_start", err)
		}
		switch start.ContentBlock.Type {
		case "tool_use":
			// Per spec: a tool_use block always starts with an empty args
			// buffer regardless of any vendor-supplied initial payload; only
			// input_json_delta events populate it. toolOrdinal counts tool_use
			// blocks in the order they open, matching the oracle's
			// enumeration-position hint contract (it is not the SSE index,
			// which runs across every block type, not just tool calls).
			ordinal := ss.toolOrdinal
			ss.toolOrdinal++
			ss.blocks[start.Index] = &blockState{kind: content.PartToolCall, toolCallID: start.ContentBlock.ID, toolName: start.ContentBlock.Name, toolOrdinal: ordinal}
			pd := streamacc.PartDelta{Kind: content.PartToolCall}
			id := start.ContentBlock.ID
			name := start.ContentBlock.Name
			pd.ToolCallID = &id
			pd.ToolName = &name
			return []llm.RawDelta{{Delta: pd, ToolHint: &ordinal}}, nil, false, nil
		case "thinking":
			ss.blocks[start.Index] = &blockState{kind: content.PartReasoning}
		case "redacted_thinking":
			// The redacted form carries its opaque payload directly in
			// content_block_start, not via deltas — flush it as a complete
			// reasoning part immediately.
			ss.blocks[start.Index] = &blockState{kind: content.PartReasoning}
			sig := start.ContentBlock.Data
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartReasoning, Signature: &sig}}}, nil, false, nil
		default:
			ss.blocks[start.Index] = &blockState{kind: content.PartText}
		}
		return nil, nil, false, nil

	case "content_block_delta":
		var delta struct {
			Index int `json:"index"`
			Delta struct {
				Type        string `json:"type"`
				Text        string `json:"text"`
				PartialJSON string `json:"partial_json"`
				Thinking    string `json:"thinking"`
				Signature   string `json:"signature"`
				Citation    struct {
					CitedText  string `json:"cited_text"`
					Title      string `json:"title"`
					StartIndex int    `json:"start_char_index"`
					EndIndex   int    `json:"end_char_index"`
				} `json:"citation"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(event.Data), &delta); err != nil {
			return nil, nil, false, llmerr.NewInvariant("decoding content_block_delta", err)
		}

		switch delta.Delta.Type {
		case "text_delta":
			text := delta.Delta.Text
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}}}, nil, false, nil
		case "input_json_delta":
			if delta.Delta.PartialJSON == "" {
				return nil, nil, false, nil
			}
			block := ss.blocks[delta.Index]
			if block == nil || block.kind != content.PartToolCall {
				return nil, nil, false, llmerr.NewInvariant("input_json_delta for unknown or non-tool-call block", nil)
			}
			args := delta.Delta.PartialJSON
			ordinal := block.toolOrdinal
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartToolCall, Args: &args}, ToolHint: &ordinal}}, nil, false, nil
		case "thinking_delta":
			block := ss.blocks[delta.Index]
			if block != nil {
				block.thinkingText += delta.Delta.Thinking
			}
			return nil, nil, false, nil
		case "signature_delta":
			block := ss.blocks[delta.Index]
			if block != nil {
				block.thinkingSignature += delta.Delta.Signature
			}
			return nil, nil, false, nil
		case "citations_delta":
			citation := content.Citation{
				CitedText:  delta.Delta.Citation.CitedText,
				Title:      delta.Delta.Citation.Title,
				StartIndex: delta.Delta.Citation.StartIndex,
				EndIndex:   delta.Delta.Citation.EndIndex,
			}
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartText, Citations: []content.Citation{citation}}}}, nil, false, nil
		}
		return nil, nil, false, nil

	case "content_block_stop":
		var stop struct {
			Index int `json:"index"`
		}
		if err := json.Unmarshal([]byte(event.Data), &stop); err != nil {
			return nil, nil, false, llmerr.NewInvariant("decoding content_block_stop", err)
		}
		block := ss.blocks[stop.Index]
		delete(ss.blocks, stop.Index)
		if block != nil && block.kind == content.PartReasoning && (block.thinkingText != "" || block.thinkingSignature != "") {
			text, sig := block.thinkingText, block.thinkingSignature
			return []llm.RawDelta{{Delta: streamacc.PartDelta{Kind: content.PartReasoning, Text: &text, Signature: &sig}}}, nil, false, nil
		}
		return nil, nil, false, nil

	case "message_delta":
		var delta struct {
			Usage struct {
				OutputTokens int64 `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal([]byte(event.Data), &delta); err != nil {
			return nil, nil, false, llmerr.NewInvariant("decoding message_delta", err)
		}
		usage := &streamacc.ModelUsage{OutputTokens: delta.Usage.OutputTokens}
		return nil, usage, false, nil
	}

	return nil, nil, false, nil
}
