// Package google implements an llm.Adapter for Google's Gemini
// generateContent API: system instruction via a dedicated field, inline-data
// images/audio, and a single-candidate streaming shape mapped symmetrically
// to OpenAI Chat's text/tool-call dispatch per spec.md §4.E.
package google

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

const providerName = "google"

// Config holds connection settings for one Gemini account. Google
// authenticates via an API-key query parameter rather than a bearer
// header, so Config does not feed the transport.Config headers map the
// other adapters use.
type Config struct {
	APIKey  string
	BaseURL string // defaults to https://generativelanguage.googleapis.com/v1beta
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return "https://generativelanguage.googleapis.com/v1beta"
}

// NewModel builds an llm.Model bound to the Gemini generateContent adapter.
func NewModel(modelID string, cfg Config, opts llm.ModelOptions) (*llm.Model, error) {
	opts.Transport.BaseURL = cfg.baseURL()
	return llm.NewModel(llm.ProviderGoogle, modelID, &adapter{apiKey: cfg.APIKey}, opts)
}

type adapter struct {
	apiKey string
}

func (a *adapter) ToRequest(input llm.LanguageModelInput, modelID string, stream bool) (llm.Request, error) {
	body := map[string]interface{}{}

	contents, err := toGoogleContents(input.Messages)
	if err != nil {
		return llm.Request{}, err
	}
	body["contents"] = contents

	if input.System != "" {
		body["systemInstruction"] = map[string]interface{}{
			"parts": []map[string]interface{}{{"text": input.System}},
		}
	}

	genConfig := map[string]interface{}{}
	if input.Temperature != nil {
		genConfig["temperature"] = *input.Temperature
	}
	if input.MaxTokens != nil {
		genConfig["maxOutputTokens"] = *input.MaxTokens
	}
	if input.TopP != nil {
		genConfig["topP"] = *input.TopP
	}
	if input.TopK != nil {
		genConfig["topK"] = *input.TopK
	}
	if input.PresencePenalty != nil {
		genConfig["presencePenalty"] = *input.PresencePenalty
	}
	if input.FrequencyPenalty != nil {
		genConfig["frequencyPenalty"] = *input.FrequencyPenalty
	}
	if input.Seed != nil {
		genConfig["seed"] = *input.Seed
	}
	if len(input.StopSequences) > 0 {
		genConfig["stopSequences"] = input.StopSequences
	}
	if input.ResponseFormat != nil {
		if mime := providerutils.ConvertResponseFormat(providerName, input.ResponseFormat); mime != nil {
			genConfig["responseMimeType"] = mime
			if input.ResponseFormat.Kind == llm.ResponseFormatJSONSchema && input.ResponseFormat.Schema != nil {
				genConfig["responseSchema"] = input.ResponseFormat.Schema
			}
		}
	}
	if input.Reasoning != nil {
		thinkingConfig := map[string]interface{}{"includeThoughts": input.Reasoning.Enabled}
		if input.Reasoning.Enabled && input.Reasoning.BudgetTokens != nil {
			thinkingConfig["thinkingBudget"] = *input.Reasoning.BudgetTokens
		}
		genConfig["thinkingConfig"] = thinkingConfig
	}
	if len(genConfig) > 0 {
		body["generationConfig"] = genConfig
	}

	if len(input.Tools) > 0 {
		decls := make([]map[string]interface{}, len(input.Tools))
		for i, t := range input.Tools {
			decls[i] = map[string]interface{}{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Parameters,
			}
		}
		body["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}
	if input.ToolChoice != nil {
		mode := providerutils.ConvertToolChoice(providerName, *input.ToolChoice)
		config := map[string]interface{}{"functionCallingConfig": map[string]interface{}{"mode": mode}}
		if input.ToolChoice.Kind == llm.ToolChoiceSpecific {
			config["functionCallingConfig"].(map[string]interface{})["allowedFunctionNames"] = []string{input.ToolChoice.ToolName}
		}
		body["toolConfig"] = config
	}

	if input.Audio != nil {
		return llm.Request{}, llmerr.NewUnsupported(providerName, "audio output")
	}

	payload, err := transport.MarshalJSON(body)
	if err != nil {
		return llm.Request{}, err
	}

	action := "generateContent"
	query := map[string]string{"key": a.apiKey}
	if stream {
		action = "streamGenerateContent"
		query["alt"] = "sse"
	}

	return llm.Request{
		Method: http.MethodPost,
		Path:   "/models/" + modelID + ":" + action,
		Query:  query,
		Body:   payload,
	}, nil
}

func toGoogleContents(messages []content.Message) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		parts := providerutils.FlattenSources(msg.Parts)
		wireParts, err := providerutils.EncodeParts(providerName, parts, outboundPartEncoders)
		if err != nil {
			return nil, err
		}
		out = append(out, map[string]interface{}{
			"role":  wireRole(msg.Role),
			"parts": wireParts,
		})
	}
	return out, nil
}

func wireRole(r content.Role) string {
	switch r {
	case content.RoleAssistant:
		return "model"
	default:
		// user and tool messages both ride as "user" turns; tool results are
		// distinguished by their functionResponse part, not the turn role.
		return "user"
	}
}

// outboundPartEncoders is the dispatch table behind every wire part Gemini
// accepts in a content turn: text, inline media, function calls and their
// results, and thought parts. Every content.PartKind except PartSource has
// exactly one wire shape here (source parts are flattened before encoding),
// so EncodeParts covers the whole message in one pass.
var outboundPartEncoders = map[content.PartKind]providerutils.PartEncoder{
	content.PartText: func(p content.Part) (map[string]interface{}, error) {
		return map[string]interface{}{"text": p.(content.TextPart).Text}, nil
	},
	content.PartImage: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ImagePart)
		return map[string]interface{}{
			"inlineData": map[string]interface{}{"mimeType": v.MimeType, "data": v.ImageData},
		}, nil
	},
	content.PartAudio: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.AudioPart)
		return map[string]interface{}{
			"inlineData": map[string]interface{}{"mimeType": audioMimeType(v.Format), "data": v.AudioData},
		}, nil
	},
	content.PartToolCall: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ToolCallPart)
		return map[string]interface{}{
			"functionCall": map[string]interface{}{"name": v.ToolName, "args": v.Args},
		}, nil
	},
	content.PartToolResult: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ToolResultPart)
		resp := map[string]interface{}{"output": toolResultText(v)}
		if v.IsError {
			resp["error"] = toolResultText(v)
		}
		return map[string]interface{}{
			"functionResponse": map[string]interface{}{"name": v.ToolName, "response": resp},
		}, nil
	},
	content.PartReasoning: func(p content.Part) (map[string]interface{}, error) {
		v := p.(content.ReasoningPart)
		part := map[string]interface{}{"text": v.Text, "thought": true}
		if v.Signature != "" {
			part["thoughtSignature"] = v.Signature
		}
		return part, nil
	},
}

func audioMimeType(f content.AudioFormat) string {
	switch f {
	case content.AudioFormatWAV:
		return "audio/wav"
	case content.AudioFormatMP3:
		return "audio/mp3"
	case content.AudioFormatFLAC:
		return "audio/flac"
	default:
		return "audio/" + string(f)
	}
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

type googlePart struct {
	Text         string `json:"text"`
	Thought      bool   `json:"thought"`
	Signature    string `json:"thoughtSignature"`
	FunctionCall *struct {
		Name string                 `json:"name"`
		Args map[string]interface{} `json:"args"`
	} `json:"functionCall"`
	InlineData *struct {
		MimeType string `json:"mimeType"`
		Data     string `json:"data"`
	} `json:"inlineData"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int64 `json:"promptTokenCount"`
		CandidatesTokenCount int64 `json:"candidatesTokenCount"`
		CachedContentTokens  int64 `json:"cachedContentTokenCount"`
	} `json:"usageMetadata"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (a *adapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var resp googleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, llmerr.NewInvariant("decoding generateContent response", err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, nil, llmerr.NewRefusal(resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, nil, llmerr.NewInvariant("generateContent response has no candidates", nil)
	}

	var parts content.Parts
	for _, gp := range resp.Candidates[0].Content.Parts {
		part, err := fromGooglePart(gp)
		if err != nil {
			return nil, nil, err
		}
		if part != nil {
			parts = append(parts, part)
		}
	}

	var usage *streamacc.ModelUsage
	if resp.UsageMetadata != nil {
		u := &streamacc.ModelUsage{
			InputTokens:  resp.UsageMetadata.PromptTokenCount,
			OutputTokens: resp.UsageMetadata.CandidatesTokenCount,
		}
		if resp.UsageMetadata.CachedContentTokens > 0 {
			cached := resp.UsageMetadata.CachedContentTokens
			u.InputCachedTokens = &cached
		}
		usage = u
	}

	return parts, usage, nil
}

func fromGooglePart(gp googlePart) (content.Part, error) {
	switch {
	case gp.FunctionCall != nil:
		return content.NewToolCallPart(gp.FunctionCall.Name, gp.FunctionCall.Name, gp.FunctionCall.Args, "")
	case gp.Thought:
		return content.ReasoningPart{Text: gp.Text, Signature: gp.Signature}, nil
	case gp.InlineData != nil:
		return content.NewImagePart(gp.InlineData.Data, gp.InlineData.MimeType, nil, nil, "")
	case gp.Text != "":
		return content.NewTextPart(gp.Text)
	default:
		return nil, nil
	}
}

func (a *adapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	var chunk googleResponse
	if err := json.Unmarshal([]byte(event.Data), &chunk); err != nil {
		return nil, nil, false, llmerr.NewInvariant("decoding streamGenerateContent chunk", err)
	}
	if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
		return nil, nil, true, llmerr.NewRefusal(chunk.PromptFeedback.BlockReason)
	}

	var deltas []llm.RawDelta
	var usage *streamacc.ModelUsage
	done := false

	if len(chunk.Candidates) > 0 {
		candidate := chunk.Candidates[0]
		for _, gp := range candidate.Content.Parts {
			switch {
			case gp.FunctionCall != nil:
				// Gemini never assigns its own tool-call ids; reuse the
				// function name, matching FromResponse's non-streaming path.
				name := gp.FunctionCall.Name
				args, err := json.Marshal(gp.FunctionCall.Args)
				if err != nil {
					return nil, nil, false, err
				}
				argsStr := string(args)
				pd := streamacc.PartDelta{Kind: content.PartToolCall, ToolCallID: &name, ToolName: &name, Args: &argsStr}
				deltas = append(deltas, llm.RawDelta{Delta: pd})
			case gp.Thought:
				text := gp.Text
				pd := streamacc.PartDelta{Kind: content.PartReasoning, Text: &text}
				if gp.Signature != "" {
					sig := gp.Signature
					pd.Signature = &sig
				}
				deltas = append(deltas, llm.RawDelta{Delta: pd})
			case gp.Text != "":
				text := gp.Text
				deltas = append(deltas, llm.RawDelta{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}})
			}
		}
		if candidate.FinishReason != "" {
			done = true
		}
	}

	if chunk.UsageMetadata != nil {
		u := &streamacc.ModelUsage{
			InputTokens:  chunk.UsageMetadata.PromptTokenCount,
			OutputTokens: chunk.UsageMetadata.CandidatesTokenCount,
		}
		usage = u
	}

	return deltas, usage, done, nil
}
