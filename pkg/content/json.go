package content

import (
	"encoding/json"
	"fmt"
)

// wirePart is the internal canonical JSON shape used only by cross-adapter
// fixtures and golden tests — it is not any vendor's wire format.
type wirePart struct {
	Type string `json:"type"`

	// text
	Text      string     `json:"text,omitempty"`
	Citations []Citation `json:"citations,omitempty"`

	// image
	ImageData string `json:"imageData,omitempty"`
	MimeType  string `json:"mimeType,omitempty"`
	Width     *int   `json:"width,omitempty"`
	Height    *int   `json:"height,omitempty"`

	// audio
	AudioData  string      `json:"audioData,omitempty"`
	Format     AudioFormat `json:"format,omitempty"`
	SampleRate *int        `json:"sampleRate,omitempty"`
	Channels   *int        `json:"channels,omitempty"`
	Transcript string      `json:"transcript,omitempty"`

	// reasoning
	Signature string `json:"signature,omitempty"`

	// tool-call / tool-result shared
	ToolCallID string                 `json:"toolCallId,omitempty"`
	ToolName   string                 `json:"toolName,omitempty"`
	Args       map[string]interface{} `json:"args,omitempty"`
	IsError    bool                   `json:"isError,omitempty"`

	// source
	SourceURI string `json:"sourceUri,omitempty"`
	Title     string `json:"title,omitempty"`

	// id shared by image/audio/reasoning/tool-call
	ID string `json:"id,omitempty"`

	// nested content shared by tool-result/source
	Content []wirePart `json:"content,omitempty"`
}

// MarshalPart serializes a Part to the internal canonical JSON form. It is
// lossless for every variant: unmarshaling the result with UnmarshalPart
// reproduces a structurally Equal Part.
func MarshalPart(p Part) ([]byte, error) {
	return json.Marshal(toWire(p))
}

// UnmarshalPart parses the internal canonical JSON form produced by
// MarshalPart.
func UnmarshalPart(data []byte) (Part, error) {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

func toWire(p Part) wirePart {
	switch v := p.(type) {
	case TextPart:
		return wirePart{Type: string(PartText), Text: v.Text, Citations: v.Citations}
	case ImagePart:
		return wirePart{Type: string(PartImage), ImageData: v.ImageData, MimeType: v.MimeType, Width: v.Width, Height: v.Height, ID: v.ID}
	case AudioPart:
		return wirePart{Type: string(PartAudio), AudioData: v.AudioData, Format: v.Format, SampleRate: v.SampleRate, Channels: v.Channels, Transcript: v.Transcript, ID: v.ID}
	case ReasoningPart:
		return wirePart{Type: string(PartReasoning), Text: v.Text, Signature: v.Signature, ID: v.ID}
	case ToolCallPart:
		return wirePart{Type: string(PartToolCall), ToolCallID: v.ToolCallID, ToolName: v.ToolName, Args: v.Args, ID: v.ID}
	case ToolResultPart:
		return wirePart{Type: string(PartToolResult), ToolCallID: v.ToolCallID, ToolName: v.ToolName, IsError: v.IsError, Content: toWireSlice(v.Content)}
	case SourcePart:
		return wirePart{Type: string(PartSource), SourceURI: v.SourceURI, Title: v.Title, Content: toWireSlice(v.Content)}
	default:
		return wirePart{}
	}
}

func toWireSlice(parts []Part) []wirePart {
	if parts == nil {
		return nil
	}
	out := make([]wirePart, len(parts))
	for i, p := range parts {
		out[i] = toWire(p)
	}
	return out
}

func fromWire(w wirePart) (Part, error) {
	switch PartKind(w.Type) {
	case PartText:
		return TextPart{Text: w.Text, Citations: w.Citations}, nil
	case PartImage:
		return ImagePart{ImageData: w.ImageData, MimeType: w.MimeType, Width: w.Width, Height: w.Height, ID: w.ID}, nil
	case PartAudio:
		return AudioPart{AudioData: w.AudioData, Format: w.Format, SampleRate: w.SampleRate, Channels: w.Channels, Transcript: w.Transcript, ID: w.ID}, nil
	case PartReasoning:
		return ReasoningPart{Text: w.Text, Signature: w.Signature, ID: w.ID}, nil
	case PartToolCall:
		return ToolCallPart{ToolCallID: w.ToolCallID, ToolName: w.ToolName, Args: w.Args, ID: w.ID}, nil
	case PartToolResult:
		content, err := fromWireSlice(w.Content)
		if err != nil {
			return nil, err
		}
		return ToolResultPart{ToolCallID: w.ToolCallID, ToolName: w.ToolName, Content: content, IsError: w.IsError}, nil
	case PartSource:
		content, err := fromWireSlice(w.Content)
		if err != nil {
			return nil, err
		}
		return SourcePart{SourceURI: w.SourceURI, Title: w.Title, Content: content}, nil
	default:
		return nil, fmt.Errorf("content: unknown part type %q", w.Type)
	}
}

func fromWireSlice(wps []wirePart) ([]Part, error) {
	if wps == nil {
		return nil, nil
	}
	out := make([]Part, len(wps))
	for i, w := range wps {
		p, err := fromWire(w)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
