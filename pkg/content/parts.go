package content

import "fmt"

// TextPart carries utf-8 text and an optional ordered list of citations.
type TextPart struct {
	Text      string
	Citations []Citation
}

func (TextPart) PartType() PartKind { return PartText }
func (TextPart) partMarker()        {}

// NewTextPart constructs a TextPart, validating every citation's offsets.
func NewTextPart(text string, citations ...Citation) (TextPart, error) {
	for i, c := range citations {
		if c.EndIndex < c.StartIndex {
			return TextPart{}, fmt.Errorf("content: citation %d has end_index %d < start_index %d", i, c.EndIndex, c.StartIndex)
		}
	}
	return TextPart{Text: text, Citations: citations}, nil
}

// Citation attributes a byte range of a TextPart to a source.
type Citation struct {
	SourceID   string
	CitedText  string
	StartIndex int
	EndIndex   int
	Title      string
}

// ImagePart carries base64-encoded image bytes.
type ImagePart struct {
	ImageData string
	MimeType  string
	Width     *int
	Height    *int
	ID        string
}

func (ImagePart) PartType() PartKind { return PartImage }
func (ImagePart) partMarker()        {}

// NewImagePart validates that mime type is present whenever image data is.
func NewImagePart(imageData, mimeType string, width, height *int, id string) (ImagePart, error) {
	if imageData != "" && mimeType == "" {
		return ImagePart{}, fmt.Errorf("content: image part has data but no mime_type")
	}
	return ImagePart{ImageData: imageData, MimeType: mimeType, Width: width, Height: height, ID: id}, nil
}

// AudioFormat enumerates the wire audio encodings adapters may produce or
// consume.
type AudioFormat string

const (
	AudioFormatWAV      AudioFormat = "wav"
	AudioFormatLinear16 AudioFormat = "linear16"
	AudioFormatFLAC     AudioFormat = "flac"
	AudioFormatMulaw    AudioFormat = "mulaw"
	AudioFormatAlaw     AudioFormat = "alaw"
	AudioFormatMP3      AudioFormat = "mp3"
	AudioFormatOpus     AudioFormat = "opus"
	AudioFormatAAC      AudioFormat = "aac"
)

// ConcatenationSafe reports whether chunks of this format may be
// sample-level concatenated during stream reconciliation. Only linear16
// (raw signed 16-bit PCM) guarantees that byte-concatenating N encoded
// chunks is equivalent to concatenating their decoded sample sequences.
func (f AudioFormat) ConcatenationSafe() bool {
	return f == AudioFormatLinear16
}

// AudioPart carries base64-encoded audio bytes.
type AudioPart struct {
	AudioData  string
	Format     AudioFormat
	SampleRate *int
	Channels   *int
	Transcript string
	ID         string
}

func (AudioPart) PartType() PartKind { return PartAudio }
func (AudioPart) partMarker()        {}

// ReasoningPart carries vendor "thinking" content. A part with empty Text
// but non-empty Signature is the redacted form.
type ReasoningPart struct {
	Text      string
	Signature string
	ID        string
}

func (ReasoningPart) PartType() PartKind { return PartReasoning }
func (ReasoningPart) partMarker()        {}

// IsRedacted reports whether this is a redacted reasoning part.
func (r ReasoningPart) IsRedacted() bool {
	return r.Text == "" && r.Signature != ""
}

// ToolCallPart represents the model invoking a tool.
type ToolCallPart struct {
	ToolCallID string
	ToolName   string
	Args       map[string]interface{}
	ID         string
}

func (ToolCallPart) PartType() PartKind { return PartToolCall }
func (ToolCallPart) partMarker()        {}

// NewToolCallPart validates the required, non-empty identifying fields.
func NewToolCallPart(toolCallID, toolName string, args map[string]interface{}, id string) (ToolCallPart, error) {
	if toolCallID == "" {
		return ToolCallPart{}, fmt.Errorf("content: tool-call part requires non-empty tool_call_id")
	}
	if toolName == "" {
		return ToolCallPart{}, fmt.Errorf("content: tool-call part requires non-empty tool_name")
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return ToolCallPart{ToolCallID: toolCallID, ToolName: toolName, Args: args, ID: id}, nil
}

// ToolResultPart represents the result of executing a tool call. Content may
// only hold TextPart, SourcePart, or ImagePart.
type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Content    []Part
	IsError    bool
}

func (ToolResultPart) PartType() PartKind { return PartToolResult }
func (ToolResultPart) partMarker()        {}

// NewToolResultPart validates identifying fields and the restricted content
// kinds.
func NewToolResultPart(toolCallID, toolName string, content []Part, isError bool) (ToolResultPart, error) {
	if toolCallID == "" {
		return ToolResultPart{}, fmt.Errorf("content: tool-result part requires non-empty tool_call_id")
	}
	if toolName == "" {
		return ToolResultPart{}, fmt.Errorf("content: tool-result part requires non-empty tool_name")
	}
	for i, p := range content {
		switch p.PartType() {
		case PartText, PartSource, PartImage:
		default:
			return ToolResultPart{}, fmt.Errorf("content: tool-result content %d has disallowed type %q", i, p.PartType())
		}
	}
	return ToolResultPart{ToolCallID: toolCallID, ToolName: toolName, Content: content, IsError: isError}, nil
}

// SourcePart is a citation-grounding container. Its Content may only hold
// TextPart or ImagePart, and MUST NOT nest another SourcePart.
type SourcePart struct {
	SourceURI string
	Title     string
	Content   []Part
}

func (SourcePart) PartType() PartKind { return PartSource }
func (SourcePart) partMarker()        {}

// NewSourcePart validates the restricted, non-nesting content kinds.
func NewSourcePart(sourceURI, title string, content []Part) (SourcePart, error) {
	for i, p := range content {
		switch p.PartType() {
		case PartText, PartImage:
		case PartSource:
			return SourcePart{}, fmt.Errorf("content: source part content %d must not nest a source part", i)
		default:
			return SourcePart{}, fmt.Errorf("content: source part content %d has disallowed type %q", i, p.PartType())
		}
	}
	return SourcePart{SourceURI: sourceURI, Title: title, Content: content}, nil
}
