// Package streamacc implements the Streaming Delta Reconciler: the Delta
// Index Oracle (component C) that assigns a canonical index to an incoming
// partial, and the Stream Accumulator (component D) that merges an ordered
// series of partial deltas into a final ModelResponse.
package streamacc

import (
	"github.com/shopspring/decimal"

	"github.com/kestrelai/modelkit/pkg/content"
)

// PartDelta mirrors content.Part with every field optional. Text-like
// fields (Text, ToolName, Args, Transcript, Summary, ImageData, AudioData)
// are append-fragments: each successive delta for the same index adds to
// what came before rather than replacing it; Citations are appended too.
// All other fields overwrite when present (last write wins).
type PartDelta struct {
	Kind content.PartKind

	// text
	Text      *string
	Citations []content.Citation

	// image
	ImageData *string
	MimeType  *string
	Width     *int
	Height    *int

	// audio
	AudioData  *string
	Format     *content.AudioFormat
	SampleRate *int
	Channels   *int
	Transcript *string

	// reasoning
	Signature *string
	// Summary is a back-compat channel for providers (OpenAI Responses)
	// that stream reasoning as discrete summary fragments instead of a
	// single thinking-text stream. Promoted to Text at finalization only
	// if Text was never set.
	Summary *string

	// tool-call
	ToolCallID *string
	ToolName   *string
	Args       *string

	// shared id (image, audio, reasoning, tool-call)
	ID *string
}

// ContentDelta is one yield of the stream: the canonical index it folds
// into, plus the fragment itself.
type ContentDelta struct {
	Index int
	Delta PartDelta
}

// ModelUsage is token usage, optionally broken down per modality and cache
// state.
type ModelUsage struct {
	InputTokens  int64
	OutputTokens int64

	InputTextTokens   *int64
	InputAudioTokens  *int64
	InputImageTokens  *int64
	InputCachedTokens *int64

	OutputTextTokens  *int64
	OutputAudioTokens *int64
	OutputImageTokens *int64
}

// Add returns the element-wise sum of u and other.
func (u ModelUsage) Add(other ModelUsage) ModelUsage {
	return ModelUsage{
		InputTokens:       u.InputTokens + other.InputTokens,
		OutputTokens:      u.OutputTokens + other.OutputTokens,
		InputTextTokens:   addPtr(u.InputTextTokens, other.InputTextTokens),
		InputAudioTokens:  addPtr(u.InputAudioTokens, other.InputAudioTokens),
		InputImageTokens:  addPtr(u.InputImageTokens, other.InputImageTokens),
		InputCachedTokens: addPtr(u.InputCachedTokens, other.InputCachedTokens),
		OutputTextTokens:  addPtr(u.OutputTextTokens, other.OutputTextTokens),
		OutputAudioTokens: addPtr(u.OutputAudioTokens, other.OutputAudioTokens),
		OutputImageTokens: addPtr(u.OutputImageTokens, other.OutputImageTokens),
	}
}

func addPtr(a, b *int64) *int64 {
	if a == nil && b == nil {
		return nil
	}
	var av, bv int64
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	sum := av + bv
	return &sum
}

// PartialModelResponse is exactly one stream yield: an optional content
// delta, an optional usage increment, and an optional cost increment.
type PartialModelResponse struct {
	Delta      *ContentDelta
	UsageDelta *ModelUsage
	CostDelta  *decimal.Decimal
}

// ModelResponse is the result of either Generate or a fully-accumulated
// Stream.
type ModelResponse struct {
	Content content.Parts
	Usage   *ModelUsage
	Cost    *decimal.Decimal
}
