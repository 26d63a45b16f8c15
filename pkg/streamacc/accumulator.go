package streamacc

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llmerr"
)

// Accumulator is the Stream Accumulator. It owns an ordered map keyed by
// delta index, a running ModelUsage, and a running cost, until
// ComputeResponse transfers ownership of the accumulated state to the
// returned ModelResponse.
type Accumulator struct {
	records map[int]*progressRecord
	usage   ModelUsage
	haveUsage bool
	cost    decimal.Decimal
	haveCost bool
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{records: make(map[int]*progressRecord)}
}

// Size reports how many distinct indices are currently in progress.
func (a *Accumulator) Size() int { return len(a.records) }

// IsEmpty reports whether no deltas have been added yet.
func (a *Accumulator) IsEmpty() bool { return len(a.records) == 0 }

// progressRecord is the in-progress, per-index accumulation state.
type progressRecord struct {
	kind content.PartKind

	text      strings.Builder
	citations []content.Citation

	imageData strings.Builder
	mimeType  string
	width     *int
	height    *int

	audioChunks []string
	transcript  strings.Builder
	format      content.AudioFormat
	sampleRate  *int
	channels    *int

	signature string
	summary   strings.Builder

	toolCallID string
	toolName   strings.Builder
	args       strings.Builder

	id string
}

// AddPartial merges one stream yield into the accumulator. If the partial
// carries a usage increment it is added element-wise; if it carries a cost
// increment it is added. A merge whose variant differs from the
// in-progress record at that index fails with an *llmerr.InvariantError
// and leaves the accumulator's state unchanged (invariant P6).
func (a *Accumulator) AddPartial(p PartialModelResponse) error {
	if p.Delta != nil {
		if err := a.mergeDelta(*p.Delta); err != nil {
			return err
		}
	}
	if p.UsageDelta != nil {
		if a.haveUsage {
			a.usage = a.usage.Add(*p.UsageDelta)
		} else {
			a.usage = *p.UsageDelta
			a.haveUsage = true
		}
	}
	if p.CostDelta != nil {
		if a.haveCost {
			a.cost = a.cost.Add(*p.CostDelta)
		} else {
			a.cost = *p.CostDelta
			a.haveCost = true
		}
	}
	return nil
}

func (a *Accumulator) mergeDelta(cd ContentDelta) error {
	rec, exists := a.records[cd.Index]
	if !exists {
		rec = &progressRecord{kind: cd.Delta.Kind}
		a.records[cd.Index] = rec
	} else if rec.kind != cd.Delta.Kind {
		return llmerr.NewInvariant(
			"merge target kind mismatch at index "+strconv.Itoa(cd.Index)+": have "+string(rec.kind)+", got "+string(cd.Delta.Kind),
			nil,
		)
	}

	d := cd.Delta
	switch d.Kind {
	case content.PartText:
		if d.Text != nil {
			rec.text.WriteString(*d.Text)
		}
		rec.citations = append(rec.citations, d.Citations...)

	case content.PartReasoning:
		if d.Text != nil {
			rec.text.WriteString(*d.Text)
		}
		if d.Summary != nil {
			rec.summary.WriteString(*d.Summary)
		}
		if d.Signature != nil {
			rec.signature = *d.Signature
		}
		if d.ID != nil {
			rec.id = *d.ID
		}

	case content.PartToolCall:
		if d.ToolName != nil {
			rec.toolName.WriteString(*d.ToolName)
		}
		if d.Args != nil {
			rec.args.WriteString(*d.Args)
		}
		if d.ToolCallID != nil {
			rec.toolCallID = *d.ToolCallID
		}
		if d.ID != nil {
			rec.id = *d.ID
		}

	case content.PartImage:
		if d.ImageData != nil {
			rec.imageData.WriteString(*d.ImageData)
		}
		if d.MimeType != nil {
			rec.mimeType = *d.MimeType
		}
		if d.Width != nil {
			rec.width = d.Width
		}
		if d.Height != nil {
			rec.height = d.Height
		}
		if d.ID != nil {
			rec.id = *d.ID
		}

	case content.PartAudio:
		if d.AudioData != nil {
			rec.audioChunks = append(rec.audioChunks, *d.AudioData)
		}
		if d.Transcript != nil {
			rec.transcript.WriteString(*d.Transcript)
		}
		if d.Format != nil {
			rec.format = *d.Format
		}
		if d.SampleRate != nil {
			rec.sampleRate = d.SampleRate
		}
		if d.Channels != nil {
			rec.channels = d.Channels
		}
		if d.ID != nil {
			rec.id = *d.ID
		}

	default:
		return llmerr.NewInvariant("unsupported delta kind "+string(d.Kind), nil)
	}
	return nil
}

// ComputeResponse finalizes every in-progress record, in ascending index
// order, and returns the assembled ModelResponse. Ownership of the
// accumulator's internal state transfers to the returned value.
func (a *Accumulator) ComputeResponse() (ModelResponse, error) {
	indices := make([]int, 0, len(a.records))
	for idx := range a.records {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	parts := make(content.Parts, 0, len(indices))
	for _, idx := range indices {
		part, err := finalize(a.records[idx])
		if err != nil {
			return ModelResponse{}, err
		}
		parts = append(parts, part)
	}

	resp := ModelResponse{Content: parts}
	if a.haveUsage {
		u := a.usage
		resp.Usage = &u
	}
	if a.haveCost {
		c := a.cost
		resp.Cost = &c
	}
	return resp, nil
}

func finalize(rec *progressRecord) (content.Part, error) {
	switch rec.kind {
	case content.PartText:
		return content.NewTextPart(rec.text.String(), rec.citations...)

	case content.PartReasoning:
		text := rec.text.String()
		if text == "" && rec.summary.Len() > 0 {
			text = rec.summary.String()
		}
		return content.ReasoningPart{Text: text, Signature: rec.signature, ID: rec.id}, nil

	case content.PartToolCall:
		if rec.toolCallID == "" || rec.toolName.String() == "" {
			return nil, llmerr.NewInvariant("tool-call finalize requires non-empty tool_call_id and tool_name", nil)
		}
		argsStr := rec.args.String()
		var args map[string]interface{}
		if argsStr == "" {
			args = map[string]interface{}{}
		} else if err := json.Unmarshal([]byte(argsStr), &args); err != nil {
			return nil, llmerr.NewInvariant("tool-call arguments did not parse as a JSON object", err)
		}
		return content.ToolCallPart{ToolCallID: rec.toolCallID, ToolName: rec.toolName.String(), Args: args, ID: rec.id}, nil

	case content.PartImage:
		if rec.imageData.Len() == 0 || rec.mimeType == "" {
			return nil, llmerr.NewInvariant("image finalize requires image_data and mime_type", nil)
		}
		return content.ImagePart{ImageData: rec.imageData.String(), MimeType: rec.mimeType, Width: rec.width, Height: rec.height, ID: rec.id}, nil

	case content.PartAudio:
		return finalizeAudio(rec)

	default:
		return nil, llmerr.NewInvariant("unsupported part kind "+string(rec.kind), nil)
	}
}

func finalizeAudio(rec *progressRecord) (content.Part, error) {
	if len(rec.audioChunks) == 0 {
		return nil, llmerr.NewInvariant("audio finalize requires at least one chunk", nil)
	}
	if rec.format != content.AudioFormatLinear16 {
		if len(rec.audioChunks) > 1 {
			return nil, llmerr.NewUnsupported("stream-accumulator", "concatenating multiple "+string(rec.format)+" chunks is not supported (only linear16 is concatenation-safe)")
		}
		return content.AudioPart{
			AudioData: rec.audioChunks[0], Format: rec.format, SampleRate: rec.sampleRate,
			Channels: rec.channels, Transcript: rec.transcript.String(), ID: rec.id,
		}, nil
	}

	var raw []byte
	for _, chunk := range rec.audioChunks {
		decoded, err := base64.StdEncoding.DecodeString(chunk)
		if err != nil {
			return nil, llmerr.NewInvariant("audio chunk is not valid base64", err)
		}
		raw = append(raw, decoded...)
	}
	n := len(raw) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
	}
	merged := make([]byte, len(raw))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(merged[i*2:i*2+2], uint16(s))
	}
	copy(merged[n*2:], raw[n*2:])

	return content.AudioPart{
		AudioData: base64.StdEncoding.EncodeToString(merged), Format: content.AudioFormatLinear16,
		SampleRate: rec.sampleRate, Channels: rec.channels, Transcript: rec.transcript.String(), ID: rec.id,
	}, nil
}
