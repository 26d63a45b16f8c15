package streamacc

import "github.com/kestrelai/modelkit/pkg/content"

// GuessIndex implements the Delta Index Oracle: a pure function that
// assigns the canonical index to an incoming partial given the
// accumulator's current state and an optional provider tool-call hint. It
// performs no I/O and has no side effects.
//
// Decision rules, evaluated in order:
//  1. De-duplicate accumulated by index, keeping first occurrence.
//  2. Tool-call hint path: if incoming is a tool-call and toolHint is
//     non-negative, match it against the toolHint-th existing tool-call
//     delta (by enumeration order), or allocate a new index if the hint
//     falls outside the existing count.
//  3. Type-singleton path: text/audio deltas reuse the most recent delta
//     of the same kind (providers such as OpenAI Chat emit at most one
//     text stream and one audio stream, with no indices of their own).
//  4. New-part path: one past the current maximum index, or 0 if empty.
//
// Tool-calls with no hint always allocate a new index — duplicate tool
// names are legal, so matching by name would be unsound.
func GuessIndex(incoming PartDelta, accumulated []ContentDelta, toolHint *int) int {
	unique := uniqueByIndex(accumulated)

	if incoming.Kind == content.PartToolCall && toolHint != nil && *toolHint >= 0 {
		toolCallIndices := make([]int, 0, len(unique))
		for _, d := range unique {
			if d.Delta.Kind == content.PartToolCall {
				toolCallIndices = append(toolCallIndices, d.Index)
			}
		}
		if *toolHint < len(toolCallIndices) {
			return toolCallIndices[*toolHint]
		}
		return len(unique)
	}

	if incoming.Kind == content.PartText || incoming.Kind == content.PartAudio {
		for i := len(unique) - 1; i >= 0; i-- {
			if unique[i].Delta.Kind == incoming.Kind {
				return unique[i].Index
			}
		}
	}

	if len(unique) == 0 {
		return 0
	}
	maxIndex := unique[0].Index
	for _, d := range unique[1:] {
		if d.Index > maxIndex {
			maxIndex = d.Index
		}
	}
	return maxIndex + 1
}

// uniqueByIndex preserves the first occurrence of each index, in the order
// those first occurrences appeared in accumulated.
func uniqueByIndex(accumulated []ContentDelta) []ContentDelta {
	seen := make(map[int]bool, len(accumulated))
	out := make([]ContentDelta, 0, len(accumulated))
	for _, d := range accumulated {
		if seen[d.Index] {
			continue
		}
		seen[d.Index] = true
		out = append(out, d)
	}
	return out
}
