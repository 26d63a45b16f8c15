package content

// Equal reports whether two Parts are structurally equal. Equality is
// defined per-variant rather than via reflect.DeepEqual so that, e.g., two
// ToolCallPart values with equivalent-but-differently-ordered Args maps
// compare equal.
func Equal(a, b Part) bool {
	if a.PartType() != b.PartType() {
		return false
	}
	switch av := a.(type) {
	case TextPart:
		bv := b.(TextPart)
		if av.Text != bv.Text || len(av.Citations) != len(bv.Citations) {
			return false
		}
		for i := range av.Citations {
			if av.Citations[i] != bv.Citations[i] {
				return false
			}
		}
		return true
	case ImagePart:
		bv := b.(ImagePart)
		return av.ImageData == bv.ImageData && av.MimeType == bv.MimeType &&
			intPtrEqual(av.Width, bv.Width) && intPtrEqual(av.Height, bv.Height) && av.ID == bv.ID
	case AudioPart:
		bv := b.(AudioPart)
		return av.AudioData == bv.AudioData && av.Format == bv.Format &&
			intPtrEqual(av.SampleRate, bv.SampleRate) && intPtrEqual(av.Channels, bv.Channels) &&
			av.Transcript == bv.Transcript && av.ID == bv.ID
	case ReasoningPart:
		bv := b.(ReasoningPart)
		return av.Text == bv.Text && av.Signature == bv.Signature && av.ID == bv.ID
	case ToolCallPart:
		bv := b.(ToolCallPart)
		if av.ToolCallID != bv.ToolCallID || av.ToolName != bv.ToolName || av.ID != bv.ID {
			return false
		}
		return mapsEqual(av.Args, bv.Args)
	case ToolResultPart:
		bv := b.(ToolResultPart)
		if av.ToolCallID != bv.ToolCallID || av.ToolName != bv.ToolName || av.IsError != bv.IsError {
			return false
		}
		return partsEqual(av.Content, bv.Content)
	case SourcePart:
		bv := b.(SourcePart)
		if av.SourceURI != bv.SourceURI || av.Title != bv.Title {
			return false
		}
		return partsEqual(av.Content, bv.Content)
	default:
		return false
	}
}

func partsEqual(a, b []Part) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func intPtrEqual(a, b *int) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	if a == nil {
		return true
	}
	return *a == *b
}

func mapsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !valuesEqual(av, bv) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b interface{}) bool {
	switch at := a.(type) {
	case map[string]interface{}:
		bt, ok := b.(map[string]interface{})
		return ok && mapsEqual(at, bt)
	case []interface{}:
		bt, ok := b.([]interface{})
		if !ok || len(at) != len(bt) {
			return false
		}
		for i := range at {
			if !valuesEqual(at[i], bt[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}
