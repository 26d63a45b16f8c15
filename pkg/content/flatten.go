package content

// Flatten implements the Source-Part Flattener (component B):
// recursively replaces every SourcePart with its inner content, in order,
// with no structural change to any other part. It is idempotent
// (Flatten(Flatten(p)) == Flatten(p), invariant P2) and is used by adapters
// whose target provider has no native citation type.
func Flatten(parts []Part) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		out = append(out, flattenOne(p)...)
	}
	return out
}

func flattenOne(p Part) []Part {
	sp, ok := p.(SourcePart)
	if !ok {
		return []Part{p}
	}
	out := make([]Part, 0, len(sp.Content))
	for _, inner := range sp.Content {
		// SourcePart.Content is restricted to TextPart/ImagePart (never
		// SourcePart) by NewSourcePart, so a single level of recursion
		// already covers every case, but flattenOne is applied uniformly
		// for defense against hand-built SourceParts that skip the
		// validating constructor.
		out = append(out, flattenOne(inner)...)
	}
	return out
}
