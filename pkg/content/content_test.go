package content_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/pkg/content"
)

func TestNewMessageInvariants(t *testing.T) {
	toolResult, err := content.NewToolResultPart("call_1", "wx", nil, false)
	require.NoError(t, err)
	toolCall, err := content.NewToolCallPart("call_1", "wx", nil, "")
	require.NoError(t, err)
	text, err := content.NewTextPart("hi")
	require.NoError(t, err)
	reasoning := content.ReasoningPart{Text: "thinking"}

	t.Run("tool message must be all tool-result", func(t *testing.T) {
		_, err := content.NewMessage(content.RoleTool, []content.Part{text})
		assert.Error(t, err)
		_, err = content.NewMessage(content.RoleTool, []content.Part{toolResult})
		assert.NoError(t, err)
	})

	t.Run("assistant message may not contain tool-result", func(t *testing.T) {
		_, err := content.NewMessage(content.RoleAssistant, []content.Part{toolResult})
		assert.Error(t, err)
		_, err = content.NewMessage(content.RoleAssistant, []content.Part{toolCall, reasoning})
		assert.NoError(t, err)
	})

	t.Run("user message may not contain tool-call or reasoning", func(t *testing.T) {
		_, err := content.NewMessage(content.RoleUser, []content.Part{toolCall})
		assert.Error(t, err)
		_, err = content.NewMessage(content.RoleUser, []content.Part{reasoning})
		assert.Error(t, err)
		_, err = content.NewMessage(content.RoleUser, []content.Part{text})
		assert.NoError(t, err)
	})
}

func TestConstructorValidation(t *testing.T) {
	_, err := content.NewToolCallPart("", "wx", nil, "")
	assert.Error(t, err)
	_, err = content.NewToolCallPart("call_1", "", nil, "")
	assert.Error(t, err)

	_, err = content.NewImagePart("abc", "", nil, nil, "")
	assert.Error(t, err)
	_, err = content.NewImagePart("abc", "image/png", nil, nil, "")
	assert.NoError(t, err)

	_, err = content.NewTextPart("hi", content.Citation{StartIndex: 5, EndIndex: 2})
	assert.Error(t, err)
	_, err = content.NewTextPart("hi", content.Citation{StartIndex: 2, EndIndex: 5})
	assert.NoError(t, err)
}

func TestSourcePartRestrictions(t *testing.T) {
	text, _ := content.NewTextPart("a")
	inner, _ := content.NewSourcePart("", "", []content.Part{text})
	_, err := content.NewSourcePart("uri", "title", []content.Part{inner})
	assert.Error(t, err, "source parts must not nest")

	toolCall, _ := content.NewToolCallPart("c1", "wx", nil, "")
	_, err = content.NewSourcePart("uri", "title", []content.Part{toolCall})
	assert.Error(t, err, "source content is restricted to text/image")
}

func TestAudioFormatConcatenationSafe(t *testing.T) {
	assert.True(t, content.AudioFormatLinear16.ConcatenationSafe())
	assert.False(t, content.AudioFormatMP3.ConcatenationSafe())
	assert.False(t, content.AudioFormatWAV.ConcatenationSafe())
}

func TestEqual(t *testing.T) {
	a, _ := content.NewToolCallPart("c1", "wx", map[string]interface{}{"x": float64(1)}, "")
	b, _ := content.NewToolCallPart("c1", "wx", map[string]interface{}{"x": float64(1)}, "")
	assert.True(t, content.Equal(a, b))

	c, _ := content.NewToolCallPart("c1", "wx", map[string]interface{}{"x": float64(2)}, "")
	assert.False(t, content.Equal(a, c))
}

func TestMarshalUnmarshalPartRoundTrip(t *testing.T) {
	cases := []content.Part{
		mustText(t, "hello", content.Citation{SourceID: "s1", CitedText: "hel", StartIndex: 0, EndIndex: 3, Title: "T"}),
		mustImage(t, "YWJj", "image/png", 10, 20, "img_1"),
		content.AudioPart{AudioData: "AQID", Format: content.AudioFormatLinear16, Transcript: "hi", ID: "a1"},
		content.ReasoningPart{Text: "thinking hard", Signature: "sig", ID: "r1"},
		mustToolCall(t, "c1", "wx", map[string]interface{}{"city": "NYC"}, ""),
		mustToolResult(t, "c1", "wx", []content.Part{mustText(t, "done")}, false),
		mustSource(t, "https://x", "Title", []content.Part{mustText(t, "evidence")}),
	}
	for _, p := range cases {
		data, err := content.MarshalPart(p)
		require.NoError(t, err)
		got, err := content.UnmarshalPart(data)
		require.NoError(t, err)
		assert.True(t, content.Equal(p, got), "round trip mismatch for %T", p)
	}
}

func TestFlattenIdempotent(t *testing.T) {
	a := mustText(t, "a")
	b := mustText(t, "b")
	inner := mustSource(t, "", "", []content.Part{b})
	outer := mustSource(t, "", "T", []content.Part{a, inner})

	once := content.Flatten([]content.Part{outer})
	twice := content.Flatten(once)

	require.Len(t, once, 2)
	assert.True(t, content.Equal(once[0], a))
	assert.True(t, content.Equal(once[1], b))
	require.Len(t, twice, 2)
	for i := range once {
		assert.True(t, content.Equal(once[i], twice[i]))
	}
}

func mustText(t *testing.T, text string, citations ...content.Citation) content.TextPart {
	t.Helper()
	p, err := content.NewTextPart(text, citations...)
	require.NoError(t, err)
	return p
}

func mustImage(t *testing.T, data, mime string, w, h int, id string) content.ImagePart {
	t.Helper()
	p, err := content.NewImagePart(data, mime, &w, &h, id)
	require.NoError(t, err)
	return p
}

func mustToolCall(t *testing.T, id, name string, args map[string]interface{}, partID string) content.ToolCallPart {
	t.Helper()
	p, err := content.NewToolCallPart(id, name, args, partID)
	require.NoError(t, err)
	return p
}

func mustToolResult(t *testing.T, id, name string, c []content.Part, isErr bool) content.ToolResultPart {
	t.Helper()
	p, err := content.NewToolResultPart(id, name, c, isErr)
	require.NoError(t, err)
	return p
}

func mustSource(t *testing.T, uri, title string, c []content.Part) content.SourcePart {
	t.Helper()
	p, err := content.NewSourcePart(uri, title, c)
	require.NoError(t, err)
	return p
}
