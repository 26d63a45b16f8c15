package anthropic_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/providers/anthropic"
)

func mustUserText(t *testing.T, text string) content.Message {
	t.Helper()
	tp, err := content.NewTextPart(text)
	require.NoError(t, err)
	msg, err := content.NewMessage(content.RoleUser, []content.Part{tp})
	require.NoError(t, err)
	return msg
}

func TestGenerate_TextAndToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"content": [
				{"type": "text", "text": "let me check"},
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"city": "nyc"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 20, "output_tokens": 8, "cache_read_input_tokens": 5}
		}`))
	}))
	defer srv.Close()

	model, err := anthropic.NewModel("claude-opus", anthropic.Config{APIKey: "sk-ant-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "what's the weather")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "let me check", resp.Content[0].(content.TextPart).Text)
	call := resp.Content[1].(content.ToolCallPart)
	assert.Equal(t, "get_weather", call.ToolName)
	assert.Equal(t, int64(25), resp.Usage.InputTokens)
}

func TestStream_ReasoningAndToolUse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		events := []struct{ event, data string }{
			{"message_start", `{"message":{"usage":{"input_tokens":15}}}`},
			{"content_block_start", `{"index":0,"content_block":{"type":"thinking"}}`},
			{"content_block_delta", `{"index":0,"delta":{"type":"thinking_delta","thinking":"I should "}}`},
			{"content_block_delta", `{"index":0,"delta":{"type":"thinking_delta","thinking":"call a tool."}}`},
			{"content_block_delta", `{"index":0,"delta":{"type":"signature_delta","signature":"sig123"}}`},
			{"content_block_stop", `{"index":0}`},
			{"content_block_start", `{"index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"get_weather"}}`},
			{"content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"{\"city\":"}}`},
			{"content_block_delta", `{"index":1,"delta":{"type":"input_json_delta","partial_json":"\"nyc\"}"}}`},
			{"content_block_stop", `{"index":1}`},
			{"message_delta", `{"delta":{"stop_reason":"tool_use"},"usage":{"output_tokens":12}}`},
			{"message_stop", `{}`},
		}
		for _, e := range events {
			_, _ = w.Write([]byte("event: " + e.event + "\ndata: " + e.data + "\n\n"))
		}
	}))
	defer srv.Close()

	model, err := anthropic.NewModel("claude-opus", anthropic.Config{APIKey: "sk-ant-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "what's the weather")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)

	reasoning := resp.Content[0].(content.ReasoningPart)
	assert.Equal(t, "I should call a tool.", reasoning.Text)
	assert.Equal(t, "sig123", reasoning.Signature)

	call := resp.Content[1].(content.ToolCallPart)
	assert.Equal(t, "get_weather", call.ToolName)
	assert.Equal(t, "nyc", call.Args["city"])

	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(15), resp.Usage.InputTokens)
	assert.Equal(t, int64(12), resp.Usage.OutputTokens)
}
