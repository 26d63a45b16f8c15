package cohere_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/providers/cohere"
)

func TestGenerate_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"message": {
				"content": [{"type": "text", "text": "hi there"}],
				"tool_calls": []
			},
			"finish_reason": "COMPLETE",
			"usage": {"billed_units": {"input_tokens": 5, "output_tokens": 2}}
		}`))
	}))
	defer srv.Close()

	model, err := cohere.NewModel("command-r-plus", cohere.Config{APIKey: "test-key", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "hello")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	text := resp.Content[0].(content.TextPart)
	assert.Equal(t, "hi there", text.Text)
	assert.Equal(t, int64(5), resp.Usage.InputTokens)
}

func TestStream_ToolCallWithIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"type":"tool-call-start","index":0,"delta":{"message":{"tool_calls":{"id":"call_1","function":{"name":"search","arguments":""}}}}}`,
			`{"type":"tool-call-delta","index":0,"delta":{"message":{"tool_calls":{"function":{"arguments":"{\"q\":\"go\"}"}}}}}`,
			`{"type":"message-end","delta":{"usage":{"billed_units":{"input_tokens":4,"output_tokens":3}}}}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
	}))
	defer srv.Close()

	model, err := cohere.NewModel("command-r-plus", cohere.Config{APIKey: "test-key", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "find something")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	call := resp.Content[0].(content.ToolCallPart)
	assert.Equal(t, "search", call.ToolName)
	assert.Equal(t, "go", call.Args["q"])
	assert.Equal(t, int64(4), resp.Usage.InputTokens)
}

func TestStream_IndexlessToolCallDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"type":"content-delta","index":0,"delta":{"message":{"content":{"text":"hi"}}}}`,
			`{"type":"tool-call-start","delta":{"message":{"tool_calls":{"id":"call_1","function":{"name":"search","arguments":""}}}}}`,
			`{"type":"message-end","delta":{"usage":{"billed_units":{"input_tokens":1,"output_tokens":1}}}}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
	}))
	defer srv.Close()

	model, err := cohere.NewModel("command-r-plus", cohere.Config{APIKey: "test-key", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "find something")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hi", resp.Content[0].(content.TextPart).Text)
}

func mustUserText(t *testing.T, text string) content.Message {
	t.Helper()
	tp, err := content.NewTextPart(text)
	require.NoError(t, err)
	msg, err := content.NewMessage(content.RoleUser, []content.Part{tp})
	require.NoError(t, err)
	return msg
}
