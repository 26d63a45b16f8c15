package openaichat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/providers/openaichat"
)

func TestGenerate_Text(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {"content": "hi there", "tool_calls": []},
				"finish_reason": "stop"
			}],
			"usage": {"prompt_tokens": 5, "completion_tokens": 2}
		}`))
	}))
	defer srv.Close()

	model, err := openaichat.NewModel("gpt-4o", openaichat.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
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

func TestGenerate_Refusal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"refusal": "cannot help with that"}, "finish_reason": "stop"}], "usage": {}}`))
	}))
	defer srv.Close()

	model, err := openaichat.NewModel("gpt-4o", openaichat.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	_, err = model.Generate(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "hello")},
	})
	require.Error(t, err)
}

func TestStream_ParallelToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"call_1","function":{"name":"get_weather","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"id":"call_2","function":{"name":"get_time","arguments":""}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"city\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":1,"function":{"arguments":"{}"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"nyc\"}"}}]}}]}`,
			`{"choices":[{"finish_reason":"tool_calls"}]}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	model, err := openaichat.NewModel("gpt-4o", openaichat.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "weather and time")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)

	call0 := resp.Content[0].(content.ToolCallPart)
	assert.Equal(t, "get_weather", call0.ToolName)
	assert.Equal(t, "nyc", call0.Args["city"])

	call1 := resp.Content[1].(content.ToolCallPart)
	assert.Equal(t, "get_time", call1.ToolName)
}

func mustUserText(t *testing.T, text string) content.Message {
	t.Helper()
	tp, err := content.NewTextPart(text)
	require.NoError(t, err)
	msg, err := content.NewMessage(content.RoleUser, []content.Part{tp})
	require.NoError(t, err)
	return msg
}
