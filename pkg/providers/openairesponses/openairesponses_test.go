package openairesponses_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/providers/openairesponses"
)

func mustUserText(t *testing.T, text string) content.Message {
	t.Helper()
	tp, err := content.NewTextPart(text)
	require.NoError(t, err)
	msg, err := content.NewMessage(content.RoleUser, []content.Part{tp})
	require.NoError(t, err)
	return msg
}

func TestGenerate_TextAndFunctionCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"output": [
				{"type": "message", "content": [{"type": "output_text", "text": "checking now"}]},
				{"type": "function_call", "call_id": "call_1", "name": "get_weather", "arguments": "{\"city\":\"nyc\"}"}
			],
			"usage": {"input_tokens": 12, "output_tokens": 6}
		}`))
	}))
	defer srv.Close()

	model, err := openairesponses.NewModel("gpt-5", openairesponses.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "what's the weather")},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "checking now", resp.Content[0].(content.TextPart).Text)
	call := resp.Content[1].(content.ToolCallPart)
	assert.Equal(t, "get_weather", call.ToolName)
	assert.Equal(t, "nyc", call.Args["city"])
}

func TestStream_TextAndReasoningSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"type":"response.output_item.added","item":{"id":"item_1","type":"reasoning"}}`,
			`{"type":"response.reasoning_summary_text.delta","item_id":"item_1","delta":"weighing options"}`,
			`{"type":"response.reasoning_summary_text.delta","item_id":"item_1","delta":" now."}`,
			`{"type":"response.output_item.done","item_id":"item_1"}`,
			`{"type":"response.output_text.delta","delta":"it will rain."}`,
			`{"type":"response.completed","response":{"usage":{"input_tokens":10,"output_tokens":4}}}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
	}))
	defer srv.Close()

	model, err := openairesponses.NewModel("gpt-5", openairesponses.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "what's the weather")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 2)

	reasoning := resp.Content[0].(content.ReasoningPart)
	assert.Equal(t, "weighing options now.", reasoning.Text)

	text := resp.Content[1].(content.TextPart)
	assert.Equal(t, "it will rain.", text.Text)

	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
}

func TestStream_ToolCall(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		lines := []string{
			`{"type":"response.output_item.added","item":{"id":"fc_1","call_id":"call_1","type":"function_call","name":"get_weather"}}`,
			`{"type":"response.function_call_arguments.delta","item_id":"fc_1","delta":"{\"city\":"}`,
			`{"type":"response.function_call_arguments.delta","item_id":"fc_1","delta":"\"nyc\"}"}`,
			`{"type":"response.output_item.done","item_id":"fc_1"}`,
			`{"type":"response.completed","response":{"usage":{"input_tokens":8,"output_tokens":5}}}`,
		}
		for _, l := range lines {
			_, _ = w.Write([]byte("data: " + l + "\n\n"))
		}
	}))
	defer srv.Close()

	model, err := openairesponses.NewModel("gpt-5", openairesponses.Config{APIKey: "sk-test", BaseURL: srv.URL}, llm.ModelOptions{})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{
		Messages: []content.Message{mustUserText(t, "what's the weather")},
	})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)

	call := resp.Content[0].(content.ToolCallPart)
	assert.Equal(t, "call_1", call.ToolCallID)
	assert.Equal(t, "get_weather", call.ToolName)
	assert.Equal(t, "nyc", call.Args["city"])
}
