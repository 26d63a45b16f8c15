package llm_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/internal/transport"
	"github.com/kestrelai/modelkit/pkg/content"
	"github.com/kestrelai/modelkit/pkg/llm"
	"github.com/kestrelai/modelkit/pkg/streamacc"
)

// fakeAdapter is a minimal llm.Adapter used only to exercise the Model
// facade's plumbing, independent of any vendor wire format.
type fakeAdapter struct {
	streamEvents []string // raw SSE "data:" payloads, in order
}

type fakeResponseBody struct {
	Text         string `json:"text"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
}

func (a *fakeAdapter) ToRequest(input llm.LanguageModelInput, modelID string, stream bool) (llm.Request, error) {
	body, _ := json.Marshal(map[string]interface{}{"model": modelID, "stream": stream})
	return llm.Request{Method: http.MethodPost, Path: "/v1/generate", Body: body}, nil
}

func (a *fakeAdapter) FromResponse(body []byte) (content.Parts, *streamacc.ModelUsage, error) {
	var fr fakeResponseBody
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, nil, err
	}
	text, err := content.NewTextPart(fr.Text)
	if err != nil {
		return nil, nil, err
	}
	return content.Parts{text}, &streamacc.ModelUsage{InputTokens: fr.InputTokens, OutputTokens: fr.OutputTokens}, nil
}

type fakeChunk struct {
	Text string `json:"text"`
}

func (a *fakeAdapter) MapEvent(event transport.SSEEvent, state *llm.StreamState) ([]llm.RawDelta, *streamacc.ModelUsage, bool, error) {
	var c fakeChunk
	if err := json.Unmarshal([]byte(event.Data), &c); err != nil {
		return nil, nil, false, err
	}
	text := c.Text
	delta := llm.RawDelta{Delta: streamacc.PartDelta{Kind: content.PartText, Text: &text}}
	return []llm.RawDelta{delta}, nil, false, nil
}

func TestModel_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"text":"hello","input_tokens":10,"output_tokens":2}`))
	}))
	defer srv.Close()

	model, err := llm.NewModel(llm.ProviderOpenAIChat, "fake-model", &fakeAdapter{}, llm.ModelOptions{
		Transport: transport.Config{BaseURL: srv.URL},
		Pricing:   &llm.Pricing{InputPerToken: decimal.NewFromFloat(0.001), OutputPerToken: decimal.NewFromFloat(0.002)},
	})
	require.NoError(t, err)

	resp, err := model.Generate(context.Background(), llm.LanguageModelInput{})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	text := resp.Content[0].(content.TextPart)
	assert.Equal(t, "hello", text.Text)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)
	require.NotNil(t, resp.Cost)
	assert.True(t, resp.Cost.Equal(decimal.NewFromFloat(0.014)))
}

func TestNewModel_RejectsEmptyModelID(t *testing.T) {
	_, err := llm.NewModel(llm.ProviderAnthropic, "", &fakeAdapter{}, llm.ModelOptions{})
	assert.Error(t, err)
}

func TestNewModel_RejectsNilAdapter(t *testing.T) {
	_, err := llm.NewModel(llm.ProviderAnthropic, "m", nil, llm.ModelOptions{})
	assert.Error(t, err)
}

func streamSSEBody(chunks []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}
}

func TestModel_StreamDrain(t *testing.T) {
	srv := httptest.NewServer(streamSSEBody([]string{`{"text":"The "}`, `{"text":"quick "}`, `{"text":"fox"}`}))
	defer srv.Close()

	model, err := llm.NewModel(llm.ProviderOpenAIChat, "fake-model", &fakeAdapter{}, llm.ModelOptions{
		Transport: transport.Config{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{})
	require.NoError(t, err)

	resp, err := reader.Drain(context.Background())
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	text := resp.Content[0].(content.TextPart)
	assert.Equal(t, "The quick fox", text.Text)
}

func TestModel_StreamNextYieldsIncrementally(t *testing.T) {
	srv := httptest.NewServer(streamSSEBody([]string{`{"text":"a"}`, `{"text":"b"}`}))
	defer srv.Close()

	model, err := llm.NewModel(llm.ProviderOpenAIChat, "fake-model", &fakeAdapter{}, llm.ModelOptions{
		Transport: transport.Config{BaseURL: srv.URL},
	})
	require.NoError(t, err)

	reader, err := model.Stream(context.Background(), llm.LanguageModelInput{})
	require.NoError(t, err)
	defer reader.Close()

	partial, ok, err := reader.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, partial.Delta)
	assert.Equal(t, 0, partial.Delta.Index)

	partial, ok, err = reader.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, partial.Delta.Index)

	_, ok, err = reader.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
