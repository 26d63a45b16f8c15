package transport_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/modelkit/internal/transport"
)

func TestClient_DoJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := transport.NewClient(transport.Config{BaseURL: srv.URL})
	body, err := c.DoJSON(context.Background(), transport.Request{Method: http.MethodPost, Path: "/v1/chat", Body: []byte(`{}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestClient_DoJSON_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := transport.NewClient(transport.Config{BaseURL: srv.URL})
	_, err := c.DoJSON(context.Background(), transport.Request{Method: http.MethodPost, Path: "/v1/chat"})
	require.Error(t, err)
	var statusErr *transport.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestClient_DoSSE_StreamsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "data: {\"delta\":\"a\"}\n\n")
		_, _ = io.WriteString(w, "data: {\"delta\":\"b\"}\n\n")
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := transport.NewClient(transport.Config{BaseURL: srv.URL})
	body, err := c.DoSSE(context.Background(), transport.Request{Method: http.MethodPost, Path: "/v1/stream"})
	require.NoError(t, err)
	parser := transport.NewSSEParser(body)
	defer parser.Close()

	var got []string
	for {
		ev, err := parser.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		if transport.IsDone(ev) {
			break
		}
		got = append(got, ev.Data)
	}
	assert.Equal(t, []string{`{"delta":"a"}`, `{"delta":"b"}`}, got)
}

func TestSSEParser_MultilineData(t *testing.T) {
	parser := transport.NewSSEParser(io.NopCloser(strings.NewReader("data: line1\ndata: line2\n\n")))
	ev, err := parser.Next()
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", ev.Data)
}
