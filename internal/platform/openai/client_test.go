package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/research-evidence-backend/internal/platform/httpx"
	"github.com/yungbote/research-evidence-backend/internal/platform/logger"
)

var schema = map[string]any{"type": "object"}

func outputBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	})
	return string(b)
}

func newTestClient(t *testing.T, url string, retries int) *client {
	t.Helper()
	c, err := NewClient(logger.Nop(), Config{APIKey: "sk-test", BaseURL: url, MaxRetries: retries})
	require.NoError(t, err)
	cl := c.(*client)
	cl.retry.Sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return cl
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(logger.Nop(), Config{APIKey: "  "})
	assert.Error(t, err)
}

func TestGenerateJSONSendsSchema(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = io.WriteString(w, outputBody(`{"verdict":"close"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "verdict", schema)
	require.NoError(t, err)
	assert.Equal(t, "close", obj["verdict"])

	format := got["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "verdict", format["name"])
	assert.Equal(t, true, format["strict"])
	assert.Equal(t, defaultModel, got["model"])
	assert.InDelta(t, 0.2, got["temperature"], 1e-9)
}

func TestGenerateJSONRequiresSchema(t *testing.T) {
	c := newTestClient(t, "http://unused.invalid", 0)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "", schema)
	assert.Error(t, err)
}

func TestGenerateJSONRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, outputBody(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	obj, err := c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	require.NoError(t, err)
	assert.Equal(t, true, obj["ok"])
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGenerateJSONDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	var se *httpx.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGenerateJSONEmptyAndMalformedOutput(t *testing.T) {
	body := outputBody("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	assert.ErrorIs(t, err, ErrEmptyOutput)

	body = outputBody("not json")
	_, err = c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse model JSON")
}

func TestTemperatureDroppedAfterRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		if _, ok := body["temperature"]; ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"message":"Unsupported parameter: 'temperature' is not supported with this model."}}`)
			return
		}
		_, _ = io.WriteString(w, outputBody(`{"ok":true}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	_, err := c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	require.NoError(t, err)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
	assert.True(t, c.dropTemp.Load())

	_, err = c.GenerateJSON(context.Background(), "sys", "user", "s", schema)
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestCanceledContextStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GenerateJSON(ctx, "sys", "user", "s", schema)
	assert.ErrorIs(t, err, context.Canceled)
}
