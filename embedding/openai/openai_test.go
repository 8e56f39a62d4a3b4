package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainos/retrieval/embedding"
)

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestNewModelDimensions(t *testing.T) {
	tests := []struct {
		model    string
		override int
		want     int
	}{
		{model: "", want: 1536},
		{model: "text-embedding-3-large", want: 3072},
		{model: "text-embedding-ada-002", want: 1536},
		{model: "text-embedding-3-small", override: 256, want: 256},
		{model: "some-custom-model", want: 1536},
	}

	for _, tt := range tests {
		c, err := New(Config{APIKey: "sk-test", Model: tt.model, Dimensions: tt.override})
		require.NoError(t, err)
		assert.Equal(t, tt.want, c.Dimensions(), "model %q", tt.model)
	}
}

func TestClientEmbedBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"first", "second"}, req.Input)

		// Return data out of order to exercise index-based reassembly.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{2, 2}, "index": 1},
				{"embedding": []float64{1, 1}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vecs, err := c.EmbedBatch(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1}, vecs[0])
	assert.Equal(t, []float32{2, 2}, vecs[1])
}

func TestClientEmbedSingle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float64{0.5, -0.5}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Dimensions: 2})
	require.NoError(t, err)

	vec, err := c.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.5}, vec)

	_, err = c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, embedding.ErrEmptyInput)
}

func TestClientEmbedAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Incorrect API key provided", "type": "invalid_request_error"},
		})
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "sk-bad", BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	defer srv.Close()

	good, err := New(Config{APIKey: "sk-test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.NoError(t, good.Ping(context.Background()))

	bad, err := New(Config{APIKey: "sk-wrong", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Error(t, bad.Ping(context.Background()))
}
