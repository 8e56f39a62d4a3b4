package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainos/retrieval/embedding"
)

func TestClientEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello world", req.Prompt)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{0.25, -0.5, 1.0},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Dimensions: 3})

	vec, err := c.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -0.5, 1.0}, vec)
}

func TestClientEmbedEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server must not be called for empty input")
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	_, err := c.Embed(context.Background(), "")
	assert.ErrorIs(t, err, embedding.ErrEmptyInput)
}

func TestClientEmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})

	_, err := c.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "model not found")
}

func TestClientEmbedBatch(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embedding": []float64{float64(calls.Load()), 0},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Dimensions: 2})

	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, int64(3), calls.Load(), "one request per text")
	assert.Equal(t, []float32{1, 0}, vecs[0])
	assert.Equal(t, []float32{3, 0}, vecs[2])
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"models": []any{}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	assert.NoError(t, c.Ping(context.Background()))

	srv.Close()
	assert.Error(t, c.Ping(context.Background()), "unreachable server must fail the ping")
}

func TestClientDefaults(t *testing.T) {
	c := New(Config{})
	assert.Equal(t, DefaultDimensions, c.Dimensions())
	assert.Equal(t, DefaultModel, c.ModelName())
	assert.NoError(t, c.Close())
}
