package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/types"
)

func newTestEmbeddingService(baseURL string, timeoutSecs int) *EmbeddingService {
	return NewEmbeddingService(config.OllamaConfig{
		BaseURL:        baseURL,
		EmbeddingModel: "nomic-embed-text",
		TimeoutSecs:    timeoutSecs,
	})
}

func TestEmbedPreservesOrder(t *testing.T) {
	// Encode the prompt length into the vector so order is observable.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float32{float32(len(req.Prompt))}})
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	vectors, err := s.Embed(context.Background(), []string{"a", "bbb", "cc"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	assert.Equal(t, []float32{1}, vectors[0])
	assert.Equal(t, []float32{3}, vectors[1])
	assert.Equal(t, []float32{2}, vectors[2])
}

func TestEmbedServiceErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	_, err := s.Embed(context.Background(), []string{"text"})
	require.Error(t, err)

	var serviceErr *types.EmbeddingServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, http.StatusNotFound, serviceErr.Status)
}

func TestEmbedUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	s := newTestEmbeddingService(server.URL, 5)
	_, err := s.Embed(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestEmbedTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		server.Close()
	}()

	s := newTestEmbeddingService(server.URL, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := s.Embed(ctx, []string{"text"})
	assert.ErrorIs(t, err, types.ErrEmbeddingTimeout)
}

func TestEmbedEmptyVectorRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	_, err := s.Embed(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, types.ErrEmbeddingUnavailable)
}

func TestHealthOnline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		w.Write([]byte(`{"models":[{"name":"nomic-embed-text"},{"name":"qwen2-7b-instruct"}]}`))
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	status := s.Health(context.Background())
	assert.Equal(t, "online", status.Status)
	assert.Equal(t, []string{"nomic-embed-text", "qwen2-7b-instruct"}, status.AvailableModels)
}

func TestHealthOffline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	status := s.Health(context.Background())
	assert.Equal(t, "offline", status.Status)
	assert.NotEmpty(t, status.Message)
}

func TestHealthErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := newTestEmbeddingService(server.URL, 5)
	status := s.Health(context.Background())
	assert.Equal(t, "error", status.Status)
}
