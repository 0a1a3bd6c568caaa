package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/tieubaoca/knowledge-base-be/config"
	"github.com/tieubaoca/knowledge-base-be/types"
)

const (
	DEFAULT_EMBEDDING_TIMEOUT = 30 * time.Second
	HEALTH_CHECK_TIMEOUT      = 5 * time.Second
)

// EmbeddingService computes embeddings through an Ollama-compatible
// /api/embeddings endpoint, one request per text.
type EmbeddingService struct {
	baseURL string
	model   string
	client  *http.Client
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// HealthStatus reports availability of the embedding backend.
type HealthStatus struct {
	Status          string   `json:"status"`
	ResponseTimeMs  int64    `json:"responseTimeMs"`
	AvailableModels []string `json:"availableModels,omitempty"`
	Message         string   `json:"message,omitempty"`
}

func NewEmbeddingService(cfg config.OllamaConfig) *EmbeddingService {
	timeout := DEFAULT_EMBEDDING_TIMEOUT
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return &EmbeddingService{
		baseURL: cfg.BaseURL,
		model:   cfg.EmbeddingModel,
		client:  &http.Client{Timeout: timeout},
	}
}

// Embed returns one vector per input text, in input order. The first
// failing text aborts the whole batch.
func (s *EmbeddingService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vector, err := s.embedOne(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embedding text %d of %d: %w", i+1, len(texts), err)
		}
		vectors = append(vectors, vector)
	}
	return vectors, nil
}

func (s *EmbeddingService) embedOne(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embeddingRequest{Model: s.model, Prompt: text})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &types.EmbeddingServiceError{Status: resp.StatusCode}
	}

	var parsed embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: malformed embedding response: %v", types.ErrEmbeddingUnavailable, err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding returned", types.ErrEmbeddingUnavailable)
	}
	return parsed.Embedding, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", types.ErrEmbeddingTimeout, err)
	}
	return fmt.Errorf("%w: %v", types.ErrEmbeddingUnavailable, err)
}

// Health probes the backend's /api/tags endpoint and reports latency and
// the models it advertises.
func (s *EmbeddingService) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, HEALTH_CHECK_TIMEOUT)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/api/tags", nil)
	if err != nil {
		return HealthStatus{Status: "error", Message: err.Error()}
	}

	resp, err := s.client.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return HealthStatus{Status: "offline", ResponseTimeMs: elapsed, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return HealthStatus{
			Status:         "error",
			ResponseTimeMs: elapsed,
			Message:        fmt.Sprintf("unexpected status %d", resp.StatusCode),
		}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	status := HealthStatus{Status: "online", ResponseTimeMs: elapsed}
	if err := json.NewDecoder(resp.Body).Decode(&tags); err == nil {
		for _, m := range tags.Models {
			status.AvailableModels = append(status.AvailableModels, m.Name)
		}
	}
	return status
}
