package embed

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	dexerrors "github.com/uidex/uidex/internal/errors"
)

// OpenAIEmbedder generates embeddings through an OpenAI-compatible
// /embeddings endpoint. A custom base URL points it at self-hosted
// compatible servers.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	logger     *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// OpenAIConfig configures an OpenAIEmbedder.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string // empty means api.openai.com
	Model      string // e.g. text-embedding-3-small
	Dimensions int    // expected vector dimension
}

// NewOpenAIEmbedder creates an embedder against an OpenAI-compatible API.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, dexerrors.ConfigError("embedding API key is required", nil).
			WithSuggestion("Set UIDEX_EMBED_API_KEY or use the static embedder for offline mode.")
	}
	if cfg.Model == "" {
		cfg.Model = string(openai.SmallEmbedding3)
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = DefaultDimensions
	}
	if logger == nil {
		logger = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		logger:     logger,
	}, nil
}

// Embed generates embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts, splitting into
// requests of at most MaxBatchSize inputs.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, dexerrors.New(dexerrors.ErrCodeEmbeddingFailed, "embedder is closed", nil)
	}
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += MaxBatchSize {
		end := start + MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch, err := e.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}

	return results, nil
}

// embedChunk performs one upstream embeddings request.
func (e *OpenAIEmbedder) embedChunk(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, dexerrors.New(dexerrors.ErrCodeEmbeddingFailed,
			"embedding request failed", err).
			WithDetail("model", e.model)
	}

	if len(resp.Data) != len(texts) {
		return nil, dexerrors.New(dexerrors.ErrCodeEmbeddingFailed,
			fmt.Sprintf("embedding API returned %d vectors for %d inputs", len(resp.Data), len(texts)), nil).
			WithDetail("model", e.model)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		if len(data.Embedding) != e.dimensions {
			return nil, dexerrors.New(dexerrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("expected %d dimensions, got %d", e.dimensions, len(data.Embedding)), nil).
				WithDetail("model", e.model)
		}
		vectors[i] = normalizeVector(data.Embedding)
	}

	return vectors, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available checks the API is reachable with the configured key.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	if _, err := e.client.ListModels(ctx); err != nil {
		e.logger.Debug("embedding API unavailable", slog.String("error", err.Error()))
		return false
	}
	return true
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
