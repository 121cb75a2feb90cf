// Package embed generates vector embeddings for component records.
//
// The OpenAI-compatible client is the production path; the static
// hash embedder covers offline mode and tests. One shared Embedder
// instance serves both indexing and search, so every vector in the
// store lives in the same embedding space.
package embed

import (
	"context"
	"math"
)

const (
	// DefaultDimensions matches text-embedding-ada-002 / 3-small.
	DefaultDimensions = 1536

	// StaticDimensions is the embedding dimension for the static embedder.
	StaticDimensions = 256

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps one upstream embeddings request.
	MaxBatchSize = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // Return as-is if zero vector
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
