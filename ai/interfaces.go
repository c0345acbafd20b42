package ai

import (
	"context"
	"time"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns a *ProviderError when the upstream service fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Model names the embedding model, used to partition cached vectors.
	Model() string

	// Close releases resources held by the provider and its services.
	Close() error
}

// VectorCache stores query vectors keyed by model and normalized text.
// A miss is never an error; implementations log and swallow backend failures.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool)
	Set(ctx context.Context, key string, vector []float32)
}

// GatewayMonitor receives gateway events.
type GatewayMonitor interface {
	OnCacheLookup(hit bool)
	OnProviderCall(duration time.Duration, err error)
	OnBreakerStateChange(from, to string)
}

// NoopGatewayMonitor ignores all events.
type NoopGatewayMonitor struct{}

func (NoopGatewayMonitor) OnCacheLookup(bool)                  {}
func (NoopGatewayMonitor) OnProviderCall(time.Duration, error) {}
func (NoopGatewayMonitor) OnBreakerStateChange(string, string) {}
