package backfill

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrStoreRequired is returned when a store is not provided.
	ErrStoreRequired = errors.New("store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrEmbeddingCount is returned when the provider returns a different number
	// of vectors than texts.
	ErrEmbeddingCount = errors.New("embedding count mismatch")

	// ErrInvalidEmbedding is returned when the provider returns an unusable vector.
	ErrInvalidEmbedding = errors.New("invalid embedding")
)
