// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"context"

	"github.com/poiesic/keywordlens/core"
)

// Names of the server-side search functions a backend must expose.
const (
	FuncMatchByEmbedding    = "match_by_embedding"
	FuncFindSimilarKeywords = "find_similar_keywords"
	FuncFindSimilarPosts    = "find_similar_posts"
)

// RequiredFunctions lists the functions semantic search depends on.
var RequiredFunctions = []string{
	FuncMatchByEmbedding,
	FuncFindSimilarKeywords,
	FuncFindSimilarPosts,
}

// NeighborQuery is the input to every nearest-neighbour lookup.
type NeighborQuery struct {
	Vector    []float32
	Threshold float64
	Limit     int
	BlogScope core.ID // core.NilID means all tenants
}

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// KeywordRepository provides operations for keyword variations.
type KeywordRepository interface {
	Repository

	// AddKeywords stores new keyword variations.
	// Records with a nil ID get one derived from their blog and text.
	// Sets InsertedAt if not already set.
	AddKeywords(ctx context.Context, keywords ...*core.KeywordVariation) ([]*core.KeywordVariation, error)

	// GetKeyword retrieves a single keyword variation.
	// Returns ErrNotFound if it doesn't exist.
	GetKeyword(ctx context.Context, id core.ID) (*core.KeywordVariation, error)

	// GetKeywords retrieves keyword variations by ID.
	// Returns only the records that exist (no error for missing records).
	GetKeywords(ctx context.Context, ids ...core.ID) ([]*core.KeywordVariation, error)

	// ListKeywordsMissingEmbeddings pages through variations without a vector,
	// ordered by ID, starting after the given ID.
	ListKeywordsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.KeywordVariation, error)

	// SetKeywordEmbedding replaces the vector of one variation.
	// Returns ErrNotFound if it doesn't exist.
	SetKeywordEmbedding(ctx context.Context, id core.ID, vector []float32) error

	// FindSimilarKeywords returns embedded variations at or above the threshold,
	// best first, ties by ID, at most Limit entries.
	FindSimilarKeywords(ctx context.Context, q NeighborQuery) ([]core.SimilarityMatch, error)
}

// PostRepository provides operations for content posts.
type PostRepository interface {
	Repository

	AddPosts(ctx context.Context, posts ...*core.ContentPost) ([]*core.ContentPost, error)
	GetPost(ctx context.Context, id core.ID) (*core.ContentPost, error)
	GetPosts(ctx context.Context, ids ...core.ID) ([]*core.ContentPost, error)
	ListPostsMissingEmbeddings(ctx context.Context, after core.ID, limit int) ([]*core.ContentPost, error)
	SetPostEmbedding(ctx context.Context, id core.ID, vector []float32) error

	// FindSimilarPosts mirrors FindSimilarKeywords for posts.
	FindSimilarPosts(ctx context.Context, q NeighborQuery) ([]core.SimilarityMatch, error)
}

// Matcher runs the generic threshold match across every corpus.
// Ordering and truncation follow the FindSimilar contract over the merged set.
type Matcher interface {
	MatchByEmbedding(ctx context.Context, q NeighborQuery) ([]core.SimilarityMatch, error)
}

// ClusterRepository reads externally assigned keyword clusters.
type ClusterRepository interface {
	Repository

	// AddClusters stores clusters. Membership is carried by KeywordVariation.ClusterId.
	AddClusters(ctx context.Context, clusters ...*core.SemanticCluster) error

	// ListClusters returns the clusters of a tenant, or all when scope is core.NilID.
	ListClusters(ctx context.Context, blogScope core.ID) ([]*core.SemanticCluster, error)

	// ListClusteredKeywords returns embedded variations that have a cluster assigned.
	ListClusteredKeywords(ctx context.Context, blogScope core.ID) ([]*core.KeywordVariation, error)
}

// SchemaInspector exposes the diagnostics and provisioning hooks used by readiness checks.
type SchemaInspector interface {
	// FunctionsAvailable reports, for each name, whether the function is installed.
	FunctionsAvailable(ctx context.Context, names []string) (map[string]bool, error)

	// Extensions lists installed extensions relevant to vector search.
	Extensions(ctx context.Context) ([]core.Extension, error)

	// RequiredExtensions names the extensions search cannot run without.
	RequiredExtensions() []string

	// EmbeddingCounts returns the number of embedded records and the total number of records.
	EmbeddingCounts(ctx context.Context) (embedded core.EmbeddingCounts, total core.EmbeddingCounts, err error)

	// InstallFunctions provisions the named functions. Must be idempotent.
	InstallFunctions(ctx context.Context, names []string) error

	// ProbeFunction calls the named function with a probe vector to verify it executes.
	ProbeFunction(ctx context.Context, name string, probe []float32) error
}

// CheckpointRepository persists progress of resumable jobs.
type CheckpointRepository interface {
	// SaveCheckpoint persists a checkpoint for a processor type.
	SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for a processor type.
	// Returns nil, nil if no checkpoint exists.
	LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error)

	// DeleteCheckpoint removes the checkpoint for a processor type.
	DeleteCheckpoint(ctx context.Context, processorType string) error
}

// Store bundles the repositories of one backend.
type Store interface {
	Keywords() KeywordRepository
	Posts() PostRepository
	Clusters() ClusterRepository
	Matcher() Matcher
	Schema() SchemaInspector
	Checkpoints() CheckpointRepository
	Close() error
}
