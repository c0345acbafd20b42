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


// Package storage provides the storage abstraction layer for keywordlens.
//
// This package defines repository interfaces that decouple the search engine
// from the backing store. Two backends implement them: an embedded BadgerDB
// store with linear-scan similarity (storage/badger) and PostgreSQL with the
// pgvector extension, where similarity runs inside server-side functions
// (storage/postgres).
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces:
//
//	store, err := badger.NewStore(path)  // returns storage.Store
//
// Internal package constructors (newKeywordRepository, newBackend, etc.) may return
// concrete types since they're only used within the implementation package.
//
// # Architecture
//
//   - Store: bundle of the repositories of one backend
//   - KeywordRepository: keyword variations and their nearest-neighbour lookup
//   - PostRepository: content posts and their nearest-neighbour lookup
//   - ClusterRepository: externally assigned keyword clusters
//   - SchemaInspector: search function catalog, extensions and embedding counts
//   - CheckpointRepository: progress of resumable backfill jobs
//
// # Similarity Contract
//
// Every FindSimilar* and MatchByEmbedding implementation returns matches with
// similarity at or above the threshold, best first, ties broken by ascending
// ID, at most Limit entries. Records without an embedding never match.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
package storage
