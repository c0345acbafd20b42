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


// Package ai provides the embedding provider abstraction and the gateway that
// every query embedding passes through.
//
// # Interfaces
//
//   - Embedder: generates vector embeddings from text
//   - AIProvider: owns an Embedder and its lifecycle
//   - VectorCache: optional query-vector cache consulted by the Gateway
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/remote: a plain POST {text} -> {embedding} HTTP endpoint
//   - ai/mock: test doubles for unit testing without external dependencies
//
// # Gateway
//
// Gateway wraps any Embedder and is the only component the search engine talks
// to. Each provider call carries its own timeout and runs behind a circuit
// breaker. Transient failures (timeouts, HTTP 408/429/5xx, transport errors)
// are retried with bounded exponential backoff; permanent failures are not.
// When the budget is spent the caller receives a core.EmbeddingUnavailable
// error. If the caller cancels, the in-flight result is discarded and never
// cached.
//
// # Constructor Return Type Pattern
//
// Public provider constructors return ai.AIProvider so callers stay decoupled
// from a specific backend. Mocks return concrete types so tests can inspect
// call counts.
package ai
