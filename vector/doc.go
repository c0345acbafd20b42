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

// Package vector holds the similarity math and the ranking contract shared by
// every repository driver and the search engine.
//
// # Ranking contract
//
// Given a query vector, a threshold and a result cap, a ranked result:
//
//   - contains only candidates that carry an embedding
//   - excludes candidates with similarity below the threshold
//   - is sorted by similarity descending, ties broken by ascending item ID
//   - holds at most max entries; max <= 0 yields an empty result
//
// Similarities are cosine values clamped to [0, 1]. Values within Epsilon of
// 1.0 are snapped to exactly 1.0 so that searching with an item's own
// embedding at threshold 1.0 returns that item.
//
// The scan is linear in corpus size. At the corpus sizes this engine serves
// (thousands of items) that is the chosen strategy; an approximate index may
// replace it as long as Rank is applied to its output.
package vector
