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


// Package search runs semantic similarity search over keyword variations and
// content posts.
//
// A search validates its parameters, consults the readiness gate, embeds the
// query through the embedding gateway, asks the repository for nearest
// neighbours, re-applies the ranking contract (threshold, similarity
// descending, ties by kind then ID, truncation), hydrates metadata and scores
// every match. Results stay in similarity order; the relevance score is
// attached, not used for ordering.
//
// Failures are never masked: an unavailable provider or repository fails the
// search with a typed core.Error rather than returning an empty result.
package search
