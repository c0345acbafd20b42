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

// Package readiness decides whether semantic search can run against a store.
//
// A Machine inspects the store's search functions, extensions and embedding
// counts and produces a core.ReadinessReport with actionable recommendations.
// Setup provisions missing functions and verifies each one with a probe query:
//
//	Checking -> Ready | NotReady
//	NotReady -> Setup -> Testing -> Complete -> Checking
//
// A failure during Setup or Testing moves the machine to NotReady and is
// returned as a core.Error of kind SetupFailed. Nothing is retried.
//
// Searchers gate on EnsureReady, which caches a Ready verdict for a short TTL.
// Transitions are published to subscribers on typed channels.
package readiness
