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

// Package server exposes the engine over HTTP with gin.
//
// Routes:
//
//	POST /api/search/semantic              semantic search
//	POST /api/search/similar/:keyword_id   "more like this" for a stored keyword
//	GET  /api/readiness                    readiness report
//	POST /api/readiness                    run setup, then report
//	GET  /api/clusters/analysis            cluster distribution
//	GET  /metrics                          Prometheus metrics
//	GET  /healthz                          liveness
//
// Engine errors are rendered as {kind, message, retryable, report?}.
package server
