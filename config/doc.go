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

// Package config loads the process-level settings document.
//
// The document is versioned YAML. Recognized sections are storage, embedding,
// cache, search, scoring, readiness, server and log; any other top-level key is
// preserved in Extra and written back unchanged, but never interpreted.
//
// Values are resolved in order: defaults, the YAML file, a .env file, then
// KEYWORDLENS_* environment variables. Command-line flags are applied last by
// the caller.
//
//	version: 1
//	storage:
//	  driver: postgres
//	  dsn: postgres://localhost/seo?sslmode=disable
//	embedding:
//	  driver: openai
//	  model: text-embedding-3-small
//	  dimensions: 1536
package config
