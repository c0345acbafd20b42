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

// Package cluster summarizes how keyword variations are distributed across
// semantic clusters.
//
// The analyzer groups the embedded, cluster-assigned variations of a tenant by
// cluster and reports sizes, a size histogram, the largest cluster and per-cluster
// averages. It never assigns clusters itself; membership comes from the store.
package cluster
