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


// Package scoring turns raw similarity into an explainable relevance score.
//
// The default policy is a closed form over six signals:
//
//	similarity  = 70 * s
//	volume      = 15 * min(1, log10(1+v) / log10(1+100000))
//	intent      = 10 when InferIntent(query) matches the candidate's intent
//	lexical     = 5 * (query tokens found in the label / query tokens)
//	competition = -0 / -4 / -8 for LOW / MEDIUM / HIGH
//	difficulty  = -7 * d / 100
//
// The sum is clamped to [0, 100] and rounded to two decimals. Every term is
// reported in core.ScoreBreakdown. The similarity weight is never negative, so
// the score is non-decreasing in similarity when the other signals are fixed.
//
// Related topics and content suggestions are derived from the candidate's own
// topic data. A candidate without topics, cluster or intent gets empty lists.
package scoring
