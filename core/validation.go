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

package core

import (
	"fmt"
	"strings"
)

// ValidateKeyword validates a KeywordVariation according to domain rules.
//
// Validation rules:
//   - Text must not be blank
//   - BlogId must be set
//   - Difficulty, when present, must be within 0-100
//   - SearchVolume and CPC, when present, must not be negative
//
// NOT validated:
//   - Vector (absent until the embedding job runs)
//   - ClusterId (unassigned keywords are allowed)
func ValidateKeyword(kw *KeywordVariation) error {
	if kw == nil {
		return fmt.Errorf("%w: keyword is nil", ErrInvalidKeyword)
	}

	if strings.TrimSpace(kw.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidKeyword, ErrEmptyText)
	}

	if kw.BlogId == NilID {
		return fmt.Errorf("%w: %w", ErrInvalidKeyword, ErrMissingBlog)
	}

	if kw.Difficulty != nil && (*kw.Difficulty < 0 || *kw.Difficulty > 100) {
		return fmt.Errorf("%w: %w: value %d", ErrInvalidKeyword, ErrDifficultyRange, *kw.Difficulty)
	}

	if kw.SearchVolume != nil && *kw.SearchVolume < 0 {
		return fmt.Errorf("%w: %w: search volume %d", ErrInvalidKeyword, ErrNegativeMetric, *kw.SearchVolume)
	}

	if kw.CPC != nil && *kw.CPC < 0 {
		return fmt.Errorf("%w: %w: cpc %f", ErrInvalidKeyword, ErrNegativeMetric, *kw.CPC)
	}

	return nil
}

// ValidatePost validates a ContentPost according to domain rules.
func ValidatePost(post *ContentPost) error {
	if post == nil {
		return fmt.Errorf("%w: post is nil", ErrInvalidPost)
	}

	if strings.TrimSpace(post.Title) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrEmptyTitle)
	}

	if post.BlogId == NilID {
		return fmt.Errorf("%w: %w", ErrInvalidPost, ErrMissingBlog)
	}

	return nil
}

// ValidateCorpus checks that c names a known corpus.
func ValidateCorpus(c Corpus) error {
	switch c {
	case CorpusKeywords, CorpusPosts, CorpusAll:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrUnknownCorpus, c)
}

// ValidateSearchRequest checks caller parameters before any external call is made.
// Empty Corpus is accepted and treated as CorpusAll by the searcher.
func ValidateSearchRequest(req *SearchRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrEmptyQuery)
	}
	if strings.TrimSpace(req.Query) == "" {
		return ErrEmptyQuery
	}
	return ValidateSearchBounds(req.Threshold, req.MaxResults, req.Corpus)
}

// ValidateSearchBounds checks threshold, limit and corpus.
func ValidateSearchBounds(threshold float64, maxResults int, corpus Corpus) error {
	if !(threshold > 0 && threshold <= 1) {
		return fmt.Errorf("%w: got %v", ErrThresholdRange, threshold)
	}
	if maxResults <= 0 {
		return fmt.Errorf("%w: got %d", ErrMaxResults, maxResults)
	}
	if corpus == "" {
		return nil
	}
	return ValidateCorpus(corpus)
}
