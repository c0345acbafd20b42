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


package badger

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// Schema implements storage.SchemaInspector for BadgerDB.
//
// Search functions are Go code here, so "installing" one records a catalog
// entry that the readiness machine can observe. A fresh database has no
// entries and reports not ready until setup runs.
type Schema struct {
	backend  *Backend
	keywords *KeywordRepository
	posts    *PostRepository
	matcher  *Matcher
}

var _ storage.SchemaInspector = (*Schema)(nil)

// NewSchema creates a new Schema.
func NewSchema(backend *Backend, keywords *KeywordRepository, posts *PostRepository, matcher *Matcher) *Schema {
	return &Schema{
		backend:  backend,
		keywords: keywords,
		posts:    posts,
		matcher:  matcher,
	}
}

// FunctionsAvailable reports which of the named functions have catalog entries.
func (s *Schema) FunctionsAvailable(ctx context.Context, names []string) (map[string]bool, error) {
	available := make(map[string]bool, len(names))
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		for _, name := range names {
			val, err := get(tx, makeFunctionKey(name))
			if err != nil {
				return err
			}
			available[name] = val != nil
		}
		return nil
	}, false)
	return available, err
}

// Extensions returns an empty list; the embedded store has no extensions.
func (s *Schema) Extensions(ctx context.Context) ([]core.Extension, error) {
	return []core.Extension{}, nil
}

// RequiredExtensions returns nil.
func (s *Schema) RequiredExtensions() []string {
	return nil
}

// EmbeddingCounts counts embedded and total records per corpus.
func (s *Schema) EmbeddingCounts(ctx context.Context) (core.EmbeddingCounts, core.EmbeddingCounts, error) {
	var embedded, total core.EmbeddingCounts
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		err := scan(ctx, tx, []byte(keywordPrefix), nil, func(_, val []byte) (bool, error) {
			kw, err := storage.UnmarshalKeyword(val)
			if err != nil {
				return false, err
			}
			total.Keywords++
			if kw.HasEmbedding() {
				embedded.Keywords++
			}
			return true, nil
		})
		if err != nil {
			return err
		}
		return scan(ctx, tx, []byte(postPrefix), nil, func(_, val []byte) (bool, error) {
			post, err := storage.UnmarshalPost(val)
			if err != nil {
				return false, err
			}
			total.Posts++
			if post.HasEmbedding() {
				embedded.Posts++
			}
			return true, nil
		})
	}, false)
	return embedded, total, err
}

// InstallFunctions upserts catalog entries. Installing twice is harmless.
func (s *Schema) InstallFunctions(ctx context.Context, names []string) error {
	for _, name := range names {
		if !slices.Contains(storage.RequiredFunctions, name) {
			return fmt.Errorf("%w: %s", storage.ErrUnknownFunction, name)
		}
	}

	return s.backend.WithTx(func(tx *badger.Txn) error {
		stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		for _, name := range names {
			if err := tx.Set(makeFunctionKey(name), stamp); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ProbeFunction runs the named lookup once with the probe vector.
func (s *Schema) ProbeFunction(ctx context.Context, name string, probe []float32) error {
	available, err := s.FunctionsAvailable(ctx, []string{name})
	if err != nil {
		return err
	}
	if !available[name] {
		return fmt.Errorf("%w: %s", storage.ErrFunctionMissing, name)
	}

	q := storage.NeighborQuery{Vector: probe, Threshold: 0.1, Limit: 1}
	switch name {
	case storage.FuncMatchByEmbedding:
		_, err = s.matcher.MatchByEmbedding(ctx, q)
	case storage.FuncFindSimilarKeywords:
		_, err = s.keywords.FindSimilarKeywords(ctx, q)
	case storage.FuncFindSimilarPosts:
		_, err = s.posts.FindSimilarPosts(ctx, q)
	default:
		err = fmt.Errorf("%w: %s", storage.ErrUnknownFunction, name)
	}
	return err
}
