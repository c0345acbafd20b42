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

package backfill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/keywordlens/ai"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/embedcache"
	"github.com/poiesic/keywordlens/storage"
)

// Config holds configuration for the backfill operation.
type Config struct {
	// BatchSize is the number of records embedded per provider call
	BatchSize int

	// Workers is the number of batches embedded concurrently
	Workers int

	// ReportInterval is how often to report progress (number of records)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per batch
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Dimensions is the expected vector length. Zero accepts any length.
	Dimensions int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		Workers:        max(runtime.NumCPU()/2, 1),
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Recorder receives per-batch counts, typically metrics.Metrics.
type Recorder interface {
	RecordBackfill(corpus core.Corpus, succeeded, failed int)
}

// Result summarizes one corpus.
type Result struct {
	Corpus   core.Corpus
	Embedded int
	Failed   int
	Resumed  bool
	Elapsed  time.Duration
}

// Backfiller orchestrates embedding of every record that lacks a vector.
type Backfiller struct {
	store     storage.Store
	config    *Config
	processor *BatchProcessor
	pool      *ants.Pool
	progress  io.Writer
	bus       *embedcache.Bus
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures a Backfiller.
type Option func(*Backfiller) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backfiller) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "backfill")
		return nil
	}
}

// WithProgress writes a progress line to w (typically os.Stderr).
func WithProgress(w io.Writer) Option {
	return func(b *Backfiller) error {
		b.progress = w
		return nil
	}
}

// WithInvalidationBus publishes a cache purge after a run that wrote vectors.
func WithInvalidationBus(bus *embedcache.Bus) Option {
	return func(b *Backfiller) error {
		b.bus = bus
		return nil
	}
}

// WithRecorder reports batch outcomes.
func WithRecorder(r Recorder) Option {
	return func(b *Backfiller) error {
		b.recorder = r
		return nil
	}
}

// NewBackfiller creates a new backfiller. A nil config uses DefaultConfig.
func NewBackfiller(store storage.Store, embedder ai.Embedder, config *Config, opts ...Option) (*Backfiller, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.MaxRetries <= 0 {
		return nil, ErrInvalidMaxAttempts
	}

	pool, err := ants.NewPool(config.Workers)
	if err != nil {
		return nil, err
	}

	b := &Backfiller{
		store:  store,
		config: config,
		processor: &BatchProcessor{
			embedder:       embedder,
			dimensions:     config.Dimensions,
			maxRetries:     config.MaxRetries,
			retryBaseDelay: config.RetryDelay,
		},
		pool:     pool,
		progress: io.Discard,
		logger:   slog.Default().With("component", "backfill"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			pool.Release()
			return nil, err
		}
	}
	return b, nil
}

// Release releases the worker pool. The backfiller should not be used after.
func (b *Backfiller) Release() {
	b.pool.Release()
}

// Run embeds the missing records of corpus. CorpusAll runs keywords, then posts.
func (b *Backfiller) Run(ctx context.Context, corpus core.Corpus) ([]Result, error) {
	var targets []target
	switch corpus {
	case core.CorpusKeywords:
		targets = []target{keywordTarget(b.store.Keywords())}
	case core.CorpusPosts:
		targets = []target{postTarget(b.store.Posts())}
	case core.CorpusAll, "":
		targets = []target{keywordTarget(b.store.Keywords()), postTarget(b.store.Posts())}
	default:
		return nil, core.InvalidParameters("backfill", fmt.Errorf("%w: %q", core.ErrUnknownCorpus, corpus))
	}

	results := make([]Result, 0, len(targets))
	embedded := 0
	var runErr error
	for _, t := range targets {
		res, err := b.runTarget(ctx, t)
		results = append(results, res)
		embedded += res.Embedded
		if err != nil {
			runErr = err
			break
		}
	}

	if embedded > 0 && b.bus != nil {
		b.bus.Publish(embedcache.Event{Reason: embedcache.ReasonReembedded})
	}
	return results, runErr
}

// CheckpointName is the checkpoint key of a corpus backfill.
func CheckpointName(corpus core.Corpus) string {
	return "backfill:" + string(corpus)
}

func (b *Backfiller) runTarget(ctx context.Context, t target) (Result, error) {
	result := Result{Corpus: t.corpus}
	checkpoints := b.store.Checkpoints()
	name := CheckpointName(t.corpus)

	after := core.NilID
	cp, err := checkpoints.LoadCheckpoint(ctx, name)
	if err != nil {
		return result, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if cp != nil {
		after = cp.LastId
		result.Resumed = true
		b.logger.Info("resuming backfill", "corpus", t.corpus, "after", after, "processed", cp.Processed)
	}

	embedded, total, err := b.store.Schema().EmbeddingCounts(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to count records: %w", err)
	}
	missing := total.Keywords - embedded.Keywords
	if t.corpus == core.CorpusPosts {
		missing = total.Posts - embedded.Posts
	}
	if missing == 0 {
		fmt.Fprintf(b.progress, "No %s missing embeddings\n", t.corpus)
		return result, checkpoints.DeleteCheckpoint(ctx, name)
	}

	fmt.Fprintf(b.progress, "Embedding %d %s (batch size: %d, workers: %d)\n",
		missing, t.corpus, b.config.BatchSize, b.config.Workers)
	tracker := NewProgressTracker(b.progress, string(t.corpus), missing, b.config.ReportInterval)
	tracker.Start()

	iterator := newPageIterator(t, b.config.BatchSize*b.config.Workers)
	err = iterator.ForEach(ctx, after, func(page []record) error {
		ok, failed, err := b.processPage(ctx, t, page)
		result.Embedded += ok
		result.Failed += failed
		tracker.Add(ok, failed)
		if b.recorder != nil {
			b.recorder.RecordBackfill(t.corpus, ok, failed)
		}
		if err != nil {
			return err
		}

		processed := result.Embedded + result.Failed
		if cp != nil {
			processed += cp.Processed
		}
		return checkpoints.SaveCheckpoint(ctx, &core.Checkpoint{
			ProcessorType: name,
			LastId:        page[len(page)-1].id,
			Processed:     processed,
			UpdatedAt:     time.Now().UTC(),
		})
	})
	tracker.Finish()
	result.Elapsed = tracker.Elapsed()

	if err != nil {
		b.logger.Warn("backfill stopped", "corpus", t.corpus, "embedded", result.Embedded, "err", err)
		return result, err
	}

	fmt.Fprintf(b.progress, "Backfill of %s complete. Embedded %d, failed %d in %v\n",
		t.corpus, result.Embedded, result.Failed, result.Elapsed.Round(time.Millisecond))
	return result, checkpoints.DeleteCheckpoint(ctx, name)
}

// processPage splits a page into batches and embeds them on the pool.
// Batch failures are logged and counted; only cancellation aborts the page.
func (b *Backfiller) processPage(ctx context.Context, t target, page []record) (int, int, error) {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		ok     int
		failed int
	)

	for start := 0; start < len(page); start += b.config.BatchSize {
		batch := page[start:min(start+b.config.BatchSize, len(page))]
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			err := b.processor.process(ctx, t, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed += len(batch)
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					b.logger.Error("error embedding batch", "corpus", t.corpus, "size", len(batch), "err", err)
				}
				return
			}
			ok += len(batch)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return ok, failed, fmt.Errorf("failed to submit batch: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return ok, failed, err
	}
	return ok, failed, nil
}
