package backfill

import (
	"context"

	"github.com/poiesic/keywordlens/core"
)

const (
	// DefaultBatchSize is the default number of records embedded per provider call
	DefaultBatchSize = 100
)

// pageIterator walks the records of one corpus that still lack an embedding.
type pageIterator struct {
	target   target
	pageSize int
}

func newPageIterator(t target, pageSize int) *pageIterator {
	if pageSize <= 0 {
		pageSize = DefaultBatchSize
	}
	return &pageIterator{target: t, pageSize: pageSize}
}

// ForEach calls fn with successive pages of records whose ID sorts after the
// given one. The cursor advances past every page, so records fn fails to embed
// are not revisited within a run.
// Context cancellation is checked between pages.
func (it *pageIterator) ForEach(ctx context.Context, after core.ID, fn func([]record) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.target.list(ctx, after, it.pageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}

		if err := fn(page); err != nil {
			return err
		}

		if len(page) < it.pageSize {
			return nil
		}
		after = page[len(page)-1].id
	}
}
