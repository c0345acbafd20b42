package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
)

// CheckpointRepository implements storage.CheckpointRepository for PostgreSQL.
type CheckpointRepository struct {
	store *Store
}

var _ storage.CheckpointRepository = (*CheckpointRepository)(nil)

type checkpointRow struct {
	ProcessorType string    `db:"processor_type"`
	LastId        core.ID   `db:"last_id"`
	Processed     int       `db:"processed"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r *CheckpointRepository) ensureTable(ctx context.Context) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	_, err := r.store.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS keywordlens_checkpoints (
    processor_type text PRIMARY KEY,
    last_id uuid NOT NULL,
    processed integer NOT NULL DEFAULT 0,
    updated_at timestamptz NOT NULL DEFAULT now()
)`)
	if err != nil {
		return fmt.Errorf("create checkpoint table: %w", err)
	}
	return nil
}

// SaveCheckpoint upserts the checkpoint of a processor type.
func (r *CheckpointRepository) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	checkpoint.UpdatedAt = time.Now().UTC()
	_, err := r.store.db.ExecContext(ctx, `
INSERT INTO keywordlens_checkpoints (processor_type, last_id, processed, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (processor_type) DO UPDATE SET
    last_id = EXCLUDED.last_id, processed = EXCLUDED.processed, updated_at = EXCLUDED.updated_at`,
		checkpoint.ProcessorType, checkpoint.LastId, checkpoint.Processed, checkpoint.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint returns nil, nil if no checkpoint exists.
func (r *CheckpointRepository) LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error) {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	var row checkpointRow
	err := r.store.db.GetContext(ctx, &row, `
SELECT processor_type, last_id, processed, updated_at
FROM keywordlens_checkpoints WHERE processor_type = $1`, processorType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return &core.Checkpoint{
		ProcessorType: row.ProcessorType,
		LastId:        row.LastId,
		Processed:     row.Processed,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func (r *CheckpointRepository) DeleteCheckpoint(ctx context.Context, processorType string) error {
	ctx, cancel := r.store.bounded(ctx)
	defer cancel()

	if _, err := r.store.db.ExecContext(ctx,
		`DELETE FROM keywordlens_checkpoints WHERE processor_type = $1`, processorType); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
