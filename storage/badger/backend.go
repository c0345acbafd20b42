package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/vector"
)

// contextCheckInterval is how many records a scan visits between cancellation checks.
const contextCheckInterval = 256

// Backend wraps a BadgerDB instance and provides low-level operations.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// badgerLoggerAdapter adapts slog.Logger to badger.Logger interface.
type badgerLoggerAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*badgerLoggerAdapter)(nil)

func (bl *badgerLoggerAdapter) Errorf(msg string, items ...any) {
	bl.logger.Error(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Warningf(msg string, items ...any) {
	bl.logger.Warn(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Infof(msg string, items ...any) {
	bl.logger.Info(fmt.Sprintf(msg, items...))
}

func (bl *badgerLoggerAdapter) Debugf(msg string, items ...any) {
	bl.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens a BadgerDB database at the specified path.
// Creates the directory if it doesn't exist.
func OpenBackend(filePath string, inMemory bool) (*Backend, error) {
	var opts badger.Options

	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		info, err := os.Stat(filePath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			if err := os.MkdirAll(filePath, 0755); err != nil {
				return nil, err
			}
			if info, err = os.Stat(filePath); err != nil {
				return nil, err
			}
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("%s is not a directory", filePath)
		}
		opts = badger.DefaultOptions(filePath)
	}

	logger := slog.Default().With("component", "badger")
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Backend{
		db:     db,
		logger: logger,
	}, nil
}

// Close closes the BadgerDB database.
func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed returns true if the database is closed.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx executes a function within a BadgerDB transaction.
// If isWrite is true, creates a read-write transaction.
// The transaction is automatically discarded if fn returns an error.
// Returns storage.ErrStorageClosed once the backend has been closed.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	if b.db.IsClosed() {
		return storage.ErrStorageClosed
	}
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// get reads the value stored at key. Returns nil, nil if the key does not exist.
func get(tx *badger.Txn, key []byte) ([]byte, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return item.ValueCopy(nil)
}

// scan visits every value under prefix, starting at start (inclusive) when set.
// fn returns false to stop the iteration early.
func scan(ctx context.Context, tx *badger.Txn, prefix, start []byte, fn func(key, val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	iter := tx.NewIterator(opts)
	defer iter.Close()

	if start == nil {
		start = prefix
	}

	visited := 0
	for iter.Seek(start); iter.Valid(); iter.Next() {
		visited++
		if visited%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		item := iter.Item()
		key := item.KeyCopy(nil)
		var more bool
		err := item.Value(func(val []byte) error {
			var err error
			more, err = fn(key, val)
			return err
		})
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return ctx.Err()
}

// vectorRecord is the view of a stored record that similarity scans need.
type vectorRecord struct {
	id     core.ID
	blogId core.ID
	vector []float32
}

// collectCandidates decodes every record under prefix into scan candidates,
// dropping records without an embedding or outside the blog scope.
func collectCandidates(ctx context.Context, tx *badger.Txn, prefix []byte, kind core.ItemKind, blogScope core.ID,
	decode func([]byte) (vectorRecord, error)) ([]vector.Candidate, error) {
	var candidates []vector.Candidate
	err := scan(ctx, tx, prefix, nil, func(_, val []byte) (bool, error) {
		rec, err := decode(val)
		if err != nil {
			return false, err
		}
		if len(rec.vector) == 0 {
			return true, nil
		}
		if blogScope != core.NilID && rec.blogId != blogScope {
			return true, nil
		}
		candidates = append(candidates, vector.Candidate{Id: rec.id, Kind: kind, Vector: rec.vector})
		return true, nil
	})
	return candidates, err
}
