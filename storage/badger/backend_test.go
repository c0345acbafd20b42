package badger

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "db")
	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_PathIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	_, err := OpenBackend(file, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())

	err = backend.WithTx(func(tx *badger.Txn) error { return nil }, false)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestStore_ReportsClosed(t *testing.T) {
	store, err := NewMemoryStore()
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.Keywords().AddKeywords(context.Background(),
		&core.KeywordVariation{BlogId: core.IDFromContent("blog"), Text: "late write"})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)

	_, err = store.Posts().GetPost(context.Background(), core.IDFromContent("post"))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestKeys_SortByID(t *testing.T) {
	low := core.ID{0x01}
	high := core.ID{0x02}

	assert.Less(t, string(makeKeywordKey(low)), string(makeKeywordKey(high)))
	assert.Len(t, makePostKey(low), len(postPrefix)+16)
	assert.NotEqual(t, makeKeywordKey(low), makePostKey(low))
}

func TestScan_StopsOnCancelledContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	var keywords []*core.KeywordVariation
	for i := 0; i < contextCheckInterval*2; i++ {
		keywords = append(keywords, &core.KeywordVariation{BlogId: testBlog, Text: string(rune('a'+i%26)) + string(rune('a'+i/26))})
	}
	_, err := store.Keywords().AddKeywords(ctx, keywords...)
	require.NoError(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()

	_, err = store.Keywords().FindSimilarKeywords(cancelled, neighborQuery([]float32{1, 0}, 0.1, 10))
	assert.ErrorIs(t, err, context.Canceled)
}
