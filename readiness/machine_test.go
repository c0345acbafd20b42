package readiness

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/keywordlens/core"
	"github.com/poiesic/keywordlens/storage"
	"github.com/poiesic/keywordlens/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSchema struct {
	mu         sync.Mutex
	installed  map[string]bool
	extensions []core.Extension
	required   []string
	embedded   core.EmbeddingCounts
	total      core.EmbeddingCounts

	inspectErr error
	installErr error
	probeErr   error

	installs   [][]string
	probes     []string
	countCalls int
}

func newFakeSchema() *fakeSchema {
	return &fakeSchema{
		installed: map[string]bool{},
		embedded:  core.EmbeddingCounts{Keywords: 3, Posts: 1},
		total:     core.EmbeddingCounts{Keywords: 3, Posts: 1},
	}
}

func (f *fakeSchema) installAll() {
	for _, name := range storage.RequiredFunctions {
		f.installed[name] = true
	}
}

func (f *fakeSchema) FunctionsAvailable(ctx context.Context, names []string) (map[string]bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = f.installed[n]
	}
	return out, nil
}

func (f *fakeSchema) Extensions(ctx context.Context) ([]core.Extension, error) {
	return f.extensions, nil
}

func (f *fakeSchema) RequiredExtensions() []string {
	return f.required
}

func (f *fakeSchema) EmbeddingCounts(ctx context.Context) (core.EmbeddingCounts, core.EmbeddingCounts, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countCalls++
	return f.embedded, f.total, nil
}

func (f *fakeSchema) InstallFunctions(ctx context.Context, names []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs = append(f.installs, names)
	if f.installErr != nil {
		return f.installErr
	}
	for _, n := range names {
		f.installed[n] = true
	}
	return nil
}

func (f *fakeSchema) ProbeFunction(ctx context.Context, name string, probe []float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, name)
	return f.probeErr
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func drain(ch <-chan Transition) []core.ReadinessState {
	var states []core.ReadinessState
	for {
		select {
		case t := <-ch:
			states = append(states, t.To)
		default:
			return states
		}
	}
}

func TestNewMachine(t *testing.T) {
	_, err := NewMachine(nil)
	assert.Equal(t, ErrSchemaRequired, err)

	_, err = NewMachine(newFakeSchema(), WithReadyTTL(-time.Second))
	assert.Error(t, err)

	_, err = NewMachine(newFakeSchema(), WithProbeDimensions(0))
	assert.Error(t, err)

	m, err := NewMachine(newFakeSchema(), WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, core.StateChecking, m.State())
	assert.Nil(t, m.LastReport())
}

func TestCheckReadiness(t *testing.T) {
	ctx := context.Background()

	t.Run("ready when functions and embeddings exist", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installAll()
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StateReady, report.State)
		assert.True(t, report.Ready())
		assert.Empty(t, report.Recommendations)
		assert.Equal(t, core.EmbeddingCounts{Keywords: 3, Posts: 1}, report.EmbeddingCounts)
		assert.Equal(t, core.StateReady, m.State())
	})

	t.Run("missing functions are recommended for setup", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installed[storage.FuncFindSimilarKeywords] = true
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.Equal(t, core.StateNotReady, report.State)
		assert.True(t, report.SearchFunctions[storage.FuncFindSimilarKeywords])
		assert.False(t, report.SearchFunctions[storage.FuncMatchByEmbedding])
		assert.Contains(t, report.Recommendations, "install search function match_by_embedding (run setup)")
		assert.Contains(t, report.Recommendations, "install search function find_similar_posts (run setup)")
		assert.Len(t, report.Recommendations, 2)
	})

	t.Run("missing required extension", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installAll()
		schema.required = []string{"vector"}
		schema.extensions = []core.Extension{{Name: "pg_trgm", Version: "1.6"}}
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.False(t, report.Ready())
		assert.Equal(t, []string{"install the vector extension"}, report.Recommendations)
	})

	t.Run("keywords without embeddings", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installAll()
		schema.embedded = core.EmbeddingCounts{}
		schema.total = core.EmbeddingCounts{Keywords: 3, Posts: 2}
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.False(t, report.Ready())
		assert.Equal(t, []string{
			"populate embeddings for 3 keyword records",
			"populate embeddings for 2 content posts",
		}, report.Recommendations)
	})

	t.Run("empty store", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installAll()
		schema.embedded = core.EmbeddingCounts{}
		schema.total = core.EmbeddingCounts{}
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.False(t, report.Ready())
		assert.Equal(t, []string{"add keyword variations before enabling semantic search"}, report.Recommendations)
	})

	t.Run("missing post embeddings do not block", func(t *testing.T) {
		schema := newFakeSchema()
		schema.installAll()
		schema.total.Posts = 4
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		require.NoError(t, err)
		assert.True(t, report.Ready())
		assert.Equal(t, []string{"populate embeddings for 3 content posts"}, report.Recommendations)
	})

	t.Run("infrastructure failure", func(t *testing.T) {
		schema := newFakeSchema()
		schema.inspectErr = errors.New("connection refused")
		m, err := NewMachine(schema)
		require.NoError(t, err)

		report, err := m.CheckReadiness(ctx)
		assert.Nil(t, report)
		assert.ErrorIs(t, err, core.ErrRepositoryUnavailable)
		assert.ErrorIs(t, err, schema.inspectErr)
		assert.Equal(t, core.StateNotReady, m.State())
	})
}

func TestCheckReadiness_Idempotent(t *testing.T) {
	schema := newFakeSchema()
	clock := newClock()
	m, err := NewMachine(schema, WithClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := m.CheckReadiness(ctx)
	require.NoError(t, err)
	second, err := m.CheckReadiness(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotSame(t, first, second)
}

func TestRunSetup(t *testing.T) {
	schema := newFakeSchema()
	schema.installed[storage.FuncFindSimilarPosts] = true
	m, err := NewMachine(schema, WithProbeDimensions(4))
	require.NoError(t, err)
	ch, err := m.Subscribe(16)
	require.NoError(t, err)

	report, err := m.RunSetup(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Ready())
	assert.Equal(t, core.StateReady, m.State())

	require.Len(t, schema.installs, 1)
	assert.Equal(t, []string{storage.FuncMatchByEmbedding, storage.FuncFindSimilarKeywords}, schema.installs[0])
	assert.Equal(t, storage.RequiredFunctions, schema.probes)

	assert.Equal(t, []core.ReadinessState{
		core.StateSetup,
		core.StateTesting,
		core.StateComplete,
		core.StateChecking,
		core.StateReady,
	}, drain(ch))
}

func TestRunSetup_Idempotent(t *testing.T) {
	schema := newFakeSchema()
	clock := newClock()
	m, err := NewMachine(schema, WithClock(clock.Now), WithProbeDimensions(4))
	require.NoError(t, err)
	ctx := context.Background()

	first, err := m.RunSetup(ctx)
	require.NoError(t, err)
	second, err := m.RunSetup(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, second.Ready())
	assert.Len(t, schema.installs, 1, "second setup has nothing to install")
	assert.Len(t, schema.probes, 2*len(storage.RequiredFunctions))
}

func TestRunSetup_NothingToInstall(t *testing.T) {
	schema := newFakeSchema()
	schema.installAll()
	m, err := NewMachine(schema)
	require.NoError(t, err)

	_, err = m.RunSetup(context.Background())
	require.NoError(t, err)
	assert.Empty(t, schema.installs)
	assert.Len(t, schema.probes, len(storage.RequiredFunctions))
}

func TestRunSetup_InstallFailure(t *testing.T) {
	schema := newFakeSchema()
	schema.installErr = errors.New("permission denied for schema public")
	m, err := NewMachine(schema)
	require.NoError(t, err)
	ch, err := m.Subscribe(16)
	require.NoError(t, err)

	report, err := m.RunSetup(context.Background())
	assert.Nil(t, report)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrSetupFailed)
	assert.ErrorIs(t, err, schema.installErr)
	assert.False(t, core.NewError(core.KindSetupFailed, "", nil).Retryable())

	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.NotNil(t, coreErr.Report)
	assert.Equal(t, core.StateNotReady, coreErr.Report.State)

	assert.Len(t, schema.installs, 1)
	assert.Empty(t, schema.probes)
	assert.Equal(t, core.StateNotReady, m.State())
	assert.Equal(t, []core.ReadinessState{core.StateSetup, core.StateNotReady}, drain(ch))
}

func TestRunSetup_ProbeFailure(t *testing.T) {
	schema := newFakeSchema()
	schema.probeErr = errors.New("function returned malformed rows")
	m, err := NewMachine(schema)
	require.NoError(t, err)
	ch, err := m.Subscribe(16)
	require.NoError(t, err)

	_, err = m.RunSetup(context.Background())
	assert.ErrorIs(t, err, core.ErrSetupFailed)
	assert.ErrorIs(t, err, schema.probeErr)
	assert.Len(t, schema.probes, 1)
	assert.Equal(t, []core.ReadinessState{core.StateSetup, core.StateTesting, core.StateNotReady}, drain(ch))
	assert.Equal(t, core.StateNotReady, m.LastReport().State)
}

func TestEnsureReady_CachesReadyVerdict(t *testing.T) {
	schema := newFakeSchema()
	schema.installAll()
	clock := newClock()
	m, err := NewMachine(schema, WithClock(clock.Now), WithReadyTTL(30*time.Second))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = m.EnsureReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, schema.countCalls)

	clock.Advance(10 * time.Second)
	_, err = m.EnsureReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, schema.countCalls)

	clock.Advance(25 * time.Second)
	_, err = m.EnsureReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, schema.countCalls)

	m.Invalidate()
	_, err = m.EnsureReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, schema.countCalls)
}

func TestEnsureReady_NotReady(t *testing.T) {
	schema := newFakeSchema()
	m, err := NewMachine(schema)
	require.NoError(t, err)

	report, err := m.EnsureReady(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotReady)

	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	assert.Same(t, report, coreErr.Report)
	assert.Contains(t, err.Error(), "install search function")
}

func TestSubscribe_AfterClose(t *testing.T) {
	m, err := NewMachine(newFakeSchema())
	require.NoError(t, err)
	ch, err := m.Subscribe(1)
	require.NoError(t, err)

	m.Close()
	m.Close()
	_, open := <-ch
	assert.False(t, open)

	_, err = m.Subscribe(1)
	assert.ErrorIs(t, err, ErrMachineClosed)
}

func TestMachine_WithBadgerStore(t *testing.T) {
	store, err := badger.NewMemoryStore()
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Keywords().AddKeywords(ctx, &core.KeywordVariation{
		BlogId: core.IDFromContent("blog:readiness"),
		Text:   "home espresso machine",
		Vector: []float32{1, 0},
	})
	require.NoError(t, err)

	m, err := NewMachine(store.Schema(), WithProbeDimensions(2))
	require.NoError(t, err)

	report, err := m.CheckReadiness(ctx)
	require.NoError(t, err)
	assert.False(t, report.Ready())
	assert.Len(t, report.Recommendations, len(storage.RequiredFunctions))

	report, err = m.RunSetup(ctx)
	require.NoError(t, err)
	assert.True(t, report.Ready())
	assert.Equal(t, 1, report.EmbeddingCounts.Keywords)

	again, err := m.RunSetup(ctx)
	require.NoError(t, err)
	assert.True(t, again.Ready())
	report.CheckedAt, again.CheckedAt = time.Time{}, time.Time{}
	assert.Equal(t, report, again)
}
